package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/GEMDevEng/GradientLab/api/config"
	"github.com/GEMDevEng/GradientLab/api/hub"
	"github.com/GEMDevEng/GradientLab/api/lifecycle"
	"github.com/GEMDevEng/GradientLab/api/model"
	"github.com/GEMDevEng/GradientLab/api/store"
)

var validIDRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*$`)

type Handler struct {
	db   *store.DB
	ctrl *lifecycle.Controller
	ws   *hub.Hub
	cfg  *config.Config
}

func New(db *store.DB, ctrl *lifecycle.Controller, ws *hub.Hub, cfg *config.Config) *Handler {
	return &Handler{db: db, ctrl: ctrl, ws: ws, cfg: cfg}
}

// ValidateID is middleware that rejects requests with malformed resource ids.
func ValidateID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id != "" && !validIDRe.MatchString(id) {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses. A partial
// apply is surfaced as a 500 with a drift flag so callers know the provider
// side already moved.
func writeError(w http.ResponseWriter, err error) {
	var provErr *model.ProviderError
	var partial *model.PartialApplyError

	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, model.ErrUnknownProviderFormat):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrSelfReferral):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrDuplicateReferral):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &partial):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":     partial.Error(),
			"drift":     true,
			"vmId":      partial.VMID,
			"confirmed": partial.Confirmed,
		})
	case errors.As(err, &provErr):
		switch provErr.Code {
		case model.ProviderInvalidRegion:
			http.Error(w, provErr.Error(), http.StatusBadRequest)
		case model.ProviderQuotaExceeded:
			http.Error(w, provErr.Error(), http.StatusTooManyRequests)
		default:
			http.Error(w, provErr.Error(), http.StatusBadGateway)
		}
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
