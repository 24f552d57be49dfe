package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"providers": h.ctrl.ListProviders()})
}

func (h *Handler) ListRegions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	regions, err := h.ctrl.ListRegions(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"provider": name, "regions": regions})
}
