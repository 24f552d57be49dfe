package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/GEMDevEng/GradientLab/api/model"
)

func TestWriteErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", model.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("vm: %w", model.ErrNotFound), http.StatusNotFound},
		{"invalid transition", model.ErrInvalidTransition, http.StatusConflict},
		{"unknown provider format", model.ErrUnknownProviderFormat, http.StatusBadRequest},
		{"self referral", model.ErrSelfReferral, http.StatusBadRequest},
		{"duplicate referral", model.ErrDuplicateReferral, http.StatusConflict},
		{"invalid region", &model.ProviderError{Provider: "oracle", Code: model.ProviderInvalidRegion, Message: "no such region"}, http.StatusBadRequest},
		{"quota exceeded", &model.ProviderError{Provider: "oracle", Code: model.ProviderQuotaExceeded, Message: "limit"}, http.StatusTooManyRequests},
		{"provider unavailable", &model.ProviderError{Provider: "azure", Code: model.ProviderUnavailable, Message: "down"}, http.StatusBadGateway},
		{"partial apply", &model.PartialApplyError{VMID: "vm1", Confirmed: model.VMStopped, Err: fmt.Errorf("db gone")}, http.StatusInternalServerError},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tc.err)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestWriteErrorPartialApplyFlagsDrift(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &model.PartialApplyError{VMID: "vm1", Confirmed: model.VMStopped, Err: fmt.Errorf("db gone")})
	body := rec.Body.String()
	if !strings.Contains(body, `"drift":true`) || !strings.Contains(body, `"vmId":"vm1"`) {
		t.Errorf("body missing drift marker: %s", body)
	}
}

func TestValidateID(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/vms/{id}", func(r chi.Router) {
		r.Use(ValidateID)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	cases := []struct {
		id   string
		want int
	}{
		{"abc-123", http.StatusOK},
		{"9f8e7d", http.StatusOK},
		{"..%2Fetc", http.StatusBadRequest},
		{"_bad", http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/vms/"+tc.id+"/", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("id %q: status = %d, want %d", tc.id, rec.Code, tc.want)
		}
	}
}

func signToken(t *testing.T, secret, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestJWTAuth(t *testing.T) {
	secret := "test-secret"
	var gotOwner string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner = ownerID(r)
		w.WriteHeader(http.StatusOK)
	})
	mw := JWTAuth(secret)(next)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/vms", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-1"))
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if gotOwner != "user-1" {
			t.Errorf("owner = %q, want user-1", gotOwner)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/vms", nil)
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/vms", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "user-1"))
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestOwnerIDWithoutAuth(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := ownerID(req.WithContext(context.Background())); got != "" {
		t.Errorf("ownerID = %q, want empty", got)
	}
}

func TestDecodeStatusPayload(t *testing.T) {
	payload, err := decodeStatusPayload(strings.NewReader(`{"running":true}`), "n1")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["nodeId"] != "n1" || payload["running"] != true {
		t.Errorf("payload = %v", payload)
	}

	// A bare JSON null must not blow up stamping the node id.
	payload, err = decodeStatusPayload(strings.NewReader(`null`), "n1")
	if err != nil {
		t.Fatalf("decode null: %v", err)
	}
	if payload["nodeId"] != "n1" {
		t.Errorf("null body payload = %v", payload)
	}

	if _, err = decodeStatusPayload(strings.NewReader(`{`), "n1"); err == nil {
		t.Error("truncated body did not error")
	}
}
