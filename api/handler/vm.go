package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GEMDevEng/GradientLab/api/lifecycle"
	"github.com/GEMDevEng/GradientLab/api/model"
)

func (h *Handler) CreateVM(w http.ResponseWriter, r *http.Request) {
	var spec lifecycle.CreateSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if spec.Name == "" || spec.Provider == "" || spec.Region == "" {
		http.Error(w, "name, provider and region are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	vm, err := h.ctrl.Create(ctx, spec, ownerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, vm)
}

func (h *Handler) ListVMs(w http.ResponseWriter, r *http.Request) {
	vms, err := h.db.ListVMsByOwner(r.Context(), ownerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if vms == nil {
		vms = []model.VM{}
	}
	writeJSON(w, vms)
}

func (h *Handler) GetVM(w http.ResponseWriter, r *http.Request) {
	vm, err := h.db.GetVM(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if vm == nil || vm.OwnerID != ownerID(r) || vm.Status == model.VMDeleted {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, vm)
}

func (h *Handler) StartVM(w http.ResponseWriter, r *http.Request) {
	h.transitionVM(w, r, h.ctrl.Start)
}

func (h *Handler) StopVM(w http.ResponseWriter, r *http.Request) {
	h.transitionVM(w, r, h.ctrl.Stop)
}

func (h *Handler) transitionVM(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) (*model.VM, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	vm, err := op(ctx, chi.URLParam(r, "id"), ownerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, vm)
}

func (h *Handler) DeleteVM(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := h.ctrl.Delete(ctx, chi.URLParam(r, "id"), ownerID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}

func (h *Handler) ListVMNodes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	vm, err := h.db.GetVM(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if vm == nil || vm.OwnerID != ownerID(r) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	nodes, err := h.db.ListNodesByVM(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []model.Node{}
	}
	writeJSON(w, nodes)
}
