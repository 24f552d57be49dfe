package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GEMDevEng/GradientLab/api/hub"
	"github.com/GEMDevEng/GradientLab/api/model"
)

func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.db.ListNodes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []model.Node{}
	}
	writeJSON(w, nodes)
}

func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.db.GetNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if node == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, node)
}

// PublishNodeStatus lets an external reporter (the node itself, or a
// sidecar) push a status sample into the realtime stream without waiting
// for the next monitor sweep.
func (h *Handler) PublishNodeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	node, err := h.db.GetNode(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if node == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	payload, err := decodeStatusPayload(r.Body, id)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.ws.Publish(id, hub.Event{Type: "node.status", Payload: payload})
	writeJSON(w, map[string]string{"status": "published"})
}

// decodeStatusPayload reads a reporter's status body and stamps it with the
// node id. A literal JSON null decodes without error but leaves the map nil,
// so it is normalized to an empty payload.
func decodeStatusPayload(body io.Reader, nodeID string) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["nodeId"] = nodeID
	return payload, nil
}
