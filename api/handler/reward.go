package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/GEMDevEng/GradientLab/api/hub"
	"github.com/GEMDevEng/GradientLab/api/model"
)

type rewardRequest struct {
	NodeID         string `json:"nodeId"`
	Date           string `json:"date"` // YYYY-MM-DD, defaults to today
	PoaPoints      int    `json:"poaPoints"`
	PocPoints      int    `json:"pocPoints"`
	ReferralPoints int    `json:"referralPoints"`
}

// SubmitReward records (or accumulates onto) the node's point tally for a
// day, then pushes the updated total to the node owner's stream.
func (h *Handler) SubmitReward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.NodeID == "" {
		http.Error(w, "nodeId is required", http.StatusBadRequest)
		return
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	if req.Date != "" {
		var err error
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	node, err := h.db.GetNode(r.Context(), req.NodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	if node == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	reward := &model.Reward{
		ID:             uuid.NewString(),
		NodeID:         req.NodeID,
		Date:           date,
		PoaPoints:      req.PoaPoints,
		PocPoints:      req.PocPoints,
		ReferralPoints: req.ReferralPoints,
	}
	if err := h.db.UpsertReward(r.Context(), reward); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.db.GetReward(r.Context(), req.NodeID, date.Format("2006-01-02"))
	if err != nil {
		writeError(w, err)
		return
	}

	payload := map[string]interface{}{"nodeId": req.NodeID, "reward": updated}
	h.ws.Publish(req.NodeID, hub.Event{Type: "node.reward", Payload: payload})
	if vm, err := h.db.GetVM(r.Context(), node.VMID); err == nil && vm != nil && vm.OwnerID != "" {
		h.ws.PublishToUser(vm.OwnerID, hub.Event{Type: "reward.updated", Payload: payload})
	}

	writeJSON(w, updated)
}

func (h *Handler) ListNodeRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.db.ListRewardsByNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, rewards)
}

type referralRequest struct {
	ReferrerNodeID  string  `json:"referrerNodeId"`
	ReferredNodeID  string  `json:"referredNodeId"`
	BonusPercentage float64 `json:"bonusPercentage"`
}

func (h *Handler) CreateReferral(w http.ResponseWriter, r *http.Request) {
	var req referralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ReferrerNodeID == "" || req.ReferredNodeID == "" {
		http.Error(w, "referrerNodeId and referredNodeId are required", http.StatusBadRequest)
		return
	}
	if req.BonusPercentage == 0 {
		req.BonusPercentage = 10
	}

	ref := &model.Referral{
		ID:              uuid.NewString(),
		ReferrerNodeID:  req.ReferrerNodeID,
		ReferredNodeID:  req.ReferredNodeID,
		BonusPercentage: req.BonusPercentage,
		CreatedAt:       time.Now().UTC(),
	}
	if err := h.db.InsertReferral(r.Context(), ref); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, ref)
}

func (h *Handler) ListNodeReferrals(w http.ResponseWriter, r *http.Request) {
	refs, err := h.db.ListReferralsByNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if refs == nil {
		refs = []model.Referral{}
	}
	writeJSON(w, refs)
}
