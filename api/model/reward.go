package model

import "time"

// Reward is a per-node, per-date point tally. Unique per (node, date);
// repeated submissions for the same date accumulate.
type Reward struct {
	ID             string    `json:"id"`
	NodeID         string    `json:"nodeId"`
	Date           time.Time `json:"date"` // truncated to day
	PoaPoints      int       `json:"poaPoints"`
	PocPoints      int       `json:"pocPoints"`
	ReferralPoints int       `json:"referralPoints"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (r *Reward) TotalPoints() int {
	return r.PoaPoints + r.PocPoints + r.ReferralPoints
}

// Referral is a directed edge referrer-node → referred-node. At most one
// edge per (referrer, referred) pair; self-reference forbidden.
type Referral struct {
	ID              string    `json:"id"`
	ReferrerNodeID  string    `json:"referrerNodeId"`
	ReferredNodeID  string    `json:"referredNodeId"`
	BonusPercentage float64   `json:"bonusPercentage"`
	CreatedAt       time.Time `json:"createdAt"`
}
