package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/GEMDevEng/GradientLab/api/model"
)

// UpsertReward inserts a reward row for (node, date) or accumulates the
// point tallies onto the existing row for that date.
func (db *DB) UpsertReward(ctx context.Context, r *model.Reward) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO rewards (id, node_id, reward_date, poa_points, poc_points, referral_points, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		 ON CONFLICT (node_id, reward_date) DO UPDATE SET
		   poa_points = rewards.poa_points + EXCLUDED.poa_points,
		   poc_points = rewards.poc_points + EXCLUDED.poc_points,
		   referral_points = rewards.referral_points + EXCLUDED.referral_points,
		   updated_at = now()`,
		r.ID, r.NodeID, r.Date, r.PoaPoints, r.PocPoints, r.ReferralPoints,
	)
	return storeErr("upsert reward", err)
}

func (db *DB) ListRewardsByNode(ctx context.Context, nodeID string) ([]model.Reward, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, node_id, reward_date, poa_points, poc_points, referral_points, created_at, updated_at
		 FROM rewards WHERE node_id = $1 ORDER BY reward_date DESC`,
		nodeID,
	)
	if err != nil {
		return nil, storeErr("list rewards", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		var r model.Reward
		if err := rows.Scan(&r.ID, &r.NodeID, &r.Date, &r.PoaPoints, &r.PocPoints, &r.ReferralPoints, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, storeErr("scan reward", err)
		}
		rewards = append(rewards, r)
	}
	return rewards, storeErr("iterate rewards", rows.Err())
}

func (db *DB) GetReward(ctx context.Context, nodeID string, date string) (*model.Reward, error) {
	var r model.Reward
	err := db.pool.QueryRow(ctx,
		`SELECT id, node_id, reward_date, poa_points, poc_points, referral_points, created_at, updated_at
		 FROM rewards WHERE node_id = $1 AND reward_date = $2`,
		nodeID, date,
	).Scan(&r.ID, &r.NodeID, &r.Date, &r.PoaPoints, &r.PocPoints, &r.ReferralPoints, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get reward", err)
	}
	return &r, nil
}

func (db *DB) InsertReferral(ctx context.Context, ref *model.Referral) error {
	if ref.ReferrerNodeID == ref.ReferredNodeID {
		return model.ErrSelfReferral
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO referrals (id, referrer_node_id, referred_node_id, bonus_percentage, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ref.ID, ref.ReferrerNodeID, ref.ReferredNodeID, ref.BonusPercentage, ref.CreatedAt,
	)
	if err != nil {
		// Postgres reports the (referrer, referred) uniqueness violation as 23505.
		if strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key") {
			return model.ErrDuplicateReferral
		}
		return storeErr("insert referral", err)
	}
	return nil
}

func (db *DB) ListReferralsByNode(ctx context.Context, nodeID string) ([]model.Referral, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, referrer_node_id, referred_node_id, bonus_percentage, created_at
		 FROM referrals WHERE referrer_node_id = $1 OR referred_node_id = $1
		 ORDER BY created_at`,
		nodeID,
	)
	if err != nil {
		return nil, storeErr("list referrals", err)
	}
	defer rows.Close()

	var refs []model.Referral
	for rows.Next() {
		var r model.Referral
		if err := rows.Scan(&r.ID, &r.ReferrerNodeID, &r.ReferredNodeID, &r.BonusPercentage, &r.CreatedAt); err != nil {
			return nil, storeErr("scan referral", err)
		}
		refs = append(refs, r)
	}
	return refs, storeErr("iterate referrals", rows.Err())
}

type FleetStats struct {
	TotalVMs         int     `json:"totalVms"`
	RunningVMs       int     `json:"runningVms"`
	TotalNodes       int     `json:"totalNodes"`
	RunningNodes     int     `json:"runningNodes"`
	UnreachableNodes int     `json:"unreachableNodes"`
	AvgUptime        float64 `json:"avgUptime"`
}

func (db *DB) GetFleetStats(ctx context.Context) (*FleetStats, error) {
	s := &FleetStats{}
	err := db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'running')
		FROM vms WHERE status <> 'deleted'
	`).Scan(&s.TotalVMs, &s.RunningVMs)
	if err != nil {
		return nil, storeErr("fleet stats vms", err)
	}
	err = db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'running'),
			COUNT(*) FILTER (WHERE status = 'unreachable'),
			COALESCE(AVG(uptime_percentage), 0)
		FROM nodes
	`).Scan(&s.TotalNodes, &s.RunningNodes, &s.UnreachableNodes, &s.AvgUptime)
	if err != nil {
		return nil, storeErr("fleet stats nodes", err)
	}
	return s, nil
}
