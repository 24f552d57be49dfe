package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GEMDevEng/GradientLab/api/model"
)

type DB struct {
	pool *pgxpool.Pool
}

func Connect(databaseURL string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func Migrate(db *DB) error {
	ctx := context.Background()
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS vms (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			provider           TEXT NOT NULL,
			region             TEXT NOT NULL,
			instance_type      TEXT NOT NULL DEFAULT '',
			provider_native_id TEXT UNIQUE,
			ip_address         TEXT NOT NULL DEFAULT '',
			status             TEXT NOT NULL DEFAULT 'provisioning',
			owner_id           TEXT NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_vms_owner ON vms(owner_id);
		CREATE INDEX IF NOT EXISTS idx_vms_status ON vms(status);

		CREATE TABLE IF NOT EXISTS nodes (
			id                 TEXT PRIMARY KEY,
			vm_id              TEXT NOT NULL REFERENCES vms(id) ON DELETE CASCADE,
			name               TEXT NOT NULL,
			status             TEXT NOT NULL DEFAULT 'deploying',
			uptime_percentage  DOUBLE PRECISION NOT NULL DEFAULT 0,
			uptime_history     JSONB NOT NULL DEFAULT '[]',
			poc_history        JSONB NOT NULL DEFAULT '[]',
			poc_success_rate   DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_checked_at    TIMESTAMPTZ,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_nodes_vm ON nodes(vm_id);

		CREATE TABLE IF NOT EXISTS referrals (
			id               TEXT PRIMARY KEY,
			referrer_node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
			referred_node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
			bonus_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (referrer_node_id, referred_node_id),
			CHECK (referrer_node_id <> referred_node_id)
		);

		CREATE TABLE IF NOT EXISTS rewards (
			id              TEXT PRIMARY KEY,
			node_id         TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
			reward_date     DATE NOT NULL,
			poa_points      INTEGER NOT NULL DEFAULT 0,
			poc_points      INTEGER NOT NULL DEFAULT 0,
			referral_points INTEGER NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (node_id, reward_date)
		);
		CREATE INDEX IF NOT EXISTS idx_rewards_node_date ON rewards(node_id, reward_date DESC);
	`)
	return err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &model.StoreError{Op: op, Err: err}
}
