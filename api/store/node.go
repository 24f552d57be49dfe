package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/GEMDevEng/GradientLab/api/model"
)

const nodeColumns = `id, vm_id, name, status, uptime_percentage, uptime_history, poc_history, poc_success_rate, last_checked_at, created_at, updated_at`

func (db *DB) InsertNode(ctx context.Context, n *model.Node) error {
	uptime, _ := json.Marshal(n.UptimeHistory)
	poc, _ := json.Marshal(n.PocHistory)
	if n.UptimeHistory == nil {
		uptime = []byte("[]")
	}
	if n.PocHistory == nil {
		poc = []byte("[]")
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO nodes (id, vm_id, name, status, uptime_percentage, uptime_history, poc_history, poc_success_rate, last_checked_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		n.ID, n.VMID, n.Name, n.Status, n.UptimePercentage, uptime, poc, n.PocSuccessRate, n.LastCheckedAt, n.CreatedAt, n.UpdatedAt,
	)
	return storeErr("insert node", err)
}

func (db *DB) GetNode(ctx context.Context, id string) (*model.Node, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = $1`, id)
	n, err := scanNode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get node", err)
	}
	return n, nil
}

func (db *DB) ListNodesByVM(ctx context.Context, vmID string) ([]model.Node, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE vm_id = $1 ORDER BY created_at`, vmID,
	)
	if err != nil {
		return nil, storeErr("list nodes by vm", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

func (db *DB) ListNodes(ctx context.Context) ([]model.Node, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY created_at`)
	if err != nil {
		return nil, storeErr("list nodes", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

// ListActiveNodes returns every node joined with its owning VM, skipping
// VMs in deleted status. This is the monitor's sweep input.
func (db *DB) ListActiveNodes(ctx context.Context) ([]model.NodeVM, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT n.id, n.vm_id, n.name, n.status, n.uptime_percentage, n.uptime_history, n.poc_history, n.poc_success_rate, n.last_checked_at, n.created_at, n.updated_at,
		       v.id, v.name, v.provider, v.region, v.instance_type, COALESCE(v.provider_native_id, ''), v.ip_address, v.status, v.owner_id, v.created_at, v.updated_at
		FROM nodes n
		JOIN vms v ON v.id = n.vm_id
		WHERE v.status <> 'deleted'
		ORDER BY n.created_at
	`)
	if err != nil {
		return nil, storeErr("list active nodes", err)
	}
	defer rows.Close()

	var out []model.NodeVM
	for rows.Next() {
		var nv model.NodeVM
		var uptime, poc []byte
		err := rows.Scan(
			&nv.Node.ID, &nv.Node.VMID, &nv.Node.Name, &nv.Node.Status, &nv.Node.UptimePercentage,
			&uptime, &poc, &nv.Node.PocSuccessRate, &nv.Node.LastCheckedAt, &nv.Node.CreatedAt, &nv.Node.UpdatedAt,
			&nv.VM.ID, &nv.VM.Name, &nv.VM.Provider, &nv.VM.Region, &nv.VM.InstanceType,
			&nv.VM.ProviderNativeID, &nv.VM.IPAddress, &nv.VM.Status, &nv.VM.OwnerID, &nv.VM.CreatedAt, &nv.VM.UpdatedAt,
		)
		if err != nil {
			return nil, storeErr("scan active node", err)
		}
		if err := json.Unmarshal(uptime, &nv.Node.UptimeHistory); err != nil {
			return nil, storeErr("decode uptime history", err)
		}
		if err := json.Unmarshal(poc, &nv.Node.PocHistory); err != nil {
			return nil, storeErr("decode poc history", err)
		}
		out = append(out, nv)
	}
	return out, storeErr("iterate active nodes", rows.Err())
}

var nodeUpdatable = map[string]bool{
	"name":              true,
	"status":            true,
	"uptime_percentage": true,
	"uptime_history":    true,
	"poc_history":       true,
	"poc_success_rate":  true,
	"last_checked_at":   true,
}

func (db *DB) UpdateNodeFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	set := make([]string, 0, len(fields)+1)
	args := make([]interface{}, 0, len(fields)+1)
	argN := 1
	for col, val := range fields {
		if !nodeUpdatable[col] {
			return storeErr("update node", fmt.Errorf("column %q is not updatable", col))
		}
		// History arrays go over the wire as JSONB.
		if col == "uptime_history" || col == "poc_history" {
			b, err := json.Marshal(val)
			if err != nil {
				return storeErr("update node", err)
			}
			val = b
		}
		set = append(set, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, val)
		argN++
	}
	set = append(set, "updated_at = now()")
	args = append(args, id)

	tag, err := db.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE nodes SET %s WHERE id = $%d`, strings.Join(set, ", "), argN),
		args...,
	)
	if err != nil {
		return storeErr("update node", err)
	}
	if tag.RowsAffected() == 0 {
		return storeErr("update node", pgx.ErrNoRows)
	}
	return nil
}

func (db *DB) DeleteNode(ctx context.Context, id string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM nodes WHERE id = $1`, id)
	return storeErr("delete node", err)
}

func scanNode(row rowScanner) (*model.Node, error) {
	var n model.Node
	var uptime, poc []byte
	err := row.Scan(&n.ID, &n.VMID, &n.Name, &n.Status, &n.UptimePercentage,
		&uptime, &poc, &n.PocSuccessRate, &n.LastCheckedAt, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(uptime, &n.UptimeHistory); err != nil {
		return nil, fmt.Errorf("decode uptime history: %w", err)
	}
	if err := json.Unmarshal(poc, &n.PocHistory); err != nil {
		return nil, fmt.Errorf("decode poc history: %w", err)
	}
	return &n, nil
}

func collectNodes(rows pgx.Rows) ([]model.Node, error) {
	var nodes []model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, storeErr("scan node", err)
		}
		nodes = append(nodes, *n)
	}
	return nodes, storeErr("iterate nodes", rows.Err())
}
