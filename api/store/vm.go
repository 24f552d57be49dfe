package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/GEMDevEng/GradientLab/api/model"
)

const vmColumns = `id, name, provider, region, instance_type, COALESCE(provider_native_id, ''), ip_address, status, owner_id, created_at, updated_at`

func (db *DB) InsertVM(ctx context.Context, vm *model.VM) error {
	var nativeID *string
	if vm.ProviderNativeID != "" {
		nativeID = &vm.ProviderNativeID
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO vms (id, name, provider, region, instance_type, provider_native_id, ip_address, status, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		vm.ID, vm.Name, vm.Provider, vm.Region, vm.InstanceType, nativeID, vm.IPAddress, vm.Status, vm.OwnerID, vm.CreatedAt, vm.UpdatedAt,
	)
	return storeErr("insert vm", err)
}

func (db *DB) GetVM(ctx context.Context, id string) (*model.VM, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+vmColumns+` FROM vms WHERE id = $1`, id)
	vm, err := scanVM(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get vm", err)
	}
	return vm, nil
}

func (db *DB) GetVMByNativeID(ctx context.Context, nativeID string) (*model.VM, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+vmColumns+` FROM vms WHERE provider_native_id = $1`, nativeID)
	vm, err := scanVM(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get vm by native id", err)
	}
	return vm, nil
}

func (db *DB) ListVMsByOwner(ctx context.Context, ownerID string) ([]model.VM, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+vmColumns+` FROM vms WHERE owner_id = $1 AND status <> 'deleted' ORDER BY created_at`,
		ownerID,
	)
	if err != nil {
		return nil, storeErr("list vms by owner", err)
	}
	defer rows.Close()
	return collectVMs(rows)
}

func (db *DB) ListVMs(ctx context.Context) ([]model.VM, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+vmColumns+` FROM vms WHERE status <> 'deleted' ORDER BY created_at`,
	)
	if err != nil {
		return nil, storeErr("list vms", err)
	}
	defer rows.Close()
	return collectVMs(rows)
}

// vmUpdatable is the set of columns UpdateVMFields may touch. Fields not
// named in the update are never overwritten.
var vmUpdatable = map[string]bool{
	"name":               true,
	"status":             true,
	"provider_native_id": true,
	"ip_address":         true,
	"instance_type":      true,
	"region":             true,
}

func (db *DB) UpdateVMFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	set := make([]string, 0, len(fields)+1)
	args := make([]interface{}, 0, len(fields)+1)
	argN := 1
	for col, val := range fields {
		if !vmUpdatable[col] {
			return storeErr("update vm", fmt.Errorf("column %q is not updatable", col))
		}
		set = append(set, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, val)
		argN++
	}
	set = append(set, "updated_at = now()")
	args = append(args, id)

	tag, err := db.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE vms SET %s WHERE id = $%d`, strings.Join(set, ", "), argN),
		args...,
	)
	if err != nil {
		return storeErr("update vm", err)
	}
	if tag.RowsAffected() == 0 {
		return storeErr("update vm", pgx.ErrNoRows)
	}
	return nil
}

// DeleteVM removes the VM row; the nodes foreign key cascades.
func (db *DB) DeleteVM(ctx context.Context, id string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM vms WHERE id = $1`, id)
	return storeErr("delete vm", err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVM(row rowScanner) (*model.VM, error) {
	var vm model.VM
	err := row.Scan(&vm.ID, &vm.Name, &vm.Provider, &vm.Region, &vm.InstanceType,
		&vm.ProviderNativeID, &vm.IPAddress, &vm.Status, &vm.OwnerID, &vm.CreatedAt, &vm.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &vm, nil
}

func collectVMs(rows pgx.Rows) ([]model.VM, error) {
	var vms []model.VM
	for rows.Next() {
		vm, err := scanVM(rows)
		if err != nil {
			return nil, storeErr("scan vm", err)
		}
		vms = append(vms, *vm)
	}
	return vms, storeErr("iterate vms", rows.Err())
}
