package store

import (
	"fmt"
	"testing"
)

// stubNodeRow feeds fixed bytes into the two history columns and leaves
// every other destination at its zero value.
type stubNodeRow struct {
	uptime []byte
	poc    []byte
}

func (r *stubNodeRow) Scan(dest ...interface{}) error {
	var blobs []*[]byte
	for _, d := range dest {
		if b, ok := d.(*[]byte); ok {
			blobs = append(blobs, b)
		}
	}
	if len(blobs) != 2 {
		return fmt.Errorf("expected 2 history columns, got %d", len(blobs))
	}
	*blobs[0] = r.uptime
	*blobs[1] = r.poc
	return nil
}

func TestScanNodeDecodesHistories(t *testing.T) {
	n, err := scanNode(&stubNodeRow{
		uptime: []byte(`["2026-08-01T00:00:00Z up"]`),
		poc:    []byte(`[]`),
	})
	if err != nil {
		t.Fatalf("scanNode: %v", err)
	}
	if len(n.UptimeHistory) != 1 || len(n.PocHistory) != 0 {
		t.Errorf("histories = %d/%d, want 1/0", len(n.UptimeHistory), len(n.PocHistory))
	}
}

func TestScanNodeRejectsCorruptHistory(t *testing.T) {
	if _, err := scanNode(&stubNodeRow{uptime: []byte(`{not json`), poc: []byte(`[]`)}); err == nil {
		t.Error("corrupt uptime history did not error")
	}
	if _, err := scanNode(&stubNodeRow{uptime: []byte(`[]`), poc: []byte(`{not json`)}); err == nil {
		t.Error("corrupt poc history did not error")
	}
}
