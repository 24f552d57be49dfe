package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/GEMDevEng/GradientLab/api/model"
	"github.com/GEMDevEng/GradientLab/api/store"
)

type fakeStore struct {
	vms   []model.VM
	nodes []model.Node
	stats *store.FleetStats
	err   error
}

func (s *fakeStore) ListVMs(ctx context.Context) ([]model.VM, error)     { return s.vms, s.err }
func (s *fakeStore) ListNodes(ctx context.Context) ([]model.Node, error) { return s.nodes, s.err }
func (s *fakeStore) GetFleetStats(ctx context.Context) (*store.FleetStats, error) {
	return s.stats, s.err
}

type fakeObjects struct {
	ensured bool
	keys    []string
	bodies  [][]byte
	putErr  error
}

func (o *fakeObjects) EnsureBucket(ctx context.Context) error { o.ensured = true; return nil }
func (o *fakeObjects) PutSnapshot(ctx context.Context, key string, body []byte) error {
	o.keys = append(o.keys, key)
	o.bodies = append(o.bodies, body)
	return o.putErr
}

func TestCaptureWritesDatedSnapshot(t *testing.T) {
	st := &fakeStore{
		vms:   []model.VM{{ID: "vm1", Provider: "google", Status: model.VMRunning}},
		nodes: []model.Node{{ID: "n1", VMID: "vm1", UptimePercentage: 99.5}},
		stats: &store.FleetStats{},
	}
	obj := &fakeObjects{}

	s := &Snapshotter{Store: st, Objects: obj}
	if err := s.Capture(context.Background()); err != nil {
		t.Fatalf("capture: %v", err)
	}

	if !obj.ensured {
		t.Errorf("bucket was not ensured before the write")
	}
	if len(obj.keys) != 1 {
		t.Fatalf("expected 1 object, got %d", len(obj.keys))
	}
	want := fmt.Sprintf("reports/%s.json", time.Now().UTC().Format("2006-01-02"))
	if obj.keys[0] != want {
		t.Errorf("key = %q, want %q", obj.keys[0], want)
	}

	var snap Snapshot
	if err := json.Unmarshal(obj.bodies[0], &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.VMs) != 1 || snap.VMs[0].ID != "vm1" {
		t.Errorf("snapshot vms = %v", snap.VMs)
	}
	if len(snap.Nodes) != 1 || snap.Nodes[0].UptimePercentage != 99.5 {
		t.Errorf("snapshot nodes = %v", snap.Nodes)
	}
}

func TestCaptureStoreFailure(t *testing.T) {
	st := &fakeStore{err: fmt.Errorf("db down")}
	obj := &fakeObjects{}

	s := &Snapshotter{Store: st, Objects: obj}
	if err := s.Capture(context.Background()); err == nil {
		t.Fatal("expected error when the store is unavailable")
	}
	if len(obj.keys) != 0 {
		t.Errorf("no object should be written on store failure")
	}
}
