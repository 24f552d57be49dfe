package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GEMDevEng/GradientLab/api/cloud"
	"github.com/GEMDevEng/GradientLab/api/hub"
	"github.com/GEMDevEng/GradientLab/api/model"
)

type fakeStore struct {
	mu    sync.Mutex
	vms   map[string]*model.VM
	nodes map[string]*model.Node

	failVMUpdate bool
	failVMInsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{vms: make(map[string]*model.VM), nodes: make(map[string]*model.Node)}
}

func (s *fakeStore) InsertVM(ctx context.Context, vm *model.VM) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failVMInsert {
		return &model.StoreError{Op: "insert vm", Err: errors.New("connection refused")}
	}
	cp := *vm
	s.vms[vm.ID] = &cp
	return nil
}

func (s *fakeStore) GetVM(ctx context.Context, id string) (*model.VM, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vm, ok := s.vms[id]
	if !ok {
		return nil, nil
	}
	cp := *vm
	return &cp, nil
}

func (s *fakeStore) ListVMsByOwner(ctx context.Context, ownerID string) ([]model.VM, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.VM
	for _, vm := range s.vms {
		if vm.OwnerID == ownerID {
			out = append(out, *vm)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateVMFields(ctx context.Context, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failVMUpdate {
		return &model.StoreError{Op: "update vm", Err: errors.New("connection refused")}
	}
	vm, ok := s.vms[id]
	if !ok {
		return &model.StoreError{Op: "update vm", Err: errors.New("no rows")}
	}
	for col, val := range fields {
		switch col {
		case "status":
			vm.Status = val.(model.VMStatus)
		case "provider_native_id":
			vm.ProviderNativeID = val.(string)
		case "ip_address":
			vm.IPAddress = val.(string)
		}
	}
	return nil
}

func (s *fakeStore) DeleteVM(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vms, id)
	for nid, n := range s.nodes {
		if n.VMID == id {
			delete(s.nodes, nid)
		}
	}
	return nil
}

func (s *fakeStore) InsertNode(ctx context.Context, n *model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.nodes[n.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateNodeFields(ctx context.Context, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return &model.StoreError{Op: "update node", Err: errors.New("no rows")}
	}
	if v, ok := fields["status"]; ok {
		n.Status = v.(model.NodeStatus)
	}
	return nil
}

func (s *fakeStore) ListNodesByVM(ctx context.Context, vmID string) ([]model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Node
	for _, n := range s.nodes {
		if n.VMID == vmID {
			out = append(out, *n)
		}
	}
	return out, nil
}

type fakeWS struct {
	mu     sync.Mutex
	events []hub.Event
	forgot []string
}

func (w *fakeWS) Publish(nodeID string, evt hub.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	evt.NodeID = nodeID
	w.events = append(w.events, evt)
}

func (w *fakeWS) PublishToUser(userID string, evt hub.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	evt.UserID = userID
	w.events = append(w.events, evt)
}

func (w *fakeWS) Forget(nodeID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.forgot = append(w.forgot, nodeID)
}

func (w *fakeWS) types() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for _, e := range w.events {
		out = append(out, e.Type)
	}
	return out
}

// failingAdapter errors on every call; used to prove the store is never
// updated without adapter confirmation.
type failingAdapter struct {
	err error
}

func (a *failingAdapter) Name() string { return "oracle" }
func (a *failingAdapter) Create(ctx context.Context, name, region, size string) (*model.VMDescriptor, error) {
	return nil, a.err
}
func (a *failingAdapter) Describe(ctx context.Context, id string) (*model.VMDescriptor, error) {
	return nil, a.err
}
func (a *failingAdapter) Start(ctx context.Context, id string) (*model.VMDescriptor, error) {
	return nil, a.err
}
func (a *failingAdapter) Stop(ctx context.Context, id string) (*model.VMDescriptor, error) {
	return nil, a.err
}
func (a *failingAdapter) Delete(ctx context.Context, id string) (*model.VMDescriptor, error) {
	return nil, a.err
}
func (a *failingAdapter) List(ctx context.Context) ([]model.VMDescriptor, error) {
	return nil, a.err
}
func (a *failingAdapter) ListRegions() []model.Region { return nil }

type fakeProviders struct {
	adapter cloud.Adapter
}

func (p *fakeProviders) Resolve(name string) (cloud.Adapter, error) { return p.adapter, nil }

func (p *fakeProviders) ResolveByNativeID(id string) (cloud.Adapter, error) {
	return p.adapter, nil
}

func (p *fakeProviders) Supported(name string) bool { return name == "oracle" }

func (p *fakeProviders) Names() []string { return []string{"oracle"} }

func newTestController(t *testing.T) (*Controller, *fakeStore, *fakeWS) {
	t.Helper()
	st := newFakeStore()
	ws := &fakeWS{}
	c := &Controller{
		Store:     st,
		Providers: cloud.NewRegistry(nil),
		WS:        ws,
	}
	return c, st, ws
}

func TestCreateStartStopScenario(t *testing.T) {
	c, st, ws := newTestController(t)
	ctx := context.Background()

	vm, err := c.Create(ctx, CreateSpec{Name: "n1", Provider: "oracle", Region: "us-phoenix-1", Size: "small"}, "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if vm.Status != model.VMRunning {
		t.Errorf("Status = %s, want running", vm.Status)
	}
	if vm.ProviderNativeID == "" || vm.IPAddress == "" {
		t.Errorf("missing native id or ip: %+v", vm)
	}

	stored, _ := st.GetVM(ctx, vm.ID)
	if stored.Status != model.VMRunning || stored.ProviderNativeID != vm.ProviderNativeID {
		t.Errorf("store row = %+v", stored)
	}

	// A node was deployed alongside the VM.
	nodes, _ := st.ListNodesByVM(ctx, vm.ID)
	if len(nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(nodes))
	}
	if nodes[0].Status != model.NodeRunning {
		t.Errorf("node status = %s, want running", nodes[0].Status)
	}

	if _, err := c.Stop(ctx, vm.ID, "u1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	stored, _ = st.GetVM(ctx, vm.ID)
	if stored.Status != model.VMStopped {
		t.Errorf("after stop = %s, want stopped", stored.Status)
	}

	// Stopping an already stopped VM fails and leaves the store untouched.
	if _, err := c.Stop(ctx, vm.ID, "u1"); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("second stop err = %v, want ErrInvalidTransition", err)
	}
	stored, _ = st.GetVM(ctx, vm.ID)
	if stored.Status != model.VMStopped {
		t.Errorf("store changed on rejected transition: %s", stored.Status)
	}

	if _, err := c.Start(ctx, vm.ID, "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []string{"vm.created", "node.status", "vm.status_changed", "vm.status_changed"}
	got := ws.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCreateAdapterFailureNoOrphanRow(t *testing.T) {
	st := newFakeStore()
	ws := &fakeWS{}
	perr := &model.ProviderError{Provider: "oracle", Code: model.ProviderUnavailable, Message: "api down"}
	c := &Controller{
		Store:     st,
		Providers: &fakeProviders{adapter: &failingAdapter{err: perr}},
		WS:        ws,
	}

	_, err := c.Create(context.Background(), CreateSpec{Name: "n1", Provider: "oracle", Region: "us-phoenix-1"}, "u1")
	var pe *model.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if len(st.vms) != 0 {
		t.Error("VM row persisted despite adapter failure")
	}
	if len(ws.types()) != 0 {
		t.Error("events emitted despite adapter failure")
	}
}

func TestCreateUnsupportedProvider(t *testing.T) {
	c, _, _ := newTestController(t)
	_, err := c.Create(context.Background(), CreateSpec{Name: "n1", Provider: "aws", Region: "us-east-1"}, "u1")
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestTransitionAdapterFailureLeavesStore(t *testing.T) {
	st := newFakeStore()
	ws := &fakeWS{}
	perr := &model.ProviderError{Provider: "oracle", Code: model.ProviderUnavailable, Message: "api down"}
	c := &Controller{
		Store:     st,
		Providers: &fakeProviders{adapter: &failingAdapter{err: perr}},
		WS:        ws,
	}

	now := time.Now()
	st.vms["vm1"] = &model.VM{ID: "vm1", OwnerID: "u1", Provider: "oracle", ProviderNativeID: "ocid1.instance.oc1..aaaaaaaa1", Status: model.VMRunning, CreatedAt: now, UpdatedAt: now}

	_, err := c.Stop(context.Background(), "vm1", "u1")
	var pe *model.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if st.vms["vm1"].Status != model.VMRunning {
		t.Errorf("store status = %s; must stay running when the adapter call fails", st.vms["vm1"].Status)
	}
}

func TestTransitionStoreFailureIsPartialApply(t *testing.T) {
	c, st, _ := newTestController(t)
	ctx := context.Background()

	vm, err := c.Create(ctx, CreateSpec{Name: "n1", Provider: "oracle", Region: "us-phoenix-1"}, "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	st.failVMUpdate = true
	_, err = c.Stop(ctx, vm.ID, "u1")
	var pae *model.PartialApplyError
	if !errors.As(err, &pae) {
		t.Fatalf("err = %v, want PartialApplyError", err)
	}
	if pae.Confirmed != model.VMStopped {
		t.Errorf("Confirmed = %s, want stopped", pae.Confirmed)
	}
}

func TestStoreOnlyRowTransitionsWithoutAdapter(t *testing.T) {
	st := newFakeStore()
	ws := &fakeWS{}
	// The failing adapter proves no vendor call is made for store-only rows.
	c := &Controller{
		Store:     st,
		Providers: &fakeProviders{adapter: &failingAdapter{err: errors.New("must not be called")}},
		WS:        ws,
	}

	now := time.Now()
	st.vms["vm1"] = &model.VM{ID: "vm1", OwnerID: "u1", Provider: "oracle", Status: model.VMRunning, CreatedAt: now, UpdatedAt: now}

	if _, err := c.Stop(context.Background(), "vm1", "u1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st.vms["vm1"].Status != model.VMStopped {
		t.Errorf("status = %s, want stopped", st.vms["vm1"].Status)
	}
}

func TestOwnershipHidesExistence(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	vm, err := c.Create(ctx, CreateSpec{Name: "n1", Provider: "oracle", Region: "us-phoenix-1"}, "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := c.Stop(ctx, vm.ID, "u2"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("foreign owner stop err = %v, want ErrNotFound", err)
	}
	if err := c.Delete(ctx, vm.ID, "u2"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("foreign owner delete err = %v, want ErrNotFound", err)
	}
}

func TestDeleteCascadesNodes(t *testing.T) {
	c, st, ws := newTestController(t)
	ctx := context.Background()

	vm, err := c.Create(ctx, CreateSpec{Name: "n1", Provider: "oracle", Region: "us-phoenix-1"}, "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	nodes, _ := st.ListNodesByVM(ctx, vm.ID)
	if len(nodes) != 1 {
		t.Fatalf("got %d nodes before delete", len(nodes))
	}

	if err := c.Delete(ctx, vm.ID, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(st.nodes) != 0 {
		t.Errorf("%d dangling nodes after delete", len(st.nodes))
	}
	if got, _ := st.GetVM(ctx, vm.ID); got != nil {
		t.Error("VM row still present after delete")
	}
	if len(ws.forgot) != 1 || ws.forgot[0] != nodes[0].ID {
		t.Errorf("broadcaster cache not forgotten for node: %v", ws.forgot)
	}
	if _, loaded := c.locks.Load(vm.ID); loaded {
		t.Error("lock entry retained for deleted VM")
	}
	if _, err := c.Stop(ctx, vm.ID, "u1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("stop after delete err = %v, want ErrNotFound", err)
	}
}

func TestDeleteProceedsWhenProviderDeleteFails(t *testing.T) {
	st := newFakeStore()
	ws := &fakeWS{}
	c := &Controller{
		Store:     st,
		Providers: &fakeProviders{adapter: &failingAdapter{err: errors.New("vendor 500")}},
		WS:        ws,
	}

	now := time.Now()
	st.vms["vm1"] = &model.VM{ID: "vm1", OwnerID: "u1", Provider: "oracle", ProviderNativeID: "ocid1.instance.oc1..aaaaaaaa1", Status: model.VMRunning, CreatedAt: now, UpdatedAt: now}

	if err := c.Delete(context.Background(), "vm1", "u1"); err != nil {
		t.Fatalf("Delete should proceed past provider failure: %v", err)
	}
	if len(st.vms) != 0 {
		t.Error("store row not deleted")
	}
}

func TestListRegions(t *testing.T) {
	c, _, _ := newTestController(t)
	regions, err := c.ListRegions("google")
	if err != nil {
		t.Fatalf("ListRegions: %v", err)
	}
	if len(regions) == 0 {
		t.Error("no regions returned")
	}
}
