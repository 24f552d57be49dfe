package lifecycle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GEMDevEng/GradientLab/api/cloud"
	"github.com/GEMDevEng/GradientLab/api/hub"
	"github.com/GEMDevEng/GradientLab/api/model"
)

// Store is the slice of the fleet store the controller needs.
type Store interface {
	InsertVM(ctx context.Context, vm *model.VM) error
	GetVM(ctx context.Context, id string) (*model.VM, error)
	ListVMsByOwner(ctx context.Context, ownerID string) ([]model.VM, error)
	UpdateVMFields(ctx context.Context, id string, fields map[string]interface{}) error
	DeleteVM(ctx context.Context, id string) error
	InsertNode(ctx context.Context, n *model.Node) error
	UpdateNodeFields(ctx context.Context, id string, fields map[string]interface{}) error
	ListNodesByVM(ctx context.Context, vmID string) ([]model.Node, error)
}

// Providers resolves vendor adapters; satisfied by *cloud.Registry.
type Providers interface {
	Resolve(name string) (cloud.Adapter, error)
	ResolveByNativeID(nativeID string) (cloud.Adapter, error)
	Supported(name string) bool
	Names() []string
}

// Broadcaster receives lifecycle events; satisfied by *hub.Hub.
type Broadcaster interface {
	Publish(nodeID string, evt hub.Event)
	PublishToUser(userID string, evt hub.Event)
	Forget(nodeID string)
}

// Controller orchestrates VM lifecycle across the provider adapters and
// the fleet store, keeping the two from diverging for longer than one
// operation. Operations on the same VM are serialized; different VMs
// proceed concurrently.
type Controller struct {
	Store     Store
	Providers Providers
	WS        Broadcaster

	locks sync.Map // vmID → *sync.Mutex
}

type CreateSpec struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Region   string `json:"region"`
	Size     string `json:"size"`
}

func (c *Controller) lockFor(vmID string) *sync.Mutex {
	m, _ := c.locks.LoadOrStore(vmID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// Create provisions a VM with the named provider and persists it, together
// with its Sentry Node record. Nothing is persisted if the adapter call
// fails. Adapter creation is synchronous-confirm: the descriptor comes
// back already running, so the row moves provisioning → running within
// this call.
func (c *Controller) Create(ctx context.Context, spec CreateSpec, ownerID string) (*model.VM, error) {
	if !c.Providers.Supported(spec.Provider) {
		return nil, fmt.Errorf("unsupported provider: %s", spec.Provider)
	}
	adapter, err := c.Providers.Resolve(spec.Provider)
	if err != nil {
		return nil, err
	}

	size := spec.Size
	if size == "" {
		size = "small"
	}
	desc, err := adapter.Create(ctx, spec.Name, spec.Region, size)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	vm := &model.VM{
		ID:           uuid.New().String(),
		Name:         spec.Name,
		Provider:     spec.Provider,
		Region:       spec.Region,
		InstanceType: desc.InstanceType,
		Status:       model.VMProvisioning,
		OwnerID:      ownerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.Store.InsertVM(ctx, vm); err != nil {
		// The provider resource exists but we could not record it; tear it
		// down again so no orphan keeps billing.
		if _, derr := adapter.Delete(ctx, desc.NativeID); derr != nil {
			log.Printf("lifecycle: orphan cleanup of %s failed: %v", desc.NativeID, derr)
		}
		return nil, err
	}

	fields := map[string]interface{}{
		"status":             model.VMRunning,
		"provider_native_id": desc.NativeID,
		"ip_address":         desc.IPAddress,
	}
	if err := c.Store.UpdateVMFields(ctx, vm.ID, fields); err != nil {
		return nil, &model.PartialApplyError{VMID: vm.ID, Confirmed: model.VMRunning, Err: err}
	}
	vm.Status = model.VMRunning
	vm.ProviderNativeID = desc.NativeID
	vm.IPAddress = desc.IPAddress

	node := c.deployNode(ctx, vm)

	c.WS.PublishToUser(ownerID, hub.Event{Type: "vm.created", Payload: vm})
	if node != nil {
		c.WS.Publish(node.ID, hub.Event{Type: "node.status", Payload: map[string]interface{}{
			"nodeId":    node.ID,
			"status":    node.Status,
			"updatedAt": node.UpdatedAt.Format(time.RFC3339),
		}})
	}
	return vm, nil
}

// deployNode creates the Sentry Node record once its owning VM is running.
// Failures here are logged, not fatal: the VM itself was created and the
// node row can be reconciled later.
func (c *Controller) deployNode(ctx context.Context, vm *model.VM) *model.Node {
	now := time.Now()
	node := &model.Node{
		ID:        uuid.New().String(),
		VMID:      vm.ID,
		Name:      vm.Name,
		Status:    model.NodeDeploying,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Store.InsertNode(ctx, node); err != nil {
		log.Printf("lifecycle: insert node for vm %s: %v", vm.ID, err)
		return nil
	}
	if err := c.Store.UpdateNodeFields(ctx, node.ID, map[string]interface{}{"status": model.NodeRunning}); err != nil {
		log.Printf("lifecycle: mark node %s running: %v", node.ID, err)
		return node
	}
	node.Status = model.NodeRunning
	return node
}

func (c *Controller) Start(ctx context.Context, vmID, ownerID string) (*model.VM, error) {
	return c.transition(ctx, vmID, ownerID, model.VMRunning)
}

func (c *Controller) Stop(ctx context.Context, vmID, ownerID string) (*model.VM, error) {
	return c.transition(ctx, vmID, ownerID, model.VMStopped)
}

func (c *Controller) transition(ctx context.Context, vmID, ownerID string, target model.VMStatus) (*model.VM, error) {
	mu := c.lockFor(vmID)
	mu.Lock()
	defer mu.Unlock()

	vm, err := c.Store.GetVM(ctx, vmID)
	if err != nil {
		return nil, err
	}
	if vm == nil || vm.OwnerID != ownerID {
		return nil, model.ErrNotFound
	}
	if !vm.Status.CanTransition(target) {
		return nil, fmt.Errorf("%w: %s → %s", model.ErrInvalidTransition, vm.Status, target)
	}

	fields := map[string]interface{}{"status": target}

	// Store-only rows (no provider-native id) transition without a vendor
	// call. Otherwise the adapter must confirm before the store changes.
	if vm.ProviderNativeID != "" {
		adapter, err := c.Providers.Resolve(vm.Provider)
		if err != nil {
			return nil, err
		}
		var desc *model.VMDescriptor
		if target == model.VMRunning {
			desc, err = adapter.Start(ctx, vm.ProviderNativeID)
		} else {
			desc, err = adapter.Stop(ctx, vm.ProviderNativeID)
		}
		if err != nil {
			return nil, err
		}
		if desc.IPAddress != "" && desc.IPAddress != vm.IPAddress {
			fields["ip_address"] = desc.IPAddress
			vm.IPAddress = desc.IPAddress
		}
	}

	if err := c.Store.UpdateVMFields(ctx, vmID, fields); err != nil {
		return nil, &model.PartialApplyError{VMID: vmID, Confirmed: target, Err: err}
	}
	vm.Status = target
	vm.UpdatedAt = time.Now()

	c.WS.PublishToUser(vm.OwnerID, hub.Event{Type: "vm.status_changed", Payload: vm})
	return vm, nil
}

// Delete tears down the provider-side resource and removes the store row,
// cascading the VM's nodes. A provider-side delete failure is logged but
// does not abort: the resource is being discarded either way, and the
// control plane's view stays consistent.
func (c *Controller) Delete(ctx context.Context, vmID, ownerID string) error {
	mu := c.lockFor(vmID)
	mu.Lock()
	defer mu.Unlock()

	vm, err := c.Store.GetVM(ctx, vmID)
	if err != nil {
		return err
	}
	if vm == nil || vm.OwnerID != ownerID {
		return model.ErrNotFound
	}

	if vm.ProviderNativeID != "" {
		adapter, err := c.Providers.Resolve(vm.Provider)
		if err != nil {
			log.Printf("lifecycle: resolve %s for delete: %v", vm.Provider, err)
		} else if _, err := adapter.Delete(ctx, vm.ProviderNativeID); err != nil {
			log.Printf("lifecycle: provider delete of %s failed (store delete proceeds): %v", vm.ProviderNativeID, err)
		}
	}

	nodes, err := c.Store.ListNodesByVM(ctx, vmID)
	if err != nil {
		log.Printf("lifecycle: list nodes of vm %s: %v", vmID, err)
	}

	if err := c.Store.DeleteVM(ctx, vmID); err != nil {
		return err
	}

	for _, n := range nodes {
		c.WS.Publish(n.ID, hub.Event{Type: "node.deleted", Payload: map[string]string{"nodeId": n.ID, "vmId": vmID}})
		c.WS.Forget(n.ID)
	}
	c.WS.PublishToUser(vm.OwnerID, hub.Event{Type: "vm.deleted", Payload: map[string]string{"vmId": vmID}})

	// The VM is gone; release its lock entry so the map stays bounded by
	// live VMs. A racing caller that loaded the old mutex still serializes
	// against this delete and then fails its GetVM lookup.
	c.locks.Delete(vmID)
	return nil
}

// ListProviders returns the supported vendor names.
func (c *Controller) ListProviders() []string {
	return c.Providers.Names()
}

// ListRegions returns a vendor's region catalog; pure static data.
func (c *Controller) ListRegions(provider string) ([]model.Region, error) {
	adapter, err := c.Providers.Resolve(provider)
	if err != nil {
		return nil, err
	}
	return adapter.ListRegions(), nil
}
