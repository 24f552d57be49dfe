package cloud

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/GEMDevEng/GradientLab/api/model"
)

// azureAdapter drives a simulated Azure control plane.
type azureAdapter struct {
	subscriptionID string
	resourceGroup  string
	quota          int

	mu        sync.Mutex
	instances map[string]*model.VMDescriptor
	counter   int
}

var azureRegions = []model.Region{
	{ID: "eastus", DisplayName: "East US", Available: true},
	{ID: "westus", DisplayName: "West US", Available: true},
	{ID: "northeurope", DisplayName: "North Europe", Available: true},
	{ID: "westeurope", DisplayName: "West Europe", Available: true},
	{ID: "eastasia", DisplayName: "East Asia", Available: true},
}

var azureVMSizes = map[string]string{
	"small":  "Standard_B1s",
	"medium": "Standard_B2s",
	"large":  "Standard_B4ms",
}

func newAzureAdapter(creds Credentials) *azureAdapter {
	quota, _ := strconv.Atoi(credential(creds, "instance_quota", "AZURE_INSTANCE_QUOTA"))
	sub := credential(creds, "subscription_id", "AZURE_SUBSCRIPTION_ID")
	if sub == "" {
		sub = "00000000-0000-0000-0000-000000000000"
	}
	return &azureAdapter{
		subscriptionID: sub,
		resourceGroup:  "gradientlab-rg",
		quota:          quota,
		instances:      make(map[string]*model.VMDescriptor),
	}
}

func (a *azureAdapter) Name() string { return "azure" }

func (a *azureAdapter) Create(ctx context.Context, name, region, sizeClass string) (*model.VMDescriptor, error) {
	if !regionKnown(azureRegions, region) {
		return nil, &model.ProviderError{Provider: "azure", Code: model.ProviderInvalidRegion, Message: "unknown region " + region}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.quota > 0 && len(a.instances) >= a.quota {
		return nil, &model.ProviderError{Provider: "azure", Code: model.ProviderQuotaExceeded, Message: fmt.Sprintf("instance quota %d reached", a.quota)}
	}

	a.counter++
	size, ok := azureVMSizes[sizeClass]
	if !ok {
		size = azureVMSizes["small"]
	}

	now := time.Now()
	desc := &model.VMDescriptor{
		NativeID: fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines/%s-%d",
			a.subscriptionID, a.resourceGroup, name, a.counter),
		Name:         name,
		Provider:     "azure",
		Region:       region,
		InstanceType: size,
		IPAddress:    fmt.Sprintf("20.42.0.%d", a.counter),
		Status:       model.VMRunning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	a.instances[desc.NativeID] = desc
	log.Printf("azure: created vm %s in %s", desc.NativeID, region)
	return cloneDescriptor(desc), nil
}

func (a *azureAdapter) Describe(ctx context.Context, nativeID string) (*model.VMDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	desc, ok := a.instances[nativeID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneDescriptor(desc), nil
}

func (a *azureAdapter) Start(ctx context.Context, nativeID string) (*model.VMDescriptor, error) {
	return a.setStatus(nativeID, model.VMRunning)
}

func (a *azureAdapter) Stop(ctx context.Context, nativeID string) (*model.VMDescriptor, error) {
	return a.setStatus(nativeID, model.VMStopped)
}

func (a *azureAdapter) setStatus(nativeID string, status model.VMStatus) (*model.VMDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	desc, ok := a.instances[nativeID]
	if !ok {
		return nil, model.ErrNotFound
	}
	desc.Status = status
	desc.UpdatedAt = time.Now()
	return cloneDescriptor(desc), nil
}

func (a *azureAdapter) Delete(ctx context.Context, nativeID string) (*model.VMDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	desc, ok := a.instances[nativeID]
	if !ok {
		return nil, model.ErrNotFound
	}
	delete(a.instances, nativeID)
	log.Printf("azure: deleted vm %s", nativeID)
	return cloneDescriptor(desc), nil
}

func (a *azureAdapter) List(ctx context.Context) ([]model.VMDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.VMDescriptor, 0, len(a.instances))
	for _, desc := range a.instances {
		out = append(out, *desc)
	}
	return out, nil
}

func (a *azureAdapter) ListRegions() []model.Region {
	return azureRegions
}
