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

// googleAdapter drives a simulated Google Cloud control plane.
type googleAdapter struct {
	projectID string
	quota     int

	mu        sync.Mutex
	instances map[string]*model.VMDescriptor
	counter   int
}

var googleRegions = []model.Region{
	{ID: "us-central1", DisplayName: "Iowa", Available: true},
	{ID: "us-east1", DisplayName: "South Carolina", Available: true},
	{ID: "us-west1", DisplayName: "Oregon", Available: true},
	{ID: "europe-west1", DisplayName: "Belgium", Available: true},
	{ID: "asia-east1", DisplayName: "Taiwan", Available: true},
}

var googleMachineTypes = map[string]string{
	"small":  "e2-micro",
	"medium": "e2-small",
	"large":  "e2-medium",
}

func newGoogleAdapter(creds Credentials) *googleAdapter {
	quota, _ := strconv.Atoi(credential(creds, "instance_quota", "GOOGLE_INSTANCE_QUOTA"))
	projectID := credential(creds, "project_id", "GOOGLE_PROJECT_ID")
	if projectID == "" {
		projectID = "gradientlab"
	}
	return &googleAdapter{
		projectID: projectID,
		quota:     quota,
		instances: make(map[string]*model.VMDescriptor),
	}
}

func (a *googleAdapter) Name() string { return "google" }

func (a *googleAdapter) Create(ctx context.Context, name, region, sizeClass string) (*model.VMDescriptor, error) {
	if !regionKnown(googleRegions, region) {
		return nil, &model.ProviderError{Provider: "google", Code: model.ProviderInvalidRegion, Message: "unknown region " + region}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.quota > 0 && len(a.instances) >= a.quota {
		return nil, &model.ProviderError{Provider: "google", Code: model.ProviderQuotaExceeded, Message: fmt.Sprintf("instance quota %d reached", a.quota)}
	}

	a.counter++
	machineType, ok := googleMachineTypes[sizeClass]
	if !ok {
		machineType = googleMachineTypes["small"]
	}

	now := time.Now()
	desc := &model.VMDescriptor{
		NativeID:     fmt.Sprintf("projects/%s/zones/%s-a/instances/%s-%d", a.projectID, region, name, a.counter),
		Name:         name,
		Provider:     "google",
		Region:       region,
		InstanceType: machineType,
		IPAddress:    fmt.Sprintf("35.192.0.%d", a.counter),
		Status:       model.VMRunning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	a.instances[desc.NativeID] = desc
	log.Printf("google: created instance %s in %s", desc.NativeID, region)
	return cloneDescriptor(desc), nil
}

func (a *googleAdapter) Describe(ctx context.Context, nativeID string) (*model.VMDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	desc, ok := a.instances[nativeID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneDescriptor(desc), nil
}

func (a *googleAdapter) Start(ctx context.Context, nativeID string) (*model.VMDescriptor, error) {
	return a.setStatus(nativeID, model.VMRunning)
}

func (a *googleAdapter) Stop(ctx context.Context, nativeID string) (*model.VMDescriptor, error) {
	return a.setStatus(nativeID, model.VMStopped)
}

func (a *googleAdapter) setStatus(nativeID string, status model.VMStatus) (*model.VMDescriptor, error) {
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

func (a *googleAdapter) Delete(ctx context.Context, nativeID string) (*model.VMDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	desc, ok := a.instances[nativeID]
	if !ok {
		return nil, model.ErrNotFound
	}
	delete(a.instances, nativeID)
	log.Printf("google: deleted instance %s", nativeID)
	return cloneDescriptor(desc), nil
}

func (a *googleAdapter) List(ctx context.Context) ([]model.VMDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.VMDescriptor, 0, len(a.instances))
	for _, desc := range a.instances {
		out = append(out, *desc)
	}
	return out, nil
}

func (a *googleAdapter) ListRegions() []model.Region {
	return googleRegions
}
