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

// oracleAdapter drives a simulated Oracle Cloud control plane. It keeps the
// vendor's id, region and shape vocabulary so the rest of the system behaves
// exactly as it would against the real API.
type oracleAdapter struct {
	tenantID      string
	userID        string
	compartmentID string
	quota         int

	mu        sync.Mutex
	instances map[string]*model.VMDescriptor
	counter   int
}

var oracleRegions = []model.Region{
	{ID: "us-phoenix-1", DisplayName: "Phoenix, AZ", Available: true},
	{ID: "us-ashburn-1", DisplayName: "Ashburn, VA", Available: true},
	{ID: "eu-frankfurt-1", DisplayName: "Frankfurt, Germany", Available: true},
	{ID: "uk-london-1", DisplayName: "London, UK", Available: true},
	{ID: "ap-tokyo-1", DisplayName: "Tokyo, Japan", Available: true},
}

var oracleShapes = map[string]string{
	"small":  "VM.Standard.E2.1",
	"medium": "VM.Standard.E2.2",
	"large":  "VM.Standard.E2.4",
}

func newOracleAdapter(creds Credentials) *oracleAdapter {
	quota, _ := strconv.Atoi(credential(creds, "instance_quota", "ORACLE_INSTANCE_QUOTA"))
	return &oracleAdapter{
		tenantID:      credential(creds, "tenant_id", "ORACLE_TENANT_ID"),
		userID:        credential(creds, "user_id", "ORACLE_USER_ID"),
		compartmentID: credential(creds, "compartment_id", "ORACLE_COMPARTMENT_ID"),
		quota:         quota,
		instances:     make(map[string]*model.VMDescriptor),
	}
}

func (a *oracleAdapter) Name() string { return "oracle" }

func (a *oracleAdapter) Create(ctx context.Context, name, region, sizeClass string) (*model.VMDescriptor, error) {
	if !regionKnown(oracleRegions, region) {
		return nil, &model.ProviderError{Provider: "oracle", Code: model.ProviderInvalidRegion, Message: "unknown region " + region}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.quota > 0 && len(a.instances) >= a.quota {
		return nil, &model.ProviderError{Provider: "oracle", Code: model.ProviderQuotaExceeded, Message: fmt.Sprintf("instance quota %d reached", a.quota)}
	}

	a.counter++
	shape, ok := oracleShapes[sizeClass]
	if !ok {
		shape = oracleShapes["small"]
	}

	now := time.Now()
	desc := &model.VMDescriptor{
		NativeID:     fmt.Sprintf("ocid1.instance.oc1..aaaaaaaa%d", a.counter),
		Name:         name,
		Provider:     "oracle",
		Region:       region,
		InstanceType: shape,
		IPAddress:    fmt.Sprintf("192.168.1.%d", a.counter),
		Status:       model.VMRunning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	a.instances[desc.NativeID] = desc
	log.Printf("oracle: created instance %s (%s) in %s", desc.NativeID, name, region)
	return cloneDescriptor(desc), nil
}

func (a *oracleAdapter) Describe(ctx context.Context, nativeID string) (*model.VMDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	desc, ok := a.instances[nativeID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneDescriptor(desc), nil
}

func (a *oracleAdapter) Start(ctx context.Context, nativeID string) (*model.VMDescriptor, error) {
	return a.setStatus(nativeID, model.VMRunning)
}

func (a *oracleAdapter) Stop(ctx context.Context, nativeID string) (*model.VMDescriptor, error) {
	return a.setStatus(nativeID, model.VMStopped)
}

func (a *oracleAdapter) setStatus(nativeID string, status model.VMStatus) (*model.VMDescriptor, error) {
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

func (a *oracleAdapter) Delete(ctx context.Context, nativeID string) (*model.VMDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	desc, ok := a.instances[nativeID]
	if !ok {
		return nil, model.ErrNotFound
	}
	delete(a.instances, nativeID)
	log.Printf("oracle: deleted instance %s", nativeID)
	return cloneDescriptor(desc), nil
}

func (a *oracleAdapter) List(ctx context.Context) ([]model.VMDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.VMDescriptor, 0, len(a.instances))
	for _, desc := range a.instances {
		out = append(out, *desc)
	}
	return out, nil
}

func (a *oracleAdapter) ListRegions() []model.Region {
	return oracleRegions
}

func cloneDescriptor(d *model.VMDescriptor) *model.VMDescriptor {
	c := *d
	return &c
}
