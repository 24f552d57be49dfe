package model

import "time"

type VMStatus string

const (
	VMProvisioning VMStatus = "provisioning"
	VMRunning      VMStatus = "running"
	VMStopped      VMStatus = "stopped"
	VMDeleted      VMStatus = "deleted"
)

// CanTransition reports whether the lifecycle controller may move a VM
// from its current status to the target. Deleted is terminal.
func (s VMStatus) CanTransition(to VMStatus) bool {
	if s == to {
		return false
	}
	switch s {
	case VMProvisioning:
		return to == VMRunning || to == VMDeleted
	case VMRunning:
		return to == VMStopped || to == VMDeleted
	case VMStopped:
		return to == VMRunning || to == VMDeleted
	case VMDeleted:
		return false
	}
	return false
}

type VM struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Provider         string    `json:"provider"` // oracle, google, azure
	Region           string    `json:"region"`
	InstanceType     string    `json:"instanceType"`
	ProviderNativeID string    `json:"providerNativeId"` // vendor's own resource id, empty for store-only rows
	IPAddress        string    `json:"ipAddress"`
	Status           VMStatus  `json:"status"`
	OwnerID          string    `json:"ownerId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// VMDescriptor is the normalized shape every provider adapter produces.
// Adapters never see store rows; the lifecycle controller translates.
type VMDescriptor struct {
	NativeID     string    `json:"nativeId"`
	Name         string    `json:"name"`
	Provider     string    `json:"provider"`
	Region       string    `json:"region"`
	InstanceType string    `json:"instanceType"`
	IPAddress    string    `json:"ipAddress"`
	Status       VMStatus  `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Region struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Available   bool   `json:"available"`
}
