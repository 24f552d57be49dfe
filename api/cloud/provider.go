package cloud

import (
	"context"
	"os"

	"github.com/GEMDevEng/GradientLab/api/model"
)

// Adapter translates generic VM operations into vendor-specific calls.
// Implementations must be safe for concurrent use; one instance is shared
// across all lifecycle calls for the process lifetime.
type Adapter interface {
	Name() string
	Create(ctx context.Context, name, region, sizeClass string) (*model.VMDescriptor, error)
	Describe(ctx context.Context, nativeID string) (*model.VMDescriptor, error)
	Start(ctx context.Context, nativeID string) (*model.VMDescriptor, error)
	Stop(ctx context.Context, nativeID string) (*model.VMDescriptor, error)
	Delete(ctx context.Context, nativeID string) (*model.VMDescriptor, error)
	List(ctx context.Context) ([]model.VMDescriptor, error)
	ListRegions() []model.Region
}

// Credentials holds vendor-specific settings, typically loaded from the
// providers YAML file. Missing keys fall back to environment variables.
type Credentials map[string]string

func credential(creds Credentials, key, envVar string) string {
	if v, ok := creds[key]; ok && v != "" {
		return v
	}
	return os.Getenv(envVar)
}

func regionKnown(regions []model.Region, id string) bool {
	for _, r := range regions {
		if r.ID == id && r.Available {
			return true
		}
	}
	return false
}
