package cloud

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/GEMDevEng/GradientLab/api/model"
)

// Registry owns the provider adapter instances. One adapter is constructed
// lazily per vendor name and reused for the process lifetime; it is built
// once at startup and injected into the controller and monitor rather than
// living as package state.
type Registry struct {
	mu       sync.Mutex
	adapters map[string]Adapter
	creds    map[string]Credentials
}

func NewRegistry(creds map[string]Credentials) *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		creds:    creds,
	}
}

// Names returns the supported vendor names, sorted.
func (r *Registry) Names() []string {
	names := []string{"oracle", "google", "azure"}
	sort.Strings(names)
	return names
}

// Resolve returns the memoized adapter for a vendor, constructing it on
// first use.
func (r *Registry) Resolve(name string) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[name]; ok {
		return a, nil
	}

	var a Adapter
	switch name {
	case "oracle":
		a = newOracleAdapter(r.creds[name])
	case "google":
		a = newGoogleAdapter(r.creds[name])
	case "azure":
		a = newAzureAdapter(r.creds[name])
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
	r.adapters[name] = a
	return a, nil
}

// ResolveByNativeID matches the structural shape of a vendor's native id
// to its adapter. Each vendor's id format is distinctive enough to
// disambiguate: Oracle OCIDs, Google resource paths, Azure ARM ids.
func (r *Registry) ResolveByNativeID(nativeID string) (Adapter, error) {
	switch {
	case strings.HasPrefix(nativeID, "ocid1."):
		return r.Resolve("oracle")
	case strings.HasPrefix(nativeID, "projects/") && strings.Contains(nativeID, "/instances/"):
		return r.Resolve("google")
	case strings.HasPrefix(nativeID, "/subscriptions/") && strings.Contains(nativeID, "resourceGroups"):
		return r.Resolve("azure")
	}
	return nil, fmt.Errorf("%w: %s", model.ErrUnknownProviderFormat, nativeID)
}

// Supported reports whether a vendor name is known without constructing
// its adapter.
func (r *Registry) Supported(name string) bool {
	switch name {
	case "oracle", "google", "azure":
		return true
	}
	return false
}
