package cloud

import (
	"context"
	"errors"
	"testing"

	"github.com/GEMDevEng/GradientLab/api/model"
)

func TestResolveMemoizes(t *testing.T) {
	r := NewRegistry(nil)
	a, err := r.Resolve("oracle")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, err := r.Resolve("oracle")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a != b {
		t.Error("Resolve returned distinct adapter instances for the same vendor")
	}
}

func TestResolveUnsupported(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Resolve("digitalocean"); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestResolveByNativeID(t *testing.T) {
	r := NewRegistry(nil)
	// Register all three up front so matching is not by registration order.
	for _, name := range []string{"oracle", "google", "azure"} {
		if _, err := r.Resolve(name); err != nil {
			t.Fatalf("Resolve(%s): %v", name, err)
		}
	}

	cases := []struct {
		id     string
		vendor string
	}{
		{"ocid1.instance.oc1..aaaaaaaa7", "oracle"},
		{"projects/gradientlab/zones/us-central1-a/instances/n1-3", "google"},
		{"/subscriptions/00000000-0000-0000-0000-000000000000/resourceGroups/gradientlab-rg/providers/Microsoft.Compute/virtualMachines/n1-1", "azure"},
	}
	for _, c := range cases {
		a, err := r.ResolveByNativeID(c.id)
		if err != nil {
			t.Fatalf("ResolveByNativeID(%s): %v", c.id, err)
		}
		if a.Name() != c.vendor {
			t.Errorf("ResolveByNativeID(%s) = %s, want %s", c.id, a.Name(), c.vendor)
		}
	}

	if _, err := r.ResolveByNativeID("i-0123456789abcdef"); !errors.Is(err, model.ErrUnknownProviderFormat) {
		t.Errorf("unmatched id: err = %v, want ErrUnknownProviderFormat", err)
	}
}

func TestAdapterLifecycle(t *testing.T) {
	r := NewRegistry(nil)
	for _, vendor := range []string{"oracle", "google", "azure"} {
		t.Run(vendor, func(t *testing.T) {
			a, err := r.Resolve(vendor)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}

			regions := a.ListRegions()
			if len(regions) == 0 {
				t.Fatal("no regions")
			}

			ctx := context.Background()
			desc, err := a.Create(ctx, "sentry-1", regions[0].ID, "small")
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if desc.NativeID == "" || desc.IPAddress == "" {
				t.Errorf("descriptor missing native id or ip: %+v", desc)
			}
			if desc.Status != model.VMRunning {
				t.Errorf("Status = %s, want running", desc.Status)
			}

			stopped, err := a.Stop(ctx, desc.NativeID)
			if err != nil {
				t.Fatalf("Stop: %v", err)
			}
			if stopped.Status != model.VMStopped {
				t.Errorf("Status after stop = %s", stopped.Status)
			}

			started, err := a.Start(ctx, desc.NativeID)
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			if started.Status != model.VMRunning {
				t.Errorf("Status after start = %s", started.Status)
			}

			if _, err := a.Delete(ctx, desc.NativeID); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := a.Describe(ctx, desc.NativeID); !errors.Is(err, model.ErrNotFound) {
				t.Errorf("Describe after delete: err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestCreateInvalidRegion(t *testing.T) {
	r := NewRegistry(nil)
	a, _ := r.Resolve("oracle")
	_, err := a.Create(context.Background(), "n1", "mars-central-1", "small")
	var perr *model.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if perr.Code != model.ProviderInvalidRegion {
		t.Errorf("Code = %s, want invalid_region", perr.Code)
	}
}

func TestCreateQuotaExceeded(t *testing.T) {
	r := NewRegistry(map[string]Credentials{
		"azure": {"instance_quota": "1"},
	})
	a, _ := r.Resolve("azure")
	ctx := context.Background()
	if _, err := a.Create(ctx, "n1", "eastus", "small"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := a.Create(ctx, "n2", "eastus", "small")
	var perr *model.ProviderError
	if !errors.As(err, &perr) || perr.Code != model.ProviderQuotaExceeded {
		t.Errorf("err = %v, want quota_exceeded", err)
	}
}
