package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

func TestSoftwareBackendName(t *testing.T) {
	b := NewSoftwareBackend()
	if b.Name() != "software" {
		t.Errorf("Name() = %q, want %q", b.Name(), "software")
	}
}

func TestSoftwareBackendInit(t *testing.T) {
	b := NewSoftwareBackend()
	if b.Device() != nil {
		t.Error("Device() before Init is not nil")
	}
	if err := b.Err(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Err() before Init = %v, want ErrNotInitialized", err)
	}
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if b.Device() == nil {
		t.Fatal("Device() after Init is nil")
	}
	b.Close()
	if b.Device() != nil {
		t.Error("Device() after Close is not nil")
	}
}

func TestSoftwareBackendFeatures(t *testing.T) {
	f := gpucore.DefaultFeatures()
	f.GenerateMipmapWithCompute = false
	b := NewSoftwareBackendWithFeatures(f)
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer b.Close()
	if b.Device().Features().GenerateMipmapWithCompute {
		t.Error("Features() ignores the requested feature set")
	}
}

func TestSoftwareBackendDevice(t *testing.T) {
	b := NewSoftwareBackend()
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer b.Close()

	dev := b.Device()
	img, err := dev.CreateImage(&gpucore.ImageDesc{
		Type:    gpucore.ImageType2D,
		Format:  format.RGBA8Unorm,
		Extent:  gpucore.Extent3D{Width: 4, Height: 4, Depth: 1},
		Levels:  1,
		Layers:  1,
		Samples: 1,
		Usage:   gpucore.UsageSampled | gpucore.UsageTransferDst,
	})
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	dev.DestroyImage(img)
	if err := b.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

// ===== Registry =====

type fakeBackend struct {
	name    string
	initErr error
}

func (f *fakeBackend) Name() string           { return f.name }
func (f *fakeBackend) Init() error            { return f.initErr }
func (f *fakeBackend) Close()                 {}
func (f *fakeBackend) Device() gpucore.Device { return nil }

func TestRegistry(t *testing.T) {
	Register("fake", func() Backend { return &fakeBackend{name: "fake"} })
	defer Unregister("fake")

	if !IsRegistered("fake") {
		t.Error("IsRegistered(fake) = false")
	}
	if !slices.Contains(Available(), "fake") || !slices.IsSorted(Available()) {
		t.Errorf("Available() = %v, want sorted with fake", Available())
	}
	if b := Get("fake"); b == nil || b.Name() != "fake" {
		t.Errorf("Get(fake) = %v", b)
	}
	if b := Get("missing"); b != nil {
		t.Errorf("Get(missing) = %v, want nil", b)
	}
}

func TestDefaultPrefersNative(t *testing.T) {
	Register(BackendNative, func() Backend { return &fakeBackend{name: BackendNative} })
	defer Unregister(BackendNative)

	if b := Default(); b == nil || b.Name() != BackendNative {
		t.Errorf("Default() = %v, want native", b)
	}
}

func TestInitDefaultFallsBack(t *testing.T) {
	noGPU := errors.New("no gpu")
	Register(BackendNative, func() Backend { return &fakeBackend{name: BackendNative, initErr: noGPU} })
	defer Unregister(BackendNative)

	b, err := InitDefault()
	if err != nil {
		t.Fatalf("InitDefault() error = %v", err)
	}
	defer b.Close()
	if b.Name() != BackendSoftware {
		t.Errorf("InitDefault() = %q, want software", b.Name())
	}
}

func TestInitDefaultNoBackends(t *testing.T) {
	Unregister(BackendSoftware)
	defer Register(BackendSoftware, func() Backend { return NewSoftwareBackend() })

	if _, err := InitDefault(); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("InitDefault() error = %v, want ErrBackendNotAvailable", err)
	}
	if b := Default(); b != nil {
		t.Errorf("Default() = %v, want nil", b)
	}
}
