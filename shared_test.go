package glvk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/glvk/format"
)

func exportLevel0(t *testing.T, tex *Texture) *SharedImage {
	t.Helper()
	img, err := tex.Export(LevelIndex(0))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	return img
}

// ===== Export / SetEGLImageTarget =====

func TestSiblingSharesImage(t *testing.T) {
	ctx, _ := newTestContext(t)
	src, d := newSourceTexture(t, ctx, 4, 4, 21)
	img := exportLevel0(t, src)
	defer img.Release()

	if img.Size() != size2D(4, 4) || img.Format() != format.RGBA8Unorm {
		t.Errorf("shared image = %+v %v, want 4x4 RGBA8Unorm", img.Size(), img.Format())
	}
	sib := ctx.NewTexture(Texture2D, "sibling")
	defer sib.Destroy()
	if err := sib.SetEGLImageTarget(img); err != nil {
		t.Fatalf("SetEGLImageTarget() error = %v", err)
	}
	if sib.Handle() != src.Handle() {
		t.Errorf("sibling image = %d, want the exported %d", sib.Handle(), src.Handle())
	}
	if sib.OwnsImage() {
		t.Error("sibling owns the shared image")
	}
	if got := mustGetImage(t, sib, 0, format.RGBA8Unorm); !bytes.Equal(got, d) {
		t.Errorf("sibling contents = %v, want %v", got, d)
	}
}

func TestSharedImageOutlivesExporter(t *testing.T) {
	ctx, dev := newTestContext(t)
	src, d := newSourceTexture(t, ctx, 2, 2, 4)
	img := exportLevel0(t, src)
	sib := ctx.NewTexture(Texture2D, "sibling")
	if err := sib.SetEGLImageTarget(img); err != nil {
		t.Fatalf("SetEGLImageTarget() error = %v", err)
	}

	src.Destroy()
	img.Release()
	if dev.LiveImages() != 1 {
		t.Fatalf("LiveImages() = %d, want the image kept for the sibling", dev.LiveImages())
	}
	if got := mustGetImage(t, sib, 0, format.RGBA8Unorm); !bytes.Equal(got, d) {
		t.Errorf("sibling contents = %v, want %v", got, d)
	}
	sib.Destroy()
	if dev.LiveImages() != 0 {
		t.Errorf("LiveImages() = %d after the last reference, want 0", dev.LiveImages())
	}
}

func TestRedefiningExporterOrphansImage(t *testing.T) {
	ctx, dev := newTestContext(t)
	src, d := newSourceTexture(t, ctx, 2, 2, 8)
	img := exportLevel0(t, src)
	defer img.Release()
	sib := ctx.NewTexture(Texture2D, "sibling")
	defer sib.Destroy()
	if err := sib.SetEGLImageTarget(img); err != nil {
		t.Fatalf("SetEGLImageTarget() error = %v", err)
	}
	shared := sib.Handle()

	next := pattern(16, 90)
	mustSetImage(t, src, 0, size2D(2, 2), format.RGBA8Unorm, next)
	if got := mustGetImage(t, src, 0, format.RGBA8Unorm); !bytes.Equal(got, next) {
		t.Errorf("exporter contents = %v, want %v", got, next)
	}
	if src.Handle() == shared {
		t.Error("exporter kept writing into the shared image")
	}
	if dev.LiveImages() != 2 {
		t.Errorf("LiveImages() = %d, want the shared and the new image", dev.LiveImages())
	}
	if got := mustGetImage(t, sib, 0, format.RGBA8Unorm); !bytes.Equal(got, d) {
		t.Errorf("sibling contents = %v, want the exported %v", got, d)
	}
}

func TestSiblingRedefinitionDetaches(t *testing.T) {
	ctx, _ := newTestContext(t)
	src, d := newSourceTexture(t, ctx, 2, 2, 3)
	img := exportLevel0(t, src)
	defer img.Release()
	sib := ctx.NewTexture(Texture2D, "sibling")
	defer sib.Destroy()
	if err := sib.SetEGLImageTarget(img); err != nil {
		t.Fatalf("SetEGLImageTarget() error = %v", err)
	}

	mustSetImage(t, sib, 0, size2D(4, 4), format.RGBA8Unorm, nil)
	if sib.Handle() == src.Handle() {
		t.Error("sibling still views the shared image after its own SetImage")
	}
	if got := mustGetImage(t, src, 0, format.RGBA8Unorm); !bytes.Equal(got, d) {
		t.Errorf("exporter contents = %v, want %v", got, d)
	}
}

func TestSetEGLImageTargetRejects(t *testing.T) {
	ctx, _ := newTestContext(t)
	src, _ := newSourceTexture(t, ctx, 2, 2, 0)
	img := exportLevel0(t, src)

	cube := ctx.NewTexture(TextureCube, "cube")
	defer cube.Destroy()
	if err := cube.SetEGLImageTarget(img); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("SetEGLImageTarget() on a cube error = %v, want ErrNotImplemented", err)
	}

	img.Release()
	if img.Valid() {
		t.Error("released shared image is still valid")
	}
	sib := ctx.NewTexture(Texture2D, "late")
	defer sib.Destroy()
	if err := sib.SetEGLImageTarget(img); !errors.Is(err, ErrDestroyed) {
		t.Errorf("SetEGLImageTarget() after Release error = %v, want ErrDestroyed", err)
	}
}

func TestExportUndefinedLevel(t *testing.T) {
	ctx, _ := newTestContext(t)
	tex := ctx.NewTexture(Texture2D, "empty")
	defer tex.Destroy()
	if _, err := tex.Export(LevelIndex(0)); !errors.Is(err, ErrNoImage) {
		t.Errorf("Export() error = %v, want ErrNoImage", err)
	}
}

// ===== Surfaces =====

func TestBindTexImage(t *testing.T) {
	ctx, dev := newTestContext(t)
	s, err := ctx.NewSurface(size2D(2, 2), format.RGBA8Unorm)
	if err != nil {
		t.Fatalf("NewSurface() error = %v", err)
	}
	if err := s.Clear(format.Color{1, 0, 0, 1}); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	tex := ctx.NewTexture(Texture2D, "bound")
	defer tex.Destroy()

	if err := tex.BindTexImage(s); err != nil {
		t.Fatalf("BindTexImage() error = %v", err)
	}
	if tex.Handle() != s.Handle() {
		t.Errorf("texture image = %d, want the surface %d", tex.Handle(), s.Handle())
	}
	want := bytes.Repeat([]byte{255, 0, 0, 255}, 4)
	if got := mustGetImage(t, tex, 0, format.RGBA8Unorm); !bytes.Equal(got, want) {
		t.Errorf("bound contents = %v, want %v", got, want)
	}

	s.Destroy()
	if tex.Desc(0, 0).Defined() {
		t.Error("level 0 still defined after the surface went away")
	}
	if _, err := tex.GetImage(LevelIndex(0), format.RGBA8Unorm); err == nil {
		t.Error("GetImage() after the surface went away succeeded")
	}
	if dev.LiveImages() != 0 {
		t.Errorf("LiveImages() = %d, want 0", dev.LiveImages())
	}
}

func TestBindTexImageMovesBetweenTextures(t *testing.T) {
	ctx, _ := newTestContext(t)
	s, err := ctx.NewSurface(size2D(2, 2), format.RGBA8Unorm)
	if err != nil {
		t.Fatalf("NewSurface() error = %v", err)
	}
	defer s.Destroy()
	a := ctx.NewTexture(Texture2D, "a")
	defer a.Destroy()
	b := ctx.NewTexture(Texture2D, "b")
	defer b.Destroy()

	if err := a.BindTexImage(s); err != nil {
		t.Fatalf("BindTexImage(a) error = %v", err)
	}
	if err := b.BindTexImage(s); err != nil {
		t.Fatalf("BindTexImage(b) error = %v", err)
	}
	if a.Desc(0, 0).Defined() {
		t.Error("first texture still bound to the surface")
	}
	if b.Handle() != s.Handle() {
		t.Error("second texture not bound to the surface")
	}
	if err := b.ReleaseTexImage(); err != nil {
		t.Fatalf("ReleaseTexImage() error = %v", err)
	}
	if b.Valid() {
		t.Error("texture still has an image after ReleaseTexImage")
	}
}

func TestBindTexImageRejectsCube(t *testing.T) {
	ctx, _ := newTestContext(t)
	s, err := ctx.NewSurface(size2D(2, 2), format.RGBA8Unorm)
	if err != nil {
		t.Fatalf("NewSurface() error = %v", err)
	}
	defer s.Destroy()
	cube := ctx.NewTexture(TextureCube, "cube")
	defer cube.Destroy()
	if err := cube.BindTexImage(s); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("BindTexImage() on a cube error = %v, want ErrNotImplemented", err)
	}
}
