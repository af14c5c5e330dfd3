package native

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

func TestSupportCoversMappedFormats(t *testing.T) {
	s := Support()
	if len(s) != len(textureFormats) {
		t.Errorf("Support() has %d formats, want %d", len(s), len(textureFormats))
	}
	for id := range s {
		if _, ok := TextureFormat(id); !ok {
			t.Errorf("Support() lists %v without a HAL format", id)
		}
	}
	for _, id := range []format.ID{format.RGB8Unorm, format.L8Unorm, format.BC1RGBAUnorm, format.YUV444Unorm} {
		if _, ok := TextureFormat(id); ok {
			t.Errorf("TextureFormat(%v) mapped, want emulated", id)
		}
	}
}

func TestSupportFeatures(t *testing.T) {
	s := Support()
	tests := []struct {
		id   format.ID
		want format.Feature
		not  format.Feature
	}{
		{format.RGBA8Unorm, format.FeatureColorAttachment | format.FeatureBlit | format.FeatureStorage, 0},
		{format.RGBA8UnormSRGB, format.FeatureColorAttachment | format.FeatureLinearFilter, format.FeatureStorage},
		{format.R32Float, format.FeatureStorage | format.FeatureBlitSrc, format.FeatureLinearFilter},
		{format.RGBA8Snorm, format.FeatureLinearFilter, format.FeatureColorAttachment},
		{format.RGBA8Uint, format.FeatureColorAttachment, format.FeatureLinearFilter},
		{format.D24UnormS8Uint, format.FeatureDepthStencilAttachment, format.FeatureColorAttachment},
	}
	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			if !s.HasFormatFeatures(tt.id, tt.want|format.FeatureSampled|format.FeatureTransferSrc|format.FeatureTransferDst) {
				t.Errorf("features of %v = %v, want %v", tt.id, s[tt.id], tt.want)
			}
			if tt.not != 0 && s[tt.id]&tt.not != 0 {
				t.Errorf("features of %v = %v, want without %v", tt.id, s[tt.id], tt.not)
			}
		})
	}
}

func TestFeatures(t *testing.T) {
	f := Features()
	if f.GenerateMipmapWithCompute {
		t.Error("Features() advertises compute mipmaps")
	}
	if !f.SupportsDrawUtils || f.MaxSamples != 1 {
		t.Errorf("Features() = draw utils %v, samples %d, want true, 1", f.SupportsDrawUtils, f.MaxSamples)
	}
}

func TestLayoutUsage(t *testing.T) {
	tests := []struct {
		layout gpucore.NativeLayout
		want   gputypes.TextureUsage
	}{
		{gpucore.LayoutUndefined, 0},
		{gpucore.LayoutGeneral, gputypes.TextureUsageStorageBinding},
		{gpucore.LayoutColorAttachmentOptimal, gputypes.TextureUsageRenderAttachment},
		{gpucore.LayoutDepthStencilAttachmentOptimal, gputypes.TextureUsageRenderAttachment},
		{gpucore.LayoutShaderReadOnlyOptimal, gputypes.TextureUsageTextureBinding},
		{gpucore.LayoutTransferSrcOptimal, gputypes.TextureUsageCopySrc},
		{gpucore.LayoutTransferDstOptimal, gputypes.TextureUsageCopyDst},
	}
	for _, tt := range tests {
		if got := layoutUsage(tt.layout); got != tt.want {
			t.Errorf("layoutUsage(%v) = %v, want %v", tt.layout, got, tt.want)
		}
	}
}

func TestTextureUsage(t *testing.T) {
	got := textureUsage(gpucore.UsageSampled | gpucore.UsageColorAttachment)
	want := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
		gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment
	if got != want {
		t.Errorf("textureUsage() = %v, want %v", got, want)
	}
	if got := textureUsage(gpucore.UsageStorage); got&gputypes.TextureUsageStorageBinding == 0 {
		t.Errorf("textureUsage(storage) = %v, want StorageBinding", got)
	}
}

func TestViewDimension(t *testing.T) {
	tests := []struct {
		typ  gpucore.ViewType
		want gputypes.TextureViewDimension
	}{
		{gpucore.View2D, gputypes.TextureViewDimension2D},
		{gpucore.View2DArray, gputypes.TextureViewDimension2DArray},
		{gpucore.View3D, gputypes.TextureViewDimension3D},
		{gpucore.ViewCube, gputypes.TextureViewDimensionCube},
		{gpucore.ViewCubeArray, gputypes.TextureViewDimensionCubeArray},
	}
	for _, tt := range tests {
		if got := viewDimension(tt.typ); got != tt.want {
			t.Errorf("viewDimension(%v) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}
