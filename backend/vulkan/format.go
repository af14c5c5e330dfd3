package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/glvk/format"
)

// Luminance, alpha and YUV formats have no entry; they are stored
// through their emulated actual format.
var formats = map[format.ID]vk.Format{
	format.R8Unorm:        vk.FormatR8Unorm,
	format.R8Snorm:        vk.FormatR8Snorm,
	format.RG8Unorm:       vk.FormatR8g8Unorm,
	format.RGB8Unorm:      vk.FormatR8g8b8Unorm,
	format.RGBA8Unorm:     vk.FormatR8g8b8a8Unorm,
	format.RGBA8UnormSRGB: vk.FormatR8g8b8a8Srgb,
	format.RGBA8Snorm:     vk.FormatR8g8b8a8Snorm,
	format.RGBA8Uint:      vk.FormatR8g8b8a8Uint,
	format.RGBA8Sint:      vk.FormatR8g8b8a8Sint,
	format.BGRA8Unorm:     vk.FormatB8g8r8a8Unorm,
	format.BGRA8UnormSRGB: vk.FormatB8g8r8a8Srgb,
	format.RGB16Float:     vk.FormatR16g16b16Sfloat,
	format.RGBA16Float:    vk.FormatR16g16b16a16Sfloat,
	format.R32Float:       vk.FormatR32Sfloat,
	format.R32Uint:        vk.FormatR32Uint,
	format.RGB32Float:     vk.FormatR32g32b32Sfloat,
	format.RGBA32Float:    vk.FormatR32g32b32a32Sfloat,
	format.RGB32Uint:      vk.FormatR32g32b32Uint,
	format.RGBA32Uint:     vk.FormatR32g32b32a32Uint,
	format.RGB32Sint:      vk.FormatR32g32b32Sint,
	format.RGBA32Sint:     vk.FormatR32g32b32a32Sint,
	format.D16Unorm:       vk.FormatD16Unorm,
	format.D24UnormX8:     vk.FormatX8D24UnormPack32,
	format.D24UnormS8Uint: vk.FormatD24UnormS8Uint,
	format.D32Float:       vk.FormatD32Sfloat,
	format.D32FloatS8Uint: vk.FormatD32SfloatS8Uint,
	format.S8Uint:         vk.FormatS8Uint,
	format.BC1RGBAUnorm:   vk.FormatBc1RgbaUnormBlock,
}

// Format returns the VkFormat storing id.
func Format(id format.ID) (vk.Format, error) {
	f, ok := formats[id]
	if !ok {
		return vk.FormatUndefined, fmt.Errorf("%w: %v", ErrUnmappedFormat, id)
	}
	return f, nil
}
