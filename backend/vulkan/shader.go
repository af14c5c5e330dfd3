package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/glvk/internal/mipgen"
)

// MipmapShaderInfo returns the create info for the compute downsample
// shader, compiled from WGSL on first use.
func MipmapShaderInfo() (*vk.ShaderModuleCreateInfo, error) {
	code, err := mipgen.SPIRV()
	if err != nil {
		return nil, err
	}
	return &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}, nil
}

// CreateMipmapShader creates the downsample shader module on dev.
func CreateMipmapShader(dev vk.Device) (vk.ShaderModule, error) {
	info, err := MipmapShaderInfo()
	if err != nil {
		return vk.NullShaderModule, err
	}
	var mod vk.ShaderModule
	if res := vk.CreateShaderModule(dev, info, nil, &mod); res != vk.Success {
		return vk.NullShaderModule, fmt.Errorf("vulkan: create shader module: %w", vk.Error(res))
	}
	return mod, nil
}
