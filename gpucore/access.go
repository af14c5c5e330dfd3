package gpucore

// AccessKind is the kind of access a command makes to a resource.
type AccessKind uint8

// Access kinds.
const (
	AccessKindTransferRead AccessKind = iota
	AccessKindTransferWrite
	AccessKindComputeRead
	AccessKindComputeWrite
	AccessKindColorWrite
	AccessKindShaderRead
)

// IsWrite reports whether k modifies the resource.
func (k AccessKind) IsWrite() bool {
	return k == AccessKindTransferWrite || k == AccessKindComputeWrite || k == AccessKindColorWrite
}

// ImageAccess is one declared image access. Levels are native.
type ImageAccess struct {
	Image ImageHandle
	Kind  AccessKind
	Range SubresourceRange
}

// BufferAccess is one declared buffer access.
type BufferAccess struct {
	Buffer BufferHandle
	Kind   AccessKind
}

// Access collects the resources the next recorded commands touch, so the
// device can end a conflicting render pass and track resource use.
type Access struct {
	Images  []ImageAccess
	Buffers []BufferAccess
}

// OnImageTransferRead declares a transfer read of r.
func (a *Access) OnImageTransferRead(img ImageHandle, r SubresourceRange) {
	a.Images = append(a.Images, ImageAccess{Image: img, Kind: AccessKindTransferRead, Range: r})
}

// OnImageTransferWrite declares a transfer write of r.
func (a *Access) OnImageTransferWrite(img ImageHandle, r SubresourceRange) {
	a.Images = append(a.Images, ImageAccess{Image: img, Kind: AccessKindTransferWrite, Range: r})
}

// OnImageComputeShaderRead declares a compute shader read of r.
func (a *Access) OnImageComputeShaderRead(img ImageHandle, r SubresourceRange) {
	a.Images = append(a.Images, ImageAccess{Image: img, Kind: AccessKindComputeRead, Range: r})
}

// OnImageComputeShaderWrite declares a compute shader write of r.
func (a *Access) OnImageComputeShaderWrite(img ImageHandle, r SubresourceRange) {
	a.Images = append(a.Images, ImageAccess{Image: img, Kind: AccessKindComputeWrite, Range: r})
}

// OnImageDrawWrite declares a color attachment write of r by a utility draw.
func (a *Access) OnImageDrawWrite(img ImageHandle, r SubresourceRange) {
	a.Images = append(a.Images, ImageAccess{Image: img, Kind: AccessKindColorWrite, Range: r})
}

// OnImageShaderRead declares a fragment shader read of r by a utility draw.
func (a *Access) OnImageShaderRead(img ImageHandle, r SubresourceRange) {
	a.Images = append(a.Images, ImageAccess{Image: img, Kind: AccessKindShaderRead, Range: r})
}

// OnBufferTransferRead declares a transfer read of buf.
func (a *Access) OnBufferTransferRead(buf BufferHandle) {
	a.Buffers = append(a.Buffers, BufferAccess{Buffer: buf, Kind: AccessKindTransferRead})
}

// OnBufferTransferWrite declares a transfer write of buf.
func (a *Access) OnBufferTransferWrite(buf BufferHandle) {
	a.Buffers = append(a.Buffers, BufferAccess{Buffer: buf, Kind: AccessKindTransferWrite})
}

// Empty reports whether nothing was declared.
func (a *Access) Empty() bool {
	return len(a.Images) == 0 && len(a.Buffers) == 0
}
