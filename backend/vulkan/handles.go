package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// Resources resolves gpucore handles to Vulkan objects.
type Resources interface {
	Image(h gpucore.ImageHandle) (vk.Image, format.ID, bool)
	Buffer(h gpucore.BufferHandle) (vk.Buffer, bool)
}

type boundImage struct {
	image  vk.Image
	format format.ID
}

// Handles is a Resources table filled by the application. It is safe for
// concurrent use.
type Handles struct {
	mu      sync.RWMutex
	images  map[gpucore.ImageHandle]boundImage
	buffers map[gpucore.BufferHandle]vk.Buffer
}

// NewHandles returns an empty table.
func NewHandles() *Handles {
	return &Handles{
		images:  make(map[gpucore.ImageHandle]boundImage),
		buffers: make(map[gpucore.BufferHandle]vk.Buffer),
	}
}

// BindImage associates h with img stored in format f.
func (t *Handles) BindImage(h gpucore.ImageHandle, img vk.Image, f format.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.images[h] = boundImage{image: img, format: f}
}

// BindBuffer associates h with buf.
func (t *Handles) BindBuffer(h gpucore.BufferHandle, buf vk.Buffer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buffers[h] = buf
}

// UnbindImage forgets h.
func (t *Handles) UnbindImage(h gpucore.ImageHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.images, h)
}

// UnbindBuffer forgets h.
func (t *Handles) UnbindBuffer(h gpucore.BufferHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.buffers, h)
}

// Image implements Resources.
func (t *Handles) Image(h gpucore.ImageHandle) (vk.Image, format.ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.images[h]
	return b.image, b.format, ok
}

// Buffer implements Resources.
func (t *Handles) Buffer(h gpucore.BufferHandle) (vk.Buffer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.buffers[h]
	return b, ok
}
