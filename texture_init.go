package glvk

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/image"
	"github.com/gogpu/glvk/internal/layout"
	"github.com/gogpu/glvk/internal/mipgen"
	"github.com/gogpu/glvk/internal/view"
)

// mipLevelCount returns the number of levels an image allocated for m
// holds.
func (t *Texture) mipLevelCount(m mipLevels) uint32 {
	if m == fullMipChain {
		return t.state.MipmapMaxLevel() + 1 - t.state.EffectiveBaseLevel()
	}
	return t.state.EnabledLevelCount()
}

// baseFallback resolves the format of the base level description.
func (t *Texture) baseFallback() format.Fallback {
	d := t.state.BaseDesc()
	if t.state.Immutable {
		d = t.state.Desc(0, 0)
	}
	return t.fallbackFor(d.Format)
}

// srgbOverrideEnabled reports whether views reinterpret the storage
// format, which needs a mutable-format image.
func (t *Texture) srgbOverrideEnabled() bool {
	if t.state.SRGBOverride != format.ColorspaceDefault {
		return true
	}
	return t.state.SkipSRGBDecode && t.image != nil && t.image.Valid() && format.Get(t.image.Actual()).SRGB
}

// minimalCreateFlags returns the create flags images of typ always need.
func minimalCreateFlags(typ TextureType, usage gpucore.ImageUsage) gpucore.ImageCreateFlags {
	switch typ {
	case TextureCube, TextureCubeArray:
		return gpucore.CreateCubeCompatible
	case Texture3D:
		if usage&gpucore.UsageColorAttachment != 0 {
			return gpucore.Create2DArrayCompatible
		}
	}
	return 0
}

// initImageUsageFlags resets usage and create flags for an image of
// actual.
func (t *Texture) initImageUsageFlags(actual format.ID) {
	t.usage = gpucore.UsageTransferSrc | gpucore.UsageTransferDst | gpucore.UsageSampled
	t.flags = 0

	f := t.ctx.features
	if format.Get(actual).HasDepthOrStencil() {
		if f.HasFormatFeatures(actual, format.FeatureDepthStencilAttachment) {
			t.usage |= gpucore.UsageDepthStencilAttachment
		}
	} else if f.HasFormatFeatures(actual, format.FeatureColorAttachment) {
		t.usage |= gpucore.UsageColorAttachment | gpucore.UsageInputAttachment
	}
	if t.state.BoundAsStorage && f.HasFormatFeatures(actual, format.FeatureStorage) {
		t.usage |= gpucore.UsageStorage
	}
	if t.state.Protected {
		t.flags |= gpucore.CreateProtected
	}
}

// ensureImageAllocated creates the storage object if there is none and
// recomputes usage for fb. An existing image is left alone.
func (t *Texture) ensureImageAllocated(fb format.Fallback) {
	if t.image == nil {
		t.image = t.ctx.newStorage()
		t.owns = true
		t.imageSerial = 0
		t.levelOffset, t.layerOffset = 0, 0
	}
	t.initImageUsageFlags(fb.Actual)
}

// canGenerateMipmapWithCompute reports whether the compute path can
// generate mipmaps of an image stored as actual. The shader writes
// mipgen.StorageFormat only.
func (t *Texture) canGenerateMipmapWithCompute(actual format.ID) bool {
	f := t.ctx.features
	samples := max(t.state.BaseDesc().Samples, 1)
	return f.GenerateMipmapWithCompute &&
		t.state.Type == Texture2D &&
		samples == 1 &&
		t.owns &&
		actual == mipgen.StorageFormat &&
		f.HasFormatFeatures(actual, format.FeatureStorage)
}

// initImage allocates the image for the current state.
func (t *Texture) initImage(fb format.Fallback, m mipLevels) error {
	var d LevelDesc
	var first, levels uint32
	if t.state.Immutable {
		d, first, levels = t.state.Desc(0, 0), 0, t.state.ImmutableLevels
	} else {
		d, first, levels = t.state.BaseDesc(), t.state.EffectiveBaseLevel(), t.mipLevelCount(m)
	}
	if !d.Defined() || levels == 0 {
		return fmt.Errorf("%w: level %d of %q is not defined", ErrNoImage, first, t.label)
	}
	extent, layers := imageExtent(t.state.Type, d.Size)
	samples := max(d.Samples, 1)

	f := t.ctx.features
	if t.state.Protected {
		t.flags |= gpucore.CreateProtected
	}
	t.flags |= minimalCreateFlags(t.state.Type, t.usage)
	renderable := t.usage&(gpucore.UsageColorAttachment|gpucore.UsageDepthStencilAttachment) != 0
	if renderable && t.owns && samples == 1 && f.SupportsMultisampledRenderToSingleSampled && t.msrttBound {
		t.flags |= gpucore.CreateMultisampledRenderToSingleSampled
	}
	if t.requiresMutableStorage {
		t.flags |= gpucore.CreateMutableFormat
	}

	err := t.image.Init(&image.Desc{
		Label:      t.label,
		Type:       t.state.Type.imageType(),
		Fallback:   fb,
		Extent:     extent,
		FirstLevel: image.GLLevel(first),
		Levels:     levels,
		Layers:     layers,
		Samples:    samples,
		Usage:      t.usage,
		Flags:      t.flags,
	})
	if err != nil {
		return err
	}
	t.imageSerial = t.image.Serial()
	t.flags = t.image.Flags()
	t.requiresMutableStorage = t.flags&gpucore.CreateMutableFormat != 0

	t.refreshViews()
	t.applyColorspace()
	t.curBase, t.curMax = t.state.BaseLevel, t.state.MaxLevel

	t.ctx.log.Info("texture image allocated", "label", t.label, "type", t.state.Type,
		"intended", fb.Intended, "actual", fb.Actual, "levels", levels, "layers", layers,
		"firstLevel", first, "samples", samples)
	return nil
}

// applyColorspace pushes the sRGB state into the view cache.
func (t *Texture) applyColorspace() {
	t.views.SetColorspace(view.Colorspace{
		Override:   t.state.SRGBOverride,
		SkipDecode: t.state.SkipSRGBDecode,
	})
}

// flushImageStagedUpdates records the updates staged for the levels and
// layers the texture sees, except redefined levels.
func (t *Texture) flushImageStagedUpdates() error {
	first := t.image.FirstAllocatedLevel()
	levels := t.viewLevelCount()
	if t.isSibling() {
		first = t.levelOffset
	}
	layer := t.layerOffset
	layers := t.image.LayerCount()
	if t.isSibling() {
		layers = 1
	}
	return t.image.FlushStagedUpdates(first, first+image.GLLevel(levels), layer, layer+layers, t.redefinedMask(), nil)
}

// ensureImageInitialized allocates the image if needed and flushes
// every staged update it can hold.
func (t *Texture) ensureImageInitialized(m mipLevels) error {
	if t.image == nil {
		return nil
	}
	if t.image.Valid() && !t.image.HasStagedUpdatesInAllocatedLevels() {
		return nil
	}
	if !t.image.Valid() {
		d := t.state.BaseDesc()
		if t.state.Immutable {
			d = t.state.Desc(0, 0)
		}
		if !d.Defined() {
			return nil
		}
		if err := t.initImage(t.fallbackFor(d.Format), m); err != nil {
			return err
		}
		if m == fullMipChain {
			// Levels above base are regenerated; only emulated clears can
			// be staged there at this point.
			base := image.GLLevel(t.state.EffectiveBaseLevel())
			t.image.RemoveStagedUpdates(base+1, image.GLLevel(t.state.MipmapMaxLevel())+1)
		}
	}
	return t.flushImageStagedUpdates()
}

// ensureImageInitializedIfUpdatesNeedStageOrFlush initializes the image
// when the update just staged cannot wait: the image is borrowed, or
// every level only waits on buffer updates.
func (t *Texture) ensureImageInitializedIfUpdatesNeedStageOrFlush(level uint32, how applyImageUpdate) error {
	if t.image == nil {
		return nil
	}
	mustFlush := t.updateMustBeFlushed(level)
	if mustFlush || (how != applyDefer && t.image.Valid() && t.image.HasBufferSourcedStagedUpdatesInAllLevels()) {
		return t.ensureImageInitialized(enabledLevels)
	}
	return nil
}

// updateMustBeStaged reports whether an update of level in actual cannot
// reach the current image.
func (t *Texture) updateMustBeStaged(level uint32, actual format.ID) bool {
	if t.image == nil || !t.image.Valid() {
		return true
	}
	nl := t.nativeLevel(level)
	if !t.image.IsAllocated(nl) {
		return true
	}
	if t.image.Actual() != actual {
		return true
	}
	return t.isLevelRedefined(nl)
}

// updateMustBeFlushed reports whether updates must reach the image before
// returning. Borrowed images are seen by other textures, which do not
// know about this texture's staged updates.
func (t *Texture) updateMustBeFlushed(uint32) bool {
	return t.image != nil && !t.owns
}

// shouldUpdateBeFlushed reports whether an update may be written to the
// image directly.
func (t *Texture) shouldUpdateBeFlushed(level uint32, actual format.ID) bool {
	return !t.updateMustBeStaged(level, actual)
}

// applyUpdate lands a staged update as decided by how.
func (t *Texture) applyUpdate(level image.GLLevel, layer, layerCount uint32, how applyImageUpdate) error {
	switch how {
	case applyImmediately:
		return t.image.FlushStagedUpdates(level, level+1, layer, layer+layerCount, t.redefinedMask(), nil)
	case applyImmediatelyInUnlockedTailCall:
		img, serial := t.image, t.image.Serial()
		t.ctx.queueTailCall(func() error {
			if t.destroyed || t.image != img || !img.Valid() || img.Serial() != serial {
				return nil
			}
			return img.FlushStagedUpdates(level, level+1, layer, layer+layerCount, t.redefinedMask(), nil)
		})
	}
	return nil
}

// decideApply picks how an update of level reaches the image.
func (t *Texture) decideApply(level uint32, actual format.ID) applyImageUpdate {
	if t.updateMustBeStaged(level, actual) {
		return applyDefer
	}
	if !t.state.GenerateMipmapHint && !t.incomplete {
		return applyImmediatelyInUnlockedTailCall
	}
	return applyImmediately
}

// maybeUpdateBaseMaxLevels reallocates the image when base or max level
// moved outside what it holds.
func (t *Texture) maybeUpdateBaseMaxLevels() (respecified bool, err error) {
	if t.image == nil {
		return false, nil
	}
	baseChanged := t.curBase != t.state.BaseLevel
	maxChanged := t.curMax != t.state.MaxLevel
	if !baseChanged && !maxChanged {
		return false, nil
	}
	if !t.image.Valid() {
		return false, nil
	}
	newMax := image.GLLevel(t.state.EffectiveMaxLevel())
	switch {
	case t.state.Immutable:
	case !baseChanged && newMax <= t.image.LastAllocatedLevel():
	default:
		return true, t.respecifyImageStorage()
	}
	t.views.Bind(t.image)
	t.curBase, t.curMax = t.state.BaseLevel, t.state.MaxLevel
	return false, nil
}

// prepareForGenerateMipmap drops what generation overwrites and makes
// sure the image gets the usage the chosen path needs.
func (t *Texture) prepareForGenerateMipmap() {
	base := image.GLLevel(t.state.EffectiveBaseLevel())
	top := image.GLLevel(t.state.MipmapMaxLevel())
	t.image.RemoveStagedUpdates(base+1, top+1)

	generated := image.LevelRange(base+1, top+1)
	for f := range t.redefined {
		t.redefined[f] &^= generated
	}
	if t.isLevelRedefined(base) {
		t.releaseImage()
	}
	if t.canGenerateMipmapWithCompute(t.baseFallback().Actual) {
		t.usage |= gpucore.UsageStorage
	}
}

// respecifyImageStorageIfNecessary reallocates the image when the state
// changed in a way it cannot serve.
func (t *Texture) respecifyImageStorageIfNecessary(source Command) error {
	if t.image == nil || t.state.ExternalMemory {
		return nil
	}
	oldUsage, oldFlags := t.usage, t.flags

	if t.state.BoundAsStorage {
		t.usage |= gpucore.UsageStorage
		t.requiresMutableStorage = true
	}
	if t.srgbOverrideEnabled() {
		t.requiresMutableStorage = true
	}
	if t.requiresMutableStorage {
		t.flags |= gpucore.CreateMutableFormat
	}
	if t.state.BoundAsAttachment {
		respecified, err := t.ensureRenderable()
		if err != nil {
			return err
		}
		if respecified {
			oldUsage, oldFlags = t.usage, t.flags
		}
	}

	generate := source == CommandGenerateMipmap
	if generate {
		t.prepareForGenerateMipmap()
	}

	respecified, err := t.maybeUpdateBaseMaxLevels()
	if err != nil {
		return err
	}
	if respecified {
		oldUsage, oldFlags = t.usage, t.flags
	}

	mipmapEnabledByFilter := !generate && t.image.Valid() &&
		t.image.LevelCount() < t.mipLevelCount(enabledLevels)

	if generate && t.image.Valid() && t.owns &&
		(oldUsage != t.usage || (!t.state.Immutable && t.image.LevelCount() != t.mipLevelCount(fullMipChain))) {
		if err := t.flushImageStagedUpdates(); err != nil {
			return err
		}
		t.ctx.perf.Respecifications++
		t.image.StageSelfAsSubresourceUpdates(t.redefinedMask())
		t.releaseImage()
	}

	if oldUsage != t.usage || oldFlags != t.flags || t.redefinedMask().Any() || mipmapEnabledByFilter {
		return t.respecifyImageStorage()
	}
	return nil
}

// respecifyImageStorage recreates the image with the current parameters,
// keeping its contents as staged updates.
func (t *Texture) respecifyImageStorage() error {
	if t.image == nil || !t.image.Valid() {
		return nil
	}
	t.ctx.perf.Respecifications++
	t.ctx.log.Info("texture image respecified", "label", t.label, "owned", t.owns,
		"levels", t.image.LevelCount(), "redefined", t.redefinedMask())

	if t.image.HasStagedUpdatesInAllocatedLevels() {
		if err := t.flushImageStagedUpdates(); err != nil {
			return err
		}
	}

	if !t.owns {
		src := t.image
		levelIncomplete := src.LevelCount() < t.mipLevelCount(fullMipChain)
		firstVk := src.ToVkLevel(t.levelOffset)
		levels, layers := t.viewLevelCount(), t.viewLayerCount()
		if t.state.Type == Texture3D {
			layers = 1
		}
		levelOffset, layerOffset := t.levelOffset, t.layerOffset

		// Keep the borrowed image alive until its contents are copied.
		unpin := t.pinBorrowed()
		defer unpin()

		t.releaseImage()
		fb := t.baseFallback()
		t.ensureImageAllocated(fb)
		m := enabledLevels
		if t.state.Immutable || levelIncomplete {
			m = fullMipChain
		}
		if err := t.initImage(fb, m); err != nil {
			return err
		}
		return t.copyAndStageImageData(src, firstVk, levels, layerOffset, layers, levelOffset)
	}

	fb := t.baseFallback()
	if t.image.Actual() != fb.Actual {
		if err := t.reinitImageAsRenderable(fb); err != nil {
			return err
		}
	} else {
		t.image.StageSelfAsSubresourceUpdates(t.redefinedMask())
	}
	t.releaseImage()
	return nil
}

// newStagingImage allocates a transfer image holding a copy of levels
// or layers of another image.
func (t *Texture) newStagingImage(fb format.Fallback, typ gpucore.ImageType, extent gpucore.Extent3D, levels, layers uint32, usage gpucore.ImageUsage) (*image.Storage, error) {
	s := t.ctx.newStorage()
	err := s.Init(&image.Desc{
		Label:    t.label + "-staging",
		Type:     typ,
		Fallback: fb,
		Extent:   extent,
		Levels:   levels,
		Layers:   layers,
		Samples:  1,
		Usage:    gpucore.UsageTransferSrc | gpucore.UsageTransferDst | usage,
	})
	if err != nil {
		return nil, err
	}
	// Every texel is overwritten by the caller.
	s.ReleaseStagedUpdates()
	return s, nil
}

// copyAndStageImageData copies levels of src into a staging image and
// stages the staging image as updates of the new image. Client levels
// start at levelOffset of src; levels redefined since allocation are
// already staged with their new contents and are not copied.
func (t *Texture) copyAndStageImageData(src *image.Storage, firstVk image.VkLevel, levels, layerOffset, layers uint32, levelOffset image.GLLevel) error {
	staging, err := t.newStagingImage(src.Fallback(), src.Type(), src.LevelExtent(firstVk), levels, layers, 0)
	if err != nil {
		return err
	}
	aspect := src.Aspects()
	srcRange := gpucore.SubresourceRange{Aspect: aspect, BaseLevel: uint32(firstVk), LevelCount: levels, BaseLayer: layerOffset, LayerCount: layers}
	dstRange := gpucore.SubresourceRange{Aspect: aspect, LevelCount: levels, LayerCount: layers}

	var acc gpucore.Access
	acc.OnImageTransferRead(src.Handle(), srcRange)
	acc.OnImageTransferWrite(staging.Handle(), dstRange)
	cmd, err := t.ctx.dev.OutsideRenderPassCommandBuffer(&acc)
	if err != nil {
		staging.Destroy()
		return err
	}
	src.RecordReadBarrier(cmd, aspect, layout.TransferSrc, firstVk, levels, layerOffset, layers)
	staging.RecordWriteBarrier(cmd, aspect, layout.TransferDst, 0, levels, 0, layers)
	regions := make([]gpucore.ImageCopy, 0, levels)
	for l := range levels {
		regions = append(regions, gpucore.ImageCopy{
			Aspect:     aspect,
			SrcLevel:   uint32(firstVk) + l,
			SrcLayer:   layerOffset,
			DstLevel:   l,
			LayerCount: layers,
			Extent:     src.LevelExtent(firstVk + image.VkLevel(l)),
		})
	}
	cmd.CopyImage(src.Handle(), gpucore.LayoutTransferSrcOptimal, staging.Handle(), gpucore.LayoutTransferDstOptimal, regions...)

	ref := image.NewRefCounted(staging, (*image.Storage).Destroy)
	for l := range levels {
		level := src.ToGLLevel(firstVk+image.VkLevel(l)) - levelOffset
		if !t.levelOnlyHasEmulatedClears(level) {
			continue
		}
		t.image.StageImageUpdate(level, 0, layers, staging.LevelBox(image.VkLevel(l)), image.ImageSource{
			Image:  ref,
			Level:  image.VkLevel(l),
			Format: staging.Actual(),
		})
	}
	if ref.Refs() == 0 {
		staging.Destroy()
	}
	return nil
}

// levelOnlyHasEmulatedClears reports whether every update staged for
// level is an emulated channel clear.
func (t *Texture) levelOnlyHasEmulatedClears(level image.GLLevel) bool {
	for _, u := range t.image.StagedUpdates(level) {
		if u.Kind != image.UpdateClearEmulatedChannelsOnly {
			return false
		}
	}
	return true
}

// reinitImageAsRenderable stages the contents of the image converted to
// fb, the renderable storage choice for the same intended format.
func (t *Texture) reinitImageAsRenderable(fb format.Fallback) error {
	if err := t.flushImageStagedUpdates(); err != nil {
		return err
	}
	src := t.image
	levels := src.LevelCount()
	layers := src.LayerCount()
	first := src.FirstAllocatedLevel()
	f := t.ctx.features

	if levels == 1 && layers == 1 && !t.isLevelRedefined(first) &&
		canCopyWithDraw(f, src.Actual(), fb.Actual) {
		t.ctx.log.Debug("texture reformatted with draw", "label", t.label, "from", src.Actual(), "to", fb.Actual)
		if err := t.ctx.dev.FlushCommandsAndEndRenderPass("texture reformat to renderable"); err != nil {
			return err
		}
		box := src.LevelBox(0)
		return t.copySubImageWithDraw(drawCopy{
			dstLevel: first, dstLayer: 0, layerCount: 1, dstOffset: gpucore.Offset3D{},
			dstFb: fb, src: src, srcViews: t.views, srcLevel: first, srcLayer: 0, srcBox: box,
		})
	}

	t.ctx.perfWarning(&t.ctx.perf.GPUStalls, "Copying image data on CPU due to texture format fallback")
	for vk := range image.VkLevel(levels) {
		level := src.ToGLLevel(vk)
		if t.isLevelRedefined(level) {
			continue
		}
		box := src.LevelBox(vk)
		data, err := t.readLevelLayers(src, vk, layers, box)
		if err != nil {
			return err
		}
		readFormat := src.Intended()
		if format.Get(readFormat).Compressed {
			readFormat = src.Actual()
		}
		if err := t.image.StageHostUpdate(level, 0, layers, box, fb, image.HostSource{Data: data, Format: readFormat}); err != nil {
			return err
		}
	}
	return nil
}

// readLevelLayers reads every layer of a level in the intended format of
// src, or raw when the intended format is compressed.
func (t *Texture) readLevelLayers(src *image.Storage, vk image.VkLevel, layers uint32, box gpucore.Box) ([]byte, error) {
	readFormat := src.Intended()
	if format.Get(readFormat).Compressed {
		readFormat = format.None
	}
	var out []byte
	for layer := range layers {
		data, err := src.ReadPixels(image.ReadParams{
			Level:  vk,
			Layer:  layer,
			Box:    box,
			Format: readFormat,
			Reason: "texture format fallback",
		})
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

// ensureRenderable switches the texture to renderable storage, reporting
// whether the image had to be respecified.
func (t *Texture) ensureRenderable() (respecified bool, err error) {
	if t.access == format.AccessRenderable {
		return false, nil
	}
	prev := t.access
	t.access = format.AccessRenderable
	if t.image == nil {
		return false, nil
	}
	intended := t.IntendedFormat()
	if intended == format.None {
		return false, nil
	}
	support := t.ctx.features.Formats
	from := t.ctx.table.Resolve(intended, prev, support)
	to := t.ctx.table.Resolve(intended, format.AccessRenderable, support)
	if from.Actual == to.Actual {
		return false, nil
	}
	t.initImageUsageFlags(to.Actual)
	if !t.image.Valid() {
		if err := t.image.ReformatStagedBufferUpdates(from, to); err != nil {
			return false, err
		}
		t.refreshViews()
		return false, nil
	}
	if err := t.respecifyImageStorage(); err != nil {
		return false, err
	}
	t.refreshViews()
	return true, nil
}

// ensureRenderableIfCannotTransfer switches to renderable storage when a
// copy into dstFormat cannot use a transfer.
func (t *Texture) ensureRenderableIfCannotTransfer(canTransfer bool) error {
	if canTransfer {
		return nil
	}
	_, err := t.ensureRenderable()
	return err
}

// InitializeContents stages a clear of idx to zero, with emulated
// components at their defaults.
func (t *Texture) InitializeContents(idx Index) error {
	if err := t.begin(); err != nil {
		return err
	}
	d := t.Desc(t.face(idx), idx.Level)
	if !d.Defined() {
		return fmt.Errorf("%w: level %d", ErrNoImage, idx.Level)
	}
	fb := t.fallbackFor(d.Format)
	t.ensureImageAllocated(fb)
	_, arrayLayers := imageExtent(t.state.Type, d.Size)
	layer, count := t.layerRange(idx, arrayLayers)
	t.image.StageRobustResourceClear(t.nativeLevel(idx.Level), layer, count, fb)
	return t.ensureImageInitializedIfUpdatesNeedStageOrFlush(idx.Level, applyDefer)
}

// SyncState reconciles the image with the client state before the image
// is used by source. dirty is added to the changes recorded by setters.
func (t *Texture) SyncState(dirty DirtyBits, source Command) error {
	if err := t.begin(); err != nil {
		return err
	}
	t.dirty |= dirty
	if err := t.respecifyImageStorageIfNecessary(source); err != nil {
		return err
	}
	m := enabledLevels
	if source == CommandGenerateMipmap {
		m = fullMipChain
	}
	if err := t.ensureImageInitialized(m); err != nil {
		return err
	}
	if t.dirty&(DirtySwizzle|DirtySRGBOverride|DirtySRGBDecode|DirtyBaseLevel|DirtyMaxLevel) != 0 {
		t.applyColorspace()
	}
	t.dirty = 0
	return nil
}
