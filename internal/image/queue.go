package image

import "github.com/gogpu/glvk/gpucore"

// PruneReason says why superseded updates were pruned.
type PruneReason uint8

// Prune reasons.
const (
	PruneMemoryOptimization PruneReason = iota
	PruneMinimizeWorkBeforeFlush
)

func (r PruneReason) String() string {
	if r == PruneMemoryOptimization {
		return "MemoryOptimization"
	}
	return "MinimizeWorkBeforeFlush"
}

// appendSubresourceUpdate adds u after the updates already staged for its
// level.
func (s *Storage) appendSubresourceUpdate(u Update) {
	checkLevel(u.Level)
	u.retain()
	s.updates[u.Level] = append(s.updates[u.Level], u)
	s.stagedBufferBytes[u.Level] += u.stagedBytes()

	if s.stagedBufferBytes[u.Level] > s.pruneThreshold {
		s.pruneSupersededUpdatesForLevel(u.Level, PruneMemoryOptimization)
	}
}

// prependSubresourceUpdate adds u before every staged update of its level.
func (s *Storage) prependSubresourceUpdate(u Update) {
	checkLevel(u.Level)
	u.retain()
	q := s.updates[u.Level]
	q = append(q, Update{})
	copy(q[1:], q)
	q[0] = u
	s.updates[u.Level] = q
	s.stagedBufferBytes[u.Level] += u.stagedBytes()
}

// pruneSupersededUpdatesForLevel drops every update whose region is fully
// rewritten by a later update of the same level. Partially overwritten
// updates are kept whole.
func (s *Storage) pruneSupersededUpdatesForLevel(level GLLevel, reason PruneReason) {
	q := s.updates[level]
	if len(q) < 2 {
		return
	}
	before := s.stagedBufferBytes[level]
	keep := q[:0]
	var dropped int
	for i := range q {
		if s.isSuperseded(q[i], q[i+1:]) {
			s.stagedBufferBytes[level] -= q[i].stagedBytes()
			q[i].release()
			dropped++
			continue
		}
		keep = append(keep, q[i])
	}
	clear(q[len(keep):])
	s.updates[level] = keep

	if dropped > 0 {
		s.log.Debug("pruned superseded updates",
			"level", level, "reason", reason, "dropped", dropped,
			"bytesBefore", before, "bytesAfter", s.stagedBufferBytes[level])
	}
}

// isSuperseded reports whether one of the later updates overwrites all of
// u.
func (s *Storage) isSuperseded(u Update, later []Update) bool {
	for i := range later {
		n := &later[i]
		if !n.writesAllComponents() {
			continue
		}
		if n.Aspect&u.Aspect != u.Aspect || !n.coversLayers(&u) {
			continue
		}
		// Full clears carry no box; only another full clear covers one.
		if n.Kind == UpdateClear || (u.Kind != UpdateClear && n.Box.Contains(u.Box)) {
			return true
		}
	}
	return false
}

// RemoveSupersededUpdates prunes every level not in skipLevels.
func (s *Storage) RemoveSupersededUpdates(skipLevels LevelMask) {
	for l := GLLevel(0); l < MaxLevels; l++ {
		if !skipLevels.Has(l) {
			s.pruneSupersededUpdatesForLevel(l, PruneMinimizeWorkBeforeFlush)
		}
	}
}

// RemoveStagedUpdates drops every update of levels [start, end).
func (s *Storage) RemoveStagedUpdates(start, end GLLevel) {
	for l := start; l < min(end, MaxLevels); l++ {
		s.removeUpdatesIf(l, func(*Update) bool { return true })
	}
}

// CopyStagedUpdatesTo stages a copy of every update of level on dst at
// dstLevel. The updates of s stay staged.
func (s *Storage) CopyStagedUpdatesTo(level GLLevel, dst *Storage, dstLevel GLLevel) {
	checkLevel(level)
	for _, u := range s.updates[level] {
		u.Level = dstLevel
		dst.appendSubresourceUpdate(u)
	}
}

// RemoveSingleSubresourceStagedUpdates drops the updates of level that
// only write layers [layer, layer+layerCount).
func (s *Storage) RemoveSingleSubresourceStagedUpdates(level GLLevel, layer, layerCount uint32) {
	checkLevel(level)
	s.removeUpdatesIf(level, func(u *Update) bool {
		return u.Layer >= layer && u.Layer+u.LayerCount <= layer+layerCount
	})
}

func (s *Storage) removeUpdatesIf(level GLLevel, drop func(*Update) bool) {
	q := s.updates[level]
	keep := q[:0]
	for i := range q {
		if drop(&q[i]) {
			s.stagedBufferBytes[level] -= q[i].stagedBytes()
			q[i].release()
			continue
		}
		keep = append(keep, q[i])
	}
	clear(q[len(keep):])
	s.updates[level] = keep
}

// ReleaseStagedUpdates drops every staged update.
func (s *Storage) ReleaseStagedUpdates() {
	s.RemoveStagedUpdates(0, MaxLevels)
}

// HasStagedUpdatesForSubresource reports whether any update of level
// writes one of the layers.
func (s *Storage) HasStagedUpdatesForSubresource(level GLLevel, layer, layerCount uint32) bool {
	checkLevel(level)
	for i := range s.updates[level] {
		if s.updates[level][i].intersectsLayers(layer, layer+layerCount) {
			return true
		}
	}
	return false
}

// HasStagedUpdatesInLevels reports whether any of [start, end) has staged
// updates.
func (s *Storage) HasStagedUpdatesInLevels(start, end GLLevel) bool {
	for l := start; l < min(end, MaxLevels); l++ {
		if len(s.updates[l]) > 0 {
			return true
		}
	}
	return false
}

// HasStagedUpdatesInAllocatedLevels reports whether a level backed by the
// image has staged updates.
func (s *Storage) HasStagedUpdatesInAllocatedLevels() bool {
	if !s.Valid() {
		return false
	}
	return s.HasStagedUpdatesInLevels(s.firstAllocatedLevel, s.firstAllocatedLevel+GLLevel(s.levels))
}

// HasBufferSourcedStagedUpdatesInAllLevels reports whether any level holds
// an update copying from a buffer.
func (s *Storage) HasBufferSourcedStagedUpdatesInAllLevels() bool {
	for l := range s.updates {
		for i := range s.updates[l] {
			if s.updates[l][i].Kind == UpdateBuffer {
				return true
			}
		}
	}
	return false
}

// HasImageSourcedStagedUpdates reports whether any level copies from src.
func (s *Storage) HasImageSourcedStagedUpdates(src *Storage) bool {
	for l := range s.updates {
		for i := range s.updates[l] {
			u := &s.updates[l][i]
			if u.Kind == UpdateImage && u.Image.Image.Get() == src {
				return true
			}
		}
	}
	return false
}

// StagedUpdates returns a copy of the updates staged for level.
func (s *Storage) StagedUpdates(level GLLevel) []Update {
	checkLevel(level)
	return append([]Update(nil), s.updates[level]...)
}

// StagedBufferBytes returns the staging memory held by level.
func (s *Storage) StagedBufferBytes(level GLLevel) uint64 {
	checkLevel(level)
	return s.stagedBufferBytes[level]
}

// LevelsWithStagedUpdates returns the levels that have staged updates.
func (s *Storage) LevelsWithStagedUpdates() LevelMask {
	var m LevelMask
	for l := GLLevel(0); l < MaxLevels; l++ {
		if len(s.updates[l]) > 0 {
			m = m.With(l)
		}
	}
	return m
}

// takeSingleFullClear removes and returns the update of level if it is the
// only one and clears exactly the given layer.
func (s *Storage) takeSingleFullClear(level GLLevel, layer uint32, aspect gpucore.Aspect) (Update, bool) {
	q := s.updates[level]
	if len(q) != 1 {
		return Update{}, false
	}
	u := q[0]
	if u.Kind != UpdateClear || u.Layer != layer || u.LayerCount != 1 || u.Aspect != aspect {
		return Update{}, false
	}
	s.updates[level] = q[:0]
	return u, true
}
