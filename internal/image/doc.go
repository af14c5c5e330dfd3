// Package image implements the image storage object of the texture engine.
//
// A Storage owns at most one native image and everything the engine knows
// about it: the level offset between client and native mip levels, the
// intended and actual formats, the tracked layout and queue ownership, the
// per-level content-defined bits, and one ordered queue of staged updates
// per client level.
//
// # Updates
//
// Client writes that cannot be applied to the image right away are staged
// as Updates. Each level keeps its updates in the order they must be
// applied; FlushStagedUpdates records them into command buffers obtained
// from the device after the required write barriers:
//
//	s.StageHostUpdate(level, layer, 1, box, fb, src)         // staging buffer + copy
//	s.StageClear(level, 0, 1, gpucore.AspectColor, value)    // full clear
//	s.FlushStagedUpdates(0, MaxLevels, 0, layers, 0, nil)
//
// Updates the queue can prove superseded are pruned when the staged bytes
// of a level grow past a threshold.
//
// # Barriers
//
// The layout is tracked for the whole image. RecordReadBarrier and
// RecordWriteBarrier compute the transition from the recorded layout with
// package layout and elide barriers between reads in one read-only layout
// and between writes to disjoint layers.
package image
