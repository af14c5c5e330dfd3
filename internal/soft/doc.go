// Package soft provides a gpucore.Device that runs on host memory.
//
// Commands execute as they are recorded. The device checks that every
// command names the layout its image was last transitioned to and logs
// each command, so tests can assert which barriers and copies the engine
// emits:
//
//	dev := soft.NewDefault()
//	// ... drive the engine ...
//	if err := dev.Err(); err != nil {
//		t.Fatal(err)
//	}
//	if n := dev.Count(soft.OpBarrier); n != 1 {
//		t.Errorf("barriers = %d, want 1", n)
//	}
//
// Blits of unorm formats go through golang.org/x/image/draw. Mipmap
// helpers use the box filter of package image, which matches a linear
// 2x blit within one 8-bit step.
package soft
