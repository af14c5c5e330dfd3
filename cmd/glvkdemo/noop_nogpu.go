//go:build nogpu

package main

import (
	"errors"

	"github.com/gogpu/glvk/gpucore"
)

func openNoop() (gpucore.Device, func(), error) {
	return nil, nil, errors.New("noop backend needs a build without the nogpu tag")
}
