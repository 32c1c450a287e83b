//go:build nogpu

package main

import (
	"errors"
	"log/slog"

	"github.com/gogpu/sprite"
	"github.com/gogpu/sprite/atlas"
)

func newGPUSubmitter(*atlas.Atlas, uint32, uint32, *slog.Logger) (sprite.Submitter, func(), error) {
	return nil, nil, errors.New("built without GPU support")
}
