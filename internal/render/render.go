package render

import (
	"github.com/fishlab/gostim/internal/stim"
)

// NopRenderer discards frames. Used for headless runs where only the
// scheduling, logging and remote surfaces matter.
type NopRenderer struct{}

func (NopRenderer) Present(*stim.Frame) error {
	return nil
}

// Multi fans a frame out to several renderers, stopping at the first error.
type Multi []stim.Renderer

func (m Multi) Present(f *stim.Frame) error {
	for _, r := range m {
		if err := r.Present(f); err != nil {
			return err
		}
	}
	return nil
}
