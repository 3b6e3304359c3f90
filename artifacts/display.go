package artifacts

import (
	"context"

	"go.viam.com/posetrack/rimage"
)

// Display shows overlay images as they are produced. Show may block briefly but must not keep
// img.
type Display interface {
	Show(ctx context.Context, id string, img *rimage.Image) error
	Close() error
}

type headlessDisplay struct{}

// NewHeadlessDisplay returns a Display that drops every frame.
func NewHeadlessDisplay() Display {
	return headlessDisplay{}
}

func (headlessDisplay) Show(ctx context.Context, id string, img *rimage.Image) error {
	return nil
}

func (headlessDisplay) Close() error {
	return nil
}
