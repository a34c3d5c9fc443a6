package handtrack

import (
	"github.com/swdee/go-handtrack/render"
)

// ImageMetadata describes the layout of a debug image
type ImageMetadata struct {
	Width         int
	Height        int
	BytesPerPixel int
}

// DebugImageFrame is a rendered debug view at processing resolution, stored
// as row-major RGB bytes
type DebugImageFrame struct {
	FrameIndex int
	Metadata   ImageMetadata
	Data       []byte
}

// newDebugImageFrameInit returns a stream buffer initializer allocating
// frames of the given size
func newDebugImageFrameInit(width, height int) func(*DebugImageFrame) {
	return func(f *DebugImageFrame) {
		f.Metadata = ImageMetadata{
			Width:         width,
			Height:        height,
			BytesPerPixel: render.BytesPerPixel,
		}
		f.Data = make([]byte, width*height*render.BytesPerPixel)
	}
}

// DebugOptions are the runtime settings of the debug stream
type DebugOptions struct {
	// View is the layer rendered into debug frames
	View render.DebugView
	// ProbeEnabled replaces the create pass foreground scan with a single
	// seed at the probe position and logs the area segmented from it
	ProbeEnabled bool
	// ProbeX and ProbeY are the probe position normalized to [0,1] over the
	// image
	ProbeX float32
	ProbeY float32
}

// renderDebugFrame paints the options' view of layers into frame
func renderDebugFrame(frame *DebugImageFrame, frameIndex int, view render.DebugView,
	layers *render.Layers) error {

	frame.FrameIndex = frameIndex

	img, err := render.WrapImage(frame.Metadata.Width, frame.Metadata.Height, frame.Data)

	if err != nil {
		return err
	}

	if err := render.Render(view, layers, img); err != nil {
		img.Fill(render.Black)
		return err
	}

	return nil
}
