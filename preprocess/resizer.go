package preprocess

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ErrScale is returned when the processing resolution is not an integer
// fraction of the sensor resolution
var ErrScale = errors.New("processing resolution must evenly divide source resolution")

// Resizer defines the struct used for downsampling a depth map to the
// processing resolution
type Resizer struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// destWidth is the width to scale to
	destWidth int
	// destHeight is the height to scale to
	destHeight int
	// scale is the integer factor between source and destination
	scale int
}

// NewResizer returns a resizer used for scaling a depth map down to the
// processing resolution.  Both dimensions must shrink by the same integer
// factor so every processing pixel maps back onto a whole block of sensor
// pixels.
func NewResizer(srcWidth, srcHeight, destWidth, destHeight int) (*Resizer, error) {

	if srcWidth <= 0 || srcHeight <= 0 || destWidth <= 0 || destHeight <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d to %dx%d", ErrScale,
			srcWidth, srcHeight, destWidth, destHeight)
	}

	scale := srcWidth / destWidth

	if scale < 1 || destWidth*scale != srcWidth || destHeight*scale != srcHeight {
		return nil, fmt.Errorf("%w: %dx%d to %dx%d", ErrScale,
			srcWidth, srcHeight, destWidth, destHeight)
	}

	return &Resizer{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		scale:      scale,
	}, nil
}

// Resize downsamples src to the processing resolution.  Nearest neighbour
// sampling is used so no depth is ever interpolated across an object edge,
// processing pixel (x,y) takes the sensor sample at (x*scale, y*scale).
func (r *Resizer) Resize(src gocv.Mat, dest *gocv.Mat) {
	gocv.Resize(src, dest, image.Pt(r.destWidth, r.destHeight),
		0, 0, gocv.InterpolationNearestNeighbor)
}

// ScaleFactor returns the integer factor between sensor and processing
// resolution
func (r *Resizer) ScaleFactor() int {
	return r.scale
}

// SrcWidth returns the width of the source image
func (r *Resizer) SrcWidth() int {
	return r.srcWidth
}

// SrcHeight returns the height of the source image
func (r *Resizer) SrcHeight() int {
	return r.srcHeight
}

// DestWidth returns the processing resolution width
func (r *Resizer) DestWidth() int {
	return r.destWidth
}

// DestHeight returns the processing resolution height
func (r *Resizer) DestHeight() int {
	return r.destHeight
}
