package segmentation

import (
	"github.com/swdee/go-handtrack/matrix"
)

// TrackingMatrices bundles the working buffers used by one update, create or
// refinement pass over a frame.  It owns none of them: depth, foreground and
// the common layers belong to the preprocessor and point processor and are
// only read during a pass, whilst the searched mask and the layer/debug
// buffers are written.  A bundle is built at the start of a pass and dropped at
// the end of it.
type TrackingMatrices struct {
	// DepthFullSize is the full sensor resolution depth map (read only)
	DepthFullSize *matrix.Float
	// Depth is the processing resolution depth map.  For the refinement pass
	// it is the refined window buffer and is written to.
	Depth *matrix.Float
	// Area is the world area in mm² covered by each pixel (read only)
	Area *matrix.Float
	// AreaSqrt is the square root of Area, the pixel's world edge length
	AreaSqrt *matrix.Float
	// BasicScore favours pixels nearer the sensor and higher up (read only)
	BasicScore *matrix.Float
	// Foreground is the binary foreground mask (read only)
	Foreground *matrix.Byte
	// ForegroundSearched marks pixels claimed during this pass.  The update
	// and create passes are given different buffers.
	ForegroundSearched *matrix.Byte
	// UpdateSearched is the update pass's searched mask, read by the create
	// pass to skip blobs that already hold a tracked point
	UpdateSearched *matrix.Byte
	// LayerSegmentation marks every pixel segmented during the frame
	LayerSegmentation *matrix.Byte
	// LayerScore is the per pixel target score of segmented regions
	LayerScore *matrix.Float
	// LayerEdgeDistance is the world distance in mm to the region edge
	LayerEdgeDistance *matrix.Float
	// DebugSegmentation labels segmented regions for the debug views
	DebugSegmentation *matrix.Byte
	// DebugLayersEnabled is set when a debug image consumer is attached
	DebugLayersEnabled bool
}

// Width returns the processing resolution width
func (m *TrackingMatrices) Width() int {
	return m.Foreground.Width
}

// Height returns the processing resolution height
func (m *TrackingMatrices) Height() int {
	return m.Foreground.Height
}
