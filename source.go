package handtrack

import (
	"errors"

	"github.com/swdee/go-handtrack/mapping"
)

var (
	// ErrStreamUnavailable is returned when the depth stream is missing or
	// has not been started
	ErrStreamUnavailable = errors.New("depth stream unavailable")
	// ErrStreamType is returned when the source stream does not carry depth
	ErrStreamType = errors.New("source stream is not a depth stream")
)

// StreamType identifies the kind of frames a sensor stream produces
type StreamType int

const (
	StreamTypeUnknown StreamType = iota
	StreamTypeDepth
	StreamTypeColor
	StreamTypeInfrared
)

// String returns the stream type name
func (t StreamType) String() string {
	switch t {
	case StreamTypeDepth:
		return "depth"
	case StreamTypeColor:
		return "color"
	case StreamTypeInfrared:
		return "infrared"
	default:
		return "unknown"
	}
}

// StreamDescription describes a sensor stream
type StreamDescription struct {
	Type StreamType
	// Width and Height are the frame resolution in pixels
	Width  int
	Height int
}

// DepthFrame is a single frame of depth samples in millimetres, row-major with
// zero meaning no measurement
type DepthFrame struct {
	Width      int
	Height     int
	FrameIndex int
	Data       []uint16
}

// FrameListener receives frames from a DepthStream
type FrameListener interface {
	OnFrameReady(frame *DepthFrame)
}

// DepthStream is the sensor side of the tracker.  Frames are delivered
// synchronously to registered listeners on the stream's own goroutine and
// are only valid for the duration of the callback.
type DepthStream interface {
	// Description returns the stream type and resolution
	Description() StreamDescription
	// Mapper converts sensor resolution pixels to world coordinates, nil if
	// the sensor does not provide one
	Mapper() mapping.CoordinateMapper
	// Started reports whether the stream is producing frames
	Started() bool
	// AddListener registers l for every subsequent frame
	AddListener(l FrameListener)
	// RemoveListener stops delivery to l
	RemoveListener(l FrameListener)
}
