package tracker

import (
	"image"

	"github.com/golang/geo/r3"
)

// PointType distinguishes confirmed hands from newly discovered blobs
type PointType int

const (
	// ActivePoint is a point that has been confirmed as a hand
	ActivePoint PointType = iota
	// CandidatePoint is a newly created point awaiting promotion
	CandidatePoint
)

// String returns the name of the point type
func (t PointType) String() string {
	switch t {
	case ActivePoint:
		return "active"
	case CandidatePoint:
		return "candidate"
	default:
		return "unknown"
	}
}

// TrackingStatus is the lifecycle state of a tracked point
type TrackingStatus int

const (
	// NotTracking is the status of a point that has not been matched yet
	NotTracking TrackingStatus = iota
	// Tracking is the status of a point matched in the current frame
	Tracking
	// Lost is the status of a point that failed to match, it is kept for a
	// grace period in case the hand reappears
	Lost
	// Dead marks a point for removal
	Dead
)

// String returns the name of the tracking status
func (s TrackingStatus) String() string {
	switch s {
	case NotTracking:
		return "not-tracking"
	case Tracking:
		return "tracking"
	case Lost:
		return "lost"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// TrackedPoint is a single hand followed across frames
type TrackedPoint struct {
	// TrackingID is unique for the lifetime of the processor
	TrackingID int32
	// Type is ActivePoint or CandidatePoint
	Type PointType
	// Status is the lifecycle state
	Status TrackingStatus
	// Position is the target pixel at processing resolution
	Position image.Point
	// FullSizePosition is the refined pixel at sensor resolution
	FullSizePosition image.Point
	// WorldPosition is the world position in mm of Position
	WorldPosition r3.Vector
	// WorldDeltaPosition is the world movement in mm since the previous match
	WorldDeltaPosition r3.Vector
	// FullSizeWorldPosition is the world position in mm of FullSizePosition
	FullSizeWorldPosition r3.Vector
	// FullSizeWorldDeltaPosition is the filtered world velocity in mm per frame
	FullSizeWorldDeltaPosition r3.Vector
	// ReferenceArea is the world area in mm² of the last matched region
	ReferenceArea float32
	// Score is the layer score at the target pixel
	Score float32
	// EdgeDistance is the distance in mm from the target to the region edge
	EdgeDistance float32
	// Depth is the processing resolution depth in mm at the target pixel
	Depth float32
	// ActiveFrameCount is the number of frames the point has been matched
	ActiveFrameCount int
	// LostFrameCount is the number of consecutive frames without a match
	LostFrameCount int
	// TotalTravel is the accumulated world distance in mm moved by the point
	TotalTravel float32

	// region holds the pixel indices claimed by the last successful match
	region []int
	// updated is set when the point was matched in the current frame
	updated bool

	// velocity filter state
	mean     StateMean
	cov      *StateCov
	filtered bool
}

// Region returns the row-major pixel indices claimed by the point's last
// successful match, or nil while the point is lost
func (p *TrackedPoint) Region() []int {
	return p.region
}

// Updated reports whether the point was matched or created in the current
// frame
func (p *TrackedPoint) Updated() bool {
	return p.updated
}
