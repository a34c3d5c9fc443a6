package handtrack

import (
	"github.com/golang/geo/r3"
	"github.com/swdee/go-handtrack/tracker"
)

// MaxHandCount is the fixed number of hand slots in a HandFrame
const MaxHandCount = 10

// Vector2i is an integer pixel position
type Vector2i struct {
	X int32
	Y int32
}

// Vector3f is a world position or movement in mm
type Vector3f struct {
	X float32
	Y float32
	Z float32
}

// vector3f narrows a world vector to the published precision
func vector3f(v r3.Vector) Vector3f {
	return Vector3f{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

// HandStatus is the reported tracking state of a hand
type HandStatus int

const (
	HandStatusNotTracking HandStatus = iota
	HandStatusTracking
	HandStatusLost
	HandStatusCandidate
)

// String returns the status name
func (s HandStatus) String() string {
	switch s {
	case HandStatusTracking:
		return "Tracking"
	case HandStatusLost:
		return "Lost"
	case HandStatusCandidate:
		return "Candidate"
	default:
		return "NotTracking"
	}
}

// HandPoint is one hand slot of a HandFrame.  An unused slot has TrackingID
// -1, zero vectors and HandStatusNotTracking.
type HandPoint struct {
	TrackingID int32
	// DepthPosition is the position at sensor resolution
	DepthPosition Vector2i
	// WorldPosition is the refined world position in mm
	WorldPosition Vector3f
	// WorldDeltaPosition is the filtered world movement since the previous
	// frame in mm
	WorldDeltaPosition Vector3f
	Status             HandStatus
}

// HandFrame is the tracking result of one depth frame
type HandFrame struct {
	FrameIndex int
	Hands      [MaxHandCount]HandPoint
}

// ActiveHands returns the slots holding a hand
func (f *HandFrame) ActiveHands() []HandPoint {

	var hands []HandPoint

	for _, h := range f.Hands {
		if h.TrackingID != -1 {
			hands = append(hands, h)
		}
	}

	return hands
}

// resetHandPoint clears a slot to the unused sentinel
func resetHandPoint(h *HandPoint) {
	*h = HandPoint{TrackingID: -1, Status: HandStatusNotTracking}
}

// convertHandStatus maps a tracked point onto its reported status.  Candidate
// points are always reported as candidates whilst they are followed.
func convertHandStatus(pt *tracker.TrackedPoint) HandStatus {

	switch pt.Status {
	case tracker.Tracking, tracker.Lost:
		if pt.Type == tracker.CandidatePoint {
			return HandStatusCandidate
		}

		if pt.Status == tracker.Tracking {
			return HandStatusTracking
		}

		return HandStatusLost
	}

	return HandStatusNotTracking
}

// UpdateHandFrame fills frame from points in creation order.  Only Tracking
// and Lost points are written, candidates only when includeCandidates is set.
// Remaining slots are reset to the sentinel.  It returns the number of hands
// written.
func UpdateHandFrame(points []*tracker.TrackedPoint, includeCandidates bool,
	frame *HandFrame) int {

	count := 0

	for _, pt := range points {

		if count >= MaxHandCount {
			break
		}

		if pt.Status != tracker.Tracking && pt.Status != tracker.Lost {
			continue
		}

		if pt.Type == tracker.CandidatePoint && !includeCandidates {
			continue
		}

		frame.Hands[count] = HandPoint{
			TrackingID: pt.TrackingID,
			DepthPosition: Vector2i{
				X: int32(pt.FullSizePosition.X),
				Y: int32(pt.FullSizePosition.Y),
			},
			WorldPosition:      vector3f(pt.FullSizeWorldPosition),
			WorldDeltaPosition: vector3f(pt.FullSizeWorldDeltaPosition),
			Status:             convertHandStatus(pt),
		}

		count++
	}

	for i := count; i < MaxHandCount; i++ {
		resetHandPoint(&frame.Hands[i])
	}

	return count
}
