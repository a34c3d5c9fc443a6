package tracker

import (
	"image"
	"sync"
)

// Track represents the position history of one tracked point
type Track struct {
	points []image.Point
}

// Trail is the struct to keep a history of tracked point positions used for
// drawing a trail
type Trail struct {
	// size is the maximum number of most recent points to keep in history
	size int
	// history of tracked points keyed by tracking id
	history map[int32]*Track
	sync.Mutex
}

// NewTrail returns a new trail history instance.  Size is the number of most
// recent positions kept and specifies the maximum length of the trail
func NewTrail(size int) *Trail {
	return &Trail{
		size:    size,
		history: make(map[int32]*Track),
	}
}

// Reset clears all history
func (t *Trail) Reset() {
	t.Lock()
	defer t.Unlock()

	t.history = make(map[int32]*Track)
}

// Add a tracked point's refined position to the history.  Points that are not
// currently tracking are skipped.
func (t *Trail) Add(pt *TrackedPoint) {

	if pt.Status != Tracking {
		return
	}

	t.Lock()
	defer t.Unlock()

	// init map if no history exists yet for track id
	track, exists := t.history[pt.TrackingID]

	if !exists {
		track = &Track{}
		t.history[pt.TrackingID] = track
	}

	track.points = append(track.points, pt.FullSizePosition)

	// check if history is exceeded and drop oldest point
	if len(track.points) > t.size {
		track.points = track.points[1:]
	}
}

// Retain drops the history of every tracking id not present in points
func (t *Trail) Retain(points []*TrackedPoint) {
	t.Lock()
	defer t.Unlock()

	live := make(map[int32]struct{}, len(points))

	for _, pt := range points {
		live[pt.TrackingID] = struct{}{}
	}

	for id := range t.history {
		if _, ok := live[id]; !ok {
			delete(t.history, id)
		}
	}
}

// GetPoints gets a copy of the point history for a specific tracking id
func (t *Trail) GetPoints(id int32) []image.Point {
	t.Lock()
	defer t.Unlock()

	if track, exists := t.history[id]; exists {
		return append([]image.Point(nil), track.points...)
	}

	// no history yet
	return nil
}
