package main

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/swdee/go-handtrack"
	"github.com/swdee/go-handtrack/mapping"
)

const (
	// wallDepth is beyond the tracked depth band so the wall is background
	wallDepth = 4500
	// handDepth is the depth of the hand's palm
	handDepth = 800
	// handRadius is the palm radius in sensor pixels
	handRadius = 20
	// armWidth is the forearm width in sensor pixels
	armWidth = 24
)

// SyntheticSource is a depth stream of a hand waving in front of a wall
type SyntheticSource struct {
	width  int
	height int
	fps    int
	mapper mapping.CoordinateMapper

	mu        sync.Mutex
	started   bool
	listeners []handtrack.FrameListener
}

// NewSyntheticSource returns a stream of the given resolution
func NewSyntheticSource(width, height, fps int, hFov, vFov float64) *SyntheticSource {
	return &SyntheticSource{
		width:  width,
		height: height,
		fps:    fps,
		mapper: mapping.NewPinhole(width, height, hFov*math.Pi/180, vFov*math.Pi/180),
	}
}

func (s *SyntheticSource) Description() handtrack.StreamDescription {
	return handtrack.StreamDescription{
		Type:   handtrack.StreamTypeDepth,
		Width:  s.width,
		Height: s.height,
	}
}

func (s *SyntheticSource) Mapper() mapping.CoordinateMapper {
	return s.mapper
}

func (s *SyntheticSource) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *SyntheticSource) AddListener(l handtrack.FrameListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *SyntheticSource) RemoveListener(l handtrack.FrameListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cur := range s.listeners {
		if cur == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Start marks the stream as producing frames
func (s *SyntheticSource) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
}

// Run delivers frames to the listeners at the stream's FPS until ctx is done
func (s *SyntheticSource) Run(ctx context.Context) {

	ticker := time.NewTicker(time.Second / time.Duration(s.fps))
	defer ticker.Stop()

	frame := &handtrack.DepthFrame{
		Width:  s.width,
		Height: s.height,
		Data:   make([]uint16, s.width*s.height),
	}

	for index := 0; ; index++ {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			frame.FrameIndex = index
			s.draw(frame, float64(index)/float64(s.fps))

			s.mu.Lock()
			listeners := append([]handtrack.FrameListener(nil), s.listeners...)
			s.mu.Unlock()

			for _, l := range listeners {
				l.OnFrameReady(frame)
			}
		}
	}
}

// draw renders the scene at time t seconds.  The hand follows a Lissajous
// path and leaves the view for a moment every cycle so it is lost and found
// again.
func (s *SyntheticSource) draw(frame *handtrack.DepthFrame, t float64) {

	for i := range frame.Data {
		frame.Data[i] = wallDepth
	}

	// hidden for half a second every 8 seconds
	if math.Mod(t, 8) > 7.5 {
		return
	}

	cx := float64(s.width)/2 + float64(s.width)/3*math.Sin(t*0.9)
	cy := float64(s.height)/2 + float64(s.height)/5*math.Sin(t*1.7)

	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {

			dx := float64(x) - cx
			dy := float64(y) - cy

			switch {
			case dx*dx+dy*dy <= handRadius*handRadius:
				frame.Data[y*s.width+x] = handDepth

			case float64(y) > cy && math.Abs(dx) <= armWidth/2:
				// forearm slopes away from the sensor towards the bottom
				frame.Data[y*s.width+x] = uint16(handDepth + 2*(float64(y)-cy))
			}
		}
	}
}
