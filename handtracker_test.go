package handtrack

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-handtrack/mapping"
	"github.com/swdee/go-handtrack/render"
)

const (
	sensorWidth  = 320
	sensorHeight = 240
	procWidth    = 80
	procHeight   = 60
	testScale    = 4
)

// fakeSource is an in memory depth stream
type fakeSource struct {
	desc      StreamDescription
	started   bool
	mapper    mapping.CoordinateMapper
	listeners []FrameListener
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		desc:    StreamDescription{Type: StreamTypeDepth, Width: sensorWidth, Height: sensorHeight},
		started: true,
	}
}

func (f *fakeSource) Description() StreamDescription   { return f.desc }
func (f *fakeSource) Mapper() mapping.CoordinateMapper { return f.mapper }
func (f *fakeSource) Started() bool                    { return f.started }
func (f *fakeSource) AddListener(l FrameListener)      { f.listeners = append(f.listeners, l) }

func (f *fakeSource) RemoveListener(l FrameListener) {
	for i, cur := range f.listeners {
		if cur == l {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			return
		}
	}
}

func (f *fakeSource) push(frame *DepthFrame) {
	for _, l := range f.listeners {
		l.OnFrameReady(frame)
	}
}

// blobDepthFrame returns a sensor frame holding square blobs at 800mm.  Blob
// origins and size are given in processing pixels.
func blobDepthFrame(index, size int, origins ...image.Point) *DepthFrame {

	frame := &DepthFrame{
		Width:      sensorWidth,
		Height:     sensorHeight,
		FrameIndex: index,
		Data:       make([]uint16, sensorWidth*sensorHeight),
	}

	for _, o := range origins {
		for y := o.Y * testScale; y < (o.Y+size)*testScale; y++ {
			for x := o.X * testScale; x < (o.X+size)*testScale; x++ {
				frame.Data[y*sensorWidth+x] = 800
			}
		}
	}

	return frame
}

func newTestTracker(t *testing.T, cfg Config) (*HandTracker, *fakeSource) {
	t.Helper()

	src := newFakeSource()
	ht, err := NewHandTracker(src, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, ht.Close())
	})

	return ht, src
}

// sentinelHands returns the hand array of a frame without hands
func sentinelHands() [MaxHandCount]HandPoint {
	var hands [MaxHandCount]HandPoint
	for i := range hands {
		resetHandPoint(&hands[i])
	}
	return hands
}

// latestHands acquires the latest hand frame and returns a copy of it
func latestHands(t *testing.T, r *StreamReader[HandFrame]) *HandFrame {
	t.Helper()

	frame, _, ok := r.Acquire()
	require.True(t, ok, "expected a published hand frame")

	cp := *frame
	r.Release()

	return &cp
}

func TestNewHandTrackerRejectsStreams(t *testing.T) {

	_, err := NewHandTracker(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrStreamUnavailable)

	color := newFakeSource()
	color.desc.Type = StreamTypeColor
	_, err = NewHandTracker(color, DefaultConfig())
	assert.ErrorIs(t, err, ErrStreamType)

	stopped := newFakeSource()
	stopped.started = false
	_, err = NewHandTracker(stopped, DefaultConfig())
	assert.ErrorIs(t, err, ErrStreamUnavailable)

	// the processing resolution must divide the stream resolution
	odd := newFakeSource()
	odd.desc.Width = 330
	_, err = NewHandTracker(odd, DefaultConfig())
	assert.Error(t, err)
}

func TestFramesSkippedWithoutConnections(t *testing.T) {

	ht, src := newTestTracker(t, DefaultConfig())

	src.push(blobDepthFrame(1, 10, image.Pt(30, 20)))

	assert.Empty(t, ht.TrackedPoints())

	hands := ht.HandStream().Connect()
	defer hands.Close()

	src.push(blobDepthFrame(2, 10, image.Pt(30, 20)))

	assert.Len(t, ht.TrackedPoints(), 1)
}

func TestMovingHandKeepsTrackingID(t *testing.T) {

	ht, src := newTestTracker(t, DefaultConfig())

	hands := ht.HandStream().Connect()
	defer hands.Close()

	var id int32 = -1

	for i := 0; i < 30; i++ {
		src.push(blobDepthFrame(i, 10, image.Pt(5+i, 20)))

		frame := latestHands(t, hands)
		require.Equal(t, i, frame.FrameIndex)

		// candidates are hidden until promoted
		for _, h := range frame.ActiveHands() {
			assert.NotEqual(t, HandStatusCandidate, h.Status)

			if id == -1 {
				id = h.TrackingID
			}

			assert.Equal(t, id, h.TrackingID, "frame %d", i)
		}
	}

	frame := latestHands(t, hands)
	active := frame.ActiveHands()

	require.Len(t, active, 1, "expected the moving blob to be promoted")
	assert.Equal(t, HandStatusTracking, active[0].Status)
	assert.Equal(t, int32(1), active[0].TrackingID)

	// one processing pixel is roughly 11mm at 800mm
	assert.InDelta(t, 11, active[0].WorldDeltaPosition.X, 1.5)
	assert.InDelta(t, 800, active[0].WorldPosition.Z, 5)

	pos := image.Pt(int(active[0].DepthPosition.X), int(active[0].DepthPosition.Y))
	assert.True(t, pos.In(image.Rect(34*testScale, 20*testScale, 44*testScale, 30*testScale)),
		"depth position %v outside the blob", pos)

	// every slot past the hand is padded
	want := sentinelHands()
	if diff := cmp.Diff(want[1:], frame.Hands[1:]); diff != "" {
		t.Errorf("unexpected padding (-want +got):\n%s", diff)
	}
}

func TestLostHandIsRemoved(t *testing.T) {

	cfg := DefaultConfig()
	cfg.Tracking.MaxLostFrames = 3
	ht, src := newTestTracker(t, cfg)

	hands := ht.HandStream().Connect()
	defer hands.Close()

	for i := 0; i < 30; i++ {
		src.push(blobDepthFrame(i, 10, image.Pt(5+i, 20)))
	}

	require.Len(t, latestHands(t, hands).ActiveHands(), 1)

	for i := 0; i < cfg.Tracking.MaxLostFrames; i++ {
		src.push(blobDepthFrame(30+i, 10))

		active := latestHands(t, hands).ActiveHands()
		require.Len(t, active, 1, "lost frame %d", i+1)
		assert.Equal(t, HandStatusLost, active[0].Status)
		assert.Equal(t, Vector3f{}, active[0].WorldDeltaPosition)
	}

	src.push(blobDepthFrame(40, 10))

	frame := latestHands(t, hands)
	assert.Empty(t, frame.ActiveHands())
	assert.Equal(t, sentinelHands(), frame.Hands)
}

func TestTwoBlobsGetDistinctIDs(t *testing.T) {

	cfg := DefaultConfig()
	cfg.IncludeCandidates = true
	ht, src := newTestTracker(t, cfg)

	hands := ht.HandStream().Connect()
	defer hands.Close()

	for i := 0; i < 5; i++ {
		src.push(blobDepthFrame(i, 10, image.Pt(10, 20), image.Pt(50, 20)))
	}

	active := latestHands(t, hands).ActiveHands()
	require.Len(t, active, 2)

	assert.Equal(t, []int32{1, 2}, []int32{active[0].TrackingID, active[1].TrackingID})

	for _, h := range active {
		assert.Equal(t, HandStatusCandidate, h.Status)
	}
}

func TestCandidatesFollowIncludeFlag(t *testing.T) {

	ht, src := newTestTracker(t, DefaultConfig())

	hands := ht.HandStream().Connect()
	defer hands.Close()

	src.push(blobDepthFrame(1, 10, image.Pt(30, 20)))

	require.Len(t, ht.TrackedPoints(), 1)
	assert.Empty(t, latestHands(t, hands).ActiveHands())

	ht.SetIncludeCandidates(true)
	src.push(blobDepthFrame(2, 10, image.Pt(30, 20)))

	active := latestHands(t, hands).ActiveHands()
	require.Len(t, active, 1)
	assert.Equal(t, HandStatusCandidate, active[0].Status)
}

func TestResetIsolatesVelocity(t *testing.T) {

	cfg := DefaultConfig()
	cfg.IncludeCandidates = true
	ht, src := newTestTracker(t, cfg)

	hands := ht.HandStream().Connect()
	defer hands.Close()

	for i := 0; i < 10; i++ {
		src.push(blobDepthFrame(i, 10, image.Pt(5+2*i, 20)))
	}

	before := latestHands(t, hands).ActiveHands()
	require.Len(t, before, 1)
	require.Greater(t, before[0].WorldDeltaPosition.X, float32(5))

	ht.Reset()
	assert.Empty(t, ht.TrackedPoints())

	src.push(blobDepthFrame(10, 10, image.Pt(40, 30)))

	after := latestHands(t, hands).ActiveHands()
	require.Len(t, after, 1)

	// ids are never reused and the new hand starts without motion
	assert.Equal(t, int32(2), after[0].TrackingID)
	assert.InDelta(t, 0, after[0].WorldDeltaPosition.X, 0.5)
	assert.InDelta(t, 0, after[0].WorldDeltaPosition.Z, 0.5)
}

func TestEmptyFrame(t *testing.T) {

	ht, src := newTestTracker(t, DefaultConfig())

	hands := ht.HandStream().Connect()
	defer hands.Close()

	debug := ht.DebugStream().Connect()
	defer debug.Close()

	src.push(blobDepthFrame(7, 10))

	assert.Empty(t, ht.TrackedPoints())

	frame := latestHands(t, hands)
	assert.Equal(t, 7, frame.FrameIndex)
	assert.Equal(t, sentinelHands(), frame.Hands)

	img, index, ok := debug.Acquire()
	require.True(t, ok)
	defer debug.Release()

	assert.Equal(t, 7, index)
	assert.Equal(t, ImageMetadata{Width: procWidth, Height: procHeight, BytesPerPixel: 3},
		img.Metadata)
	assert.Len(t, img.Data, procWidth*procHeight*3)
}

func TestDebugFrameEveryView(t *testing.T) {

	ht, src := newTestTracker(t, DefaultConfig())

	debug := ht.DebugStream().Connect()
	defer debug.Close()

	for i, v := range render.DebugViews() {
		require.NoError(t, ht.SetDebugView(v))

		src.push(blobDepthFrame(i, 10, image.Pt(10+i, 20)))

		img, index, ok := debug.Acquire()
		require.True(t, ok, v.String())

		assert.Equal(t, i, index)
		assert.Len(t, img.Data, procWidth*procHeight*render.BytesPerPixel, v.String())

		debug.Release()
	}

	assert.ErrorIs(t, ht.SetDebugView(render.DebugView(42)), render.ErrUnknownView)
}

func TestProbeReplacesForegroundScan(t *testing.T) {

	cfg := DefaultConfig()
	cfg.IncludeCandidates = true
	ht, src := newTestTracker(t, cfg)

	hands := ht.HandStream().Connect()
	defer hands.Close()

	// probe on the background, the blob is not picked up
	ht.SetProbe(0.05, 0.05)
	src.push(blobDepthFrame(1, 10, image.Pt(30, 20)))

	assert.Empty(t, ht.TrackedPoints())

	// probe over the blob
	ht.SetProbe(float32(35)/procWidth, float32(25)/procHeight)
	src.push(blobDepthFrame(2, 10, image.Pt(30, 20)))

	require.Len(t, ht.TrackedPoints(), 1)

	ht.ClearProbe()
	src.push(blobDepthFrame(3, 10, image.Pt(30, 20), image.Pt(60, 20)))

	assert.Len(t, latestHands(t, hands).ActiveHands(), 2)
}

func TestProbeSeedIsClamped(t *testing.T) {

	tests := []struct {
		x, y float32
		want image.Point
	}{
		{0, 0, image.Pt(0, 0)},
		{0.5, 0.5, image.Pt(40, 30)},
		{1, 1, image.Pt(79, 59)},
		{-0.2, 1.5, image.Pt(0, 59)},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, probeSeed(tc.x, tc.y, procWidth, procHeight))
	}
}
