package tracker

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/swdee/go-handtrack/mapping"
	"github.com/swdee/go-handtrack/matrix"
	"github.com/swdee/go-handtrack/segmentation"
)

const (
	sensorWidth  = 320
	sensorHeight = 240
	testScale    = 4
	procWidth    = sensorWidth / testScale
	procHeight   = sensorHeight / testScale
)

func newTestProcessor(t *testing.T, params Params) *PointProcessor {
	t.Helper()

	sensor := mapping.NewPinhole(sensorWidth, sensorHeight, 58*math.Pi/180, 45*math.Pi/180)
	p, err := NewPointProcessor(sensor, testScale, params)

	if err != nil {
		t.Fatalf("unexpected error creating processor: %v", err)
	}

	return p
}

// blobFrame returns a processing resolution depth map with square blobs of
// the given size at 800mm
func blobFrame(size int, origins ...image.Point) *matrix.Float {

	depth := matrix.NewFloat(procWidth, procHeight)

	for _, o := range origins {
		for y := o.Y; y < o.Y+size; y++ {
			for x := o.X; x < o.X+size; x++ {
				depth.Set(x, y, 800)
			}
		}
	}

	return depth
}

// upsample replicates each processing pixel over its sensor pixels
func upsample(depth *matrix.Float) *matrix.Float {

	full := matrix.NewFloat(sensorWidth, sensorHeight)

	for y := 0; y < sensorHeight; y++ {
		for x := 0; x < sensorWidth; x++ {
			full.Set(x, y, depth.At(x/testScale, y/testScale))
		}
	}

	return full
}

// runFrame drives the processor passes over one frame the same way the hand
// tracker does
func runFrame(p *PointProcessor, depth *matrix.Float) {

	fg := matrix.NewByte(depth.Width, depth.Height)

	for i, d := range depth.Data {
		if d > 0 {
			fg.Data[i] = 255
		}
	}

	update := &segmentation.TrackingMatrices{
		DepthFullSize:      upsample(depth),
		Depth:              depth,
		Foreground:         fg,
		ForegroundSearched: matrix.NewByte(depth.Width, depth.Height),
		LayerSegmentation:  matrix.NewByte(depth.Width, depth.Height),
		LayerScore:         matrix.NewFloat(depth.Width, depth.Height),
		LayerEdgeDistance:  matrix.NewFloat(depth.Width, depth.Height),
		DebugSegmentation:  matrix.NewByte(depth.Width, depth.Height),
	}

	p.InitializeCommonCalculations(update)
	p.UpdateTrackedPoints(update)
	p.RemoveDuplicatePoints()

	create := *update
	create.ForegroundSearched = matrix.NewByte(depth.Width, depth.Height)
	create.UpdateSearched = update.ForegroundSearched

	var cursor segmentation.Cursor

	for {
		seed, ok := segmentation.FindNextForegroundPixel(create.Foreground,
			create.ForegroundSearched, &cursor)

		if !ok {
			break
		}

		p.UpdateTrackedPointOrCreateNewPointFromSeedPosition(&create, seed)
	}

	p.RemoveOldOrDeadPoints()

	refine := *update
	refine.Depth = p.DepthWindow()
	p.UpdateFullResolutionPoints(&refine)
}

func trackingIDs(p *PointProcessor) []int32 {
	var ids []int32
	for _, pt := range p.TrackedPoints() {
		ids = append(ids, pt.TrackingID)
	}
	return ids
}

func TestNewPointProcessorValidates(t *testing.T) {

	sensor := mapping.NewPinhole(sensorWidth, sensorHeight, 1, 0.8)

	bad := DefaultParams()
	bad.MaxArea = bad.MinArea - 1

	tests := []struct {
		name   string
		mapper mapping.CoordinateMapper
		scale  int
		params Params
	}{
		{"nil mapper", nil, 4, DefaultParams()},
		{"zero scale", sensor, 0, DefaultParams()},
		{"inverted area", sensor, 4, bad},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPointProcessor(tc.mapper, tc.scale, tc.params)

			if !errors.Is(err, ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestPersistentBlobKeepsTrackingID(t *testing.T) {

	p := newTestProcessor(t, DefaultParams())

	for frame := 0; frame < 30; frame++ {
		runFrame(p, blobFrame(10, image.Pt(5+frame, 20)))

		points := p.TrackedPoints()

		if len(points) != 1 {
			t.Fatalf("frame %d: expected exactly one point, got ids %v", frame, trackingIDs(p))
		}

		pt := points[0]

		if pt.TrackingID != 1 || pt.Status != Tracking {
			t.Fatalf("frame %d: expected id 1 tracking, got id %d %s", frame,
				pt.TrackingID, pt.Status)
		}

		if pt.ActiveFrameCount != frame+1 {
			t.Errorf("frame %d: expected active count %d, got %d", frame,
				frame+1, pt.ActiveFrameCount)
		}

		if !pt.Position.In(image.Rect(5+frame, 20, 15+frame, 30)) {
			t.Errorf("frame %d: position %v outside the blob", frame, pt.Position)
		}
	}

	pt := p.TrackedPoints()[0]

	if pt.Type != ActivePoint {
		t.Errorf("expected moving point promoted to active, got %s (travel %f)",
			pt.Type, pt.TotalTravel)
	}

	// one processing pixel is roughly 11mm at 800mm
	if pt.FullSizeWorldDeltaPosition.X < 9.5 || pt.FullSizeWorldDeltaPosition.X > 12.5 {
		t.Errorf("expected filtered velocity near 11mm/frame, got %v", pt.FullSizeWorldDeltaPosition)
	}

	if math.Abs(pt.FullSizeWorldDeltaPosition.Y) > 1 || math.Abs(pt.FullSizeWorldDeltaPosition.Z) > 1 {
		t.Errorf("expected no vertical or depth velocity, got %v", pt.FullSizeWorldDeltaPosition)
	}
}

func TestStationaryCandidateIsNotPromoted(t *testing.T) {

	p := newTestProcessor(t, DefaultParams())

	for frame := 0; frame < 20; frame++ {
		runFrame(p, blobFrame(10, image.Pt(30, 20)))
	}

	pt := p.TrackedPoints()[0]

	if pt.Type != CandidatePoint {
		t.Errorf("expected stationary blob to stay a candidate, got %s", pt.Type)
	}

	if pt.FullSizeWorldDeltaPosition.Norm() > 0.5 {
		t.Errorf("expected no velocity, got %v", pt.FullSizeWorldDeltaPosition)
	}
}

func TestLostPointIsRemovedAfterGrace(t *testing.T) {

	params := DefaultParams()
	params.MaxCandidateLostFrames = 2
	p := newTestProcessor(t, params)

	runFrame(p, blobFrame(10, image.Pt(20, 20)))

	empty := blobFrame(10)

	for lost := 1; lost <= 2; lost++ {
		runFrame(p, empty)

		points := p.TrackedPoints()

		if len(points) != 1 || points[0].Status != Lost || points[0].LostFrameCount != lost {
			t.Fatalf("expected a single point lost for %d frames", lost)
		}

		if points[0].FullSizeWorldDeltaPosition != (r3.Vector{}) {
			t.Errorf("expected lost point to report no movement")
		}
	}

	runFrame(p, empty)

	if len(p.TrackedPoints()) != 0 {
		t.Fatalf("expected point removed after grace period, got ids %v", trackingIDs(p))
	}

	// a returning hand never reuses the removed id
	runFrame(p, blobFrame(10, image.Pt(20, 20)))

	if ids := trackingIDs(p); len(ids) != 1 || ids[0] != 2 {
		t.Errorf("expected new id 2, got %v", ids)
	}
}

func TestLostPointIsRecoveredByCreatePass(t *testing.T) {

	p := newTestProcessor(t, DefaultParams())

	runFrame(p, blobFrame(10, image.Pt(20, 20)))
	runFrame(p, blobFrame(10))

	if pt := p.TrackedPoints()[0]; pt.Status != Lost {
		t.Fatalf("expected point lost, got %s", pt.Status)
	}

	// reappears beyond the seed search radius but within recovery distance
	runFrame(p, blobFrame(10, image.Pt(30, 20)))

	points := p.TrackedPoints()

	if len(points) != 1 {
		t.Fatalf("expected one point, got ids %v", trackingIDs(p))
	}

	if points[0].TrackingID != 1 || points[0].Status != Tracking {
		t.Errorf("expected id 1 recovered, got id %d %s", points[0].TrackingID, points[0].Status)
	}

	if !points[0].Position.In(image.Rect(30, 20, 40, 30)) {
		t.Errorf("expected recovered position on the new blob, got %v", points[0].Position)
	}
}

func TestTwoBlobsGetDistinctIDs(t *testing.T) {

	p := newTestProcessor(t, DefaultParams())

	for frame := 0; frame < 3; frame++ {
		runFrame(p, blobFrame(10, image.Pt(10, 20), image.Pt(50, 20)))
	}

	if ids := trackingIDs(p); len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("expected ids [1 2], got %v", ids)
	}

	for _, pt := range p.TrackedPoints() {
		if pt.Status != Tracking || pt.ActiveFrameCount != 3 {
			t.Errorf("expected id %d tracked for 3 frames, got %s %d", pt.TrackingID,
				pt.Status, pt.ActiveFrameCount)
		}
	}
}

func TestRemoveDuplicatePoints(t *testing.T) {

	far := r3.Vector{X: 500}

	tests := []struct {
		name     string
		a, b     TrackedPoint
		survivor []int32
	}{
		{
			name:     "active beats candidate",
			a:        TrackedPoint{TrackingID: 1, Type: CandidatePoint, region: []int{1, 2}},
			b:        TrackedPoint{TrackingID: 2, Type: ActivePoint, region: []int{2, 3}, WorldPosition: far},
			survivor: []int32{2},
		},
		{
			name:     "lower id wins between candidates",
			a:        TrackedPoint{TrackingID: 3, Type: CandidatePoint, region: []int{7}},
			b:        TrackedPoint{TrackingID: 5, Type: CandidatePoint, region: []int{7}, WorldPosition: far},
			survivor: []int32{3},
		},
		{
			name:     "lower id wins between active points",
			a:        TrackedPoint{TrackingID: 9, Type: ActivePoint, region: []int{4}},
			b:        TrackedPoint{TrackingID: 4, Type: ActivePoint, region: []int{4}, WorldPosition: far},
			survivor: []int32{4},
		},
		{
			name:     "close world positions merge",
			a:        TrackedPoint{TrackingID: 1, Type: ActivePoint, region: []int{1}},
			b:        TrackedPoint{TrackingID: 2, Type: ActivePoint, region: []int{9}, WorldPosition: r3.Vector{X: 10}},
			survivor: []int32{1},
		},
		{
			name:     "separate hands survive",
			a:        TrackedPoint{TrackingID: 1, Type: ActivePoint, region: []int{1}},
			b:        TrackedPoint{TrackingID: 2, Type: CandidatePoint, region: []int{9}, WorldPosition: far},
			survivor: []int32{1, 2},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			p := newTestProcessor(t, DefaultParams())

			a, b := tc.a, tc.b

			for _, pt := range []*TrackedPoint{&a, &b} {
				pt.Status = Tracking
				pt.updated = true
			}

			p.points = []*TrackedPoint{&a, &b}

			p.RemoveDuplicatePoints()
			p.RemoveOldOrDeadPoints()

			ids := trackingIDs(p)

			if len(ids) != len(tc.survivor) {
				t.Fatalf("expected survivors %v, got %v", tc.survivor, ids)
			}

			for i := range ids {
				if ids[i] != tc.survivor[i] {
					t.Errorf("expected survivors %v, got %v", tc.survivor, ids)
				}
			}
		})
	}
}

func TestResetKeepsIDsIncreasing(t *testing.T) {

	p := newTestProcessor(t, DefaultParams())

	runFrame(p, blobFrame(10, image.Pt(20, 20)))
	p.Reset()

	if len(p.TrackedPoints()) != 0 {
		t.Fatalf("expected no points after reset")
	}

	runFrame(p, blobFrame(10, image.Pt(20, 20)))

	if ids := trackingIDs(p); len(ids) != 1 || ids[0] != 2 {
		t.Errorf("expected id 2 after reset, got %v", ids)
	}
}

func TestUpdateFullResolutionPoints(t *testing.T) {

	p := newTestProcessor(t, DefaultParams())

	runFrame(p, blobFrame(10, image.Pt(20, 20)))

	pt := p.TrackedPoints()[0]

	want := pt.Position.Mul(testScale).Add(image.Pt(testScale/2, testScale/2))

	if pt.FullSizePosition != want {
		t.Errorf("expected refined pixel %v, got %v", want, pt.FullSizePosition)
	}

	if pt.FullSizeWorldPosition.Z != 800 {
		t.Errorf("expected refined depth 800, got %v", pt.FullSizeWorldPosition)
	}

	if pt.FullSizeWorldDeltaPosition != (r3.Vector{}) {
		t.Errorf("expected no velocity on the first refinement, got %v", pt.FullSizeWorldDeltaPosition)
	}

	window := p.DepthWindow()

	if window.AtPoint(pt.Position) != 800 {
		t.Errorf("expected window depth 800 at the point, got %f", window.AtPoint(pt.Position))
	}

	if window.At(0, 0) != 0 {
		t.Errorf("expected window empty away from points")
	}
}

func TestEmptyFrameHasNoPoints(t *testing.T) {

	p := newTestProcessor(t, DefaultParams())

	runFrame(p, blobFrame(10))

	if len(p.TrackedPoints()) != 0 {
		t.Errorf("expected no points on an empty frame")
	}
}

func TestMaxPointsCapsCreation(t *testing.T) {

	params := DefaultParams()
	params.MaxPoints = 1
	p := newTestProcessor(t, params)

	runFrame(p, blobFrame(10, image.Pt(10, 20), image.Pt(50, 20)))

	if ids := trackingIDs(p); len(ids) != 1 || ids[0] != 1 {
		t.Errorf("expected only id 1, got %v", ids)
	}
}
