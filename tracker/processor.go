package tracker

import (
	"fmt"
	"image"

	"github.com/golang/geo/r3"
	"github.com/swdee/go-handtrack/logging"
	"github.com/swdee/go-handtrack/mapping"
	"github.com/swdee/go-handtrack/matrix"
	"github.com/swdee/go-handtrack/segmentation"
)

// PointProcessor holds the persistent set of tracked points and runs the per
// frame passes over them.  The passes must be called in order each frame:
//
//	InitializeCommonCalculations
//	UpdateTrackedPoints
//	RemoveDuplicatePoints
//	UpdateTrackedPointOrCreateNewPointFromSeedPosition (per seed)
//	RemoveOldOrDeadPoints
//	UpdateFullResolutionPoints
//
// A PointProcessor is not safe for concurrent use.
type PointProcessor struct {
	params Params
	// mapper converts processing resolution pixels to world
	mapper *mapping.ScalingMapper
	// fullMapper converts sensor resolution pixels to world
	fullMapper mapping.CoordinateMapper
	// scale is the sensor to processing resolution factor
	scale int
	kalman *KalmanFilter
	ids    *IDGenerator
	// points in creation order
	points []*TrackedPoint
	// common layers owned by the processor
	area       *matrix.Float
	areaSqrt   *matrix.Float
	basicScore *matrix.Float
	// depthWindow holds the refined window around each tracking point
	depthWindow *matrix.Float
	// logAttrs are attached to every log record
	logAttrs []any
}

// NewPointProcessor returns a processor for a sensor described by fullMapper
// that is processed at 1/scale of its resolution
func NewPointProcessor(fullMapper mapping.CoordinateMapper, scale int,
	params Params) (*PointProcessor, error) {

	if fullMapper == nil {
		return nil, fmt.Errorf("%w: nil coordinate mapper", ErrInvalidParams)
	}

	if scale < 1 {
		return nil, fmt.Errorf("%w: scale %d must be at least 1", ErrInvalidParams, scale)
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &PointProcessor{
		params:     params,
		mapper:     mapping.NewScalingMapper(fullMapper, float32(scale)),
		fullMapper: fullMapper,
		scale:      scale,
		kalman: NewKalmanFilter(params.KalmanPositionNoise, params.KalmanVelocityNoise,
			params.KalmanMeasurementNoise),
		ids: NewIDGenerator(),
	}, nil
}

// SetLogAttrs sets key/value pairs attached to every record the processor
// logs
func (p *PointProcessor) SetLogAttrs(args ...any) {
	p.logAttrs = args
}

// Params returns the processor's tracking parameters
func (p *PointProcessor) Params() Params {
	return p.params
}

// Mapper returns the processing resolution coordinate mapper
func (p *PointProcessor) Mapper() *mapping.ScalingMapper {
	return p.mapper
}

// TrackedPoints returns the current points in creation order.  The slice and
// points are owned by the processor and must not be modified.
func (p *PointProcessor) TrackedPoints() []*TrackedPoint {
	return p.points
}

// DepthWindow returns the refined window buffer written by
// UpdateFullResolutionPoints.  It is nil before the first frame.
func (p *PointProcessor) DepthWindow() *matrix.Float {
	return p.depthWindow
}

// Reset discards every tracked point.  Tracking IDs keep increasing so IDs
// issued before the reset are never handed out again.
func (p *PointProcessor) Reset() {
	p.points = nil
	p.info("point processor reset", "lastTrackingId", p.ids.Last())
}

// ensureLayers (re)allocates the processor owned buffers for the given size
func (p *PointProcessor) ensureLayers(width, height int) {

	if p.area != nil && p.area.Width == width && p.area.Height == height {
		return
	}

	p.area = matrix.NewFloat(width, height)
	p.areaSqrt = matrix.NewFloat(width, height)
	p.basicScore = matrix.NewFloat(width, height)
	p.depthWindow = matrix.NewFloat(width, height)
}

// InitializeCommonCalculations attaches the processor's area, area sqrt and
// basic score layers to m and fills them from m's depth and foreground
func (p *PointProcessor) InitializeCommonCalculations(m *segmentation.TrackingMatrices) {

	p.ensureLayers(m.Width(), m.Height())

	m.Area = p.area
	m.AreaSqrt = p.areaSqrt
	m.BasicScore = p.basicScore

	segmentation.CalculateCommonLayers(m, p.mapper, p.params.Segmentation)

	for _, pt := range p.points {
		pt.updated = false
	}
}

// UpdateTrackedPoints matches every Tracking or Lost point against the
// current frame.  Matched regions are marked in m's searched mask.
func (p *PointProcessor) UpdateTrackedPoints(m *segmentation.TrackingMatrices) {

	for _, pt := range p.points {

		if pt.Status != Tracking && pt.Status != Lost {
			continue
		}

		region, ok := p.matchPoint(m, pt)

		if !ok {
			p.markLost(pt)
			continue
		}

		p.applyRegion(pt, region)

		region.MarkSearched(m.ForegroundSearched)
		region.MarkDebug(m, debugLabel(pt.TrackingID))
	}
}

// matchPoint segments the region around the point's last position
func (p *PointProcessor) matchPoint(m *segmentation.TrackingMatrices,
	pt *TrackedPoint) (segmentation.Region, bool) {

	seed, ok := segmentation.NearestForegroundPixel(m, pt.Position, p.params.SeedSearchRadius)

	if !ok {
		return segmentation.Region{}, false
	}

	region := segmentation.SegmentRegion(m, p.mapper, p.params.Segmentation, seed)

	if !p.validRegion(region) {
		return region, false
	}

	if region.World.Sub(pt.WorldPosition).Norm() > float64(p.params.MaxJumpDist) {
		return region, false
	}

	return region, true
}

// validRegion reports whether a segmented region looks like a hand
func (p *PointProcessor) validRegion(region segmentation.Region) bool {
	return !region.Empty() &&
		region.Area >= p.params.MinArea &&
		region.Area <= p.params.MaxArea &&
		region.EdgeDistance >= p.params.MinEdgeDistance
}

// applyRegion records a successful match on the point
func (p *PointProcessor) applyRegion(pt *TrackedPoint, region segmentation.Region) {

	if pt.ActiveFrameCount > 0 {
		pt.WorldDeltaPosition = region.World.Sub(pt.WorldPosition)
		pt.TotalTravel += float32(pt.WorldDeltaPosition.Norm())
	} else {
		pt.WorldDeltaPosition = r3.Vector{}
	}

	pt.Position = region.Target
	pt.WorldPosition = region.World
	pt.Depth = region.Depth
	pt.ReferenceArea = region.Area
	pt.Score = region.Score
	pt.EdgeDistance = region.EdgeDistance
	pt.Status = Tracking
	pt.LostFrameCount = 0
	pt.ActiveFrameCount++
	pt.region = region.Pixels
	pt.updated = true

	if pt.Type == CandidatePoint &&
		pt.ActiveFrameCount >= p.params.PromotionFrames &&
		pt.TotalTravel >= p.params.PromotionTravel {

		pt.Type = ActivePoint
		p.info("hand point promoted", "trackingId", pt.TrackingID,
			"frames", pt.ActiveFrameCount, "travel", pt.TotalTravel)
	}
}

// markLost records a failed match on the point
func (p *PointProcessor) markLost(pt *TrackedPoint) {

	if pt.Status == Tracking {
		p.info("hand point lost", "trackingId", pt.TrackingID, "type", pt.Type)
	}

	pt.Status = Lost
	pt.LostFrameCount++
	pt.WorldDeltaPosition = r3.Vector{}
	pt.region = nil
	pt.updated = false
	pt.filtered = false
}

// RemoveDuplicatePoints collapses points matched this frame that follow the
// same hand.  ActivePoints win over CandidatePoints and otherwise the lower
// tracking ID wins.  The loser is marked Dead and removed by
// RemoveOldOrDeadPoints.
func (p *PointProcessor) RemoveDuplicatePoints() {

	for i, a := range p.points {

		if !a.updated || a.Status != Tracking {
			continue
		}

		var claimed map[int]struct{}

		for _, b := range p.points[i+1:] {

			if !b.updated || b.Status != Tracking {
				continue
			}

			if claimed == nil {
				claimed = make(map[int]struct{}, len(a.region))

				for _, idx := range a.region {
					claimed[idx] = struct{}{}
				}
			}

			if !p.duplicates(a, b, claimed) {
				continue
			}

			winner, loser := a, b

			if duplicateLoser(a, b) == a {
				winner, loser = b, a
			}

			loser.Status = Dead
			loser.updated = false

			p.info("hand point merged", "trackingId", loser.TrackingID,
				"into", winner.TrackingID)

			if loser == a {
				break
			}
		}
	}
}

// duplicates reports whether two points follow the same hand
func (p *PointProcessor) duplicates(a, b *TrackedPoint, claimed map[int]struct{}) bool {

	if a.WorldPosition.Sub(b.WorldPosition).Norm() < float64(p.params.MergeDist) {
		return true
	}

	for _, idx := range b.region {
		if _, ok := claimed[idx]; ok {
			return true
		}
	}

	return false
}

// duplicateLoser returns which of two duplicate points is discarded
func duplicateLoser(a, b *TrackedPoint) *TrackedPoint {

	if a.Type != b.Type {
		if a.Type == ActivePoint {
			return b
		}
		return a
	}

	if a.TrackingID < b.TrackingID {
		return b
	}

	return a
}

// UpdateTrackedPointOrCreateNewPointFromSeedPosition claims the blob
// containing seed for the create pass.  Blobs touching a region matched in the
// update pass are already tracked and ignored.  Otherwise the hand region is
// segmented from the blob's best scoring pixel and, when it looks like a hand,
// either recovers the nearest lost point or creates a new CandidatePoint.  The
// recovered or created point is returned, nil otherwise.
func (p *PointProcessor) UpdateTrackedPointOrCreateNewPointFromSeedPosition(
	m *segmentation.TrackingMatrices, seed image.Point) *TrackedPoint {

	blob := segmentation.FloodBlob(m, p.params.Segmentation, seed)

	if len(blob) == 0 {
		return nil
	}

	if m.UpdateSearched != nil && segmentation.Intersects(blob, m.UpdateSearched) {
		return nil
	}

	target, ok := segmentation.BestBasicScorePixel(m, blob)

	if !ok {
		return nil
	}

	region := segmentation.SegmentRegion(m, p.mapper, p.params.Segmentation, target)

	if !p.validRegion(region) {
		return nil
	}

	if lost := p.nearestLostPoint(region.World); lost != nil {
		p.applyRegion(lost, region)
		region.MarkDebug(m, debugLabel(lost.TrackingID))

		p.info("hand point recovered", "trackingId", lost.TrackingID,
			"x", region.Target.X, "y", region.Target.Y)

		return lost
	}

	if len(p.points) >= p.params.MaxPoints {
		return nil
	}

	pt := &TrackedPoint{
		TrackingID: p.ids.GetNext(),
		Type:       CandidatePoint,
		Status:     NotTracking,
	}

	p.applyRegion(pt, region)
	region.MarkDebug(m, debugLabel(pt.TrackingID))

	p.points = append(p.points, pt)

	p.info("hand point created", "trackingId", pt.TrackingID,
		"x", region.Target.X, "y", region.Target.Y, "depth", region.Depth,
		"area", region.Area)

	return pt
}

// nearestLostPoint returns the lost point closest to world within
// RecoverDist
func (p *PointProcessor) nearestLostPoint(world r3.Vector) *TrackedPoint {

	var best *TrackedPoint
	bestDist := float64(p.params.RecoverDist)

	for _, pt := range p.points {

		if pt.Status != Lost {
			continue
		}

		if dist := pt.WorldPosition.Sub(world).Norm(); dist <= bestDist {
			best = pt
			bestDist = dist
		}
	}

	return best
}

// RemoveOldOrDeadPoints retires points lost beyond their grace period and
// removes every Dead point
func (p *PointProcessor) RemoveOldOrDeadPoints() {

	kept := p.points[:0]

	for _, pt := range p.points {

		if pt.Status == Lost && pt.LostFrameCount > p.params.lostGrace(pt.Type) {
			pt.Status = Dead
		}

		if pt.Status == Dead {
			p.info("hand point removed", "trackingId", pt.TrackingID,
				"type", pt.Type, "lostFrames", pt.LostFrameCount)
			continue
		}

		kept = append(kept, pt)
	}

	// release removed points held past the new length
	for i := len(kept); i < len(p.points); i++ {
		p.points[i] = nil
	}

	p.points = kept
}

// UpdateFullResolutionPoints refines every Tracking point at sensor
// resolution.  m.Depth is the refined window buffer and is overwritten, the
// window around each point receives the sensor depth closest to the point's
// processing depth.  Lost points keep their last refined position and report
// no movement.
func (p *PointProcessor) UpdateFullResolutionPoints(m *segmentation.TrackingMatrices) {

	window := m.Depth
	window.Zero()

	for _, pt := range p.points {

		switch pt.Status {
		case Tracking:
			p.refinePoint(m, pt)

		default:
			pt.FullSizeWorldDeltaPosition = r3.Vector{}
		}
	}
}

// refinePoint searches the sensor resolution pixels under the refinement
// window for the depth closest to the point's depth
func (p *PointProcessor) refinePoint(m *segmentation.TrackingMatrices, pt *TrackedPoint) {

	window := m.Depth
	full := m.DepthFullSize
	r := p.params.RefinementWindow

	// ties resolve to the pixel nearest the centre of the scaled position
	centre := pt.Position.Mul(p.scale).Add(image.Pt(p.scale/2, p.scale/2))

	best := centre
	bestDepth := pt.Depth
	bestDiff := float32(-1)
	bestDist := 0

	for py := pt.Position.Y - r; py <= pt.Position.Y+r; py++ {
		for px := pt.Position.X - r; px <= pt.Position.X+r; px++ {

			if !window.Contains(image.Pt(px, py)) {
				continue
			}

			cellDepth := float32(0)
			cellDiff := float32(-1)

			for fy := py * p.scale; fy < (py+1)*p.scale; fy++ {
				for fx := px * p.scale; fx < (px+1)*p.scale; fx++ {

					if full == nil || !full.Contains(image.Pt(fx, fy)) {
						continue
					}

					d := full.At(fx, fy)

					if d == 0 {
						continue
					}

					diff := d - pt.Depth

					if diff < 0 {
						diff = -diff
					}

					if cellDiff < 0 || diff < cellDiff {
						cellDiff = diff
						cellDepth = d
					}

					dist := sqDist(image.Pt(fx, fy), centre)

					if bestDiff < 0 || diff < bestDiff || (diff == bestDiff && dist < bestDist) {
						bestDiff = diff
						bestDist = dist
						bestDepth = d
						best = image.Pt(fx, fy)
					}
				}
			}

			if cellDiff >= 0 {
				window.Set(px, py, cellDepth)
			}
		}
	}

	world := p.fullMapper.DepthToWorld(float32(best.X), float32(best.Y), bestDepth)

	pt.FullSizePosition = best
	pt.FullSizeWorldPosition = world
	pt.FullSizeWorldDeltaPosition = p.filterVelocity(pt, world)
}

// filterVelocity runs the point's Kalman filter on a refined world position
// and returns the smoothed movement per frame
func (p *PointProcessor) filterVelocity(pt *TrackedPoint, world r3.Vector) r3.Vector {

	measurement := Measurement{float32(world.X), float32(world.Y), float32(world.Z)}

	if !pt.filtered {
		if pt.mean == nil {
			pt.mean, pt.cov = NewState()
		}

		p.kalman.Initiate(pt.mean, pt.cov, measurement)
		pt.filtered = true

		return r3.Vector{}
	}

	p.kalman.Predict(pt.mean, pt.cov)

	if err := p.kalman.Update(pt.mean, pt.cov, measurement); err != nil {
		logging.Logger().Warn("velocity filter reset", append([]any{
			"trackingId", pt.TrackingID, "error", err}, p.logAttrs...)...)

		p.kalman.Initiate(pt.mean, pt.cov, measurement)

		return r3.Vector{}
	}

	return r3.Vector{
		X: float64(pt.mean[3]),
		Y: float64(pt.mean[4]),
		Z: float64(pt.mean[5]),
	}
}

// PointArea returns the world area in mm² of the hand region segmented from
// seed, used by the interactive probe
func (p *PointProcessor) PointArea(m *segmentation.TrackingMatrices, seed image.Point) float32 {
	return segmentation.PointArea(m, p.mapper, p.params.Segmentation, seed)
}

// info logs a point lifecycle event
func (p *PointProcessor) info(msg string, args ...any) {
	logging.Logger().Info(msg, append(args, p.logAttrs...)...)
}

// sqDist returns the squared pixel distance between a and b
func sqDist(a, b image.Point) int {
	d := a.Sub(b)
	return d.X*d.X + d.Y*d.Y
}

// debugLabel returns the non zero debug segmentation label of a tracking ID
func debugLabel(id int32) uint8 {
	return uint8(id%255) + 1
}
