package segmentation

import (
	"image"

	"github.com/golang/geo/r3"
	"github.com/swdee/go-handtrack/mapping"
	"github.com/swdee/go-handtrack/matrix"
)

// Settings are the region growing and scoring parameters
type Settings struct {
	// MaxDepthStep is the largest depth change in mm allowed between two
	// neighbouring pixels of the same blob
	MaxDepthStep float32
	// BandwidthDepth is the largest depth difference in mm from the seed pixel
	// allowed inside a segmented hand region
	BandwidthDepth float32
	// MaxSegmentationDist is the world radius in mm around the seed that a
	// segmented hand region may cover
	MaxSegmentationDist float32
	// TargetEdgeDistance caps the edge distance in mm rewarded by the layer
	// score, beyond it pixels are considered equally deep inside the region
	TargetEdgeDistance float32
	// EdgeScoreFactor weights the edge distance in the layer score
	EdgeScoreFactor float32
	// HeightScoreFactor weights world height (Y) in the basic score
	HeightScoreFactor float32
	// DepthScoreFactor weights nearness to the sensor in the basic score
	DepthScoreFactor float32
}

// DefaultSettings returns settings tuned for a hand held in front of the body
// between 0.5m and 4m from the sensor
func DefaultSettings() Settings {
	return Settings{
		MaxDepthStep:        100,
		BandwidthDepth:      150,
		MaxSegmentationDist: 150,
		TargetEdgeDistance:  30,
		EdgeScoreFactor:     1,
		HeightScoreFactor:   0.5,
		DepthScoreFactor:    1,
	}
}

// Region is the result of segmenting a hand sized area around a seed pixel
type Region struct {
	// Seed is the pixel the region was grown from
	Seed image.Point
	// Target is the best scoring pixel in the region
	Target image.Point
	// Pixels are the row-major indices of the pixels in the region, in the
	// order they were reached
	Pixels []int
	// Area is the total world area of the region in mm²
	Area float32
	// Score is the layer score at Target
	Score float32
	// EdgeDistance is the distance in mm from Target to the region edge
	EdgeDistance float32
	// Depth is the depth in mm at Target
	Depth float32
	// World is the world position of Target
	World r3.Vector
}

// Empty reports whether no pixels were segmented
func (r *Region) Empty() bool {
	return len(r.Pixels) == 0
}

// MarkSearched marks every pixel of the region in the given mask
func (r *Region) MarkSearched(mask *matrix.Byte) {
	for _, idx := range r.Pixels {
		mask.Data[idx] = 1
	}
}

// MarkDebug labels the region in the debug segmentation layer when debug
// layers are enabled
func (r *Region) MarkDebug(m *TrackingMatrices, label uint8) {

	if !m.DebugLayersEnabled || m.DebugSegmentation == nil {
		return
	}

	for _, idx := range r.Pixels {
		m.DebugSegmentation.Data[idx] = label
	}
}

// Intersects reports whether any of the pixels is set in mask
func Intersects(pixels []int, mask *matrix.Byte) bool {
	for _, idx := range pixels {
		if mask.Data[idx] != 0 {
			return true
		}
	}
	return false
}

// neighbours4 are the offsets of the 4-connected neighbourhood
var neighbours4 = [4]image.Point{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}

// CalculateCommonLayers fills the Area, AreaSqrt and BasicScore layers.  They
// only depend on the depth map so are computed once per frame and shared by
// all passes.
func CalculateCommonLayers(m *TrackingMatrices, mapper mapping.CoordinateMapper, s Settings) {

	width := m.Width()
	height := m.Height()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {

			idx := y*width + x
			depth := m.Depth.Data[idx]

			if depth == 0 {
				m.Area.Data[idx] = 0
				m.AreaSqrt.Data[idx] = 0
				m.BasicScore.Data[idx] = 0
				continue
			}

			fx, fy := float32(x), float32(y)

			origin := mapper.DepthToWorld(fx, fy, depth)
			right := mapper.DepthToWorld(fx+1, fy, depth)
			down := mapper.DepthToWorld(fx, fy+1, depth)

			w := abs32(float32(right.X - origin.X))
			h := abs32(float32(origin.Y - down.Y))
			area := w * h

			m.Area.Data[idx] = area
			m.AreaSqrt.Data[idx] = sqrt32(area)

			if m.Foreground.Data[idx] == 0 {
				m.BasicScore.Data[idx] = 0
				continue
			}

			m.BasicScore.Data[idx] = s.HeightScoreFactor*float32(origin.Y) -
				s.DepthScoreFactor*depth
		}
	}
}

// validSeed reports whether pt can start a region
func validSeed(m *TrackingMatrices, pt image.Point) bool {
	return m.Foreground.Contains(pt) &&
		m.Foreground.AtPoint(pt) != 0 &&
		m.Depth.AtPoint(pt) > 0
}

// NearestForegroundPixel returns the foreground pixel closest to center
// within a square of the given pixel radius.  Ties resolve to the pixel
// reached first in row-major order.
func NearestForegroundPixel(m *TrackingMatrices, center image.Point, radius int) (image.Point, bool) {

	if validSeed(m, center) {
		return center, true
	}

	best := image.Point{}
	bestDist := -1

	for y := center.Y - radius; y <= center.Y+radius; y++ {
		for x := center.X - radius; x <= center.X+radius; x++ {

			pt := image.Pt(x, y)

			if !validSeed(m, pt) {
				continue
			}

			dx := x - center.X
			dy := y - center.Y
			dist := dx*dx + dy*dy

			if bestDist < 0 || dist < bestDist {
				best = pt
				bestDist = dist
			}
		}
	}

	return best, bestDist >= 0
}

// FloodBlob marks the whole connected blob containing seed in the pass's
// searched mask and returns its pixel indices.  Neighbouring foreground pixels
// belong to the same blob when their depth differs by no more than
// MaxDepthStep.  Pixels already searched are not revisited.
func FloodBlob(m *TrackingMatrices, s Settings, seed image.Point) []int {

	if !validSeed(m, seed) {
		return nil
	}

	width := m.Width()
	searched := m.ForegroundSearched

	seedIdx := seed.Y*width + seed.X

	if searched.Data[seedIdx] != 0 {
		return nil
	}

	searched.Data[seedIdx] = 1
	queue := []int{seedIdx}

	for head := 0; head < len(queue); head++ {

		idx := queue[head]
		pt := image.Pt(idx%width, idx/width)
		depth := m.Depth.Data[idx]

		for _, off := range neighbours4 {

			n := pt.Add(off)

			if !m.Foreground.Contains(n) {
				continue
			}

			nIdx := n.Y*width + n.X

			if searched.Data[nIdx] != 0 || m.Foreground.Data[nIdx] == 0 {
				continue
			}

			nDepth := m.Depth.Data[nIdx]

			if nDepth == 0 || abs32(nDepth-depth) > s.MaxDepthStep {
				continue
			}

			searched.Data[nIdx] = 1
			queue = append(queue, nIdx)
		}
	}

	return queue
}

// BestBasicScorePixel returns the pixel with the highest basic score
func BestBasicScorePixel(m *TrackingMatrices, pixels []int) (image.Point, bool) {

	if len(pixels) == 0 {
		return image.Point{}, false
	}

	width := m.Width()
	bestIdx := pixels[0]

	for _, idx := range pixels[1:] {
		if m.BasicScore.Data[idx] > m.BasicScore.Data[bestIdx] {
			bestIdx = idx
		}
	}

	return image.Pt(bestIdx%width, bestIdx/width), true
}

// SegmentRegion grows a hand sized region from seed over connected foreground
// of similar depth, bounded by BandwidthDepth and MaxSegmentationDist, then
// computes the edge distance and layer score of its pixels and selects the
// best scoring pixel as the region target.  The searched mask is neither read
// nor written, callers decide which pixels the region claims.
func SegmentRegion(m *TrackingMatrices, mapper mapping.CoordinateMapper, s Settings,
	seed image.Point) Region {

	region := Region{Seed: seed}

	if !validSeed(m, seed) {
		return region
	}

	width := m.Width()
	seedIdx := seed.Y*width + seed.X
	seedDepth := m.Depth.Data[seedIdx]
	seedWorld := mapper.DepthToWorld(float32(seed.X), float32(seed.Y), seedDepth)
	maxDist2 := float64(s.MaxSegmentationDist) * float64(s.MaxSegmentationDist)

	inRegion := make([]bool, len(m.Foreground.Data))
	inRegion[seedIdx] = true
	queue := []int{seedIdx}

	for head := 0; head < len(queue); head++ {

		idx := queue[head]
		pt := image.Pt(idx%width, idx/width)
		depth := m.Depth.Data[idx]

		for _, off := range neighbours4 {

			n := pt.Add(off)

			if !m.Foreground.Contains(n) {
				continue
			}

			nIdx := n.Y*width + n.X

			if inRegion[nIdx] || m.Foreground.Data[nIdx] == 0 {
				continue
			}

			nDepth := m.Depth.Data[nIdx]

			if nDepth == 0 ||
				abs32(nDepth-depth) > s.MaxDepthStep ||
				abs32(nDepth-seedDepth) > s.BandwidthDepth {
				continue
			}

			world := mapper.DepthToWorld(float32(n.X), float32(n.Y), nDepth)

			if world.Sub(seedWorld).Norm2() > maxDist2 {
				continue
			}

			inRegion[nIdx] = true
			queue = append(queue, nIdx)
		}
	}

	region.Pixels = queue

	for _, idx := range queue {
		region.Area += m.Area.Data[idx]
		m.LayerSegmentation.Data[idx] = 255
	}

	calculateEdgeDistance(m, queue, inRegion)

	bestIdx := -1

	for _, idx := range queue {

		edge := m.LayerEdgeDistance.Data[idx]

		if edge > s.TargetEdgeDistance {
			edge = s.TargetEdgeDistance
		}

		score := m.BasicScore.Data[idx] + s.EdgeScoreFactor*edge
		m.LayerScore.Data[idx] = score

		if bestIdx < 0 || score > m.LayerScore.Data[bestIdx] {
			bestIdx = idx
		}
	}

	region.Target = image.Pt(bestIdx%width, bestIdx/width)
	region.Score = m.LayerScore.Data[bestIdx]
	region.EdgeDistance = m.LayerEdgeDistance.Data[bestIdx]
	region.Depth = m.Depth.Data[bestIdx]
	region.World = mapper.DepthToWorld(float32(region.Target.X),
		float32(region.Target.Y), region.Depth)

	return region
}

// calculateEdgeDistance writes the world distance in mm from each region
// pixel to the region boundary into LayerEdgeDistance.  Boundary pixels get
// their own edge length, interior pixels accumulate the edge lengths along the
// shortest 4-connected path from the boundary.
func calculateEdgeDistance(m *TrackingMatrices, pixels []int, inRegion []bool) {

	width := m.Width()
	edge := m.LayerEdgeDistance

	visited := make([]bool, len(inRegion))
	frontier := make([]int, 0, len(pixels))

	for _, idx := range pixels {

		pt := image.Pt(idx%width, idx/width)

		for _, off := range neighbours4 {

			n := pt.Add(off)

			if !m.Foreground.Contains(n) || !inRegion[n.Y*width+n.X] {
				edge.Data[idx] = m.AreaSqrt.Data[idx]
				visited[idx] = true
				frontier = append(frontier, idx)
				break
			}
		}
	}

	for head := 0; head < len(frontier); head++ {

		idx := frontier[head]
		pt := image.Pt(idx%width, idx/width)

		for _, off := range neighbours4 {

			n := pt.Add(off)
			nIdx := n.Y*width + n.X

			if !m.Foreground.Contains(n) || !inRegion[nIdx] || visited[nIdx] {
				continue
			}

			edge.Data[nIdx] = edge.Data[idx] + m.AreaSqrt.Data[nIdx]
			visited[nIdx] = true
			frontier = append(frontier, nIdx)
		}
	}
}

// PointArea returns the world area in mm² of the region segmented from seed,
// or 0 when seed is not on the foreground
func PointArea(m *TrackingMatrices, mapper mapping.CoordinateMapper, s Settings,
	seed image.Point) float32 {

	region := SegmentRegion(m, mapper, s, seed)
	return region.Area
}
