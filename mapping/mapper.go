// Package mapping converts between depth image pixel coordinates and world
// coordinates in millimetres.
package mapping

import (
	"math"

	"github.com/golang/geo/r3"
)

// CoordinateMapper is the depth sensor's mapping service.  Pixel coordinates
// are in the sensor's native depth resolution and depth is in millimetres.
type CoordinateMapper interface {
	// DepthToWorld projects a pixel at the given depth into world space
	DepthToWorld(x, y, depth float32) r3.Vector
	// WorldToDepth projects a world position back onto the depth image,
	// returning the pixel coordinates and depth
	WorldToDepth(world r3.Vector) (x, y, depth float32)
}

// Pinhole is a CoordinateMapper for an ideal sensor described by its
// resolution and field of view.  World X grows to the right, Y grows upwards
// and Z is the distance from the sensor.
type Pinhole struct {
	// width and height are the sensor resolution in pixels
	width  float32
	height float32
	// xzFactor and yzFactor are the world extent per unit of depth
	xzFactor float32
	yzFactor float32
}

// NewPinhole returns a Pinhole mapper for a sensor of the given resolution and
// horizontal and vertical field of view in radians
func NewPinhole(width, height int, hFov, vFov float64) *Pinhole {
	return &Pinhole{
		width:    float32(width),
		height:   float32(height),
		xzFactor: float32(2 * math.Tan(hFov/2)),
		yzFactor: float32(2 * math.Tan(vFov/2)),
	}
}

// DepthToWorld projects the pixel (x,y) at depth into world space
func (p *Pinhole) DepthToWorld(x, y, depth float32) r3.Vector {

	normX := x/p.width - 0.5
	normY := 0.5 - y/p.height

	return r3.Vector{
		X: float64(normX * depth * p.xzFactor),
		Y: float64(normY * depth * p.yzFactor),
		Z: float64(depth),
	}
}

// WorldToDepth projects a world position onto the sensor image
func (p *Pinhole) WorldToDepth(world r3.Vector) (x, y, depth float32) {

	depth = float32(world.Z)

	if depth == 0 {
		return 0, 0, 0
	}

	x = (float32(world.X)/(depth*p.xzFactor) + 0.5) * p.width
	y = (0.5 - float32(world.Y)/(depth*p.yzFactor)) * p.height

	return x, y, depth
}

// ScalingMapper wraps the sensor CoordinateMapper for use on a downsampled
// depth map.  A pixel (x,y) in the downsampled grid maps to the same world
// position as pixel (x*scale, y*scale) at full resolution.
type ScalingMapper struct {
	mapper CoordinateMapper
	scale  float32
}

// NewScalingMapper returns a ScalingMapper.  Scale is the ratio of the full
// sensor resolution to the processing resolution, eg: 4 for 320x240 processed
// at 80x60.  A scale of 1 passes coordinates through unchanged.
func NewScalingMapper(mapper CoordinateMapper, scale float32) *ScalingMapper {
	return &ScalingMapper{
		mapper: mapper,
		scale:  scale,
	}
}

// Scale returns the scale factor applied to pixel coordinates
func (s *ScalingMapper) Scale() float32 {
	return s.scale
}

// DepthToWorld maps a processing resolution pixel at depth into world space
func (s *ScalingMapper) DepthToWorld(x, y, depth float32) r3.Vector {
	return s.mapper.DepthToWorld(x*s.scale, y*s.scale, depth)
}

// WorldToDepth maps a world position onto the processing resolution grid
func (s *ScalingMapper) WorldToDepth(world r3.Vector) (x, y, depth float32) {
	x, y, depth = s.mapper.WorldToDepth(world)
	return x / s.scale, y / s.scale, depth
}
