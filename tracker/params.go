package tracker

import (
	"errors"
	"fmt"

	"github.com/swdee/go-handtrack/segmentation"
)

// ErrInvalidParams is returned when tracking parameters are inconsistent
var ErrInvalidParams = errors.New("invalid tracking parameters")

// Params are the point tracking parameters.  Distances are in mm and areas in
// mm² unless stated otherwise.
type Params struct {
	// Segmentation are the region growing and scoring settings
	Segmentation segmentation.Settings
	// MinArea is the smallest region area accepted as a hand
	MinArea float32
	// MaxArea is the largest region area accepted as a hand
	MaxArea float32
	// MinEdgeDistance is the smallest distance from the target pixel to the
	// region edge accepted as a hand
	MinEdgeDistance float32
	// MaxJumpDist is the largest world movement between two frames accepted
	// when updating an existing point
	MaxJumpDist float32
	// SeedSearchRadius is the pixel radius searched for foreground when a
	// point's last position has left the foreground
	SeedSearchRadius int
	// MergeDist is the world distance below which two points are considered
	// to follow the same hand
	MergeDist float32
	// RecoverDist is the largest world distance between a newly found region
	// and a lost point for the lost point to be recovered
	RecoverDist float32
	// MaxLostFrames is the number of frames an ActivePoint may stay lost
	// before it is removed
	MaxLostFrames int
	// MaxCandidateLostFrames is the number of frames a CandidatePoint may stay
	// lost before it is removed
	MaxCandidateLostFrames int
	// PromotionFrames is the number of matched frames before a CandidatePoint
	// may become an ActivePoint
	PromotionFrames int
	// PromotionTravel is the world distance a CandidatePoint must have moved
	// before it may become an ActivePoint
	PromotionTravel float32
	// MaxPoints caps the number of points held at once, seeds found beyond
	// it do not create new points
	MaxPoints int
	// RefinementWindow is the radius in processing pixels searched at sensor
	// resolution when refining a point
	RefinementWindow int
	// KalmanPositionNoise is the process noise of the position state
	KalmanPositionNoise float32
	// KalmanVelocityNoise is the process noise of the velocity state
	KalmanVelocityNoise float32
	// KalmanMeasurementNoise is the noise of a refined world position
	KalmanMeasurementNoise float32
}

// DefaultParams returns parameters suited to hands between 0.5m and 4m from
// the sensor
func DefaultParams() Params {
	return Params{
		Segmentation:           segmentation.DefaultSettings(),
		MinArea:                4000,
		MaxArea:                40000,
		MinEdgeDistance:        10,
		MaxJumpDist:            150,
		SeedSearchRadius:       3,
		MergeDist:              50,
		RecoverDist:            200,
		MaxLostFrames:          30,
		MaxCandidateLostFrames: 10,
		PromotionFrames:        10,
		PromotionTravel:        100,
		MaxPoints:              32,
		RefinementWindow:       2,
		KalmanPositionNoise:    2,
		KalmanVelocityNoise:    1,
		KalmanMeasurementNoise: 5,
	}
}

// Validate checks the parameters are usable
func (p Params) Validate() error {

	switch {
	case p.MinArea <= 0:
		return fmt.Errorf("%w: MinArea must be positive", ErrInvalidParams)
	case p.MaxArea < p.MinArea:
		return fmt.Errorf("%w: MaxArea %.0f below MinArea %.0f", ErrInvalidParams,
			p.MaxArea, p.MinArea)
	case p.MinEdgeDistance < 0:
		return fmt.Errorf("%w: MinEdgeDistance must not be negative", ErrInvalidParams)
	case p.MaxJumpDist <= 0:
		return fmt.Errorf("%w: MaxJumpDist must be positive", ErrInvalidParams)
	case p.SeedSearchRadius < 0:
		return fmt.Errorf("%w: SeedSearchRadius must not be negative", ErrInvalidParams)
	case p.MaxLostFrames < 0 || p.MaxCandidateLostFrames < 0:
		return fmt.Errorf("%w: lost frame limits must not be negative", ErrInvalidParams)
	case p.PromotionFrames < 0 || p.PromotionTravel < 0:
		return fmt.Errorf("%w: promotion thresholds must not be negative", ErrInvalidParams)
	case p.MaxPoints <= 0:
		return fmt.Errorf("%w: MaxPoints must be positive", ErrInvalidParams)
	case p.RefinementWindow < 0:
		return fmt.Errorf("%w: RefinementWindow must not be negative", ErrInvalidParams)
	case p.Segmentation.MaxDepthStep <= 0 || p.Segmentation.BandwidthDepth <= 0 ||
		p.Segmentation.MaxSegmentationDist <= 0:
		return fmt.Errorf("%w: segmentation limits must be positive", ErrInvalidParams)
	case p.KalmanPositionNoise <= 0 || p.KalmanVelocityNoise <= 0 ||
		p.KalmanMeasurementNoise <= 0:
		return fmt.Errorf("%w: kalman noise must be positive", ErrInvalidParams)
	}

	return nil
}

// lostGrace returns the number of lost frames a point of type t survives
func (p Params) lostGrace(t PointType) int {
	if t == CandidatePoint {
		return p.MaxCandidateLostFrames
	}
	return p.MaxLostFrames
}
