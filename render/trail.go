package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/swdee/go-handtrack/tracker"
	"gocv.io/x/gocv"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	// LineSame defines if the color of the trail line should be the
	// same color as that of the tracked point.  If set to false then use
	// the color specified at LineColor
	LineSame      bool
	LineColor     color.RGBA
	LineThickness int
	// CircleSame defines if the color of the current position circle should
	// be the same color as that of the tracked point.  If set to false then
	// use the color specified at CircleColor
	CircleSame   bool
	CircleColor  color.RGBA
	CircleRadius int
	// Label draws the tracking id and point type next to the circle
	Label bool
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineSame:      false,
		LineColor:     Yellow,
		LineThickness: 1,
		CircleSame:    true,
		CircleColor:   Pink,
		CircleRadius:  5,
		Label:         true,
	}
}

// Trail draws the tracked point trails on img.  Trail points are in sensor
// resolution pixels and multiplied by scale to land on img.
func Trail(img *gocv.Mat, points []*tracker.TrackedPoint, trail *tracker.Trail,
	scale float64, style TrailStyle, font Font) {

	for _, pt := range points {

		if pt.Status != tracker.Tracking {
			continue
		}

		// Get the color for this point
		objClr := TrackColor(int(pt.TrackingID))

		// determine style colors to use
		lineClr := objClr
		circleClr := objClr

		if !style.LineSame {
			lineClr = style.LineColor
		}

		if !style.CircleSame {
			circleClr = style.CircleColor
		}

		// draw trail line showing tracking history
		history := trail.GetPoints(pt.TrackingID)

		for i := 1; i < len(history); i++ {
			gocv.Line(img, scalePoint(history[i-1], scale), scalePoint(history[i], scale),
				lineClr, style.LineThickness)
		}

		// draw current position circle
		centre := scalePoint(pt.FullSizePosition, scale)
		gocv.Circle(img, centre, style.CircleRadius, circleClr, -1)

		if style.Label {
			text := fmt.Sprintf("%d %s", pt.TrackingID, pt.Type)
			DrawLabel(img, text, centre.Add(image.Pt(style.CircleRadius+2, 0)), font)
		}
	}
}

// scalePoint maps a sensor pixel onto the rendered image
func scalePoint(pt image.Point, scale float64) image.Point {
	return image.Pt(int(float64(pt.X)*scale), int(float64(pt.Y)*scale))
}
