package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering text on an image using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text label to the anchor point
	Alignment Alignment
	// Background is painted behind the text when its alpha is non zero
	Background color.RGBA
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:       gocv.FontHersheySimplex,
		Scale:      0.4,
		Color:      White,
		Thickness:  1,
		LineType:   gocv.LineAA,
		LeftPad:    2,
		RightPad:   2,
		TopPad:     2,
		BottomPad:  3,
		Alignment:  Left,
		Background: color.RGBA{R: 0, G: 0, B: 0, A: 255},
	}
}

// DrawLabel writes text on img.  The label's baseline is placed at anchor and
// the font alignment decides whether anchor is the left, centre or right of
// the text.
func DrawLabel(img *gocv.Mat, text string, anchor image.Point, font Font) {

	textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

	// Calculate the alignment of text label
	var left int

	switch font.Alignment {
	case Center:
		left = anchor.X - textSize.X/2

	case Right:
		left = anchor.X - textSize.X - font.RightPad

	case Left:
		fallthrough
	default:
		left = anchor.X + font.LeftPad
	}

	textPos := image.Pt(left, anchor.Y)

	if font.Background.A != 0 {
		// create box for placing text on
		bRect := image.Rect(left-font.LeftPad, anchor.Y-textSize.Y-font.TopPad,
			left+textSize.X+font.RightPad, anchor.Y+font.BottomPad)

		gocv.Rectangle(img, bRect, font.Background, -1)
	}

	gocv.PutTextWithParams(img, text, textPos, font.Face, font.Scale, font.Color,
		font.Thickness, font.LineType, false)
}
