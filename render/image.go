package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// BytesPerPixel is the size of an RGB pixel
const BytesPerPixel = 3

// ErrImageSize is returned when an image and its source layers disagree on
// dimensions
var ErrImageSize = errors.New("debug image size mismatch")

// Image is a row-major RGB image with 3 bytes per pixel
type Image struct {
	Width  int
	Height int
	Data   []byte
}

// NewImage returns a black image of the given size
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Data:   make([]byte, width*height*BytesPerPixel),
	}
}

// WrapImage returns an Image over an existing byte buffer, which must hold
// exactly width*height*3 bytes
func WrapImage(width, height int, data []byte) (*Image, error) {

	if len(data) != width*height*BytesPerPixel {
		return nil, fmt.Errorf("%w: buffer of %d bytes for %dx%d", ErrImageSize,
			len(data), width, height)
	}

	return &Image{Width: width, Height: height, Data: data}, nil
}

// Set paints pixel (x,y)
func (img *Image) Set(x, y int, c color.RGBA) {
	pos := (y*img.Width + x) * BytesPerPixel
	img.Data[pos+0] = c.R
	img.Data[pos+1] = c.G
	img.Data[pos+2] = c.B
}

// At returns the color of pixel (x,y)
func (img *Image) At(x, y int) color.RGBA {
	pos := (y*img.Width + x) * BytesPerPixel
	return color.RGBA{R: img.Data[pos], G: img.Data[pos+1], B: img.Data[pos+2], A: 255}
}

// Fill paints every pixel
func (img *Image) Fill(c color.RGBA) {
	for pos := 0; pos < len(img.Data); pos += BytesPerPixel {
		img.Data[pos+0] = c.R
		img.Data[pos+1] = c.G
		img.Data[pos+2] = c.B
	}
}

// RGBA returns a copy of the image as a standard library image
func (img *Image) RGBA() *image.RGBA {

	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))

	for i, j := 0, 0; i < len(img.Data); i, j = i+BytesPerPixel, j+4 {
		out.Pix[j+0] = img.Data[i+0]
		out.Pix[j+1] = img.Data[i+1]
		out.Pix[j+2] = img.Data[i+2]
		out.Pix[j+3] = 255
	}

	return out
}

// ToMat returns the image as a BGR gocv Mat, the caller must Close it
func (img *Image) ToMat() (gocv.Mat, error) {

	rgb, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Data)

	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create image mat: %w", err)
	}

	defer rgb.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(rgb, &bgr, gocv.ColorRGBToBGR)

	return bgr, nil
}
