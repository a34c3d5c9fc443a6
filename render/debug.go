package render

import (
	"fmt"
	"image/color"

	"github.com/swdee/go-handtrack/matrix"
	"gocv.io/x/gocv"
)

// ShowDepth paints a depth map with nearer pixels hotter.  Pixels without
// depth are black.
func ShowDepth(depth *matrix.Float, img *Image) error {

	if depth == nil {
		img.Fill(Black)
		return nil
	}

	if err := checkSize(depth.Width, depth.Height, img); err != nil {
		return err
	}

	minV, maxV, ok := depth.MinMax(true)

	if !ok {
		img.Fill(Black)
		return nil
	}

	den := maxV - minV
	u8 := make([]byte, len(depth.Data))

	for i, d := range depth.Data {
		if d == 0 {
			continue
		}

		n := float32(1)

		if den > 0 {
			n = 1 - (d-minV)/den
		}

		u8[i] = byte(n * 255)
	}

	if err := applyColorMap(u8, depth.Width, depth.Height, gocv.ColormapHot, img); err != nil {
		return err
	}

	for i, d := range depth.Data {
		if d == 0 {
			img.Set(i%depth.Width, i/depth.Width, Black)
		}
	}

	return nil
}

// ShowVelocity paints receding pixels red and approaching pixels green,
// saturating at maxVelocity mm per frame
func ShowVelocity(velocity *matrix.Float, maxVelocity float32, img *Image) error {

	if velocity == nil {
		img.Fill(Black)
		return nil
	}

	if err := checkSize(velocity.Width, velocity.Height, img); err != nil {
		return err
	}

	for i, v := range velocity.Data {

		n := v / maxVelocity
		c := RecedeColor

		if n < 0 {
			n = -n
			c = ApproachColor
		}

		if n > 1 {
			n = 1
		}

		img.Set(i%velocity.Width, i/velocity.Width, color.RGBA{
			R: uint8(float32(c.R) * n),
			G: uint8(float32(c.G) * n),
			B: uint8(float32(c.B) * n),
			A: 255,
		})
	}

	return nil
}

// ShowLabels paints each non zero label in its track color
func ShowLabels(labels *matrix.Byte, img *Image) error {

	if labels == nil {
		img.Fill(Black)
		return nil
	}

	if err := checkSize(labels.Width, labels.Height, img); err != nil {
		return err
	}

	for i, l := range labels.Data {
		c := Black

		if l != 0 {
			c = TrackColor(int(l))
		}

		img.Set(i%labels.Width, i/labels.Width, c)
	}

	return nil
}

// ShowNormArray paints values normalized over the pixels set in mask, pixels
// outside the mask are black
func ShowNormArray(values *matrix.Float, mask *matrix.Byte, img *Image) error {

	if values == nil || mask == nil {
		img.Fill(Black)
		return nil
	}

	if err := checkSize(values.Width, values.Height, img); err != nil {
		return err
	}

	if err := checkSize(mask.Width, mask.Height, img); err != nil {
		return err
	}

	first := true
	var minV, maxV float32

	for i, v := range values.Data {
		if mask.Data[i] == 0 {
			continue
		}

		if first || v < minV {
			minV = v
		}

		if first || v > maxV {
			maxV = v
		}

		first = false
	}

	if first {
		img.Fill(Black)
		return nil
	}

	den := maxV - minV
	u8 := make([]byte, len(values.Data))

	for i, v := range values.Data {
		if mask.Data[i] == 0 {
			continue
		}

		n := float32(1)

		if den > 0 {
			n = (v - minV) / den
		}

		u8[i] = byte(n * 255)
	}

	if err := applyColorMap(u8, values.Width, values.Height, gocv.ColormapJet, img); err != nil {
		return err
	}

	for i, m := range mask.Data {
		if m == 0 {
			img.Set(i%mask.Width, i/mask.Width, Black)
		}
	}

	return nil
}

// OverlayMask blends c over every pixel set in mask
func OverlayMask(img *Image, mask *matrix.Byte, c color.RGBA, alpha float32) error {

	if mask == nil {
		return nil
	}

	if err := checkSize(mask.Width, mask.Height, img); err != nil {
		return err
	}

	for i, m := range mask.Data {

		if m == 0 {
			continue
		}

		pos := i * BytesPerPixel
		r, g, b := img.Data[pos+0], img.Data[pos+1], img.Data[pos+2]

		img.Data[pos+0] = uint8(float32(r)*(1-alpha) + float32(c.R)*alpha)
		img.Data[pos+1] = uint8(float32(g)*(1-alpha) + float32(c.G)*alpha)
		img.Data[pos+2] = uint8(float32(b)*(1-alpha) + float32(c.B)*alpha)
	}

	return nil
}

// applyColorMap colorizes a grayscale buffer with an OpenCV colormap and
// writes the RGB result into img
func applyColorMap(u8 []byte, width, height int, cmap gocv.ColormapTypes, img *Image) error {

	gray, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8U, u8)

	if err != nil {
		return fmt.Errorf("failed to create gray mat: %w", err)
	}

	defer gray.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()

	gocv.ApplyColorMap(gray, &bgr, cmap)

	rgb := gocv.NewMat()
	defer rgb.Close()

	gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)

	data := rgb.ToBytes()

	if len(data) != len(img.Data) {
		return fmt.Errorf("%w: colormap produced %d bytes, image holds %d", ErrImageSize,
			len(data), len(img.Data))
	}

	copy(img.Data, data)

	return nil
}

// checkSize ensures a layer matches the image dimensions
func checkSize(width, height int, img *Image) error {

	if width != img.Width || height != img.Height || len(img.Data) != width*height*BytesPerPixel {
		return fmt.Errorf("%w: layer %dx%d, image %dx%d", ErrImageSize,
			width, height, img.Width, img.Height)
	}

	return nil
}
