package preprocess

import (
	"errors"
	"testing"

	"github.com/swdee/go-handtrack/matrix"
)

// testFrame returns a 320x240 frame filled with depth and a 40x40 sensor
// pixel square at near
func testFrame(depth, near uint16) []uint16 {

	data := make([]uint16, 320*240)

	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			v := depth

			if x >= 100 && x < 140 && y >= 80 && y < 120 {
				v = near
			}

			data[y*320+x] = v
		}
	}

	return data
}

func countNonZero(f *matrix.Float) int {
	n := 0
	for _, v := range f.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

func newTestPreprocessor(t *testing.T) *DepthPreprocessor {
	t.Helper()

	d, err := NewDepthPreprocessor(DefaultParams())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Cleanup(func() { d.Close() })

	return d
}

func TestProcessDownsampleAndForeground(t *testing.T) {

	d := newTestPreprocessor(t)

	// background beyond the depth band, hand square inside it
	res, err := d.Process(testFrame(5000, 900), 320, 240)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Depth.Width != 80 || res.Depth.Height != 60 {
		t.Fatalf("expected 80x60 depth, got %dx%d", res.Depth.Width, res.Depth.Height)
	}

	if res.DepthFullSize.At(110, 90) != 900 || res.DepthFullSize.At(0, 0) != 5000 {
		t.Errorf("full size depth not preserved")
	}

	if res.Depth.At(27, 22) != 900 || res.Depth.At(5, 5) != 5000 {
		t.Errorf("expected nearest neighbour downsample, got %f and %f",
			res.Depth.At(27, 22), res.Depth.At(5, 5))
	}

	if res.Foreground.Count() != 100 {
		t.Errorf("expected 10x10 foreground pixels, got %d", res.Foreground.Count())
	}

	if res.Foreground.At(27, 22) != 255 || res.Foreground.At(5, 5) != 0 {
		t.Errorf("unexpected foreground mask values")
	}

	if _, max, _ := res.Velocity.MinMax(false); max != 0 || countNonZero(res.FilteredVelocity) != 0 {
		t.Errorf("expected no movement on the first frame")
	}
}

func TestProcessZeroDepthIsNeverForeground(t *testing.T) {

	params := DefaultParams()
	params.MinDepth = 1

	d, err := NewDepthPreprocessor(params)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer d.Close()

	res, err := d.Process(make([]uint16, 320*240), 320, 240)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Foreground.Count() != 0 {
		t.Errorf("expected empty foreground for an all zero frame, got %d", res.Foreground.Count())
	}
}

func TestProcessFrameSizeMismatch(t *testing.T) {

	d := newTestPreprocessor(t)

	tests := []struct {
		name          string
		data          []uint16
		width, height int
	}{
		{"wrong dimensions", make([]uint16, 640*480), 640, 480},
		{"short buffer", make([]uint16, 100), 320, 240},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := d.Process(tc.data, tc.width, tc.height); !errors.Is(err, ErrFrameSize) {
				t.Errorf("expected ErrFrameSize, got %v", err)
			}
		})
	}
}

func TestVelocityAndReset(t *testing.T) {

	d := newTestPreprocessor(t)

	if _, err := d.Process(testFrame(0, 1000), 320, 240); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := d.Process(testFrame(0, 1100), 320, 240)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v := res.Velocity.At(27, 22); v != 100 {
		t.Errorf("expected velocity 100 inside the square, got %f", v)
	}

	if v := res.Velocity.At(5, 5); v != 0 {
		t.Errorf("expected no velocity where depth is missing, got %f", v)
	}

	// the 3x3 erosion trims the square's border
	if res.FilteredVelocity.At(27, 22) != 100 || res.FilteredVelocity.At(25, 20) != 0 {
		t.Errorf("unexpected filtered velocity values")
	}

	if n := countNonZero(res.FilteredVelocity); n != 64 {
		t.Errorf("expected 8x8 eroded moving pixels, got %d", n)
	}

	d.Reset()

	res, err = d.Process(testFrame(0, 1300), 320, 240)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, max, _ := res.Velocity.MinMax(false); max != 0 {
		t.Errorf("expected no velocity after reset, got max %f", max)
	}

	if countNonZero(res.FilteredVelocity) != 0 {
		t.Errorf("expected no moving pixels after reset")
	}
}
