package matrix

import (
	"image"
)

// Float is a single channel row-major grid of float32 values, such as a depth
// map in millimetres or a per pixel score layer
type Float struct {
	// Width is the number of columns in the grid
	Width int
	// Height is the number of rows in the grid
	Height int
	// Data holds Width*Height values in row-major order
	Data []float32
}

// NewFloat returns a zeroed Float grid of the given size
func NewFloat(width, height int) *Float {
	return &Float{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

// At returns the value at column x and row y
func (f *Float) At(x, y int) float32 {
	return f.Data[y*f.Width+x]
}

// AtPoint returns the value at the given point
func (f *Float) AtPoint(pt image.Point) float32 {
	return f.Data[pt.Y*f.Width+pt.X]
}

// Set sets the value at column x and row y
func (f *Float) Set(x, y int, v float32) {
	f.Data[y*f.Width+x] = v
}

// Fill sets every value in the grid to v
func (f *Float) Fill(v float32) {
	for i := range f.Data {
		f.Data[i] = v
	}
}

// Zero resets every value in the grid to 0
func (f *Float) Zero() {
	f.Fill(0)
}

// Contains reports whether pt lies inside the grid
func (f *Float) Contains(pt image.Point) bool {
	return pt.X >= 0 && pt.Y >= 0 && pt.X < f.Width && pt.Y < f.Height
}

// Size returns the grid dimensions as a point
func (f *Float) Size() image.Point {
	return image.Pt(f.Width, f.Height)
}

// Clone returns a deep copy of the grid
func (f *Float) Clone() *Float {
	c := &Float{
		Width:  f.Width,
		Height: f.Height,
		Data:   make([]float32, len(f.Data)),
	}
	copy(c.Data, f.Data)
	return c
}

// MinMax returns the smallest and largest values in the grid.  When skipZero
// is set, zero values are ignored and ok is false if every value is zero
func (f *Float) MinMax(skipZero bool) (min, max float32, ok bool) {

	for _, v := range f.Data {
		if skipZero && v == 0 {
			continue
		}

		if !ok {
			min, max, ok = v, v, true
			continue
		}

		if v < min {
			min = v
		}

		if v > max {
			max = v
		}
	}

	return min, max, ok
}

// Byte is a single channel row-major grid of uint8 values used for binary
// masks and segmentation layers
type Byte struct {
	Width  int
	Height int
	Data   []uint8
}

// NewByte returns a zeroed Byte grid of the given size
func NewByte(width, height int) *Byte {
	return &Byte{
		Width:  width,
		Height: height,
		Data:   make([]uint8, width*height),
	}
}

// At returns the value at column x and row y
func (b *Byte) At(x, y int) uint8 {
	return b.Data[y*b.Width+x]
}

// AtPoint returns the value at the given point
func (b *Byte) AtPoint(pt image.Point) uint8 {
	return b.Data[pt.Y*b.Width+pt.X]
}

// Set sets the value at column x and row y
func (b *Byte) Set(x, y int, v uint8) {
	b.Data[y*b.Width+x] = v
}

// Zero resets every value in the grid to 0
func (b *Byte) Zero() {
	for i := range b.Data {
		b.Data[i] = 0
	}
}

// Contains reports whether pt lies inside the grid
func (b *Byte) Contains(pt image.Point) bool {
	return pt.X >= 0 && pt.Y >= 0 && pt.X < b.Width && pt.Y < b.Height
}

// Count returns the number of non-zero values
func (b *Byte) Count() int {
	n := 0
	for _, v := range b.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the grid
func (b *Byte) Clone() *Byte {
	c := &Byte{
		Width:  b.Width,
		Height: b.Height,
		Data:   make([]uint8, len(b.Data)),
	}
	copy(c.Data, b.Data)
	return c
}
