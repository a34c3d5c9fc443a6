package matrix

import (
	"image"
	"testing"
)

func TestFloatAccessors(t *testing.T) {

	f := NewFloat(4, 3)

	if len(f.Data) != 12 {
		t.Fatalf("expected 12 values, got %d", len(f.Data))
	}

	f.Set(3, 2, 7.5)

	if f.At(3, 2) != 7.5 || f.AtPoint(image.Pt(3, 2)) != 7.5 {
		t.Errorf("expected value 7.5 at (3,2), got %f", f.At(3, 2))
	}

	if f.Data[11] != 7.5 {
		t.Errorf("expected row-major layout, got %v", f.Data)
	}

	c := f.Clone()
	c.Set(0, 0, 1)

	if f.At(0, 0) != 0 {
		t.Errorf("clone must not share data with source")
	}
}

func TestFloatMinMax(t *testing.T) {

	tests := []struct {
		name     string
		data     []float32
		skipZero bool
		min, max float32
		ok       bool
	}{
		{"all zero skipped", []float32{0, 0, 0, 0}, true, 0, 0, false},
		{"all zero kept", []float32{0, 0, 0, 0}, false, 0, 0, true},
		{"skip zero", []float32{0, 500, 800, 0}, true, 500, 800, true},
		{"keep zero", []float32{0, 500, 800, -3}, false, -3, 800, true},
	}

	for _, tc := range tests {
		f := &Float{Width: 2, Height: 2, Data: tc.data}
		min, max, ok := f.MinMax(tc.skipZero)

		if ok != tc.ok || min != tc.min || max != tc.max {
			t.Errorf("%s: expected (%f, %f, %v), got (%f, %f, %v)",
				tc.name, tc.min, tc.max, tc.ok, min, max, ok)
		}
	}
}

func TestByteContainsAndCount(t *testing.T) {

	b := NewByte(3, 3)
	b.Set(1, 1, 255)
	b.Set(2, 0, 1)

	if b.Count() != 2 {
		t.Errorf("expected 2 set values, got %d", b.Count())
	}

	if !b.Contains(image.Pt(2, 2)) || b.Contains(image.Pt(3, 0)) || b.Contains(image.Pt(0, -1)) {
		t.Errorf("unexpected Contains result")
	}

	b.Zero()

	if b.Count() != 0 {
		t.Errorf("expected zeroed mask")
	}
}
