package preprocess

import (
	"errors"
	"fmt"
	"image"
	"math"
	"unsafe"

	"github.com/swdee/go-handtrack/matrix"
	"gocv.io/x/gocv"
)

// ErrFrameSize is returned when a depth frame does not match the configured
// source resolution
var ErrFrameSize = errors.New("depth frame size mismatch")

// Params defines the depth preprocessing parameters
type Params struct {
	// SourceWidth is the sensor resolution width
	SourceWidth int
	// SourceHeight is the sensor resolution height
	SourceHeight int
	// ProcessingWidth is the width tracking runs at
	ProcessingWidth int
	// ProcessingHeight is the height tracking runs at
	ProcessingHeight int
	// MinDepth is the nearest depth in mm considered foreground
	MinDepth float32
	// MaxDepth is the farthest depth in mm considered foreground
	MaxDepth float32
	// VelocityThreshold is the depth change in mm per frame above which a
	// pixel is considered moving
	VelocityThreshold float32
	// ErodeSize is the kernel size used to clean up the moving pixel mask
	ErodeSize int
}

// DefaultParams returns the preprocessing parameters for a 320x240 sensor
// tracked at 80x60
func DefaultParams() Params {
	return Params{
		SourceWidth:       320,
		SourceHeight:      240,
		ProcessingWidth:   80,
		ProcessingHeight:  60,
		MinDepth:          500,
		MaxDepth:          4000,
		VelocityThreshold: 20,
		ErodeSize:         3,
	}
}

// Validate checks the parameters are usable
func (p Params) Validate() error {

	if _, err := NewResizer(p.SourceWidth, p.SourceHeight,
		p.ProcessingWidth, p.ProcessingHeight); err != nil {
		return err
	}

	if p.MinDepth < 1 || p.MaxDepth <= p.MinDepth {
		return fmt.Errorf("invalid depth band [%.0f, %.0f]", p.MinDepth, p.MaxDepth)
	}

	if p.VelocityThreshold < 0 || p.ErodeSize < 1 {
		return fmt.Errorf("invalid velocity filter threshold %.1f size %d",
			p.VelocityThreshold, p.ErodeSize)
	}

	return nil
}

// DepthResult holds the buffers produced for one frame.  They are owned by
// the preprocessor and overwritten by the next call to Process.
type DepthResult struct {
	// DepthFullSize is the sensor resolution depth in mm
	DepthFullSize *matrix.Float
	// Depth is the processing resolution depth in mm
	Depth *matrix.Float
	// Foreground marks processing pixels inside the depth band with 255
	Foreground *matrix.Byte
	// Velocity is the depth change since the previous frame, 0 where either
	// sample is missing
	Velocity *matrix.Float
	// FilteredVelocity is Velocity limited to the eroded mask of pixels
	// moving faster than the threshold
	FilteredVelocity *matrix.Float
}

// DepthPreprocessor converts raw sensor frames into the depth, foreground and
// velocity buffers consumed by tracking
type DepthPreprocessor struct {
	params  Params
	resizer *Resizer
	hasPrev bool

	// gocv working Mats
	fullMat    gocv.Mat
	smallMat   gocv.Mat
	prevMat    gocv.Mat
	fgMat      gocv.Mat
	curValid   gocv.Mat
	prevValid  gocv.Mat
	validMat   gocv.Mat
	diffMat    gocv.Mat
	velMat     gocv.Mat
	absMat     gocv.Mat
	moveMat    gocv.Mat
	threshMat  gocv.Mat
	move8Mat   gocv.Mat
	erodeMat   gocv.Mat
	kernel     gocv.Mat
	zeroScalar gocv.Scalar

	// moving is the eroded moving pixel mask
	moving *matrix.Byte
	result DepthResult
}

// NewDepthPreprocessor returns a preprocessor for frames of the configured
// source resolution
func NewDepthPreprocessor(params Params) (*DepthPreprocessor, error) {

	if err := params.Validate(); err != nil {
		return nil, err
	}

	resizer, err := NewResizer(params.SourceWidth, params.SourceHeight,
		params.ProcessingWidth, params.ProcessingHeight)

	if err != nil {
		return nil, err
	}

	w, h := params.ProcessingWidth, params.ProcessingHeight

	d := &DepthPreprocessor{
		params:     params,
		resizer:    resizer,
		fullMat:    gocv.NewMat(),
		smallMat:   gocv.NewMat(),
		prevMat:    gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F),
		fgMat:      gocv.NewMat(),
		curValid:   gocv.NewMat(),
		prevValid:  gocv.NewMat(),
		validMat:   gocv.NewMat(),
		diffMat:    gocv.NewMat(),
		velMat:     gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F),
		absMat:     gocv.NewMat(),
		moveMat:    gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F),
		threshMat:  gocv.NewMat(),
		move8Mat:   gocv.NewMat(),
		erodeMat:   gocv.NewMat(),
		kernel:     gocv.GetStructuringElement(gocv.MorphRect, image.Pt(params.ErodeSize, params.ErodeSize)),
		zeroScalar: gocv.NewScalar(0, 0, 0, 0),
		moving:     matrix.NewByte(w, h),
		result: DepthResult{
			DepthFullSize:    matrix.NewFloat(params.SourceWidth, params.SourceHeight),
			Depth:            matrix.NewFloat(w, h),
			Foreground:       matrix.NewByte(w, h),
			Velocity:         matrix.NewFloat(w, h),
			FilteredVelocity: matrix.NewFloat(w, h),
		},
	}

	return d, nil
}

// Params returns the preprocessing parameters
func (d *DepthPreprocessor) Params() Params {
	return d.params
}

// ScaleFactor returns the integer factor between sensor and processing
// resolution
func (d *DepthPreprocessor) ScaleFactor() int {
	return d.resizer.ScaleFactor()
}

// Process converts a raw frame of depth samples in mm, 0 meaning no return,
// into the tracking buffers
func (d *DepthPreprocessor) Process(data []uint16, width, height int) (*DepthResult, error) {

	if width != d.params.SourceWidth || height != d.params.SourceHeight ||
		len(data) != width*height {
		return nil, fmt.Errorf("%w: got %dx%d with %d samples, want %dx%d", ErrFrameSize,
			width, height, len(data), d.params.SourceWidth, d.params.SourceHeight)
	}

	// view the samples as bytes, NewMatFromBytes copies them
	raw, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV16UC1,
		unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*2))

	if err != nil {
		return nil, fmt.Errorf("failed to create depth mat: %w", err)
	}

	defer raw.Close()

	raw.ConvertTo(&d.fullMat, gocv.MatTypeCV32F)
	d.resizer.Resize(d.fullMat, &d.smallMat)

	gocv.InRangeWithScalar(d.smallMat,
		gocv.NewScalar(float64(d.params.MinDepth), 0, 0, 0),
		gocv.NewScalar(float64(d.params.MaxDepth), 0, 0, 0),
		&d.fgMat)

	if d.hasPrev {
		d.calcVelocity()
	} else {
		d.velMat.SetTo(d.zeroScalar)
		d.erodeMat = resetMat(d.erodeMat, d.params.ProcessingHeight,
			d.params.ProcessingWidth, gocv.MatTypeCV8U)
	}

	d.smallMat.CopyTo(&d.prevMat)
	d.hasPrev = true

	if err := copyFloat(d.fullMat, d.result.DepthFullSize); err != nil {
		return nil, err
	}

	if err := copyFloat(d.smallMat, d.result.Depth); err != nil {
		return nil, err
	}

	if err := copyByte(d.fgMat, d.result.Foreground); err != nil {
		return nil, err
	}

	if err := copyFloat(d.velMat, d.result.Velocity); err != nil {
		return nil, err
	}

	if err := copyByte(d.erodeMat, d.moving); err != nil {
		return nil, err
	}

	for i, m := range d.moving.Data {
		if m != 0 {
			d.result.FilteredVelocity.Data[i] = d.result.Velocity.Data[i]
		} else {
			d.result.FilteredVelocity.Data[i] = 0
		}
	}

	return &d.result, nil
}

// calcVelocity computes the signed depth change and the eroded moving pixel
// mask against the previous frame, ignoring pixels missing in either frame
func (d *DepthPreprocessor) calcVelocity() {

	valid := gocv.NewScalar(math.MaxFloat32, 0, 0, 0)
	one := gocv.NewScalar(1, 0, 0, 0)

	gocv.InRangeWithScalar(d.smallMat, one, valid, &d.curValid)
	gocv.InRangeWithScalar(d.prevMat, one, valid, &d.prevValid)
	gocv.BitwiseAnd(d.curValid, d.prevValid, &d.validMat)

	gocv.Subtract(d.smallMat, d.prevMat, &d.diffMat)
	d.velMat.SetTo(d.zeroScalar)
	d.diffMat.CopyToWithMask(&d.velMat, d.validMat)

	gocv.AbsDiff(d.smallMat, d.prevMat, &d.absMat)
	d.moveMat.SetTo(d.zeroScalar)
	d.absMat.CopyToWithMask(&d.moveMat, d.validMat)

	gocv.Threshold(d.moveMat, &d.threshMat, d.params.VelocityThreshold, 255,
		gocv.ThresholdBinary)
	d.threshMat.ConvertTo(&d.move8Mat, gocv.MatTypeCV8U)
	gocv.Erode(d.move8Mat, &d.erodeMat, d.kernel)
}

// Reset discards the frame history so the next frame reports no velocity
func (d *DepthPreprocessor) Reset() {
	d.hasPrev = false
	d.result.Velocity.Zero()
	d.result.FilteredVelocity.Zero()
	d.moving.Zero()
}

// Close frees the gocv Mats
func (d *DepthPreprocessor) Close() error {

	var errs []error

	for _, m := range []*gocv.Mat{&d.fullMat, &d.smallMat, &d.prevMat, &d.fgMat,
		&d.curValid, &d.prevValid, &d.validMat, &d.diffMat, &d.velMat, &d.absMat,
		&d.moveMat, &d.threshMat, &d.move8Mat, &d.erodeMat, &d.kernel} {

		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// resetMat returns a zeroed Mat of the given size and type, reusing m when it
// already matches
func resetMat(m gocv.Mat, rows, cols int, mt gocv.MatType) gocv.Mat {

	if m.Empty() || m.Rows() != rows || m.Cols() != cols || m.Type() != mt {
		m.Close()
		m = gocv.NewMatWithSize(rows, cols, mt)
	}

	m.SetTo(gocv.NewScalar(0, 0, 0, 0))

	return m
}

// copyFloat copies a continuous single channel float Mat into dst
func copyFloat(m gocv.Mat, dst *matrix.Float) error {

	data, err := m.DataPtrFloat32()

	if err != nil {
		return fmt.Errorf("failed to read float mat: %w", err)
	}

	if len(data) != len(dst.Data) {
		return fmt.Errorf("%w: mat holds %d values, buffer %d", ErrFrameSize,
			len(data), len(dst.Data))
	}

	copy(dst.Data, data)

	return nil
}

// copyByte copies a continuous single channel byte Mat into dst
func copyByte(m gocv.Mat, dst *matrix.Byte) error {

	data, err := m.DataPtrUint8()

	if err != nil {
		return fmt.Errorf("failed to read byte mat: %w", err)
	}

	if len(data) != len(dst.Data) {
		return fmt.Errorf("%w: mat holds %d values, buffer %d", ErrFrameSize,
			len(data), len(dst.Data))
	}

	copy(dst.Data, data)

	return nil
}
