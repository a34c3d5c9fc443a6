package handtrack

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/swdee/go-handtrack/logging"
	"github.com/swdee/go-handtrack/mapping"
	"github.com/swdee/go-handtrack/matrix"
	"github.com/swdee/go-handtrack/preprocess"
	"github.com/swdee/go-handtrack/render"
	"github.com/swdee/go-handtrack/segmentation"
	"github.com/swdee/go-handtrack/tracker"
)

// HandTracker follows hands in the frames of a depth stream and publishes
// them on its hand and debug streams.  Frames are processed synchronously on
// the depth stream's goroutine and only whilst at least one output stream
// has a reader connected.
type HandTracker struct {
	id     uuid.UUID
	cfg    Config
	source DepthStream

	preprocessor *preprocess.DepthPreprocessor
	processor    *tracker.PointProcessor

	handStream  *Stream[HandFrame]
	debugStream *Stream[DebugImageFrame]

	// mu guards the runtime options
	mu                sync.Mutex
	includeCandidates bool
	debug             DebugOptions

	// per frame buffers at processing resolution
	updateSearched    *matrix.Byte
	createSearched    *matrix.Byte
	layerSegmentation *matrix.Byte
	layerScore        *matrix.Float
	layerEdgeDistance *matrix.Float
	updateDebug       *matrix.Byte
	createDebug       *matrix.Byte
	// basicScore is the processor's basic score layer of the last frame
	basicScore *matrix.Float
}

// NewHandTracker returns a tracker listening to source.  The source must be a
// started depth stream, its resolution overrides the configured source
// resolution.
func NewHandTracker(source DepthStream, cfg Config) (*HandTracker, error) {

	if source == nil {
		return nil, fmt.Errorf("%w: no source stream", ErrStreamUnavailable)
	}

	desc := source.Description()

	if desc.Type != StreamTypeDepth {
		return nil, fmt.Errorf("%w: got %s", ErrStreamType, desc.Type)
	}

	if !source.Started() {
		return nil, fmt.Errorf("%w: stream not started", ErrStreamUnavailable)
	}

	if desc.Width > 0 && desc.Height > 0 {
		cfg.Preprocess.SourceWidth = desc.Width
		cfg.Preprocess.SourceHeight = desc.Height
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	view, err := render.ParseDebugView(cfg.DebugView)

	if err != nil {
		return nil, err
	}

	mapper := source.Mapper()

	if mapper == nil {
		mapper = mapping.NewPinhole(cfg.Preprocess.SourceWidth, cfg.Preprocess.SourceHeight,
			cfg.HorizontalFOV*math.Pi/180, cfg.VerticalFOV*math.Pi/180)
	}

	pre, err := preprocess.NewDepthPreprocessor(cfg.Preprocess)

	if err != nil {
		return nil, err
	}

	proc, err := tracker.NewPointProcessor(mapper, pre.ScaleFactor(), cfg.Tracking)

	if err != nil {
		return nil, errors.Join(err, pre.Close())
	}

	width, height := cfg.Preprocess.ProcessingWidth, cfg.Preprocess.ProcessingHeight

	ht := &HandTracker{
		id:                uuid.New(),
		cfg:               cfg,
		source:            source,
		preprocessor:      pre,
		processor:         proc,
		handStream:        NewStream[HandFrame](cfg.StreamBuffers, nil),
		debugStream:       NewStream(cfg.StreamBuffers, newDebugImageFrameInit(width, height)),
		includeCandidates: cfg.IncludeCandidates,
		debug:             DebugOptions{View: view},
		updateSearched:    matrix.NewByte(width, height),
		createSearched:    matrix.NewByte(width, height),
		layerSegmentation: matrix.NewByte(width, height),
		layerScore:        matrix.NewFloat(width, height),
		layerEdgeDistance: matrix.NewFloat(width, height),
		updateDebug:       matrix.NewByte(width, height),
		createDebug:       matrix.NewByte(width, height),
	}

	proc.SetLogAttrs("tracker", ht.id.String())
	source.AddListener(ht)

	logging.Logger().Info("hand tracker started", "tracker", ht.id.String(),
		"sourceWidth", cfg.Preprocess.SourceWidth, "sourceHeight", cfg.Preprocess.SourceHeight,
		"width", width, "height", height)

	return ht, nil
}

// ID returns the tracker's instance id, attached to every log record
func (ht *HandTracker) ID() uuid.UUID {
	return ht.id
}

// HandStream returns the stream HandFrames are published on
func (ht *HandTracker) HandStream() *Stream[HandFrame] {
	return ht.handStream
}

// DebugStream returns the stream debug images are published on
func (ht *HandTracker) DebugStream() *Stream[DebugImageFrame] {
	return ht.debugStream
}

// TrackedPoints returns the current tracked points.  They are owned by the
// tracker and only valid on the depth stream's goroutine until the next frame.
func (ht *HandTracker) TrackedPoints() []*tracker.TrackedPoint {
	return ht.processor.TrackedPoints()
}

// ScaleFactor returns the sensor to processing resolution factor
func (ht *HandTracker) ScaleFactor() int {
	return ht.preprocessor.ScaleFactor()
}

// SetIncludeCandidates sets whether candidate points are published on the
// hand stream
func (ht *HandTracker) SetIncludeCandidates(include bool) {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	ht.includeCandidates = include
}

// SetDebugView sets the view rendered into debug frames
func (ht *HandTracker) SetDebugView(v render.DebugView) error {

	if !v.Valid() {
		return fmt.Errorf("%w: %d", render.ErrUnknownView, int(v))
	}

	ht.mu.Lock()
	defer ht.mu.Unlock()
	ht.debug.View = v

	return nil
}

// SetProbe enables the interactive probe at the normalized image position
// (x,y).  Whilst enabled no points are created from the foreground scan.
func (ht *HandTracker) SetProbe(x, y float32) {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	ht.debug.ProbeEnabled = true
	ht.debug.ProbeX = x
	ht.debug.ProbeY = y
}

// ClearProbe disables the interactive probe
func (ht *HandTracker) ClearProbe() {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	ht.debug.ProbeEnabled = false
}

// options returns a snapshot of the runtime options
func (ht *HandTracker) options() (DebugOptions, bool) {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	return ht.debug, ht.includeCandidates
}

// OnFrameReady processes a depth frame delivered by the source stream.
// Nothing is done whilst neither output stream has a reader.
func (ht *HandTracker) OnFrameReady(frame *DepthFrame) {

	if !ht.handStream.HasConnections() && !ht.debugStream.HasConnections() {
		return
	}

	if err := ht.UpdateTracking(frame); err != nil {
		logging.Logger().Warn("hand tracking frame skipped", "tracker", ht.id.String(),
			"frameIndex", frame.FrameIndex, "error", err)
	}
}

// UpdateTracking runs the full tracking pipeline over frame and publishes the
// results to the connected streams
func (ht *HandTracker) UpdateTracking(frame *DepthFrame) error {

	if frame == nil {
		return fmt.Errorf("%w: nil frame", preprocess.ErrFrameSize)
	}

	res, err := ht.preprocessor.Process(frame.Data, frame.Width, frame.Height)

	if err != nil {
		return fmt.Errorf("failed to preprocess frame %d: %w", frame.FrameIndex, err)
	}

	debug, includeCandidates := ht.options()
	debugConnected := ht.debugStream.HasConnections()

	ht.trackPoints(res, debug, debugConnected)

	ht.publishHandFrame(frame.FrameIndex, includeCandidates)

	if debugConnected {
		ht.publishDebugFrame(frame.FrameIndex, res, debug.View)
	}

	return nil
}

// trackPoints runs the point processor passes over a preprocessed frame
func (ht *HandTracker) trackPoints(res *preprocess.DepthResult, debug DebugOptions,
	debugLayers bool) {

	ht.updateSearched.Zero()
	ht.createSearched.Zero()
	ht.layerSegmentation.Zero()
	ht.layerScore.Zero()
	ht.layerEdgeDistance.Zero()
	ht.updateDebug.Zero()
	ht.createDebug.Zero()

	update := &segmentation.TrackingMatrices{
		DepthFullSize:      res.DepthFullSize,
		Depth:              res.Depth,
		Foreground:         res.Foreground,
		ForegroundSearched: ht.updateSearched,
		LayerSegmentation:  ht.layerSegmentation,
		LayerScore:         ht.layerScore,
		LayerEdgeDistance:  ht.layerEdgeDistance,
		DebugSegmentation:  ht.updateDebug,
		DebugLayersEnabled: debugLayers,
	}

	ht.processor.InitializeCommonCalculations(update)
	ht.basicScore = update.BasicScore

	ht.processor.UpdateTrackedPoints(update)
	ht.processor.RemoveDuplicatePoints()

	create := *update
	create.ForegroundSearched = ht.createSearched
	create.UpdateSearched = ht.updateSearched
	create.DebugSegmentation = ht.createDebug

	if debug.ProbeEnabled {
		ht.probe(&create, debug)
	} else {
		var cursor segmentation.Cursor

		for {
			seed, ok := segmentation.FindNextForegroundPixel(create.Foreground,
				create.ForegroundSearched, &cursor)

			if !ok {
				break
			}

			ht.processor.UpdateTrackedPointOrCreateNewPointFromSeedPosition(&create, seed)
		}
	}

	ht.processor.RemoveOldOrDeadPoints()

	refine := *update
	refine.Depth = ht.processor.DepthWindow()
	ht.processor.UpdateFullResolutionPoints(&refine)
}

// probe logs the region segmented from the probe position and creates or
// recovers a point from it
func (ht *HandTracker) probe(m *segmentation.TrackingMatrices, debug DebugOptions) {

	seed := probeSeed(debug.ProbeX, debug.ProbeY, m.Width(), m.Height())

	area := ht.processor.PointArea(m, seed)
	idx := seed.Y*m.Width() + seed.X

	logging.Logger().Debug("probe", "tracker", ht.id.String(),
		"x", seed.X, "y", seed.Y,
		"depth", m.Depth.Data[idx],
		"area", area,
		"score", m.LayerScore.Data[idx],
		"edgeDistance", m.LayerEdgeDistance.Data[idx])

	ht.processor.UpdateTrackedPointOrCreateNewPointFromSeedPosition(m, seed)
}

// probeSeed converts a normalized position into a pixel inside the image
func probeSeed(x, y float32, width, height int) image.Point {
	return image.Pt(clampInt(int(x*float32(width)), 0, width-1),
		clampInt(int(y*float32(height)), 0, height-1))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// publishHandFrame writes the tracked points to the hand stream
func (ht *HandTracker) publishHandFrame(frameIndex int, includeCandidates bool) {

	if !ht.handStream.HasConnections() {
		return
	}

	frame := ht.handStream.BeginWrite(frameIndex)

	if frame == nil {
		logging.Logger().Debug("no hand frame buffer available", "tracker", ht.id.String(),
			"frameIndex", frameIndex)
		return
	}

	frame.FrameIndex = frameIndex
	UpdateHandFrame(ht.processor.TrackedPoints(), includeCandidates, frame)

	ht.handStream.EndWrite()
}

// publishDebugFrame renders the selected view to the debug stream
func (ht *HandTracker) publishDebugFrame(frameIndex int, res *preprocess.DepthResult,
	view render.DebugView) {

	frame := ht.debugStream.BeginWrite(frameIndex)

	if frame == nil {
		logging.Logger().Debug("no debug frame buffer available", "tracker", ht.id.String(),
			"frameIndex", frameIndex)
		return
	}

	layers := &render.Layers{
		Depth:              res.Depth,
		Velocity:           res.Velocity,
		FilteredVelocity:   res.FilteredVelocity,
		Foreground:         res.Foreground,
		UpdateSegmentation: ht.updateDebug,
		CreateSegmentation: ht.createDebug,
		UpdateSearched:     ht.updateSearched,
		CreateSearched:     ht.createSearched,
		LayerSegmentation:  ht.layerSegmentation,
		BasicScore:         ht.basicScore,
		LayerEdgeDistance:  ht.layerEdgeDistance,
		DepthWindow:        ht.processor.DepthWindow(),
	}

	if err := renderDebugFrame(frame, frameIndex, view, layers); err != nil {
		logging.Logger().Warn("failed to render debug frame", "tracker", ht.id.String(),
			"frameIndex", frameIndex, "view", view.String(), "error", err)
	}

	ht.debugStream.EndWrite()
}

// Reset discards all tracked points and the velocity history so the next
// frame is processed as the first.  It must be called between frames.
func (ht *HandTracker) Reset() {
	ht.preprocessor.Reset()
	ht.processor.Reset()
}

// Close detaches the tracker from its source and releases its resources
func (ht *HandTracker) Close() error {
	ht.source.RemoveListener(ht)
	return ht.preprocessor.Close()
}
