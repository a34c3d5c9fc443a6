package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/swdee/go-handtrack"
	"github.com/swdee/go-handtrack/render"
	"github.com/swdee/go-handtrack/tracker"
	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

const (
	// viewScale is the upscale factor of the debug image served to the
	// browser
	viewScale = 8
	// trailSize is the number of positions drawn behind each hand
	trailSize = 60
)

// Demo serves the hand tracker's debug stream over HTTP
type Demo struct {
	tracker *handtrack.HandTracker
	fps     int

	// mu guards the snapshot taken on the tracking goroutine
	mu     sync.Mutex
	points []*tracker.TrackedPoint
	trail  *tracker.Trail
}

// NewDemo returns a demo attached to source
func NewDemo(source *SyntheticSource, cfg handtrack.Config, fps int) (*Demo, error) {

	ht, err := handtrack.NewHandTracker(source, cfg)

	if err != nil {
		return nil, fmt.Errorf("error creating hand tracker: %w", err)
	}

	d := &Demo{
		tracker: ht,
		fps:     fps,
		trail:   tracker.NewTrail(trailSize),
	}

	// registered after the tracker so it sees this frame's points
	source.AddListener(d)

	return d, nil
}

// OnFrameReady snapshots the tracked points and extends their trails, it is
// called on the source's goroutine after the tracker has processed the frame
func (d *Demo) OnFrameReady(frame *handtrack.DepthFrame) {

	points := d.tracker.TrackedPoints()
	snapshot := make([]*tracker.TrackedPoint, 0, len(points))

	for _, pt := range points {
		cp := *pt
		snapshot = append(snapshot, &cp)
		d.trail.Add(pt)
	}

	d.trail.Retain(points)

	d.mu.Lock()
	d.points = snapshot
	d.mu.Unlock()
}

// snapshot returns the points of the latest frame
func (d *Demo) snapshot() []*tracker.TrackedPoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.points
}

// LogHands logs every hand frame until ctx is done
func (d *Demo) LogHands(ctx context.Context) {

	reader := d.tracker.HandStream().Connect()
	defer reader.Close()

	ticker := time.NewTicker(time.Second / time.Duration(d.fps))
	defer ticker.Stop()

	lastIndex := -1

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			frame, index, ok := reader.Acquire()

			if !ok {
				continue
			}

			if index == lastIndex {
				reader.Release()
				continue
			}

			lastIndex = index

			for _, h := range frame.ActiveHands() {
				log.Printf("Frame %d: hand %d %s at (%d,%d) world (%.0f, %.0f, %.0f)mm velocity (%.1f, %.1f, %.1f)mm/frame",
					index, h.TrackingID, h.Status, h.DepthPosition.X, h.DepthPosition.Y,
					h.WorldPosition.X, h.WorldPosition.Y, h.WorldPosition.Z,
					h.WorldDeltaPosition.X, h.WorldDeltaPosition.Y, h.WorldDeltaPosition.Z)
			}

			reader.Release()
		}
	}
}

// Stream is the HTTP handler function used to stream debug frames to browser
func (d *Demo) Stream(w http.ResponseWriter, r *http.Request) {

	log.Printf("New client connection established\n")

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	reader := d.tracker.DebugStream().Connect()
	defer reader.Close()

	ticker := time.NewTicker(time.Second / time.Duration(d.fps))
	defer ticker.Stop()

	lastIndex := -1

	for {
		select {
		case <-r.Context().Done():
			log.Printf("Client disconnected\n")
			return

		case <-ticker.C:
			frame, index, ok := reader.Acquire()

			if !ok {
				continue
			}

			if index == lastIndex {
				reader.Release()
				continue
			}

			lastIndex = index
			buf, err := d.encodeFrame(frame)
			reader.Release()

			if err != nil {
				log.Printf("Error encoding debug frame: %v", err)
				continue
			}

			// Write the image to the response writer
			w.Write([]byte("--frame\r\n"))
			w.Write([]byte("Content-Type: image/jpeg\r\n\r\n"))
			w.Write(buf.GetBytes())
			w.Write([]byte("\r\n"))

			buf.Close()

			// Flush the buffer
			flusher, ok := w.(http.Flusher)
			if ok {
				flusher.Flush()
			}
		}
	}
}

// encodeFrame upscales a debug frame, draws the hand trails on it and
// returns it encoded as a JPG file
func (d *Demo) encodeFrame(frame *handtrack.DebugImageFrame) (*gocv.NativeByteBuffer, error) {

	src, err := render.WrapImage(frame.Metadata.Width, frame.Metadata.Height, frame.Data)

	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, src.Width*viewScale, src.Height*viewScale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src.RGBA(), image.Rect(0, 0, src.Width, src.Height),
		draw.Src, nil)

	img, err := gocv.ImageToMatRGB(dst)

	if err != nil {
		return nil, fmt.Errorf("error converting debug image: %w", err)
	}

	defer img.Close()

	// trail positions are at sensor resolution
	scale := float64(viewScale) / float64(d.tracker.ScaleFactor())

	render.Trail(&img, d.snapshot(), d.trail, scale, render.DefaultTrailStyle(),
		render.DefaultFont())

	render.DrawLabel(&img, fmt.Sprintf("Frame: %d", frame.FrameIndex), image.Pt(4, 14),
		render.DefaultFont())

	return gocv.IMEncode(".jpg", img)
}

// View is the HTTP handler that selects the debug view, eg: /view?name=score
func (d *Demo) View(w http.ResponseWriter, r *http.Request) {

	v, err := render.ParseDebugView(r.URL.Query().Get("name"))

	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := d.tracker.SetDebugView(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Printf("Debug view set to %s", v)
}

// Probe is the HTTP handler that moves the interactive probe to the
// normalized position x,y, eg: /probe?x=0.5&y=0.5.  Without parameters the
// probe is disabled.
func (d *Demo) Probe(w http.ResponseWriter, r *http.Request) {

	q := r.URL.Query()

	if q.Get("x") == "" && q.Get("y") == "" {
		d.tracker.ClearProbe()
		log.Printf("Probe disabled")
		return
	}

	x, errX := strconv.ParseFloat(q.Get("x"), 32)
	y, errY := strconv.ParseFloat(q.Get("y"), 32)

	if errX != nil || errY != nil {
		http.Error(w, "x and y must be numbers in [0,1]", http.StatusBadRequest)
		return
	}

	d.tracker.SetProbe(float32(x), float32(y))
	log.Printf("Probe set to %.2f,%.2f", x, y)
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	configFile := flag.String("c", "", "JSON configuration file, defaults are used when empty")
	httpAddr := flag.String("a", "localhost:8080", "HTTP Address to run server on, format address:port")
	fps := flag.Int("f", 30, "Frames per second of the synthetic depth stream")
	viewName := flag.String("view", "", "Initial debug view, overrides the configuration")
	candidates := flag.Bool("candidates", false, "Include candidate points in the hand stream")
	verbose := flag.Bool("v", false, "Log per frame tracker diagnostics")

	flag.Parse()

	level := slog.LevelInfo

	if *verbose {
		level = slog.LevelDebug
	}

	handtrack.SetLogger(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level})))

	cfg := handtrack.DefaultConfig()

	if *configFile != "" {
		var err error
		cfg, err = handtrack.LoadConfig(*configFile)

		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
	}

	if *viewName != "" {
		cfg.DebugView = *viewName
	}

	if *candidates {
		cfg.IncludeCandidates = true
	}

	source := NewSyntheticSource(cfg.Preprocess.SourceWidth, cfg.Preprocess.SourceHeight,
		*fps, cfg.HorizontalFOV, cfg.VerticalFOV)
	source.Start()

	demo, err := NewDemo(source, cfg, *fps)

	if err != nil {
		log.Fatalf("Error creating demo: %v", err)
	}

	ctx := context.Background()

	go source.Run(ctx)
	go demo.LogHands(ctx)

	http.HandleFunc("/stream", demo.Stream)
	http.HandleFunc("/view", demo.View)
	http.HandleFunc("/probe", demo.Probe)

	// start http server
	log.Printf("Open browser and view debug stream at http://%s/stream", *httpAddr)
	log.Fatal(http.ListenAndServe(*httpAddr, nil))
}
