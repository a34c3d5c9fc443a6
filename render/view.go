package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/swdee/go-handtrack/matrix"
)

// DebugView selects what the debug image shows
type DebugView int

const (
	// DebugViewDepth shows the processing resolution depth map
	DebugViewDepth DebugView = iota
	// DebugViewVelocity shows the depth change between frames
	DebugViewVelocity
	// DebugViewFilteredVelocity shows the eroded depth change
	DebugViewFilteredVelocity
	// DebugViewUpdateSegmentation shows the regions matched to existing
	// points
	DebugViewUpdateSegmentation
	// DebugViewCreateSegmentation shows the regions that created or recovered
	// points
	DebugViewCreateSegmentation
	// DebugViewUpdateSearched shows depth with the update pass's claimed
	// pixels
	DebugViewUpdateSearched
	// DebugViewCreateSearched shows depth with the create pass's claimed
	// pixels
	DebugViewCreateSearched
	// DebugViewScore shows the basic score of segmented pixels
	DebugViewScore
	// DebugViewEdgeDistance shows the edge distance of segmented pixels
	DebugViewEdgeDistance
	// DebugViewHandWindow shows the refined depth window around each point
	DebugViewHandWindow

	debugViewCount
)

// DefaultMaxVelocity is the depth change in mm per frame shown at full
// intensity by the velocity views
const DefaultMaxVelocity = 100

const (
	searchedAlpha   = 0.6
	foregroundAlpha = 0.4
)

// ErrUnknownView is returned for a DebugView outside the defined set
var ErrUnknownView = errors.New("unknown debug view")

var debugViewNames = [debugViewCount]string{
	"depth",
	"velocity",
	"filtered-velocity",
	"update-segmentation",
	"create-segmentation",
	"update-searched",
	"create-searched",
	"score",
	"edge-distance",
	"hand-window",
}

// String returns the view name
func (v DebugView) String() string {
	if !v.Valid() {
		return fmt.Sprintf("DebugView(%d)", int(v))
	}
	return debugViewNames[v]
}

// Valid reports whether v is one of the defined views
func (v DebugView) Valid() bool {
	return v >= 0 && v < debugViewCount
}

// DebugViews returns every defined view in order
func DebugViews() []DebugView {
	views := make([]DebugView, 0, debugViewCount)
	for v := DebugView(0); v < debugViewCount; v++ {
		views = append(views, v)
	}
	return views
}

// ParseDebugView returns the view with the given name
func ParseDebugView(name string) (DebugView, error) {
	for v, n := range debugViewNames {
		if strings.EqualFold(n, name) {
			return DebugView(v), nil
		}
	}
	return DebugViewDepth, fmt.Errorf("%w: %q", ErrUnknownView, name)
}

// Layers are the buffers a debug view is rendered from.  They are only read.
type Layers struct {
	Depth              *matrix.Float
	Velocity           *matrix.Float
	FilteredVelocity   *matrix.Float
	Foreground         *matrix.Byte
	UpdateSegmentation *matrix.Byte
	CreateSegmentation *matrix.Byte
	UpdateSearched     *matrix.Byte
	CreateSearched     *matrix.Byte
	LayerSegmentation  *matrix.Byte
	BasicScore         *matrix.Float
	LayerEdgeDistance  *matrix.Float
	DepthWindow        *matrix.Float
	// MaxVelocity overrides DefaultMaxVelocity when positive
	MaxVelocity float32
}

func (l *Layers) maxVelocity() float32 {
	if l.MaxVelocity > 0 {
		return l.MaxVelocity
	}
	return DefaultMaxVelocity
}

// renderer paints one view's base image
type renderer func(l *Layers, img *Image) error

// rendererFor returns the renderer of a view, every defined view must have
// a case
func rendererFor(v DebugView) renderer {

	switch v {
	case DebugViewDepth, DebugViewUpdateSearched, DebugViewCreateSearched:
		return func(l *Layers, img *Image) error {
			return ShowDepth(l.Depth, img)
		}

	case DebugViewVelocity:
		return func(l *Layers, img *Image) error {
			return ShowVelocity(l.Velocity, l.maxVelocity(), img)
		}

	case DebugViewFilteredVelocity:
		return func(l *Layers, img *Image) error {
			return ShowVelocity(l.FilteredVelocity, l.maxVelocity(), img)
		}

	case DebugViewUpdateSegmentation:
		return func(l *Layers, img *Image) error {
			return ShowLabels(l.UpdateSegmentation, img)
		}

	case DebugViewCreateSegmentation:
		return func(l *Layers, img *Image) error {
			return ShowLabels(l.CreateSegmentation, img)
		}

	case DebugViewScore:
		return func(l *Layers, img *Image) error {
			return ShowNormArray(l.BasicScore, l.LayerSegmentation, img)
		}

	case DebugViewEdgeDistance:
		return func(l *Layers, img *Image) error {
			return ShowNormArray(l.LayerEdgeDistance, l.LayerSegmentation, img)
		}

	case DebugViewHandWindow:
		return func(l *Layers, img *Image) error {
			return ShowDepth(l.DepthWindow, img)
		}
	}

	return nil
}

// renderers is the view to renderer table
var renderers = buildRenderers()

func buildRenderers() [debugViewCount]renderer {

	var table [debugViewCount]renderer

	for v := DebugView(0); v < debugViewCount; v++ {
		r := rendererFor(v)

		if r == nil {
			panic(fmt.Sprintf("render: no renderer for debug view %s", v))
		}

		table[v] = r
	}

	return table
}

// Render paints view v into img.  Every view except the hand window gets the
// foreground overlaid and the searched views also get their pass's claimed
// pixels overlaid.
func Render(v DebugView, l *Layers, img *Image) error {

	if !v.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownView, int(v))
	}

	if err := renderers[v](l, img); err != nil {
		return fmt.Errorf("failed to render %s view: %w", v, err)
	}

	if v == DebugViewHandWindow {
		return nil
	}

	switch v {
	case DebugViewUpdateSearched:
		if err := OverlayMask(img, l.UpdateSearched, SearchedColor, searchedAlpha); err != nil {
			return err
		}

	case DebugViewCreateSearched:
		if err := OverlayMask(img, l.CreateSearched, SearchedColor, searchedAlpha); err != nil {
			return err
		}
	}

	return OverlayMask(img, l.Foreground, ForegroundColor, foregroundAlpha)
}
