package handtrack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/swdee/go-handtrack/preprocess"
	"github.com/swdee/go-handtrack/render"
	"github.com/swdee/go-handtrack/tracker"
)

// maxConfigSize is the largest configuration file accepted
const maxConfigSize = 1 * 1024 * 1024 // 1MB

// Config holds every setting of a HandTracker
type Config struct {
	// Preprocess are the depth preprocessing parameters.  The source
	// resolution is taken from the depth stream.
	Preprocess preprocess.Params `json:"preprocess"`
	// Tracking are the point tracking parameters
	Tracking tracker.Params `json:"tracking"`
	// IncludeCandidates publishes candidate points on the hand stream
	IncludeCandidates bool `json:"include_candidates"`
	// DebugView is the name of the initial debug view
	DebugView string `json:"debug_view"`
	// HorizontalFOV and VerticalFOV are the sensor field of view in degrees,
	// used when the depth stream does not provide a coordinate mapper
	HorizontalFOV float64 `json:"horizontal_fov"`
	VerticalFOV   float64 `json:"vertical_fov"`
	// StreamBuffers is the number of frame buffers of each output stream
	StreamBuffers int `json:"stream_buffers"`
}

// DefaultConfig returns the configuration for a 320x240 depth sensor tracked
// at 80x60
func DefaultConfig() Config {
	return Config{
		Preprocess:        preprocess.DefaultParams(),
		Tracking:          tracker.DefaultParams(),
		IncludeCandidates: false,
		DebugView:         render.DebugViewDepth.String(),
		HorizontalFOV:     58,
		VerticalFOV:       45,
		StreamBuffers:     DefaultStreamBuffers,
	}
}

// LoadConfig loads a Config from a JSON file.  The file must have a .json
// extension and be under 1MB.  Fields omitted from the file keep their
// default values.
func LoadConfig(path string) (Config, error) {

	cleanPath := filepath.Clean(path)

	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)

	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}

	if fileInfo.Size() > maxConfigSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)",
			fileInfo.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)

	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable
func (c Config) Validate() error {

	if err := c.Preprocess.Validate(); err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}

	if err := c.Tracking.Validate(); err != nil {
		return fmt.Errorf("tracking: %w", err)
	}

	if _, err := render.ParseDebugView(c.DebugView); err != nil {
		return err
	}

	if c.HorizontalFOV <= 0 || c.HorizontalFOV >= 180 ||
		c.VerticalFOV <= 0 || c.VerticalFOV >= 180 {
		return fmt.Errorf("field of view must be between 0 and 180 degrees, got %.1fx%.1f",
			c.HorizontalFOV, c.VerticalFOV)
	}

	if c.StreamBuffers < 2 {
		return fmt.Errorf("stream_buffers must be at least 2, got %d", c.StreamBuffers)
	}

	return nil
}
