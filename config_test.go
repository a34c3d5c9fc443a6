package handtrack

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfigKeepsDefaults(t *testing.T) {

	path := writeConfig(t, "tracker.json", `{
		"include_candidates": true,
		"debug_view": "edge-distance",
		"tracking": {"MaxLostFrames": 5}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := DefaultConfig()
	want.IncludeCandidates = true
	want.DebugView = "edge-distance"
	want.Tracking.MaxLostFrames = 5

	assert.Equal(t, want, cfg)
}

func TestLoadConfigErrors(t *testing.T) {

	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"extension", "tracker.yaml", `{}`, ".json extension"},
		{"syntax", "tracker.json", `{"include_candidates": }`, "parse config JSON"},
		{"view", "tracker.json", `{"debug_view": "thermal"}`, "unknown debug view"},
		{"fov", "tracker.json", `{"horizontal_fov": 0}`, "field of view"},
		{"buffers", "tracker.json", `{"stream_buffers": 1}`, "stream_buffers"},
		{"too large", "tracker.json", `{"pad": "` + strings.Repeat("x", maxConfigSize) + `"}`, "too large"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.file, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "stat config file")
}
