package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/hexslice/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestEmptyConfigDefaults(t *testing.T) {
	c := EmptyConfig()
	require.NoError(t, c.Validate())

	assert.True(t, c.GetHistoryEnabled())
	assert.Equal(t, domain.Marlin, c.GetFlavor())
	assert.Equal(t, 60.0, c.GetBedTemperature())
	assert.Equal(t, Volume{X: 220, Y: 220, Z: 250}, c.GetBuildVolume())
	assert.Equal(t, 0.4, c.GetLineWidth())
	assert.Equal(t, 30*time.Second, c.GetAckTimeout())
	assert.Empty(t, c.GetAllowedOutputDirs())

	baud, data, stop, parity := c.GetSerial()
	assert.Equal(t, 115200, baud)
	assert.Equal(t, 8, data)
	assert.Equal(t, 1, stop)
	assert.Equal(t, "N", parity)
}

func TestGetDatabasePath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	c := EmptyConfig()
	assert.Equal(t, filepath.Join("/data", "hexslice", "history.db"), c.GetDatabasePath())

	p := "/tmp/h.db"
	c.DatabasePath = &p
	assert.Equal(t, p, c.GetDatabasePath())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "hexslice.json", `{
		"flavor": "klipper",
		"history_enabled": false,
		"build_volume": {"x": 300, "y": 300, "z": 400},
		"ack_timeout": "5s",
		"serial": {"baud_rate": 250000, "parity": "e"},
		"allowed_output_dirs": ["/srv/gcode"]
	}`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, domain.Klipper, c.GetFlavor())
	assert.False(t, c.GetHistoryEnabled())
	assert.Equal(t, Volume{X: 300, Y: 300, Z: 400}, c.GetBuildVolume())
	assert.Equal(t, 5*time.Second, c.GetAckTimeout())
	if diff := cmp.Diff([]string{"/srv/gcode"}, c.GetAllowedOutputDirs()); diff != "" {
		t.Errorf("allowed dirs mismatch (-want +got):\n%s", diff)
	}

	baud, data, stop, parity := c.GetSerial()
	assert.Equal(t, 250000, baud)
	assert.Equal(t, 8, data)
	assert.Equal(t, 1, stop)
	assert.Equal(t, "E", parity)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "cfg.json", `{`, "parse config JSON"},
		{"unknown field", "cfg.json", `{"nozzle": 1}`, "parse config JSON"},
		{"bad flavor", "cfg.json", `{"flavor": "makerbot"}`, "unknown G-code flavor"},
		{"bad timeout", "cfg.json", `{"ack_timeout": "soon"}`, "invalid ack_timeout"},
		{"negative timeout", "cfg.json", `{"ack_timeout": "-1s"}`, "must be positive"},
		{"flat volume", "cfg.json", `{"build_volume": {"x": 200, "y": 200, "z": 0}}`, "build_volume"},
		{"bad parity", "cfg.json", `{"serial": {"parity": "M"}}`, "parity"},
		{"bad stop bits", "cfg.json", `{"serial": {"stop_bits": 3}}`, "stop_bits"},
		{"thin line", "cfg.json", `{"line_width": 0.01}`, "line_width"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadTooLarge(t *testing.T) {
	body := `{"allowed_output_dirs": ["` + strings.Repeat("a", maxFileSize) + `"]}`
	_, err := Load(writeConfig(t, "big.json", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestResolve(t *testing.T) {
	envPath := writeConfig(t, "env.json", `{"flavor": "prusa"}`)
	flagPath := writeConfig(t, "flag.json", `{"flavor": "repetier"}`)

	t.Setenv(EnvConfigPath, "")
	c, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, domain.Marlin, c.GetFlavor())

	t.Setenv(EnvConfigPath, envPath)
	c, err = Resolve("")
	require.NoError(t, err)
	assert.Equal(t, domain.Prusa, c.GetFlavor())

	c, err = Resolve(flagPath)
	require.NoError(t, err)
	assert.Equal(t, domain.Repetier, c.GetFlavor())
}
