package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SQLDumpPump/internal/config"
)

func TestInitZapWritesErrorsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pump.log")
	lg, err := InitZap(&config.LoggingConfig{Level: "debug", LogFile: path})
	require.NoError(t, err)

	lg.Info("только в консоль")
	lg.Error("в файл")
	_ = lg.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "в файл")
	assert.NotContains(t, string(data), "только в консоль")
}

func TestInitZapRejectsBadLevel(t *testing.T) {
	_, err := InitZap(&config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestInitZapJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pump.log")
	lg, err := InitZap(&config.LoggingConfig{Level: "info", Format: "json", LogFile: path})
	require.NoError(t, err)

	lg.Named("pump").Error("битый VALUES")
	_ = lg.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"N":"pump"`)
	assert.Contains(t, string(data), `"M":"битый VALUES"`)
}

func TestInitZapRejectsBadFormat(t *testing.T) {
	_, err := InitZap(&config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
