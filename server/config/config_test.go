package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/gatecount/pkg/gate"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, float32(0.45), cfg.Detector.Confidence)
	require.Equal(t, 0.6, cfg.Gate.LinePosition)
	require.Equal(t, filepath.Join("models", "yolov8n.onnx"), cfg.Detector.ModelFile())
}

func TestLoadKeepsDefaults(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "gatecount.json")
	require.NoError(t, os.WriteFile(filename, []byte(`{
		"gate": {"linePosition": 0.5, "maxTrackAge": 0},
		"storage": {"gcs": {"bucket": "counts"}},
		"detector": {"model": "yolov8s"}
	}`), 0644))
	cfg, err := Load(filename)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, 0.5, cfg.Gate.LinePosition)
	require.Equal(t, 0, cfg.Gate.MaxTrackAge)
	require.Equal(t, "counts", cfg.Storage.GCS.Bucket)
	require.Equal(t, "yolov8s", cfg.Detector.Model)
	// Untouched fields keep their defaults
	require.Equal(t, float32(0.45), cfg.Detector.Confidence)
	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, gate.Config{LinePosition: 0.5, MaxTrackAge: 0, ShowCounts: true}, cfg.GateSessionConfig())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	filename := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(filename, []byte(`{"gate": `), 0644))
	_, err = Load(filename)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Detector.Confidence = 1.5
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfidence)

	cfg = Default()
	cfg.Gate.LinePosition = 1
	require.ErrorIs(t, cfg.Validate(), gate.ErrInvalidLinePosition)

	cfg = Default()
	cfg.Storage = StorageConfig{}
	require.ErrorIs(t, cfg.Validate(), ErrNoStorage)

	cfg = Default()
	cfg.Storage.GCS = &StorageConfigGCS{}
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Detector.Model = ""
	require.Error(t, cfg.Validate())
	cfg.Detector.Labels = "labels.json"
	require.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.RateLimit.WindowSeconds = 0
	require.Error(t, cfg.Validate())
}
