package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/gatecount/pkg/detect"
	"github.com/cyclopcam/gatecount/pkg/detect/yolocv"
	"github.com/cyclopcam/gatecount/pkg/nn"
	"github.com/cyclopcam/gatecount/pkg/videosrc"
	"github.com/cyclopcam/gatecount/pkg/videosrc/cvsource"
	"github.com/cyclopcam/gatecount/server"
	"github.com/cyclopcam/gatecount/server/config"
	"github.com/cyclopcam/gatecount/server/countdb"
	"github.com/cyclopcam/gatecount/server/pipeline"
	"github.com/cyclopcam/gatecount/server/report"
	"github.com/cyclopcam/logs"
)

func main() {
	parser := argparse.NewParser("gatecount", "Count vehicles crossing a line in a video")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Config file path. Defaults are used if empty.", Default: ""})
	sourcePath := parser.String("s", "source", &argparse.Options{Help: "Video file, stream URL, capture device, or directory of images", Default: ""})
	labelsFile := parser.String("", "labels", &argparse.Options{Help: "Replay tracked detections from this labels file, instead of running a detector", Default: ""})
	modelName := parser.String("", "nn", &argparse.Options{Help: "Neural network for object detection (eg yolov8n)", Default: ""})
	linePosition := parser.Float("", "line", &argparse.Options{Help: "Gate line position, as a fraction of frame height", Default: 0.0})
	confidence := parser.Float("", "confidence", &argparse.Options{Help: "Minimum detection confidence", Default: -1.0})
	listen := parser.String("", "listen", &argparse.Options{Help: "HTTP listen address (eg :8080)", Default: ""})
	saveLabels := parser.String("", "save-labels", &argparse.Options{Help: "Save tracked detections to this file when we exit", Default: ""})
	once := parser.Flag("", "once", &argparse.Options{Help: "Count the source once, print the counts, and exit. No HTTP server.", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		panic(err)
	}

	cfg := config.Default()
	if *configFile != "" {
		if cfg, err = config.Load(*configFile); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
	}
	if *sourcePath != "" {
		cfg.Source.Path = *sourcePath
	}
	if *labelsFile != "" {
		cfg.Detector.Labels = *labelsFile
	}
	if *modelName != "" {
		cfg.Detector.Model = *modelName
	}
	if *linePosition != 0 {
		cfg.Gate.LinePosition = *linePosition
	}
	if *confidence >= 0 {
		cfg.Detector.Confidence = float32(*confidence)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if err := cfg.Validate(); err != nil {
		logger.Errorf("Invalid config: %v", err)
		os.Exit(1)
	}

	countDB, err := countdb.Open(logger, cfg.DB)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	store, err := report.NewStorage(logger, cfg.Storage)
	if err != nil {
		logger.Errorf("Failed to open report storage: %v", err)
		os.Exit(1)
	}
	exporter := report.NewExporter(logger, store)

	adapter, replayFrames, err := buildAdapter(logger, &cfg.Detector)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	var recorder *detect.Recorder
	if *saveLabels != "" {
		recorder = detect.NewRecorder(adapter)
		adapter = recorder
	}

	src, err := openSource(&cfg.Source, &cfg.Detector, replayFrames)
	if err != nil {
		logger.Errorf("Failed to open video source: %v", err)
		adapter.Close()
		os.Exit(1)
	}

	pipe, err := pipeline.New(logger, pipeline.Config{Gate: cfg.GateSessionConfig(), Confidence: cfg.Detector.Confidence}, adapter, countDB, exporter)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if err := pipe.Start(src); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	exitCode := 0
	if *once {
		if err := pipe.Wait(); err != nil {
			exitCode = 1
		}
		counts := pipe.Status().Counts
		pipe.Close()
		b, _ := json.MarshalIndent(counts.Export(), "", "  ")
		fmt.Printf("%v\n", string(b))
	} else {
		srv, err := server.NewServer(logger, cfg, pipe, countDB, exporter)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		srv.ListenForKillSignals()

		// Tell systemd that we're alive.
		daemon.SdNotify(false, daemon.SdNotifyReady)

		if err := srv.ListenHTTP(cfg.Listen); err != nil {
			logger.Errorf("ListenHTTP returned: %v", err)
			exitCode = 1
			srv.Shutdown()
		}
		<-srv.ShutdownComplete
	}

	if recorder != nil {
		if err := recorder.Save(*saveLabels); err != nil {
			logger.Errorf("Failed to save labels: %v", err)
		} else {
			logger.Infof("Saved labels to %v", *saveLabels)
		}
	}
	countDB.Close()
	logger.Close()
	os.Exit(exitCode)
}

// buildAdapter returns a replay adapter if a labels file is configured, otherwise a YOLO detector with a tracker.
// For replay, it also returns the number of frames in the labels file.
func buildAdapter(log logs.Log, cfg *config.DetectorConfig) (detect.Adapter, int64, error) {
	if cfg.Labels != "" {
		labels, err := detect.LoadLabels(cfg.Labels)
		if err != nil {
			return nil, 0, err
		}
		replay := detect.NewReplayAdapter(labels)
		log.Infof("Replaying %v frames of detections from %v", replay.NumFrames(), cfg.Labels)
		return replay, replay.NumFrames(), nil
	}

	var modelConfig *nn.ModelConfig
	if _, err := os.Stat(cfg.ModelConfigFile()); err == nil {
		if modelConfig, err = nn.LoadModelConfig(cfg.ModelConfigFile()); err != nil {
			return nil, 0, fmt.Errorf("Error loading %v: %w", cfg.ModelConfigFile(), err)
		}
	} else {
		// Stock YOLO weights are trained on COCO
		modelConfig = &nn.ModelConfig{
			Architecture: cfg.Model,
			Width:        cfg.Width,
			Height:       cfg.Height,
			Classes:      nn.COCOClasses,
		}
	}
	log.Infof("Loading %v (%vx%v, %v classes)", cfg.ModelFile(), modelConfig.Width, modelConfig.Height, len(modelConfig.Classes))
	detector, err := yolocv.New(cfg.ModelFile(), modelConfig)
	if err != nil {
		return nil, 0, err
	}
	tc := detect.DefaultTrackingConfig()
	tc.InferenceWidth = cfg.InferenceWidth
	tc.Classes = cfg.Classes
	return detect.NewTrackingAdapter(detector, tc), 0, nil
}

// openSource opens a directory of images, or anything that OpenCV can decode.
// With a labels replay and no source, frames are blank.
func openSource(cfg *config.SourceConfig, det *config.DetectorConfig, replayFrames int64) (videosrc.Source, error) {
	if cfg.Path == "" {
		if det.Labels == "" {
			return nil, fmt.Errorf("No video source configured")
		}
		labels, err := detect.LoadLabels(det.Labels)
		if err != nil {
			return nil, err
		}
		if labels.Width == 0 || labels.Height == 0 {
			return nil, fmt.Errorf("Labels file %v has no frame size, so a video source is required", det.Labels)
		}
		return videosrc.NewBlank("labels:"+det.Labels, labels.Width, labels.Height, replayFrames, cfg.FPS), nil
	}
	if st, err := os.Stat(cfg.Path); err == nil && st.IsDir() {
		return videosrc.OpenImageSequence(cfg.Path, cfg.FPS, cfg.MaxWidth)
	}
	return cvsource.Open(cfg.Path, cfg.MaxWidth)
}
