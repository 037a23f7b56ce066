package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/gatecount/pkg/detect"
	"github.com/cyclopcam/gatecount/pkg/gate"
	"github.com/cyclopcam/gatecount/pkg/videosrc"
	"github.com/cyclopcam/logs"
)

// gatereplay runs a labels file through the counter, without any video, and prints the counts
func main() {
	parser := argparse.NewParser("gatereplay", "Replay tracked detections through the vehicle counter")
	labelsFile := parser.String("i", "input", &argparse.Options{Help: "Labels JSON file", Required: true})
	linePosition := parser.Float("", "line", &argparse.Options{Help: "Gate line position, as a fraction of frame height", Default: gate.DefaultLinePosition})
	maxTrackAge := parser.Int("", "maxage", &argparse.Options{Help: "Forget tracks unseen for this many frames (0 = never)", Default: gate.DefaultMaxTrackAge})
	confidence := parser.Float("", "confidence", &argparse.Options{Help: "Minimum detection confidence", Default: 0.0})
	height := parser.Int("", "height", &argparse.Options{Help: "Frame height, if the labels file doesn't specify it", Default: 0})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Log every crossing", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		panic(err)
	}

	labels, err := detect.LoadLabels(*labelsFile)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	frameHeight := labels.Height
	if *height != 0 {
		frameHeight = *height
	}
	if frameHeight <= 0 {
		logger.Errorf("Frame height is unknown. Use --height")
		os.Exit(1)
	}

	cfg := gate.DefaultConfig()
	cfg.LinePosition = *linePosition
	cfg.MaxTrackAge = *maxTrackAge
	session, err := gate.NewSession(cfg)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	replay := detect.NewReplayAdapter(labels)
	ctx := context.Background()
	for i := int64(0); i < replay.NumFrames(); i++ {
		obs, err := replay.Detect(ctx, &videosrc.Frame{Index: i}, float32(*confidence))
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		result := session.AdvanceNoRender(frameHeight, obs)
		if *verbose {
			for _, c := range result.Crossings {
				logger.Infof("Frame %v: %v #%v %v (%v -> %v, line %v)", c.Frame, c.Label, c.TrackID, c.Direction, c.FromY, c.ToY, result.LineY)
			}
		}
	}

	b, _ := json.MarshalIndent(session.Export(), "", "  ")
	fmt.Printf("%v\n", string(b))
}
