// Package yolocv runs YOLO object detection models through OpenCV's DNN module
package yolocv

import (
	"fmt"
	"image"

	"github.com/cyclopcam/gatecount/pkg/nn"
	"gocv.io/x/gocv"
)

// Detector implements nn.ObjectDetector for YOLO models exported to ONNX.
// Both the YOLOv8 output layout [1, 4+classes, N] and the YOLOv5 layout
// [1, N, 5+classes] are understood.
type Detector struct {
	net    gocv.Net
	config nn.ModelConfig
}

// New loads a model file (eg yolov8n.onnx).
// config supplies the input resolution and class names.
func New(modelFile string, config *nn.ModelConfig) (*Detector, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("Model input size %vx%v is invalid", config.Width, config.Height)
	}
	if len(config.Classes) == 0 {
		return nil, fmt.Errorf("Model has no classes")
	}
	net := gocv.ReadNet(modelFile, "")
	if net.Empty() {
		return nil, fmt.Errorf("Failed to load YOLO network from %v", modelFile)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return &Detector{
		net:    net,
		config: *config,
	}, nil
}

func (d *Detector) Close() {
	d.net.Close()
}

func (d *Detector) Config() *nn.ModelConfig {
	return &d.config
}

func (d *Detector) DetectObjects(img *image.RGBA, params *nn.DetectionParams) ([]nn.ObjectDetection, error) {
	p := params.WithDefaults()

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("Failed to convert image: %w", err)
	}
	defer mat.Close()

	// The Mat is BGR, so swap channels for the network
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(d.config.Width, d.config.Height), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("Failed to read network output: %w", err)
	}

	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("Unexpected YOLO output shape %v", dims)
	}
	nClasses := len(d.config.Classes)
	var layout outputLayout
	switch {
	case dims[1] == 4+nClasses:
		layout = outputLayout{numBoxes: dims[2], stride: dims[2], channelMajor: true}
	case dims[2] == 5+nClasses:
		layout = outputLayout{numBoxes: dims[1], stride: dims[2], objectness: true}
	default:
		return nil, fmt.Errorf("YOLO output shape %v does not match %v classes", dims, nClasses)
	}

	scaleX := float32(img.Bounds().Dx()) / float32(d.config.Width)
	scaleY := float32(img.Bounds().Dy()) / float32(d.config.Height)
	objects := decode(data, layout, nClasses, p.ProbabilityThreshold, scaleX, scaleY)
	if !p.Unclipped {
		for i := range objects {
			objects[i].Box = objects[i].Box.Clip(img.Bounds().Dx(), img.Bounds().Dy())
		}
	}
	return nn.NonMaxSuppression(objects, p.NmsIouThreshold), nil
}
