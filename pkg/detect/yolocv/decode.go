package yolocv

import (
	"github.com/chewxy/math32"
	"github.com/cyclopcam/gatecount/pkg/nn"
)

type outputLayout struct {
	numBoxes     int
	stride       int  // Distance between consecutive values of one box (channel-major), or between boxes (box-major)
	channelMajor bool // YOLOv8: [1, 4+classes, N]. Otherwise YOLOv5: [1, N, 5+classes]
	objectness   bool // Box has an objectness score before the class scores
}

// decode turns raw YOLO output into boxes in the coordinate space of the input image
func decode(data []float32, layout outputLayout, nClasses int, threshold, scaleX, scaleY float32) []nn.ObjectDetection {
	at := func(box, channel int) float32 {
		if layout.channelMajor {
			return data[channel*layout.stride+box]
		}
		return data[box*layout.stride+channel]
	}
	firstClass := 4
	if layout.objectness {
		firstClass = 5
	}

	objects := []nn.ObjectDetection{}
	for i := 0; i < layout.numBoxes; i++ {
		bestClass := -1
		bestScore := float32(0)
		for c := 0; c < nClasses; c++ {
			score := at(i, firstClass+c)
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if layout.objectness {
			bestScore *= at(i, 4)
		}
		if bestClass == -1 || bestScore < threshold {
			continue
		}
		cx := at(i, 0) * scaleX
		cy := at(i, 1) * scaleY
		w := at(i, 2) * scaleX
		h := at(i, 3) * scaleY
		objects = append(objects, nn.ObjectDetection{
			Class:      bestClass,
			Confidence: bestScore,
			Box: nn.Rect{
				X:      int32(math32.Round(cx - w/2)),
				Y:      int32(math32.Round(cy - h/2)),
				Width:  int32(math32.Round(w)),
				Height: int32(math32.Round(h)),
			},
		})
	}
	return objects
}
