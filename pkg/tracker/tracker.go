// Package tracker assigns persistent IDs to objects detected in consecutive frames
package tracker

import (
	"github.com/bmharper/flatbush-go"
	"github.com/cyclopcam/gatecount/pkg/idgen"
	"github.com/cyclopcam/gatecount/pkg/nn"
)

type Config struct {
	ForgetAfterFrames int     // Drop a tracked object after it has been missing for this many frames
	MinSearchBuffer   float32 // Minimum search radius for phase 1, as a fraction of frame width
	SearchExpand      float32 // Phase 1 search radius, as a fraction of the box size
	MaxDistance       float32 // Phase 2 limit on centre distance, as a fraction of frame width. Zero means no limit.
}

func DefaultConfig() Config {
	return Config{
		ForgetAfterFrames: 30,
		MinSearchBuffer:   0.05,
		SearchExpand:      0.8,
		MaxDistance:       0.25,
	}
}

// Object is a tracked object
type Object struct {
	ID        int64
	Class     int
	Box       nn.Rect // Most recent position
	FirstSeen int64   // Frame number
	LastSeen  int64   // Frame number
	Sightings int
}

// Tracker is not safe for concurrent use
type Tracker struct {
	config  Config
	tracked []*Object
	ids     idgen.Int64
	frame   int64
}

func New(config Config) *Tracker {
	return &Tracker{
		config: config,
	}
}

// Reset forgets every tracked object, and restarts IDs at 1
func (t *Tracker) Reset() {
	t.tracked = nil
	t.ids.Reset()
	t.frame = 0
}

// Tracked returns a copy of the objects currently being tracked
func (t *Tracker) Tracked() []Object {
	out := make([]Object, len(t.tracked))
	for i, obj := range t.tracked {
		out[i] = *obj
	}
	return out
}

// Update associates the objects of a new frame with existing tracks, creates tracks
// for new objects, and forgets tracks that have been missing for too long.
// Returns a copy of 'objects' with the Track field populated.
func (t *Tracker) Update(objects []nn.ObjectDetection, frameWidth int) []nn.ObjectDetection {
	frame := t.frame
	t.frame++

	minSearchBuffer := int32(t.config.MinSearchBuffer * float32(frameWidth))
	maxDistance := t.config.MaxDistance * float32(frameWidth)

	// Map from objects[i] to tracked[j]
	newToTracked := make([]int, len(objects))
	for i := range newToTracked {
		newToTracked[i] = -1
	}

	// trackedHasMatch[j] is true if tracked[j] has been matched to a new object
	trackedHasMatch := make([]bool, len(t.tracked))

	// Find the best unmatched object of the same class among 'existingList'.
	// Highest IoU wins. If nothing overlaps, the closest centre wins.
	findClosestObjectFromList := func(newIndex int, existingList []int, limitDistance bool) {
		newObj := &objects[newIndex]
		bestJ := -1
		bestIOU := float32(0)
		bestDistance := float32(9e20)
		for _, j := range existingList {
			if trackedHasMatch[j] {
				continue
			}
			oldObj := t.tracked[j]
			if oldObj.Class != newObj.Class {
				continue
			}
			iou := newObj.Box.IOU(oldObj.Box)
			distance := newObj.Box.Center().Distance(oldObj.Box.Center())
			if limitDistance && maxDistance > 0 && iou == 0 && distance > maxDistance {
				continue
			}
			// Boxes may not overlap at all when the frame rate is low, so fall back to centre distance
			if iou > bestIOU {
				bestIOU = iou
				bestJ = j
			} else if bestIOU == 0 && distance < bestDistance {
				bestDistance = distance
				bestJ = j
			}
		}
		if bestJ != -1 {
			trackedHasMatch[bestJ] = true
			newToTracked[newIndex] = bestJ
		}
	}

	// Phase 1:
	// Find existing objects that are reasonably close to the detected object
	if len(t.tracked) != 0 {
		// Create spatial index on the currently tracked objects
		fb := flatbush.NewFlatbush[int32]()
		fb.Reserve(len(t.tracked))
		for _, obj := range t.tracked {
			fb.Add(obj.Box.X, obj.Box.Y, obj.Box.X2(), obj.Box.Y2())
		}
		fb.Finish()

		nearbyIdx := []int{}
		for i := range objects {
			box := objects[i].Box
			searchBufferX := max(minSearchBuffer, int32(t.config.SearchExpand*float32(box.Width)))
			searchBufferY := max(minSearchBuffer, int32(t.config.SearchExpand*float32(box.Height)))
			nearbyIdx = fb.SearchFast(box.X-searchBufferX, box.Y-searchBufferY, box.X2()+searchBufferX, box.Y2()+searchBufferY, nearbyIdx)
			findClosestObjectFromList(i, nearbyIdx, false)
		}
	}

	// Phase 2:
	// Match leftover detections to any leftover track, up to MaxDistance.
	// A low NN frame rate can move an object far beyond the phase 1 search window.
	unmatched := []int{}
	for j := range t.tracked {
		if !trackedHasMatch[j] {
			unmatched = append(unmatched, j)
		}
	}
	for i := range objects {
		if newToTracked[i] != -1 {
			continue
		}
		findClosestObjectFromList(i, unmatched, true)
	}

	// Update existing objects, and create new objects
	out := make([]nn.ObjectDetection, len(objects))
	for i := range objects {
		newObj := objects[i]
		bestJ := newToTracked[i]
		var obj *Object
		if bestJ == -1 {
			obj = &Object{
				ID:        t.ids.Next(),
				Class:     newObj.Class,
				FirstSeen: frame,
			}
			t.tracked = append(t.tracked, obj)
		} else {
			obj = t.tracked[bestJ]
		}
		obj.Box = newObj.Box
		obj.LastSeen = frame
		obj.Sightings++
		newObj.Track = obj.ID
		out[i] = newObj
	}

	// Forget objects that we haven't seen for a while
	keep := t.tracked[:0]
	for _, obj := range t.tracked {
		if frame-obj.LastSeen <= int64(t.config.ForgetAfterFrames) {
			keep = append(keep, obj)
		}
	}
	clear(t.tracked[len(keep):])
	t.tracked = keep

	return out
}
