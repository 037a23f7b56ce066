package gate

import "fmt"

// Direction of travel across the gate line.
// Incoming is top-to-bottom in image coordinates (y increasing).
type Direction int

const (
	DirectionIncoming Direction = iota
	DirectionOutgoing
	numDirections
)

// Directions in export order
var Directions = []Direction{DirectionIncoming, DirectionOutgoing}

func (d Direction) String() string {
	switch d {
	case DirectionIncoming:
		return "Incoming"
	case DirectionOutgoing:
		return "Outgoing"
	}
	return "Unknown"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, ok := parseDirection(string(b))
	if !ok {
		return fmt.Errorf("Unknown direction '%v'", string(b))
	}
	*d = v
	return nil
}

func parseDirection(s string) (Direction, bool) {
	for _, d := range Directions {
		if d.String() == s {
			return d, true
		}
	}
	return 0, false
}

// DetectCrossing reports whether a centroid that moved from prevY to cy has crossed lineY.
// Landing exactly on the line counts as a crossing; leaving it does not.
func DetectCrossing(prevY, cy, lineY int) (Direction, bool) {
	if prevY < lineY && cy >= lineY {
		return DirectionIncoming, true
	}
	if prevY > lineY && cy <= lineY {
		return DirectionOutgoing, true
	}
	return 0, false
}

// ResolveLineY converts a fractional line position into a pixel row
func ResolveLineY(frameHeight int, position float64) int {
	return int(float64(frameHeight) * position)
}
