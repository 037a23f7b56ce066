package gate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Counts is the (direction x category) table of accepted crossings.
// It is a value type, so a copy is a snapshot.
type Counts struct {
	values [numDirections][numCategories]uint64
}

func (c *Counts) Increment(d Direction, cat Category) {
	c.values[d][cat]++
}

func (c Counts) Get(d Direction, cat Category) uint64 {
	return c.values[d][cat]
}

// Category returns the count of 'cat' in both directions
func (c Counts) Category(cat Category) uint64 {
	total := uint64(0)
	for _, d := range Directions {
		total += c.values[d][cat]
	}
	return total
}

// Direction returns the count of all categories travelling in direction 'd'
func (c Counts) Direction(d Direction) uint64 {
	total := uint64(0)
	for _, cat := range Categories {
		total += c.values[d][cat]
	}
	return total
}

// Total number of accepted crossings
func (c Counts) Total() uint64 {
	return c.Direction(DirectionIncoming) + c.Direction(DirectionOutgoing)
}

// ExportKey returns the flat key of a counts cell, eg "Incoming_Car"
func ExportKey(d Direction, cat Category) string {
	return d.String() + "_" + cat.String()
}

// Export flattens the table into "<Direction>_<Category>" keys.
// Every key is present, including zeros.
func (c Counts) Export() map[string]uint64 {
	m := make(map[string]uint64, int(numDirections)*int(numCategories))
	for _, d := range Directions {
		for _, cat := range Categories {
			m[ExportKey(d, cat)] = c.values[d][cat]
		}
	}
	return m
}

// ExportByCategory flattens the table into directionless keys, eg "Car"
func (c Counts) ExportByCategory() map[string]uint64 {
	m := make(map[string]uint64, int(numCategories))
	for _, cat := range Categories {
		m[cat.String()] = c.Category(cat)
	}
	return m
}

// ParseExport is the inverse of Export. Missing keys are treated as zero.
func ParseExport(m map[string]uint64) (Counts, error) {
	c := Counts{}
	for k, v := range m {
		dir, cat, ok := strings.Cut(k, "_")
		if !ok {
			return Counts{}, fmt.Errorf("Invalid counts key '%v'", k)
		}
		d, okD := parseDirection(dir)
		ct, okC := parseCategory(cat)
		if !okD || !okC {
			return Counts{}, fmt.Errorf("Invalid counts key '%v'", k)
		}
		c.values[d][ct] = v
	}
	return c, nil
}

func (c Counts) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Export())
}

func (c *Counts) UnmarshalJSON(b []byte) error {
	m := map[string]uint64{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	parsed, err := ParseExport(m)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
