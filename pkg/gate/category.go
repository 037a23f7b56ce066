package gate

import (
	"fmt"
	"strings"
)

// Category is the vehicle class that a crossing is attributed to
type Category int

const (
	CategoryCar Category = iota
	CategoryBike
	CategoryBus
	CategoryTruck
	numCategories
)

// Categories in export order
var Categories = []Category{CategoryCar, CategoryBike, CategoryBus, CategoryTruck}

func (c Category) String() string {
	switch c {
	case CategoryCar:
		return "Car"
	case CategoryBike:
		return "Bike"
	case CategoryBus:
		return "Bus"
	case CategoryTruck:
		return "Truck"
	}
	return "Unknown"
}

// CategoryFromLabel maps a raw detector label onto a counting category.
// The comparison is case-insensitive. Returns false for any label that is not counted.
func CategoryFromLabel(label string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "car":
		return CategoryCar, true
	case "motorcycle":
		return CategoryBike, true
	case "bus":
		return CategoryBus, true
	case "truck":
		return CategoryTruck, true
	}
	return 0, false
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	v, ok := parseCategory(string(b))
	if !ok {
		return fmt.Errorf("Unknown category '%v'", string(b))
	}
	*c = v
	return nil
}

func parseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}
