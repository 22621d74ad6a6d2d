package parking

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the closed set of vehicle/slot kinds the facility handles.
type Category string

const (
	CategoryCar   Category = "CAR"
	CategoryBike  Category = "BIKE"
	CategoryTruck Category = "TRUCK"
)

// AllCategories lists every known category in display order.
var AllCategories = []Category{CategoryCar, CategoryBike, CategoryTruck}

func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToUpper(strings.TrimSpace(s))) {
	case CategoryCar:
		return CategoryCar, nil
	case CategoryBike:
		return CategoryBike, nil
	case CategoryTruck:
		return CategoryTruck, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) Valid() bool {
	switch c {
	case CategoryCar, CategoryBike, CategoryTruck:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategories parses a comma separated list such as "CAR,BIKE,TRUCK".
func ParseCategories(s string) ([]Category, error) {
	var out []Category
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := ParseCategory(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty category list", ErrUnknownCategory)
	}
	return out, nil
}
