package parking

import (
	"fmt"
	"strings"
)

type Vehicle struct {
	Plate    string
	Owner    string
	Category Category
}

func NewVehicle(plate, owner string, category Category) Vehicle {
	return Vehicle{
		Plate:    normalizePlate(plate),
		Owner:    strings.TrimSpace(owner),
		Category: category,
	}
}

func (v Vehicle) Validate() error {
	if v.Plate == "" {
		return fmt.Errorf("%w: plate is required", ErrInvalidVehicle)
	}
	if !v.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, v.Category)
	}
	return nil
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}
