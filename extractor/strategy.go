package extractor

import (
	"strconv"
	"strings"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/ysmood/gson"
)

// Strategy reads the raw value of one field from one listing.
// Site markup knowledge lives in strategies only.
type Strategy interface {
	Name() string

	// Lookup returns the raw text for field, or false when the strategy
	// cannot locate it on this listing.
	Lookup(l *Listing, field string) (string, bool)
}

// DefaultStrategies returns the cascade in its fixed order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		StructuredData{},
		NewIconAdjacency(),
		NewCSSClass(),
		NewRegex(),
	}
}

// StructuredData reads the schema.org Car entry attached to the listing.
type StructuredData struct{}

func (StructuredData) Name() string { return "structured" }

var structuredPaths = map[string][][]interface{}{
	models.FieldModel: {{"name"}, {"offers", "itemOffered", "name"}},
	models.FieldPrice: {{"offers", "price"}, {"offers", "priceSpecification", "price"}},
	models.FieldMileage: {
		{"offers", "itemOffered", "mileageFromOdometer", "value"},
		{"mileageFromOdometer", "value"},
	},
	models.FieldPower: {
		{"offers", "itemOffered", "vehicleEngine", "enginePower", "value"},
		{"vehicleEngine", "enginePower", "value"},
	},
	models.FieldPowerMode: {
		{"offers", "itemOffered", "vehicleEngine", "fuelType"},
		{"offers", "itemOffered", "fuelType"},
		{"vehicleEngine", "fuelType"},
	},
	models.FieldProductionDate: {
		{"offers", "itemOffered", "dateVehicleFirstRegistered"},
		{"offers", "itemOffered", "productionDate"},
		{"dateVehicleFirstRegistered"},
	},
	models.FieldConsumption: {
		{"offers", "itemOffered", "fuelConsumption", "value"},
		{"fuelConsumption", "value"},
	},
	models.FieldTransmission: {
		{"offers", "itemOffered", "vehicleTransmission"},
		{"vehicleTransmission"},
	},
}

func (StructuredData) Lookup(l *Listing, field string) (string, bool) {
	if !l.HasStructured {
		return "", false
	}
	if field == models.FieldURL {
		u := structuredURL(l.Structured)
		return u, u != ""
	}
	for _, path := range structuredPaths[field] {
		if s, ok := scalar(l.Structured.Gets(path...)); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// scalar renders a JSON string or number. Objects and arrays are not scalars.
func scalar(j gson.JSON) (string, bool) {
	switch v := j.Val().(type) {
	case string:
		return strings.TrimSpace(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}
