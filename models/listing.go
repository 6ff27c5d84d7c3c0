package models

import (
	"fmt"
	"strconv"
)

// Missing is written in place of any secondary field that could not be resolved.
const Missing = "N/A"

// NewVehicle is the production-date value the site shows for unregistered cars.
const NewVehicle = "Neues Fahrzeug"

// Field names, shared by the extractor cascade, logs and field statistics.
const (
	FieldModel          = "model"
	FieldPrice          = "price"
	FieldMileage        = "mileage"
	FieldPower          = "power"
	FieldPowerMode      = "power_mode"
	FieldProductionDate = "production_date"
	FieldConsumption    = "consumption"
	FieldTransmission   = "transmission"
	FieldURL            = "url"
)

// Fields lists every field in output column order.
var Fields = []string{
	FieldModel, FieldPrice, FieldMileage, FieldPower, FieldPowerMode,
	FieldProductionDate, FieldConsumption, FieldTransmission, FieldURL,
}

// Columns is the output header. The cleaning stage parses by these names,
// so the order and spelling are part of the file contract.
var Columns = []string{
	"car_model",
	"price_chf",
	"mileage",
	"engine_power_hp",
	"power_mode",
	"production_date",
	"consumption_l_per_100km",
	"transmission",
	"listing_url",
}

// ListingRecord is one scraped vehicle. Price and URL are always set;
// unresolved secondary fields hold Missing or a nil pointer.
type ListingRecord struct {
	Model          string   `json:"model"`
	Price          float64  `json:"price_chf"`
	Mileage        *int     `json:"mileage,omitempty"`
	PowerHP        *int     `json:"engine_power_hp,omitempty"`
	PowerMode      string   `json:"power_mode"`
	ProductionDate string   `json:"production_date"`
	Consumption    *float64 `json:"consumption_l_per_100km,omitempty"`
	Transmission   string   `json:"transmission"`
	URL            string   `json:"listing_url"`
}

// Row renders the record in Columns order.
func (r ListingRecord) Row() []string {
	return []string{
		orMissing(r.Model),
		formatFloat(r.Price),
		formatIntPtr(r.Mileage),
		formatIntPtr(r.PowerHP),
		orMissing(r.PowerMode),
		orMissing(r.ProductionDate),
		formatFloatPtr(r.Consumption),
		orMissing(r.Transmission),
		r.URL,
	}
}

// ParseRow is the inverse of Row.
func ParseRow(row []string) (ListingRecord, error) {
	if len(row) != len(Columns) {
		return ListingRecord{}, fmt.Errorf("row has %d columns, want %d", len(row), len(Columns))
	}
	price, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return ListingRecord{}, fmt.Errorf("price_chf %q: %w", row[1], err)
	}
	mileage, err := parseIntPtr(row[2])
	if err != nil {
		return ListingRecord{}, fmt.Errorf("mileage %q: %w", row[2], err)
	}
	power, err := parseIntPtr(row[3])
	if err != nil {
		return ListingRecord{}, fmt.Errorf("engine_power_hp %q: %w", row[3], err)
	}
	consumption, err := parseFloatPtr(row[6])
	if err != nil {
		return ListingRecord{}, fmt.Errorf("consumption_l_per_100km %q: %w", row[6], err)
	}
	return ListingRecord{
		Model:          row[0],
		Price:          price,
		Mileage:        mileage,
		PowerHP:        power,
		PowerMode:      row[4],
		ProductionDate: row[5],
		Consumption:    consumption,
		Transmission:   row[7],
		URL:            row[8],
	}, nil
}

// Has reports whether a field carries a resolved value.
func (r ListingRecord) Has(field string) bool {
	switch field {
	case FieldModel:
		return present(r.Model)
	case FieldPrice:
		return r.Price > 0
	case FieldMileage:
		return r.Mileage != nil
	case FieldPower:
		return r.PowerHP != nil
	case FieldPowerMode:
		return present(r.PowerMode)
	case FieldProductionDate:
		return present(r.ProductionDate)
	case FieldConsumption:
		return r.Consumption != nil
	case FieldTransmission:
		return present(r.Transmission)
	case FieldURL:
		return r.URL != ""
	}
	return false
}

func present(s string) bool { return s != "" && s != Missing }

func orMissing(s string) string {
	if s == "" {
		return Missing
	}
	return s
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatFloatPtr(f *float64) string {
	if f == nil {
		return Missing
	}
	return formatFloat(*f)
}

func formatIntPtr(i *int) string {
	if i == nil {
		return Missing
	}
	return strconv.Itoa(*i)
}

func parseIntPtr(s string) (*int, error) {
	if s == Missing || s == "" {
		return nil, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func parseFloatPtr(s string) (*float64, error) {
	if s == Missing || s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
