package extractor

import (
	"regexp"
	"strings"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
)

// Regex matches patterns over the flattened listing text. The URL is
// matched over the element markup since hrefs are not part of the text.
type Regex struct {
	patterns map[string]*regexp.Regexp
}

var (
	rePrice        = regexp.MustCompile(`(?i)(?:CHF|Fr\.)\s*(\d{1,3}(?:[ '’.,]?\d{3})*(?:[.,]\d{1,2})?)`)
	reMileage      = regexp.MustCompile(`(?i)(\d{1,3}(?:[ '’.,]\d{3})+|\d+)\s*km\b`)
	rePower        = regexp.MustCompile(`(?i)\d+\s*(?:PS|hp|kW)\b`)
	rePowerMode    = regexp.MustCompile(`(?i)\b(?:Benzin|Diesel|Elektro|Hybrid|Petrol|Electric)\b`)
	reNewVehicle   = regexp.MustCompile(`(?i)\bneues fahrzeug\b`)
	reTransmission = regexp.MustCompile(`(?i)\b(?:Halbautomatisches Getriebe|Halbautomatik|Automatisches Getriebe|Automatik|Automat|Manuelles Getriebe|Manuell|Schaltgetriebe)\b`)
	reHref         = regexp.MustCompile(`href="([^"]*/de/d/[^"]*)"`)
)

// NewRegex returns the last-resort strategy.
func NewRegex() *Regex {
	return &Regex{patterns: map[string]*regexp.Regexp{
		models.FieldPrice:        rePrice,
		models.FieldPower:        rePower,
		models.FieldPowerMode:    rePowerMode,
		models.FieldConsumption:  consumption,
		models.FieldTransmission: reTransmission,
	}}
}

func (*Regex) Name() string { return "regex" }

func (s *Regex) Lookup(l *Listing, field string) (string, bool) {
	switch field {
	case models.FieldURL:
		if m := reHref.FindStringSubmatch(l.OuterHTML()); m != nil {
			return strings.ReplaceAll(m[1], "&amp;", "&"), true
		}
		return "", false
	case models.FieldMileage:
		return mileageMatch(l.Text())
	case models.FieldProductionDate:
		text := l.Text()
		if m := reNewVehicle.FindString(text); m != "" {
			return m, true
		}
		if m := dateMonthYear.FindString(text); m != "" {
			return m, true
		}
		return "", false
	}

	re, ok := s.patterns[field]
	if !ok {
		return "", false
	}
	m := re.FindStringSubmatch(l.Text())
	if m == nil {
		return "", false
	}
	if len(m) > 1 && field == models.FieldPrice {
		return m[1], true
	}
	return m[0], true
}

// mileageMatch skips the "100 km" of a consumption figure.
func mileageMatch(text string) (string, bool) {
	for _, loc := range reMileage.FindAllStringSubmatchIndex(text, -1) {
		before := strings.TrimRight(text[:loc[0]], " ")
		if strings.HasSuffix(before, "/") {
			continue
		}
		return text[loc[2]:loc[3]], true
	}
	return "", false
}
