package extractor

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
)

var errNoValue = errors.New("no value")

var (
	// numberToken matches one number with optional thousands grouping
	// (space, apostrophe, dot or comma) and an optional decimal part.
	numberToken = regexp.MustCompile(`\d{1,3}(?:[ '’.,\x{00A0}\x{202F}]\d{3})+(?:[.,]\d+)?|\d+(?:[.,]\d+)?`)

	dateMonthYear = regexp.MustCompile(`\b(0?[1-9]|1[0-2])\.(\d{4})\b`)
	dateISO       = regexp.MustCompile(`\b(\d{4})-(0[1-9]|1[0-2])\b`)
	consumption   = regexp.MustCompile(`(?i)(\d+[,.]?\d*)\s*l\s*/?\s*100\s*km`)
	powerPS       = regexp.MustCompile(`(?i)(\d+)\s*(?:PS|hp|cv)\b`)
	powerKW       = regexp.MustCompile(`(?i)(\d+)\s*kW\b`)
)

// placeholders are rendered by the site for "no data".
var placeholders = map[string]bool{"-": true, "—": true, "–": true, "": true, models.Missing: true}

// ParseNumber parses a number written with European or Swiss separators.
//
// Apostrophes and spaces are always grouping. When both '.' and ',' occur the
// last one is the decimal separator. A single separator followed by exactly
// three digits is grouping, otherwise it is the decimal separator.
func ParseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".–")
	s = strings.TrimSuffix(s, ".-")

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s = strings.Trim(b.String(), ".,")
	if s == "" {
		return 0, fmt.Errorf("parse number %q: %w", raw, errNoValue)
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		dec := max(lastDot, lastComma)
		s = strings.NewReplacer(".", "", ",", "").Replace(s[:dec]) + "." + s[dec+1:]
	case lastDot >= 0 || lastComma >= 0:
		sep := "."
		if lastComma >= 0 {
			sep = ","
		}
		idx := strings.LastIndex(s, sep)
		if strings.Count(s, sep) > 1 || len(s)-idx-1 == 3 {
			s = strings.ReplaceAll(s, sep, "")
		} else {
			s = strings.Replace(s, sep, ".", 1)
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", raw, err)
	}
	return f, nil
}

// firstNumber parses the first number token found in raw.
func firstNumber(raw string) (float64, error) {
	tok := numberToken.FindString(raw)
	if tok == "" {
		return 0, fmt.Errorf("no number in %q: %w", raw, errNoValue)
	}
	return ParseNumber(tok)
}

// normalizer converts a raw strategy value into its canonical string form.
type normalizer func(raw string, base *url.URL) (string, error)

var normalizers = map[string]normalizer{
	models.FieldModel:          normalizeModel,
	models.FieldPrice:          normalizePrice,
	models.FieldMileage:        normalizeMileage,
	models.FieldPower:          normalizePower,
	models.FieldPowerMode:      func(raw string, _ *url.URL) (string, error) { return nonEmpty(PowerMode(raw), raw) },
	models.FieldProductionDate: func(raw string, _ *url.URL) (string, error) { return nonEmpty(ProductionDate(raw), raw) },
	models.FieldConsumption:    normalizeConsumption,
	models.FieldTransmission:   func(raw string, _ *url.URL) (string, error) { return nonEmpty(Transmission(raw), raw) },
	models.FieldURL:            normalizeURL,
}

func nonEmpty(v, raw string) (string, error) {
	if v == "" || v == models.Missing {
		return "", fmt.Errorf("unrecognised value %q", raw)
	}
	return v, nil
}

func normalizeModel(raw string, _ *url.URL) (string, error) {
	s := strings.Join(strings.Fields(raw), " ")
	if placeholders[s] {
		return "", errNoValue
	}
	return s, nil
}

func normalizePrice(raw string, _ *url.URL) (string, error) {
	f, err := firstNumber(raw)
	if err != nil {
		return "", err
	}
	if f <= 0 {
		return "", fmt.Errorf("price %q is not positive", raw)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func normalizeMileage(raw string, _ *url.URL) (string, error) {
	f, err := firstNumber(raw)
	if err != nil {
		return "", err
	}
	if f < 0 || f > 2_000_000 || f != math.Trunc(f) {
		return "", fmt.Errorf("mileage %q out of range", raw)
	}
	return strconv.Itoa(int(f)), nil
}

func normalizePower(raw string, _ *url.URL) (string, error) {
	var hp float64
	if m := powerPS.FindStringSubmatch(raw); m != nil {
		hp, _ = strconv.ParseFloat(m[1], 64)
	} else if m := powerKW.FindStringSubmatch(raw); m != nil {
		kw, _ := strconv.ParseFloat(m[1], 64)
		hp = math.Round(kw * 1.35962)
	} else {
		f, err := firstNumber(raw)
		if err != nil {
			return "", err
		}
		hp = f
	}
	if hp < 1 || hp > 2000 {
		return "", fmt.Errorf("power %q out of range", raw)
	}
	return strconv.Itoa(int(math.Round(hp))), nil
}

func normalizeConsumption(raw string, _ *url.URL) (string, error) {
	s := strings.TrimSpace(raw)
	if placeholders[s] {
		return "", errNoValue
	}
	tok := s
	if m := consumption.FindStringSubmatch(s); m != nil {
		tok = m[1]
	} else if _, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err != nil {
		return "", fmt.Errorf("consumption %q has no l/100 km value", raw)
	}
	f, err := strconv.ParseFloat(strings.Replace(tok, ",", ".", 1), 64)
	if err != nil {
		return "", fmt.Errorf("consumption %q: %w", raw, err)
	}
	if f < 1 || f > 50 {
		return "", fmt.Errorf("consumption %q out of range", raw)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// normalizeURL absolutises href against base and drops query and fragment.
func normalizeURL(raw string, base *url.URL) (string, error) {
	s := strings.TrimSpace(raw)
	if placeholders[s] {
		return "", errNoValue
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("listing url %q: %w", raw, err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("listing url %q is not absolute", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// CanonicalURL is the key used to match structured data to listing elements.
func CanonicalURL(raw string, base *url.URL) string {
	u, err := normalizeURL(raw, base)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(u, "/")
}

// PowerMode maps a fuel type to one of Benzin, Diesel, Elektro or Hybrid.
// Anything else is Missing.
func PowerMode(fuel string) string {
	t := strings.ToLower(fuel)
	switch {
	case t == "":
		return models.Missing
	case strings.Contains(t, "hybrid"):
		return "Hybrid"
	case strings.Contains(t, "benzin") || strings.Contains(t, "petrol") || strings.Contains(t, "gasoline"):
		return "Benzin"
	case strings.Contains(t, "diesel"):
		return "Diesel"
	case strings.Contains(t, "elektro") || strings.Contains(t, "electric"):
		return "Elektro"
	}
	return models.Missing
}

// Transmission maps a gearbox label to Halbautomatik, Automat or Manuell.
// Unknown labels are kept, truncated to 20 characters.
func Transmission(raw string) string {
	s := strings.TrimSpace(raw)
	if placeholders[s] {
		return models.Missing
	}
	t := strings.ToLower(s)
	switch {
	case strings.Contains(t, "halbautomat"):
		return "Halbautomatik"
	case strings.Contains(t, "automat") || strings.Contains(t, "automatic"):
		return "Automat"
	case strings.Contains(t, "manuell") || strings.Contains(t, "manual") || strings.Contains(t, "schalt"):
		return "Manuell"
	}
	r := []rune(s)
	if len(r) > 20 {
		r = r[:20]
	}
	return string(r)
}

// ProductionDate returns "MM.YYYY", NewVehicle, or Missing.
func ProductionDate(raw string) string {
	if strings.Contains(strings.ToLower(raw), strings.ToLower(models.NewVehicle)) {
		return models.NewVehicle
	}
	var month, year string
	if m := dateMonthYear.FindStringSubmatch(raw); m != nil {
		month, year = m[1], m[2]
	} else if m := dateISO.FindStringSubmatch(raw); m != nil {
		month, year = m[2], m[1]
	} else {
		return models.Missing
	}
	y, _ := strconv.Atoi(year)
	if y < 1950 || y > time.Now().Year()+1 {
		return models.Missing
	}
	if len(month) == 1 {
		month = "0" + month
	}
	return month + "." + year
}
