package extractor

import (
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/andybalholm/cascadia"
)

// CSSClass looks fields up by stable test ids and class-name fragments.
type CSSClass struct {
	selectors map[string][]cascadia.Selector
}

var cssSelectors = map[string][]string{
	models.FieldModel: {
		`[data-testid="listing-title"]`,
		`h2`,
		`[class*="title"]`,
	},
	models.FieldPrice: {
		`[data-testid*="price"]`,
		`[class*="price"]`,
		`[class*="Price"]`,
	},
	models.FieldMileage: {
		`[data-testid*="mileage"]`,
		`[class*="mileage"]`,
	},
	models.FieldPower: {
		`[data-testid*="power"]`,
		`[class*="power"]`,
	},
	models.FieldPowerMode: {
		`[data-testid*="fuel"]`,
		`[class*="fuel"]`,
	},
	models.FieldProductionDate: {
		`[data-testid*="registration"]`,
		`[class*="registration"]`,
	},
	models.FieldConsumption: {
		`[data-testid*="consumption"]`,
		`[class*="consumption"]`,
	},
	models.FieldTransmission: {
		`[data-testid*="transmission"]`,
		`[class*="transmission"]`,
	},
	models.FieldURL: {
		`a[href*="/de/d/"]`,
		`a[data-testid^="listing-card-"]`,
	},
}

// NewCSSClass compiles the selector table.
func NewCSSClass() *CSSClass {
	s := &CSSClass{selectors: make(map[string][]cascadia.Selector, len(cssSelectors))}
	for field, sels := range cssSelectors {
		for _, raw := range sels {
			s.selectors[field] = append(s.selectors[field], cascadia.MustCompile(raw))
		}
	}
	return s
}

func (*CSSClass) Name() string { return "css" }

func (s *CSSClass) Lookup(l *Listing, field string) (string, bool) {
	if l.Sel == nil {
		return "", false
	}
	for _, sel := range s.selectors[field] {
		matches := l.Sel.FindMatcher(sel)
		for i := range matches.Length() {
			m := matches.Eq(i)
			if field == models.FieldURL {
				if href, ok := m.Attr("href"); ok && href != "" {
					return href, true
				}
				continue
			}
			if v := clean(m.Text()); v != "" && !placeholders[v] {
				return v, true
			}
		}
	}
	return "", false
}
