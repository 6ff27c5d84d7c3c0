package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"golang.org/x/net/html"
)

// IconAdjacency reads the text next to a titled SVG icon, or next to a
// label node such as a <dt>.
type IconAdjacency struct {
	icons  map[string][]string
	labels map[string][]string
}

// NewIconAdjacency returns the strategy configured for the icon rows of a listing card.
func NewIconAdjacency() *IconAdjacency {
	return &IconAdjacency{
		icons: map[string][]string{
			models.FieldMileage:        {"mileage", "odometer"},
			models.FieldPower:          {"power icon", "engine power"},
			models.FieldPowerMode:      {"fuel type", "fuel icon"},
			models.FieldProductionDate: {"calendar"},
			models.FieldConsumption:    {"consumption"},
			models.FieldTransmission:   {"transmission", "gearbox"},
		},
		labels: map[string][]string{
			models.FieldMileage:        {"kilometer", "kilometerstand", "mileage"},
			models.FieldPower:          {"leistung", "power"},
			models.FieldPowerMode:      {"treibstoff", "kraftstoff", "fuel"},
			models.FieldProductionDate: {"erstzulassung", "first registration"},
			models.FieldConsumption:    {"verbrauch", "consumption"},
			models.FieldTransmission:   {"getriebe", "getriebeart", "transmission"},
		},
	}
}

func (*IconAdjacency) Name() string { return "icon" }

func (s *IconAdjacency) Lookup(l *Listing, field string) (string, bool) {
	if l.Sel == nil {
		return "", false
	}
	if v, ok := s.byIcon(l.Sel, s.icons[field]); ok {
		return v, true
	}
	return s.byLabel(l.Sel, s.labels[field])
}

func (s *IconAdjacency) byIcon(sel *goquery.Selection, keywords []string) (string, bool) {
	if len(keywords) == 0 {
		return "", false
	}
	var value string
	found := false
	sel.Find("svg title").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if !containsAny(strings.ToLower(t.Text()), keywords) {
			return true
		}
		svg := t.Closest("svg")
		if svg.Length() == 0 {
			return true
		}
		if v := nextSiblingText(svg.Get(0)); v != "" {
			value, found = v, true
			return false
		}
		// Some cards wrap the icon in its own span; read the enclosing block.
		if v := clean(svg.Parent().Find("p").First().Text()); v != "" {
			value, found = v, true
			return false
		}
		return true
	})
	if found && placeholders[value] {
		return "", false
	}
	return value, found
}

func (s *IconAdjacency) byLabel(sel *goquery.Selection, labels []string) (string, bool) {
	if len(labels) == 0 {
		return "", false
	}
	var value string
	found := false
	sel.Find("dt, span, p, div").EachWithBreak(func(_ int, n *goquery.Selection) bool {
		if n.Children().Length() > 0 {
			return true
		}
		text := strings.ToLower(clean(n.Text()))
		for _, label := range labels {
			if text == label {
				if v := clean(n.Next().Text()); v != "" && !placeholders[v] {
					value, found = v, true
					return false
				}
			}
		}
		return true
	})
	return value, found
}

// nextSiblingText walks the element siblings after n and returns the first
// non-empty text.
func nextSiblingText(n *html.Node) string {
	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		switch sib.Type {
		case html.TextNode:
			if v := clean(sib.Data); v != "" {
				return v
			}
		case html.ElementNode:
			if v := clean(goquery.NewDocumentFromNode(sib).Text()); v != "" {
				return v
			}
		}
	}
	return ""
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
