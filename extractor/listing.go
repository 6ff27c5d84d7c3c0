package extractor

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/ysmood/gson"
	"golang.org/x/net/html"
)

// Listing is one listing element on a rendered result page.
type Listing struct {
	Index int

	// Sel is nil for listings built from page-level structured data alone.
	Sel *goquery.Selection

	// Structured is the linked-data entry for this vehicle, if any.
	Structured    gson.JSON
	HasStructured bool

	text  *string
	outer *string
}

// Text is the element's text content, one space between text nodes.
func (l *Listing) Text() string {
	if l.text != nil {
		return *l.text
	}
	var parts []string
	if l.Sel != nil {
		for _, n := range l.Sel.Nodes {
			collectText(n, &parts)
		}
	}
	s := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	l.text = &s
	return s
}

// OuterHTML is the rendered markup of the element.
func (l *Listing) OuterHTML() string {
	if l.outer != nil {
		return *l.outer
	}
	var buf bytes.Buffer
	if l.Sel != nil {
		for _, n := range l.Sel.Nodes {
			_ = html.Render(&buf, n)
		}
	}
	s := buf.String()
	l.outer = &s
	return s
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		*parts = append(*parts, n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "title", "noscript":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// empty reports whether the element carries nothing a strategy could read.
func (l *Listing) empty() bool {
	if l.HasStructured {
		return false
	}
	if l.Sel == nil || l.Sel.Length() == 0 {
		return true
	}
	return l.Text() == "" && l.Sel.Find("a[href]").Length() == 0
}

var (
	// Sponsored slots are rendered outside li.css-0.
	listingItems  = cascadia.MustCompile("li.css-0 > article")
	listingCards  = cascadia.MustCompile(`a[data-testid^="listing-card-"]`)
	anyArticle    = cascadia.MustCompile("article")
	listingAnchor = cascadia.MustCompile(`a[href*="/de/d/"]`)
	pageSchema    = cascadia.MustCompile(`script[data-testid="structured-schema-srp"]`)
	linkedData    = cascadia.MustCompile(`script[type="application/ld+json"]`)
)

// locate returns the listing elements of a result page, trying the most
// specific container first.
func locate(doc *goquery.Document) *goquery.Selection {
	if sel := doc.FindMatcher(listingItems); sel.Length() > 0 {
		return sel
	}
	if cards := doc.FindMatcher(listingCards); cards.Length() > 0 {
		if sel := cards.Closest("article"); sel.Length() > 0 {
			return sel
		}
	}
	return doc.FindMatcher(anyArticle)
}

// pageItems returns the vehicle entries of the page-level linked data.
func pageItems(doc *goquery.Document) []gson.JSON {
	scripts := doc.FindMatcher(pageSchema)
	if scripts.Length() == 0 {
		scripts = doc.FindMatcher(linkedData)
	}
	var items []gson.JSON
	scripts.Each(func(_ int, s *goquery.Selection) {
		if len(items) > 0 {
			return
		}
		root, ok := parseLinkedData(s.Text())
		if !ok {
			return
		}
		for _, path := range [][]interface{}{
			{"mainEntity", "offers", "itemListElement"},
			{"offers", "itemListElement"},
			{"itemListElement"},
		} {
			if list := root.Gets(path...); list.Val() != nil {
				for _, it := range list.Arr() {
					items = append(items, unwrapListItem(it))
				}
				break
			}
		}
	})
	return items
}

// embedded returns the element's own linked-data block, if it describes a vehicle.
func embedded(sel *goquery.Selection) (gson.JSON, bool) {
	var out gson.JSON
	found := false
	sel.FindMatcher(linkedData).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		root, ok := parseLinkedData(s.Text())
		if !ok {
			return true
		}
		root = unwrapListItem(root)
		if root.Gets("offers").Val() == nil && root.Gets("name").Val() == nil {
			return true
		}
		out, found = root, true
		return false
	})
	return out, found
}

func parseLinkedData(raw string) (gson.JSON, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return gson.JSON{}, false
	}
	if _, ok := v.(map[string]interface{}); !ok {
		return gson.JSON{}, false
	}
	return gson.New(v), true
}

// unwrapListItem returns the vehicle of a schema.org ListItem wrapper.
func unwrapListItem(j gson.JSON) gson.JSON {
	if inner := j.Gets("item"); inner.Val() != nil {
		if _, ok := inner.Val().(map[string]interface{}); ok {
			return inner
		}
	}
	return j
}

// structuredURL reads the listing URL of a linked-data entry.
func structuredURL(j gson.JSON) string {
	for _, path := range [][]interface{}{
		{"url"}, {"@id"}, {"offers", "url"}, {"offers", "itemOffered", "url"},
	} {
		if s, ok := scalar(j.Gets(path...)); ok && s != "" {
			return s
		}
	}
	return ""
}

// attach pairs each element with its linked-data entry: embedded first,
// then page-level matched by URL, then by position for elements without a URL.
func attach(listings []*Listing, items []gson.JSON, base *url.URL) {
	byURL := make(map[string]gson.JSON, len(items))
	for _, it := range items {
		if key := CanonicalURL(structuredURL(it), base); key != "" {
			byURL[key] = it
		}
	}
	for i, l := range listings {
		if l.Sel != nil {
			if j, ok := embedded(l.Sel); ok {
				l.Structured, l.HasStructured = j, true
				continue
			}
		}
		if len(items) == 0 {
			continue
		}
		href, hasURL := "", false
		if l.Sel != nil {
			href, hasURL = l.Sel.FindMatcher(listingAnchor).First().Attr("href")
		}
		if hasURL {
			if j, ok := byURL[CanonicalURL(href, base)]; ok {
				l.Structured, l.HasStructured = j, true
			}
			continue
		}
		if i < len(items) {
			l.Structured, l.HasStructured = items[i], true
		}
	}
}
