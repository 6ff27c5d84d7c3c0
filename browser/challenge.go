package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// challengeSelectors are widgets of the verification interstitials seen on the site.
var challengeSelectors = []string{
	"#cf-challenge-running",
	"#challenge-form",
	"#challenge-stage",
	".cf-turnstile",
	".h-captcha",
	".g-recaptcha",
	`iframe[src*="challenges.cloudflare.com"]`,
	`iframe[src*="hcaptcha.com"]`,
	`iframe[src*="recaptcha"]`,
}

var challengePhrases = []string{
	"just a moment",
	"security check",
	"verify you are human",
	"bitte bestätigen sie, dass sie ein mensch sind",
}

// IsChallenge reports whether a rendered document is a bot-verification page.
// Headings inside listing cards hold car models and are not checked.
func IsChallenge(rawHTML string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return false
	}
	for _, sel := range challengeSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}

	found := false
	doc.Find("title, h1, h2").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Closest("article").Length() == 0
	}).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		for _, phrase := range challengePhrases {
			if strings.Contains(text, phrase) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
