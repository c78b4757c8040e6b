package scrape

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"easel/internal/textutil"
)

// nearDuplicateThreshold drops result titles that restate one another.
// Search pages repeat the same tutorial under cosmetic rewordings.
const nearDuplicateThreshold = 0.9

// result is one tile on the results page. The anchor carries a JSON "m"
// attribute with the full image URL, a thumbnail fallback, and the title.
type result struct {
	ImageURL string `json:"murl"`
	ThumbURL string `json:"turl"`
	Title    string `json:"t"`
}

func parseResults(doc *goquery.Document) []result {
	var results []result
	doc.Find("a.iusc").Each(func(_ int, sel *goquery.Selection) {
		attr, ok := sel.Attr("m")
		if !ok || strings.TrimSpace(attr) == "" {
			return
		}
		var r result
		if err := json.Unmarshal([]byte(attr), &r); err != nil {
			return
		}
		r.ImageURL = strings.TrimSpace(r.ImageURL)
		r.ThumbURL = strings.TrimSpace(r.ThumbURL)
		r.Title = textutil.CollapseWhitespace(r.Title)
		if r.ImageURL == "" && r.ThumbURL == "" {
			return
		}
		if !strings.HasPrefix(r.ImageURL, "http") {
			r.ImageURL = ""
		}
		if !strings.HasPrefix(r.ThumbURL, "http") {
			r.ThumbURL = ""
		}
		if r.ImageURL == "" && r.ThumbURL == "" {
			return
		}
		results = append(results, r)
	})
	return results
}

// buildMaterial joins the distinct result titles into the raw topic text
// handed to the generator. Exact repeats and near-duplicates are dropped.
func buildMaterial(results []result) string {
	var titles []string
	var kept []*textutil.Fingerprint
	seen := make(map[string]struct{})

	for _, r := range results {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		fp := textutil.NewFingerprint(title)
		if isNearDuplicate(fp, kept) {
			continue
		}
		titles = append(titles, title)
		if fp != nil {
			kept = append(kept, fp)
		}
	}
	return strings.Join(titles, "\n")
}

func isNearDuplicate(fp *textutil.Fingerprint, kept []*textutil.Fingerprint) bool {
	if fp == nil {
		return false
	}
	for _, other := range kept {
		if fp.Similarity(other) >= nearDuplicateThreshold {
			return true
		}
	}
	return false
}
