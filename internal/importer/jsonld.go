package importer

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/wanderdeals/internal/util"
)

// JSONLDOffer is the subset of a schema.org Offer (or a Product/TouristTrip
// carrying one under "offers") that partner detail pages embed.
type JSONLDOffer struct {
	Context      string          `json:"@context"`
	Type         string          `json:"@type"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Image        json.RawMessage `json:"image"`
	Price        json.RawMessage `json:"price"`
	ValidThrough string          `json:"validThrough"`
	Offers       *JSONLDOffer    `json:"offers"`
}

// findJSONLDOffer returns the first Offer found in the page's JSON-LD blocks.
func findJSONLDOffer(doc *goquery.Document) (*JSONLDOffer, bool) {
	var found *JSONLDOffer
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var o JSONLDOffer
		if err := json.Unmarshal([]byte(s.Text()), &o); err != nil {
			return true
		}
		switch {
		case o.Type == "Offer":
			found = &o
		case o.Offers != nil:
			merged := *o.Offers
			if merged.Description == "" {
				merged.Description = o.Description
			}
			if len(merged.Image) == 0 {
				merged.Image = o.Image
			}
			found = &merged
		}
		return found == nil
	})
	return found, found != nil
}

// images accepts either a single URL or a list of URLs.
func (o *JSONLDOffer) images() []string {
	if len(o.Image) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(o.Image, &one); err == nil {
		if one == "" {
			return nil
		}
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(o.Image, &many); err == nil {
		return many
	}
	return nil
}

// price accepts a JSON number or a string such as "89.00".
func (o *JSONLDOffer) price() (float64, bool) {
	if len(o.Price) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(o.Price, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(o.Price, &s); err == nil {
		return util.ParsePrice(s)
	}
	return 0, false
}

func (o *JSONLDOffer) validThrough() (time.Time, bool) {
	return parseDate(o.ValidThrough)
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
