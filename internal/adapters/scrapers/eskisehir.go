package scrapers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/pharmacyonduty/backend/internal/domain/providers"
)

const sourceEskisehir = "eskisehir"

// EskisehirScraper reads the duty list page of the Eskişehir chamber of pharmacists
type EskisehirScraper struct {
	client *resty.Client
	url    string
	now    func() time.Time
}

// NewEskisehirScraper creates the scraper
func NewEskisehirScraper(client *resty.Client, url string, now func() time.Time) *EskisehirScraper {
	if now == nil {
		now = time.Now
	}
	return &EskisehirScraper{client: client, url: url, now: now}
}

func (s *EskisehirScraper) Source() string { return sourceEskisehir }

// Fetch downloads and parses the current roster page
func (s *EskisehirScraper) Fetch(ctx context.Context, city string) (*providers.RawPayload, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, fetchError(sourceEskisehir, err)
	}
	if resp.IsError() {
		return nil, fetchError(sourceEskisehir, fmt.Errorf("status %d", resp.StatusCode()))
	}

	entries, err := ParseEskisehir(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fetchError(sourceEskisehir, err)
	}
	return &providers.RawPayload{
		Source:    sourceEskisehir,
		City:      city,
		FetchedAt: s.now().UTC(),
		Entries:   entries,
	}, nil
}

// ParseEskisehir extracts one entry per "div.nobetci" block. Blocks without a
// title are not pharmacies and are ignored.
func ParseEskisehir(r io.Reader) ([]providers.RawEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse eskisehir page: %w", err)
	}

	entries := []providers.RawEntry{}
	doc.Find("div.nobetci").Each(func(_ int, block *goquery.Selection) {
		title := block.Find("h4.text-danger").First()
		if title.Length() == 0 {
			return
		}

		mapURL, _ := block.Find(`a[href*="google.com/maps"]`).First().Attr("href")
		entries = append(entries, providers.RawEntry{
			Name:       strings.TrimSpace(title.Text()),
			Address:    textAfter(block.Find("i.fa-home").First()),
			Phone:      strings.TrimSpace(block.Find(`a[href^="tel:"]`).First().Text()),
			MapURL:     mapURL,
			DutyPeriod: strings.TrimSpace(block.Find("span.text-danger").First().Text()),
		})
	})
	return entries, nil
}

// textAfter returns the text node that directly follows an icon element.
func textAfter(icon *goquery.Selection) string {
	if icon.Length() == 0 {
		return ""
	}
	var (
		seen bool
		text string
	)
	icon.Parent().Contents().EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if seen {
			if goquery.NodeName(node) == "#text" {
				text = strings.TrimSpace(node.Text())
			}
			return false
		}
		seen = node.IsSelection(icon)
		return true
	})
	return text
}
