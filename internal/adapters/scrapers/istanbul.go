package scrapers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pharmacyonduty/backend/internal/domain/providers"
)

const sourceIstanbul = "istanbul"

// IstanbulDistricts are the districts the Istanbul health directorate publishes rosters for
var IstanbulDistricts = []string{
	"Adalar", "Arnavutköy", "Ataşehir", "Avcılar", "Bağcılar", "Bahçelievler",
	"Bakırköy", "Başakşehir", "Bayrampaşa", "Beşiktaş", "Beykoz", "Beylikdüzü",
	"Beyoğlu", "Büyükçekmece", "Çatalca", "Çekmeköy", "Esenler", "Esenyurt",
	"Eyüp", "Fatih", "Gaziosmanpaşa", "Güngören", "Kadıköy", "Kağıthane",
	"Kartal", "Küçükçekmece", "Maltepe", "Pendik", "Sancaktepe", "Sarıyer",
	"Silivri", "Sultanbeyli", "Sultangazi", "Şile", "Şişli", "Tuzla",
	"Ümraniye", "Üsküdar", "Zeytinburnu",
}

// IstanbulScraper posts one request per district to the health directorate roster endpoint
type IstanbulScraper struct {
	client      *resty.Client
	url         string
	districts   []string
	concurrency int
	now         func() time.Time
	logger      zerolog.Logger
}

// NewIstanbulScraper creates the scraper
func NewIstanbulScraper(client *resty.Client, url string, districts []string, concurrency int, now func() time.Time, logger zerolog.Logger) *IstanbulScraper {
	if now == nil {
		now = time.Now
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &IstanbulScraper{
		client:      client,
		url:         url,
		districts:   districts,
		concurrency: concurrency,
		now:         now,
		logger:      logger,
	}
}

func (s *IstanbulScraper) Source() string { return sourceIstanbul }

// Fetch collects every district. A failed district is logged and left out;
// the fetch fails only when no district could be read.
func (s *IstanbulScraper) Fetch(ctx context.Context, city string) (*providers.RawPayload, error) {
	fetchedAt := s.now().UTC()
	perDistrict := make([][]providers.RawEntry, len(s.districts))
	var (
		mu      sync.Mutex
		failed  int
		lastErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, district := range s.districts {
		g.Go(func() error {
			entries, err := s.fetchDistrict(gctx, district)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				mu.Lock()
				failed++
				lastErr = err
				mu.Unlock()
				s.logger.Warn().Err(err).Str("district", district).Msg("istanbul district fetch failed")
				return nil
			}
			perDistrict[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fetchError(sourceIstanbul, err)
	}
	if len(s.districts) > 0 && failed == len(s.districts) {
		return nil, fetchError(sourceIstanbul, lastErr)
	}

	entries := []providers.RawEntry{}
	for _, batch := range perDistrict {
		entries = append(entries, batch...)
	}
	return &providers.RawPayload{
		Source:    sourceIstanbul,
		City:      city,
		FetchedAt: fetchedAt,
		Entries:   entries,
	}, nil
}

func (s *IstanbulScraper) fetchDistrict(ctx context.Context, district string) ([]providers.RawEntry, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("ilce", district).
		Post(s.url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("district %s: status %d", district, resp.StatusCode())
	}
	return ParseIstanbul(bytes.NewReader(resp.Body()), district)
}

// ParseIstanbul extracts the ".card" blocks of one district response
func ParseIstanbul(r io.Reader, district string) ([]providers.RawEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse istanbul district %s: %w", district, err)
	}

	entries := []providers.RawEntry{}
	doc.Find(".card").Each(func(_ int, card *goquery.Selection) {
		entry := providers.RawEntry{District: district}

		if headers := card.Find("div.card-header"); headers.Length() > 1 {
			entry.Name = strings.TrimSpace(headers.Eq(1).Find("b").First().Text())
		}
		if labels := card.Find("label"); labels.Length() > 1 {
			entry.Phone = strings.TrimSpace(labels.Eq(1).Find("a").First().Text())
		}
		entry.Address = labelAfterIcon(card, "i.la-home")
		entry.MapURL, _ = card.Find("a.btn.btn-primary.btn-block").First().Attr("href")

		entries = append(entries, entry)
	})
	return entries, nil
}

// labelAfterIcon returns the first label that follows the icon in document order.
func labelAfterIcon(card *goquery.Selection, icon string) string {
	var (
		seen bool
		text string
	)
	card.Find(icon + ", label").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if !seen {
			seen = node.Is(icon)
			return true
		}
		if goquery.NodeName(node) == "label" {
			text = strings.TrimSpace(node.Text())
			return false
		}
		return true
	})
	return text
}
