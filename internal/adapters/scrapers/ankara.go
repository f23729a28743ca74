package scrapers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pharmacyonduty/backend/internal/domain/providers"
)

const sourceAnkara = "ankara"

// AnkaraScraper reads the JSON roster of the Ankara chamber of pharmacists
type AnkaraScraper struct {
	client *resty.Client
	url    string
	loc    *time.Location
	now    func() time.Time
}

// NewAnkaraScraper creates the scraper. The roster is requested for the
// current date in loc.
func NewAnkaraScraper(client *resty.Client, url string, loc *time.Location, now func() time.Time) *AnkaraScraper {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AnkaraScraper{client: client, url: url, loc: loc, now: now}
}

func (s *AnkaraScraper) Source() string { return sourceAnkara }

type ankaraResponse struct {
	Pharmacies []ankaraPharmacy `json:"NobetciEczaneBilgisiListesi"`
}

type ankaraPharmacy struct {
	Name      string     `json:"EczaneAdi"`
	Address   string     `json:"EczaneAdresi"`
	District  string     `json:"IlceAdi"`
	Phone     string     `json:"Telefon"`
	Latitude  flexString `json:"KoordinatLat"`
	Longitude flexString `json:"KoordinatLng"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(raw)
	return nil
}

// Fetch downloads today's roster
func (s *AnkaraScraper) Fetch(ctx context.Context, city string) (*providers.RawPayload, error) {
	now := s.now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("nobetTarihi", now.In(s.loc).Format("2006-01-02")).
		Get(s.url)
	if err != nil {
		return nil, fetchError(sourceAnkara, err)
	}
	if resp.IsError() {
		return nil, fetchError(sourceAnkara, fmt.Errorf("status %d", resp.StatusCode()))
	}

	var payload ankaraResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fetchError(sourceAnkara, fmt.Errorf("decode roster: %w", err))
	}

	entries := make([]providers.RawEntry, 0, len(payload.Pharmacies))
	for _, p := range payload.Pharmacies {
		entries = append(entries, providers.RawEntry{
			Name:      p.Name,
			Address:   p.Address,
			District:  p.District,
			Phone:     p.Phone,
			Latitude:  string(p.Latitude),
			Longitude: string(p.Longitude),
		})
	}
	return &providers.RawPayload{
		Source:    sourceAnkara,
		City:      city,
		FetchedAt: now.UTC(),
		Entries:   entries,
	}, nil
}
