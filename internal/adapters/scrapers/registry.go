package scrapers

import (
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/pkg/config"
	"github.com/pharmacyonduty/backend/pkg/utils"
)

const userAgent = "pharmacyonduty-scraper/1.0"

// Registry maps city names to the scraper of their duty roster
type Registry struct {
	scrapers map[string]providers.DutyScraper
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{scrapers: make(map[string]providers.DutyScraper)}
}

// Register binds a city, by folded name, to a scraper
func (r *Registry) Register(city string, scraper providers.DutyScraper) {
	r.scrapers[utils.FoldName(city)] = scraper
}

// Lookup finds the scraper of a city, ignoring case and diacritics
func (r *Registry) Lookup(city string) (providers.DutyScraper, bool) {
	s, ok := r.scrapers[utils.FoldName(city)]
	return s, ok
}

// Cities lists the folded names of the registered cities
func (r *Registry) Cities() []string {
	cities := make([]string, 0, len(r.scrapers))
	for city := range r.scrapers {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}

// NewHTTPClient creates the HTTP client shared by the scrapers
func NewHTTPClient(cfg config.ScraperConfig) *resty.Client {
	return resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("User-Agent", userAgent)
}

// NewDefaultRegistry registers the scraper of every supported city. now is
// the clock the scrapers stamp payloads with.
func NewDefaultRegistry(cfg config.ScraperConfig, now func() time.Time, logger zerolog.Logger) (*Registry, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	client := NewHTTPClient(cfg)

	r := NewRegistry()
	r.Register("eskisehir", NewEskisehirScraper(client, cfg.EskisehirURL, now))
	r.Register("istanbul", NewIstanbulScraper(client, cfg.IstanbulURL, IstanbulDistricts, cfg.Concurrency, now, logger))
	r.Register("ankara", NewAnkaraScraper(client, cfg.AnkaraURL, loc, now))
	return r, nil
}

func fetchError(source string, err error) error {
	return &FetchError{Source: source, Err: err}
}

// FetchError reports a failed request to a roster source
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return e.Source + " scrape failed: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
