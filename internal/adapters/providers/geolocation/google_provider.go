package geolocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/pkg/config"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
)

const (
	googleGeocodeURL      = "https://maps.googleapis.com/maps/api/geocode/json"
	googleDistanceURL     = "https://maps.googleapis.com/maps/api/distancematrix/json"
	googlePlacesNearbyURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	defaultHTTPTimeout    = 10 * time.Second

	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// GoogleMapsProvider implements reverse geocoding, travel distances and the
// nearby places directory on the Google Maps web services.
type GoogleMapsProvider struct {
	apiKey      string
	client      *resty.Client
	breaker     *gobreaker.CircuitBreaker
	geocodeURL  string
	distanceURL string
	placesURL   string
	logger      zerolog.Logger
}

var (
	_ providers.ReverseGeocoder        = (*GoogleMapsProvider)(nil)
	_ providers.TravelDistanceProvider = (*GoogleMapsProvider)(nil)
	_ providers.PlacesDirectory        = (*GoogleMapsProvider)(nil)
)

// NewGoogleMapsProvider creates the provider. Empty URLs fall back to the public endpoints.
func NewGoogleMapsProvider(cfg config.GoogleConfig, logger zerolog.Logger) *GoogleMapsProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "google-maps",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &GoogleMapsProvider{
		apiKey:      cfg.APIKey,
		client:      client,
		breaker:     breaker,
		geocodeURL:  orDefault(cfg.GeocodeURL, googleGeocodeURL),
		distanceURL: orDefault(cfg.DistanceURL, googleDistanceURL),
		placesURL:   orDefault(cfg.PlacesNearbyURL, googlePlacesNearbyURL),
		logger:      logger,
	}
}

// LocationLabel returns the plus code compound code of the point, or the
// first-level administrative area when Google returns no plus code. An
// empty label means the point is not inside any known area.
func (g *GoogleMapsProvider) LocationLabel(ctx context.Context, lat, lng float64) (string, error) {
	var payload googleGeocodeResponse
	err := g.get(ctx, "geocoding", g.geocodeURL, map[string]string{
		"latlng": entities.Location{Latitude: lat, Longitude: lng}.String(),
	}, &payload)
	if err != nil {
		return "", err
	}

	switch payload.Status {
	case statusOK:
	case statusZeroResults:
		return "", nil
	default:
		return "", apperrors.NewUpstreamUnavailableError("geocoding failed", payload.err())
	}
	if len(payload.Results) == 0 {
		return "", nil
	}

	if payload.PlusCode.CompoundCode != "" {
		return payload.PlusCode.CompoundCode, nil
	}
	return component(payload.Results[0].AddressComponents, "administrative_area_level_1"), nil
}

// TravelDistances asks the distance matrix for one origin and every
// destination in a single request. Elements Google could not route come back
// with OK unset.
func (g *GoogleMapsProvider) TravelDistances(ctx context.Context, origin entities.Location, destinations []entities.Location) ([]providers.TravelRow, error) {
	if len(destinations) == 0 {
		return []providers.TravelRow{}, nil
	}

	points := make([]string, len(destinations))
	for i, d := range destinations {
		points[i] = d.String()
	}

	var payload googleDistanceMatrixResponse
	err := g.get(ctx, "distance matrix", g.distanceURL, map[string]string{
		"origins":      origin.String(),
		"destinations": strings.Join(points, "|"),
	}, &payload)
	if err != nil {
		return nil, err
	}
	if payload.Status != statusOK {
		return nil, apperrors.NewUpstreamUnavailableError("distance matrix failed", payload.err())
	}

	rows := make([]providers.TravelRow, len(destinations))
	if len(payload.Rows) == 0 {
		return rows, nil
	}
	for i, element := range payload.Rows[0].Elements {
		if i >= len(rows) {
			break
		}
		if element.Status != statusOK {
			continue
		}
		rows[i] = providers.TravelRow{
			OK:              true,
			DistanceMeters:  element.Distance.Value,
			DurationSeconds: element.Duration.Value,
		}
	}
	return rows, nil
}

// Nearby lists the pharmacies closest to origin, ranked by distance
func (g *GoogleMapsProvider) Nearby(ctx context.Context, origin entities.Location, limit int) ([]providers.Place, error) {
	var payload googlePlacesNearbyResponse
	err := g.get(ctx, "places", g.placesURL, map[string]string{
		"location": origin.String(),
		"rankby":   "distance",
		"keyword":  "pharmacy",
	}, &payload)
	if err != nil {
		return nil, err
	}

	switch payload.Status {
	case statusOK, statusZeroResults:
	default:
		return nil, apperrors.NewUpstreamUnavailableError("places nearby search failed", payload.err())
	}

	results := payload.Results
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	places := make([]providers.Place, 0, len(results))
	for _, r := range results {
		places = append(places, providers.Place{
			Name:    r.Name,
			Address: r.Vicinity,
			Location: entities.Location{
				Latitude:  r.Geometry.Location.Lat,
				Longitude: r.Geometry.Location.Lng,
			},
		})
	}
	return places, nil
}

func (g *GoogleMapsProvider) get(ctx context.Context, service, endpoint string, params map[string]string, out interface{}) error {
	if g.apiKey == "" {
		return apperrors.NewUpstreamUnavailableError(service+" unavailable", errors.New("google maps api key is required"))
	}

	body, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetQueryParam("key", g.apiKey).
			Get(endpoint)
		if err != nil {
			return nil, fmt.Errorf("%s request failed: %w", service, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%s request returned status %d", service, resp.StatusCode())
		}
		return resp.Body(), nil
	})
	if err != nil {
		g.logger.Warn().Err(err).Str("service", service).Msg("google maps request failed")
		return apperrors.NewUpstreamUnavailableError(service+" unavailable", err)
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return apperrors.NewUpstreamUnavailableError(service+" returned an unreadable response", err)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func component(components []googleAddressComponent, kind string) string {
	for _, comp := range components {
		for _, t := range comp.Types {
			if t == kind {
				return comp.LongName
			}
		}
	}
	return ""
}

type googleStatus struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (s googleStatus) err() error {
	if s.ErrorMessage != "" {
		return fmt.Errorf("%s: %s", s.Status, s.ErrorMessage)
	}
	return errors.New(s.Status)
}

type googleGeocodeResponse struct {
	googleStatus
	PlusCode struct {
		CompoundCode string `json:"compound_code"`
	} `json:"plus_code"`
	Results []googleGeocodeResult `json:"results"`
}

type googleGeocodeResult struct {
	FormattedAddress  string                   `json:"formatted_address"`
	AddressComponents []googleAddressComponent `json:"address_components"`
}

type googleAddressComponent struct {
	LongName string   `json:"long_name"`
	Types    []string `json:"types"`
}

type googleDistanceMatrixResponse struct {
	googleStatus
	Rows []struct {
		Elements []googleDistanceElement `json:"elements"`
	} `json:"rows"`
}

type googleDistanceElement struct {
	Status   string      `json:"status"`
	Distance googleValue `json:"distance"`
	Duration googleValue `json:"duration"`
}

type googleValue struct {
	Value float64 `json:"value"`
}

type googlePlacesNearbyResponse struct {
	googleStatus
	Results []googlePlace `json:"results"`
}

type googlePlace struct {
	Name     string         `json:"name"`
	Vicinity string         `json:"vicinity"`
	Geometry googleGeometry `json:"geometry"`
}

type googleGeometry struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
}
