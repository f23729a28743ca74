package normalizer_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/internal/normalizer"
)

func istanbulZone(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	return loc
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestNightlyShift(t *testing.T) {
	loc := istanbulZone(t)

	tests := []struct {
		name      string
		at        time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "weekday evening",
			at:        time.Date(2026, 10, 13, 22, 0, 0, 0, loc),
			wantStart: utc(2026, 10, 13, 16, 0),
			wantEnd:   utc(2026, 10, 14, 6, 0),
		},
		{
			name:      "early morning belongs to previous day",
			at:        time.Date(2026, 10, 14, 5, 0, 0, 0, loc),
			wantStart: utc(2026, 10, 13, 16, 0),
			wantEnd:   utc(2026, 10, 14, 6, 0),
		},
		{
			name:      "sunday runs all day",
			at:        time.Date(2026, 10, 18, 12, 0, 0, 0, loc),
			wantStart: utc(2026, 10, 18, 6, 0),
			wantEnd:   utc(2026, 10, 19, 6, 0),
		},
		{
			name:      "monday morning is still sunday",
			at:        time.Date(2026, 10, 19, 8, 59, 0, 0, loc),
			wantStart: utc(2026, 10, 18, 6, 0),
			wantEnd:   utc(2026, 10, 19, 6, 0),
		},
		{
			name:      "sunday before nine is saturday night",
			at:        time.Date(2026, 10, 18, 7, 0, 0, 0, loc),
			wantStart: utc(2026, 10, 17, 16, 0),
			wantEnd:   utc(2026, 10, 18, 6, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := normalizer.NightlyShift(tt.at, loc)
			assert.True(t, tt.wantStart.Equal(start), "start %s", start)
			assert.True(t, tt.wantEnd.Equal(end), "end %s", end)
		})
	}
}

func TestParseDutyPeriod(t *testing.T) {
	loc := istanbulZone(t)

	start, end, err := normalizer.ParseDutyPeriod("13.10.2026 08:30 - 14.10.2026 08:30", loc)
	require.NoError(t, err)
	assert.Equal(t, utc(2026, 10, 13, 5, 30), start)
	assert.Equal(t, utc(2026, 10, 14, 5, 30), end)

	_, _, err = normalizer.ParseDutyPeriod("13.10.2026 08:30", loc)
	assert.Error(t, err)

	_, _, err = normalizer.ParseDutyPeriod("2026-10-13 08:30 - 2026-10-14 08:30", loc)
	assert.Error(t, err)
}

func TestCoordinateExtraction(t *testing.T) {
	loc, err := normalizer.CoordinatesFromGoogleMapsURL("https://www.google.com/maps?q=39.7767,30.5206")
	require.NoError(t, err)
	assert.Equal(t, 39.7767, loc.Latitude)
	assert.Equal(t, 30.5206, loc.Longitude)

	_, err = normalizer.CoordinatesFromGoogleMapsURL("https://www.google.com/maps")
	assert.Error(t, err)

	loc, err = normalizer.CoordinatesFromCityMapURL("http://sehirharitasi.ibb.gov.tr/?lat=41.0156&lon=28.8961&zoom=18")
	require.NoError(t, err)
	assert.Equal(t, 41.0156, loc.Latitude)
	assert.Equal(t, 28.8961, loc.Longitude)

	_, err = normalizer.CoordinatesFromCityMapURL("N/A")
	assert.Error(t, err)
}

func TestNormalize_Eskisehir(t *testing.T) {
	n := normalizer.NewDefault(zerolog.Nop(), istanbulZone(t))

	result, err := n.Normalize(&providers.RawPayload{
		Source: normalizer.SourceEskisehir,
		City:   "Eskişehir",
		Entries: []providers.RawEntry{
			{
				Name:       "  Yeni Eczanesi - Odunpazarı ",
				Address:    "Hoşnudiye Mah. No:5",
				Phone:      "0222 123 45 67",
				MapURL:     "https://www.google.com/maps?q=39.7767,30.5206",
				DutyPeriod: "13.10.2026 08:30 - 14.10.2026 08:30",
			},
			{
				Name:       "Kayıp Eczanesi - Tepebaşı",
				MapURL:     "https://www.google.com/maps",
				DutyPeriod: "13.10.2026 08:30 - 14.10.2026 08:30",
			},
			{
				Name:       "Ters Eczanesi - Tepebaşı",
				MapURL:     "https://www.google.com/maps?q=39.78,30.51",
				DutyPeriod: "14.10.2026 08:30 - 13.10.2026 08:30",
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 2, result.Skipped)

	record := result.Records[0]
	assert.Equal(t, "Yeni Eczanesi", record.Name)
	assert.Equal(t, "Odunpazarı", record.District)
	assert.Equal(t, "0222 123 45 67", record.Phone)
	assert.Equal(t, 39.7767, record.Location.Latitude)
	require.NotNil(t, record.DutyStart)
	assert.Equal(t, utc(2026, 10, 13, 5, 30), *record.DutyStart)
	assert.Equal(t, utc(2026, 10, 14, 5, 30), *record.DutyEnd)
}

func TestNormalize_Istanbul(t *testing.T) {
	loc := istanbulZone(t)
	n := normalizer.NewDefault(zerolog.Nop(), loc)

	result, err := n.Normalize(&providers.RawPayload{
		Source:    normalizer.SourceIstanbul,
		City:      "İstanbul",
		FetchedAt: time.Date(2026, 10, 13, 21, 15, 0, 0, loc),
		Entries: []providers.RawEntry{
			{
				Name:     "Merkez Eczanesi",
				District: "Kadıköy",
				Phone:    "0216 555 11 22",
				Address:  "N/A",
				MapURL:   "http://sehirharitasi.ibb.gov.tr/?lat=40.99&lon=29.02&zoom=18",
			},
			{Name: "Haritasız Eczanesi", District: "Fatih", MapURL: "N/A"},
			{Name: "N/A", District: "Fatih", MapURL: "http://sehirharitasi.ibb.gov.tr/?lat=41.01&lon=28.95"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 2, result.Skipped)

	record := result.Records[0]
	assert.Equal(t, "02165551122", record.Phone)
	assert.Equal(t, "Kadıköy", record.District)
	assert.Empty(t, record.Address)
	assert.Equal(t, utc(2026, 10, 13, 16, 0), *record.DutyStart)
	assert.Equal(t, utc(2026, 10, 14, 6, 0), *record.DutyEnd)
}

func TestNormalize_Ankara(t *testing.T) {
	loc := istanbulZone(t)
	n := normalizer.NewDefault(zerolog.Nop(), loc)

	result, err := n.Normalize(&providers.RawPayload{
		Source:    normalizer.SourceAnkara,
		City:      "Ankara",
		FetchedAt: time.Date(2026, 10, 18, 11, 0, 0, 0, loc),
		Entries: []providers.RawEntry{
			{Name: "AYDIN", District: "ÇANKAYA", Phone: "3124181234", Latitude: "39.91", Longitude: "32.85"},
			{Name: "BOZUK", District: "KEÇİÖREN", Latitude: "abc", Longitude: "32.85"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.Skipped)

	record := result.Records[0]
	assert.Equal(t, "Aydın Eczanesi", record.Name)
	assert.Equal(t, "Çankaya", record.District)
	assert.Equal(t, utc(2026, 10, 18, 6, 0), *record.DutyStart)
	assert.Equal(t, utc(2026, 10, 19, 6, 0), *record.DutyEnd)
}

func TestNormalize_NightlyShiftNeedsFetchTime(t *testing.T) {
	n := normalizer.NewDefault(zerolog.Nop(), istanbulZone(t))

	result, err := n.Normalize(&providers.RawPayload{
		Source:  normalizer.SourceAnkara,
		Entries: []providers.RawEntry{{Name: "AYDIN", Latitude: "39.91", Longitude: "32.85"}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Equal(t, 1, result.Skipped)
}

func TestNormalize_UnknownSource(t *testing.T) {
	n := normalizer.NewDefault(zerolog.Nop(), time.UTC)

	_, err := n.Normalize(&providers.RawPayload{Source: "izmir"})
	assert.Error(t, err)

	_, err = n.Normalize(nil)
	assert.Error(t, err)

	assert.ElementsMatch(t, []string{"eskisehir", "istanbul", "ankara"}, n.Sources())
}
