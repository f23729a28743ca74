package entities_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
)

func TestLocation_String(t *testing.T) {
	tests := []struct {
		name string
		loc  entities.Location
		want string
	}{
		{"plain", entities.Location{Latitude: 39.7767, Longitude: 30.5206}, "39.7767,30.5206"},
		{"tiny latitude stays decimal", entities.Location{Latitude: 0.00003, Longitude: 32.85}, "0.00003,32.85"},
		{"negative", entities.Location{Latitude: -0.0000001, Longitude: -120}, "-0.0000001,-120"},
		{"integers", entities.Location{Latitude: 41, Longitude: 29}, "41,29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.loc.String())
		})
	}
}

func TestLocation_Valid(t *testing.T) {
	assert.True(t, entities.Location{Latitude: 90, Longitude: -180}.Valid())
	assert.False(t, entities.Location{Latitude: 90.1, Longitude: 0}.Valid())
	assert.False(t, entities.Location{Latitude: math.NaN(), Longitude: 0}.Valid())
}

func TestLocation_DistanceTo(t *testing.T) {
	eskisehir := entities.Location{Latitude: 39.7767, Longitude: 30.5206}
	assert.Zero(t, eskisehir.DistanceTo(eskisehir))

	// one degree of latitude is about 111.2km
	north := entities.Location{Latitude: 40.7767, Longitude: 30.5206}
	assert.InDelta(t, 111195, eskisehir.DistanceTo(north), 50)
}
