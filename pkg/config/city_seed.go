package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CitySeed is the YAML document describing the configured cities
type CitySeed struct {
	Cities []CitySeedEntry `yaml:"cities"`
}

// CitySeedEntry describes one city, its ordinary hours and its roster source
type CitySeedEntry struct {
	Name     string           `yaml:"name"`
	Source   string           `yaml:"source"`
	Schedule ScheduleSeedSpec `yaml:"schedule"`
}

// ScheduleSeedSpec holds "HH:MM" wall-clock times in the schedule timezone
type ScheduleSeedSpec struct {
	WeekdayOpen   string `yaml:"weekdayOpen"`
	WeekdayClose  string `yaml:"weekdayClose"`
	SaturdayOpen  string `yaml:"saturdayOpen"`
	SaturdayClose string `yaml:"saturdayClose"`
}

// LoadCitySeed reads and validates the city seed file
func LoadCitySeed(path string) (*CitySeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read city seed: %w", err)
	}
	return ParseCitySeed(raw)
}

// ParseCitySeed decodes a city seed document
func ParseCitySeed(raw []byte) (*CitySeed, error) {
	var seed CitySeed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse city seed: %w", err)
	}

	seen := map[string]struct{}{}
	for i, city := range seed.Cities {
		name := strings.TrimSpace(city.Name)
		if name == "" {
			return nil, fmt.Errorf("city #%d: name is required", i+1)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("city %s: declared twice", name)
		}
		seen[key] = struct{}{}
		if city.Source == "" {
			seed.Cities[i].Source = key
		}
		seed.Cities[i].Name = name
	}
	return &seed, nil
}
