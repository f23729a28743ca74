// Package normalizer turns raw duty roster payloads into canonical pharmacy records.
package normalizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
)

// Result is the outcome of normalizing one payload.
type Result struct {
	Records []*entities.Pharmacy
	Skipped int
}

// Normalizer dispatches payloads to the convention registered for their source.
type Normalizer struct {
	mu          sync.RWMutex
	conventions map[string]Convention
	logger      zerolog.Logger
}

// New creates an empty normalizer
func New(logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		conventions: make(map[string]Convention),
		logger:      logger.With().Str("component", "normalizer").Logger(),
	}
}

// Register adds or replaces the convention for a source.
func (n *Normalizer) Register(source string, convention Convention) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conventions[strings.ToLower(source)] = convention
}

// Sources lists the registered source names.
func (n *Normalizer) Sources() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.conventions))
	for name := range n.conventions {
		out = append(out, name)
	}
	return out
}

// Normalize converts every usable entry of the payload. Entries that cannot be
// converted are logged and counted in Skipped; they never fail the batch.
// An error is returned only when no convention exists for the payload's source.
func (n *Normalizer) Normalize(payload *providers.RawPayload) (Result, error) {
	if payload == nil {
		return Result{}, fmt.Errorf("normalize: nil payload")
	}

	n.mu.RLock()
	convention, ok := n.conventions[strings.ToLower(payload.Source)]
	n.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("normalize: no convention for source %q", payload.Source)
	}

	result := Result{Records: make([]*entities.Pharmacy, 0, len(payload.Entries))}
	for i := range payload.Entries {
		record, err := convention.apply(payload.Entries[i], payload.FetchedAt)
		if err != nil {
			result.Skipped++
			n.logger.Warn().
				Err(err).
				Str("source", payload.Source).
				Str("city", payload.City).
				Str("entry", payload.Entries[i].Name).
				Msg("skipping malformed roster entry")
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}
