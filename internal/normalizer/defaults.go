package normalizer

import (
	"time"

	"github.com/rs/zerolog"
)

// Source names shared with the scraper registry.
const (
	SourceEskisehir = "eskisehir"
	SourceIstanbul  = "istanbul"
	SourceAnkara    = "ankara"
)

// NewDefault creates a normalizer with every built-in source registered.
// loc is the zone the sources publish local times in.
func NewDefault(logger zerolog.Logger, loc *time.Location) *Normalizer {
	n := New(logger)
	n.Register(SourceEskisehir, EskisehirConvention(loc))
	n.Register(SourceIstanbul, IstanbulConvention(loc))
	n.Register(SourceAnkara, AnkaraConvention(loc))
	return n
}
