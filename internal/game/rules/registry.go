package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultPhases is the phase list a new game starts with.
var DefaultPhases = []string{
	"S3+S3",
	"S3+R4",
	"S4+R4",
	"R7",
	"R8",
	"R9",
	"S4+S4",
	"C7",
	"S5+S2",
	"S5+S3",
}

// ErrEmptyPhaseList is returned when a game would have no phases to play.
var ErrEmptyPhaseList = errors.New("phase list is empty")

// ValidatePhaseList compiles every entry and reports the first failure.
func ValidatePhaseList(phases []string) error {
	if len(phases) == 0 {
		return ErrEmptyPhaseList
	}
	for i, spec := range phases {
		if _, err := New(spec); err != nil {
			return fmt.Errorf("phase %d: %w", i+1, err)
		}
	}
	return nil
}

// Registry caches compiled rules by spec text. Compiling a rule builds the
// whole automaton, and the same handful of specs is consulted on every
// action and every bot move.
type Registry struct {
	cache *expirable.LRU[string, *PhaseRule]
}

// NewRegistry creates a cache holding up to size rules, each for at most ttl.
// A zero ttl keeps entries until they are evicted by size.
func NewRegistry(size int, ttl time.Duration) *Registry {
	if size <= 0 {
		size = 64
	}
	return &Registry{cache: expirable.NewLRU[string, *PhaseRule](size, nil, ttl)}
}

// Get returns the compiled rule for spec, compiling it on a miss.
func (reg *Registry) Get(spec string) (*PhaseRule, error) {
	if rule, ok := reg.cache.Get(spec); ok {
		return rule, nil
	}
	rule, err := New(spec)
	if err != nil {
		return nil, err
	}
	reg.cache.Add(spec, rule)
	return rule, nil
}

// Len reports how many rules are cached.
func (reg *Registry) Len() int {
	return reg.cache.Len()
}
