package circuitbreaker

import (
	"context"
	"sort"
	"sync"

	"webhook-gateway/internal/common/logging"
)

// Set keeps one breaker per name, created on first use
type Set struct {
	config   Config
	logger   logging.Logger
	onChange func(name string, to State)

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

func NewSet(config Config, logger logging.Logger, onChange func(name string, to State)) *Set {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Set{
		config:   config,
		logger:   logger,
		onChange: onChange,
		breakers: make(map[string]*Breaker),
	}
}

func (s *Set) Get(name string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[name]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[name]; ok {
		return b
	}
	b = New(name, s.config, s.logger, s.onChange)
	s.breakers[name] = b
	return b
}

// Execute runs fn through the breaker called name
func (s *Set) Execute(ctx context.Context, name string, fn func() error) error {
	return s.Get(name).Execute(ctx, fn)
}

// AllStats returns statistics for every breaker, sorted by name
func (s *Set) AllStats() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]Stats, 0, len(s.breakers))
	for _, b := range s.breakers {
		stats = append(stats, b.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}
