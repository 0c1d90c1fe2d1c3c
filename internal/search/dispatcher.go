package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dusk-indust/jitcap/internal/capability"
	"go.uber.org/zap"
)

// Dispatcher forwards queries to the strategy registered for the active mode.
type Dispatcher struct {
	mu       sync.RWMutex
	mode     Mode
	handlers map[Mode]Strategy
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher with the built-in strategy for every mode,
// ranking over corpus.
func NewDispatcher(corpus Corpus, logger *zap.Logger) *Dispatcher {
	d, _ := NewDispatcherWith(map[Mode]Strategy{
		ModeSemantic: NewSemantic(corpus),
		ModeBM25:     NewBM25(corpus),
		ModeCategory: NewCategory(corpus),
	}, logger)
	return d
}

// NewDispatcherWith creates a Dispatcher from an explicit handler table. The
// table must contain a handler for DefaultMode.
func NewDispatcherWith(handlers map[Mode]Strategy, logger *zap.Logger) (*Dispatcher, error) {
	if handlers[DefaultMode] == nil {
		return nil, errors.New("search: no handler registered for the default mode")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	table := make(map[Mode]Strategy, len(handlers))
	for m, s := range handlers {
		table[m] = s
	}
	return &Dispatcher{mode: DefaultMode, handlers: table, logger: logger}, nil
}

// Mode returns the active mode.
func (d *Dispatcher) Mode() Mode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode
}

// SetMode switches the active mode. Unknown or unregistered modes fail with
// ErrUnsupportedMode and leave the active mode unchanged.
func (d *Dispatcher) SetMode(name string) error {
	m, err := ParseMode(name)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[m]; !ok {
		return fmt.Errorf("%w: %s (no handler registered)", capability.ErrUnsupportedMode, name)
	}
	d.mode = m
	return nil
}

// Search runs query against the strategy for mode. An empty mode selects the
// active mode; an unknown mode falls back to the default strategy so that
// discovery stays available.
func (d *Dispatcher) Search(ctx context.Context, query, mode string, opts Options) ([]capability.Candidate, error) {
	strategy, used := d.strategyFor(mode)
	results, err := strategy.Search(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("search: %s: %w", used, err)
	}
	d.logger.Debug("search complete",
		zap.String("mode", used.String()),
		zap.String("query", query),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func (d *Dispatcher) strategyFor(mode string) (Strategy, Mode) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if mode == "" {
		return d.handlers[d.mode], d.mode
	}
	m, err := ParseMode(mode)
	if err == nil {
		if s, ok := d.handlers[m]; ok {
			return s, m
		}
	}
	d.logger.Debug("unknown search mode, using default",
		zap.String("requested", mode),
		zap.String("default", DefaultMode.String()),
	)
	return d.handlers[DefaultMode], DefaultMode
}
