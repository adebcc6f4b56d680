// internal/syncer/syncer.go
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/rs/zerolog"
)

// TickFunc – jedna runda pracy. Błąd jest logowany, pętla idzie dalej.
type TickFunc func(ctx context.Context) error

// BuildFunc tworzy integracje tła uruchamiane razem z pętlą (np. importer).
type BuildFunc func() []integrations.Integration

// Syncer wywołuje tick od razu po starcie, a potem co interwał, dopóki
// ktoś nie zawoła Stop. Interwał jest czytany przed każdą rundą.
// Stop nie może być wołany z wnętrza ticka.
type Syncer struct {
	log   zerolog.Logger // logowanie
	tick  TickFunc
	build BuildFunc

	mu       sync.Mutex // ochrona sekcji krytycznych
	every    time.Duration
	running  bool // czy syncer działa
	cancel   context.CancelFunc
	wg       sync.WaitGroup // śledzi goroutines
	ticks    uint64         // licznik rund
	failures uint64
	lastErr  error
	ints     []integrations.Integration // lista aktywnych integracji
}

func New(log zerolog.Logger, every time.Duration, tick TickFunc, build BuildFunc) *Syncer {
	return &Syncer{log: log, every: every, tick: tick, build: build}
}

func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.ticks = 0
	s.failures = 0
	s.lastErr = nil

	var ints []integrations.Integration
	if s.build != nil {
		ints = s.build()
	}
	s.ints = ints
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.Info().Dur("interval", s.interval()).Int("integrations", len(ints)).Msg("syncer: start")
	go s.loop(ctx)

	// każda integracja w swojej gorutinie
	for _, intg := range ints {
		s.wg.Add(1)
		go func(intg integrations.Integration) {
			defer s.wg.Done()
			if err := intg.Start(ctx); err != nil {
				s.log.Error().Err(err).Str("integration", intg.Name()).Msg("zakończona z błędem")
			}
		}(intg)
	}
	return nil
}

func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	ints := s.ints
	s.ints = nil
	s.cancel = nil
	s.mu.Unlock()

	for _, in := range ints {
		in.Stop()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("syncer: stop")
}

// SetInterval zmienia interwał; działająca pętla weźmie go przy następnej rundzie.
func (s *Syncer) SetInterval(d time.Duration) {
	s.mu.Lock()
	s.every = d
	s.mu.Unlock()
}

func (s *Syncer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats – liczba rund, nieudanych rund i ostatni błąd.
func (s *Syncer) Stats() (ticks, failures uint64, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks, s.failures, s.lastErr
}

func (s *Syncer) interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.every > 0 {
		return s.every
	}
	return 60 * time.Second
}

func (s *Syncer) loop(ctx context.Context) {
	defer s.wg.Done()

	// pierwszy strzał od razu
	s.tickOnce(ctx)

	cur := s.interval()
	ticker := time.NewTicker(cur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("syncer: koniec pętli")
			return
		case <-ticker.C:
			// jeśli ktoś zmienił interwał, odśwież ticker
			if next := s.interval(); next != cur {
				cur = next
				ticker.Reset(cur)
			}
			s.tickOnce(ctx)
		}
	}
}

func (s *Syncer) tickOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	err := s.tick(ctx)

	s.mu.Lock()
	s.ticks++
	n := s.ticks
	if err != nil {
		s.failures++
	}
	s.lastErr = err
	s.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Uint64("tick", n).Msg("syncer: runda nieudana")
	}
}
