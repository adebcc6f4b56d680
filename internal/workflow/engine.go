// Package workflow prowadzi sesję kompletacji: od startu przez cykliczne
// odświeżanie zamówień i sprawdzanie sztuk do oznaczenia wysyłki.
//
// Cały stan sesji (tabele źródła, celu i anulowań, poprzedni snapshot,
// wynik walidacji) siedzi w Engine za jednym mutexem. Runda odświeżania
// pobiera dane bez blokady, a potem pod blokadą robi filtr, diff,
// agregację i walidację jako jeden krok.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/archive"
	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	logs "github.com/Sivellexfc/paket-pilot/internal/logs"
	"github.com/Sivellexfc/paket-pilot/internal/reconcile"
	"github.com/Sivellexfc/paket-pilot/internal/syncer"
	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type State int

const (
	StateIdle State = iota
	StatePreparing
)

func (s State) String() string {
	if s == StatePreparing {
		return "preparing"
	}
	return "idle"
}

// Store – to, czego silnik potrzebuje od bazy (spełnia go *db.Handle).
type Store interface {
	archive.Store
	GetStoredCredentials(ctx context.Context, storeID uint) (integrations.Credentials, error)
	ListShippedOrderNumbers(ctx context.Context, storeID uint) ([]string, error)
	ListArchiveEntries(ctx context.Context, storeID uint, from, to string, typ archive.Type) ([]archive.Entry, error)
	AddTrackingEvents(ctx context.Context, storeID uint, events []reconcile.TrackingEvent) error
	CleanupTrackingEvents(ctx context.Context, storeID uint) (int64, error)
}

type Deps struct {
	Store   Store
	Market  integrations.Marketplace // nil = tylko import plików
	Imports integrations.ImportLog   // historia importów dla integracji tła, opcjonalna
	Clock   func() time.Time
	NewID   func() string
}

type Options struct {
	// Interval < 0 wyłącza pętlę odświeżania (tryb ręczny), 0 = 60 s.
	Interval   time.Duration
	CargoMode  archive.Mode
	CancelMode archive.Mode
	// Integrations – sekcja integrations z configu; integracje tła
	// (np. importer) działają tylko w czasie sesji.
	Integrations map[string]json.RawMessage
}

type Engine struct {
	log      zerolog.Logger
	deps     Deps
	opts     Options
	archiver *archive.Archiver
	tracking reconcile.TrackingLog

	mu            sync.Mutex
	state         State
	storeID       uint
	session       string
	source        table.Table
	sourceCols    columns.ColumnMap
	target        table.Table
	cancellations table.Table
	differ        reconcile.Differ
	diffBase      table.Table
	validation    reconcile.ValidationResult
	lastFetch     time.Time
	lastErr       error
	filtered      int
	loop          *syncer.Syncer
}

func New(log zerolog.Logger, deps Deps, opts Options) *Engine {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.NewString() }
	}
	if opts.Interval == 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.CargoMode == "" {
		opts.CargoMode = archive.ModeMerge
	}
	if opts.CancelMode == "" {
		opts.CancelMode = archive.ModeOverwrite
	}
	log = logs.Component(log, "workflow")
	return &Engine{
		log:      log,
		deps:     deps,
		opts:     opts,
		archiver: archive.NewArchiver(log, deps.Store),
	}
}

// Start otwiera sesję kompletacji dla sklepu i od razu odświeża źródło.
// Tabela anulowań startuje z dzisiejszego wpisu archiwum anulowań, żeby
// zapis w trybie overwrite nie gubił wcześniejszych anulowań z tego dnia.
func (e *Engine) Start(ctx context.Context, storeID uint) error {
	if storeID == 0 {
		return ErrNoStore
	}
	e.mu.Lock()
	if e.state == StatePreparing {
		e.mu.Unlock()
		return ErrAlreadyPreparing
	}
	e.mu.Unlock()

	today, err := e.deps.Store.GetArchiveEntry(ctx, storeID, archive.TypeCancel, archive.Day(e.deps.Clock()))
	if err != nil {
		return fmt.Errorf("load today's cancellations: %w", err)
	}

	e.mu.Lock()
	if e.state == StatePreparing {
		e.mu.Unlock()
		return ErrAlreadyPreparing
	}
	e.resetLocked()
	e.state = StatePreparing
	e.storeID = storeID
	e.session = e.deps.NewID()
	if today != nil {
		e.cancellations = today.Data
	}
	e.revalidateLocked()
	session := e.session

	var loop *syncer.Syncer
	if e.opts.Interval > 0 {
		loop = syncer.New(e.log.With().Str("session", session).Logger(), e.opts.Interval, e.tick, e.buildIntegrations)
		e.loop = loop
	}
	e.mu.Unlock()

	e.log.Info().Uint("store_id", storeID).Str("session", session).
		Bool("seeded_cancellations", today != nil).Msg("preparation started")

	if loop != nil {
		return loop.Start(context.WithoutCancel(ctx))
	}
	return nil
}

// Stop porzuca sesję bez archiwizacji.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != StatePreparing {
		e.mu.Unlock()
		return
	}
	session := e.session
	loop := e.resetLocked()
	e.mu.Unlock()

	if loop != nil {
		loop.Stop()
	}
	e.log.Info().Str("session", session).Msg("preparation stopped")
}

// resetLocked czyści stan sesji i zwraca pętlę do zatrzymania (już bez blokady).
func (e *Engine) resetLocked() *syncer.Syncer {
	loop := e.loop
	e.loop = nil
	e.state = StateIdle
	e.session = ""
	e.source = table.Table{}
	e.sourceCols = columns.ColumnMap{}
	e.target = table.Table{}
	e.cancellations = table.Table{}
	e.differ.Reset()
	e.diffBase = table.Table{}
	e.validation = reconcile.ValidationResult{}
	e.lastErr = nil
	e.lastFetch = time.Time{}
	e.filtered = 0
	return loop
}

func (e *Engine) tick(ctx context.Context) error {
	if e.deps.Market == nil {
		return nil
	}
	err := e.Refresh(ctx)
	if errors.Is(err, ErrNotPreparing) {
		return nil
	}
	return err
}

func (e *Engine) buildIntegrations() []integrations.Integration {
	if len(e.opts.Integrations) == 0 {
		return nil
	}
	e.mu.Lock()
	env := integrations.Env{StoreID: e.storeID, Sink: e, Imports: e.deps.Imports}
	e.mu.Unlock()
	return integrations.Build(e.log, e.opts.Integrations, env)
}

type Status struct {
	State         State
	StoreID       uint
	Session       string
	ShipmentReady bool
	SourceRows    int
	TargetRows    int
	Cancellations int
	Filtered      int // wiersze odrzucone jako już wysłane w ostatniej rundzie
	LastFetch     time.Time
	LastErr       error
	// pętla odświeżania; zera w trybie ręcznym
	Looping      bool
	Ticks        uint64
	TickFailures uint64
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		State:         e.state,
		StoreID:       e.storeID,
		Session:       e.session,
		ShipmentReady: e.state == StatePreparing && e.validation.AllValid && e.target.Len() > 0,
		SourceRows:    e.source.Len(),
		TargetRows:    e.target.Len(),
		Cancellations: e.cancellations.Len(),
		Filtered:      e.filtered,
		LastFetch:     e.lastFetch,
		LastErr:       e.lastErr,
	}
	if e.loop != nil {
		st.Looping = e.loop.IsRunning()
		st.Ticks, st.TickFailures, _ = e.loop.Stats()
	}
	return st
}

// SetInterval zmienia interwał odświeżania; działająca pętla weźmie go przy
// następnej rundzie. d <= 0 wyłącza pętlę dla kolejnych sesji.
func (e *Engine) SetInterval(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d <= 0 {
		e.opts.Interval = -1
		return
	}
	e.opts.Interval = d
	if e.loop != nil {
		e.loop.SetInterval(d)
	}
}

// View – kopia tabel sesji do wyświetlenia.
type View struct {
	Source        table.Table
	Target        table.Table
	Cancellations table.Table
	Validation    reconcile.ValidationResult
}

func (e *Engine) Snapshot() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancels := e.cancellations.Clone()
	if cancels.IsZero() && e.state == StatePreparing {
		cancels = reconcile.EmptyCancellations(e.source)
	}
	return View{
		Source:        e.source.Clone(),
		Target:        e.target.Clone(),
		Cancellations: cancels,
		Validation:    copyValidation(e.validation),
	}
}

// Tracking – zdarzenia z pamięci, najnowsze pierwsze (max reconcile.TrackingCap).
func (e *Engine) Tracking() []reconcile.TrackingEvent {
	return e.tracking.Events()
}

// ClearTracking czyści log w pamięci i historię sklepu w bazie.
func (e *Engine) ClearTracking(ctx context.Context, storeID uint) (int64, error) {
	e.tracking.Clear()
	return e.deps.Store.CleanupTrackingEvents(ctx, storeID)
}

func copyValidation(v reconcile.ValidationResult) reconcile.ValidationResult {
	out := v
	if v.PerBarcode != nil {
		out.PerBarcode = make(map[string]reconcile.ValidationEntry, len(v.PerBarcode))
		for k, en := range v.PerBarcode {
			out.PerBarcode[k] = en
		}
	}
	return out
}
