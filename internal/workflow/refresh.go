package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/archive"
	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/Sivellexfc/paket-pilot/internal/reconcile"
	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var _ integrations.Sink = (*Engine)(nil)

// Refresh to jedna runda: pobranie otwartych zamówień z rynku razem z listą
// już wysłanych, potem przyjęcie nowego źródła. Błąd pobrania zostawia
// poprzedni stan bez zmian (ostatnie dobre źródło nadal jest widoczne).
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StatePreparing {
		e.mu.Unlock()
		return ErrNotPreparing
	}
	storeID, session := e.storeID, e.session
	e.mu.Unlock()

	if e.deps.Market == nil {
		return e.fail(session, ErrNoMarketplace)
	}
	cred, err := e.deps.Store.GetStoredCredentials(ctx, storeID)
	if err != nil {
		return e.fail(session, fmt.Errorf("credentials: %w", err))
	}
	if !cred.Valid() {
		return e.fail(session, ErrNoCredentials)
	}

	var (
		fresh   table.Table
		shipped []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fresh, err = e.deps.Market.FetchOpenOrders(gctx, cred, integrations.Today(e.deps.Clock()))
		return err
	})
	g.Go(func() error {
		var err error
		shipped, err = e.deps.Store.ListShippedOrderNumbers(gctx, storeID)
		return err
	})
	if err := g.Wait(); err != nil {
		return e.fail(session, err)
	}
	return e.accept(ctx, session, fresh, shipped, e.deps.Market.Name())
}

// ImportTable – wejście dla importu plików (integrations.Sink).
func (e *Engine) ImportTable(ctx context.Context, side integrations.Side, filename string, t table.Table) error {
	switch side {
	case integrations.SideTarget:
		return e.SetTarget(t)
	case integrations.SideSource:
		return e.ImportSource(ctx, t)
	}
	return fmt.Errorf("import %s: unknown side %q", filename, side)
}

// ImportSource przyjmuje tabelę źródła z pliku tak samo jak z API.
func (e *Engine) ImportSource(ctx context.Context, t table.Table) error {
	if t.IsZero() {
		return fmt.Errorf("%w: empty source table", table.ErrMalformed)
	}
	e.mu.Lock()
	if e.state != StatePreparing {
		e.mu.Unlock()
		return ErrNotPreparing
	}
	storeID, session := e.storeID, e.session
	e.mu.Unlock()

	shipped, err := e.deps.Store.ListShippedOrderNumbers(ctx, storeID)
	if err != nil {
		return fmt.Errorf("shipped orders: %w", err)
	}
	return e.accept(ctx, session, t, shipped, "import")
}

func (e *Engine) fail(session string, err error) error {
	e.mu.Lock()
	if e.session == session {
		e.lastErr = err
	}
	e.mu.Unlock()
	return err
}

// accept – wszystko od filtra wysłanych do walidacji pod jedną blokadą.
func (e *Engine) accept(ctx context.Context, session string, fresh table.Table, shipped []string, origin string) error {
	cm := columns.ResolveTable(fresh)
	filtered, dropped := reconcile.FilterAlreadyShipped(fresh, reconcile.ShippedSet(shipped), cm)

	e.mu.Lock()
	defer e.mu.Unlock()
	// sesja mogła się skończyć w czasie pobierania
	if e.state != StatePreparing || e.session != session {
		return ErrNotPreparing
	}
	now := e.deps.Clock()
	log := e.log.With().Uint("store_id", e.storeID).Str("session", session).Str("origin", origin).Logger()

	// tabela, z której powstał poprzedni snapshot Differa; źródło bez
	// kolumny numeru zamówienia jej nie podmienia
	previous := e.diffBase
	d := e.differ.Diff(filtered, cm)
	if d.Missing == nil {
		e.diffBase = filtered
	}
	e.source = filtered
	e.sourceCols = cm
	e.filtered = dropped
	e.lastFetch = now
	e.lastErr = nil

	switch {
	case d.Missing != nil:
		log.Warn().Err(d.Missing).Msg("brak kolumny numeru zamówienia, pomijam wykrywanie anulowań")
	case d.First:
		log.Info().Int("orders", len(d.Current)).Int("filtered", dropped).Msg("pierwszy snapshot źródła")
	case d.Changed():
		e.recordChangesLocked(ctx, log, previous, d, now)
	}

	next, added, dropped := reconcile.SyncTarget(e.target, reconcile.Aggregate(filtered, cm))
	e.target = next
	if added+dropped > 0 {
		log.Debug().Int("added", added).Int("dropped", dropped).Msg("cel dopasowany do źródła")
	}
	e.revalidateLocked()

	log.Debug().Int("rows", filtered.Len()).Int("filtered", dropped).
		Bool("valid", e.validation.AllValid).Msg("źródło przyjęte")
	return nil
}

func (e *Engine) recordChangesLocked(ctx context.Context, log zerolog.Logger, previous table.Table, d reconcile.DiffResult, now time.Time) {
	events := reconcile.EventsFromDiff(d, now, e.session)
	e.tracking.Record(events...)
	if err := e.deps.Store.AddTrackingEvents(ctx, e.storeID, events); err != nil {
		log.Error().Err(err).Msg("zapis zdarzeń nieudany")
	}
	for _, ev := range events {
		log.Info().Str("order_no", ev.OrderNumber).Str("product", ev.ProductName).Str("event", string(ev.Type)).Msg("zmiana zamówień")
	}

	if len(d.Cancellations) > 0 {
		rows := reconcile.CancellationRows(previous, d.Cancellations, now)
		if !rows.IsZero() {
			var existing *table.Table
			if !e.cancellations.IsZero() {
				existing = &e.cancellations
			}
			merged, st := archive.Merge(existing, rows, archive.ModeMerge)
			e.cancellations = merged
			log.Info().Int("added", st.Added).Int("skipped", st.Skipped).Msg("anulowania dopisane")
		}
	}

	// zamówienie, które wróciło do listy otwartych, nie jest już anulowane
	if len(d.Arrivals) > 0 && e.cancellations.Len() > 0 {
		for _, no := range d.Arrivals.OrderNumbers() {
			out, n, err := archive.RemoveOrder(e.cancellations, no)
			if err != nil {
				log.Warn().Err(err).Msg("tabela anulowań bez numeru zamówienia")
				break
			}
			if n > 0 {
				e.cancellations = out
				log.Info().Str("order_no", no).Msg("zamówienie wróciło, usunięte z anulowanych")
			}
		}
	}
}

func (e *Engine) revalidateLocked() {
	src := reconcile.Aggregate(e.source, e.sourceCols)
	tgt := reconcile.Aggregate(e.target, columns.ResolveTable(e.target))
	e.validation = reconcile.Validate(src, tgt)
}
