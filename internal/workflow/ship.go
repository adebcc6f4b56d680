package workflow

import (
	"context"
	"fmt"

	"github.com/Sivellexfc/paket-pilot/internal/archive"
	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/Sivellexfc/paket-pilot/internal/reconcile"
	"github.com/Sivellexfc/paket-pilot/internal/table"
)

// ShipResult – co trafiło do archiwum przy oznaczeniu wysyłki.
type ShipResult struct {
	Date          string
	CargoEntryID  uint
	CargoAdded    int
	CancelEntryID uint
	Cancelled     int
}

// MarkShipped archiwizuje źródło (bez anulowanych) jako wysyłkę dnia i
// tabelę anulowań jako anulowania dnia, po czym kończy sesję.
//
// Odrzucane, gdy cel nie ma wierszy albo walidacja nie przechodzi. Błąd
// zapisu wycofuje oba wpisy i zostawia sesję nietkniętą, więc operator może
// ponowić; ponowny zapis wysyłek w trybie merge niczego nie dubluje.
func (e *Engine) MarkShipped(ctx context.Context) (ShipResult, error) {
	e.mu.Lock()
	if e.state != StatePreparing {
		e.mu.Unlock()
		return ShipResult{}, ErrNotPreparing
	}
	if e.target.Len() == 0 {
		e.mu.Unlock()
		return ShipResult{}, ErrTargetEmpty
	}
	if !e.validation.AllValid {
		verr := e.validation.Err()
		e.mu.Unlock()
		if verr == nil {
			return ShipResult{}, ErrShipmentBlocked
		}
		return ShipResult{}, fmt.Errorf("%w: %w", ErrShipmentBlocked, verr)
	}

	storeID, session := e.storeID, e.session
	res := ShipResult{Date: archive.Day(e.deps.Clock())}
	cancelled := reconcile.ShippedSet(archive.OrderNumbers(e.cancellations))
	cargo := archive.ShippedTable(e.source, cancelled)
	log := e.log.With().Uint("store_id", storeID).Str("session", session).Str("date", res.Date).Logger()

	// blokada zostaje do końca zapisu: runda odświeżania nie może wejść w środek.
	// Wysyłki i anulowania – jedna transakcja, wszystko albo nic.
	var batches []archive.Batch
	if cargo.Len() > 0 {
		batches = append(batches, archive.Batch{Type: archive.TypeCargo, Data: cargo, Mode: e.opts.CargoMode})
	}
	if e.cancellations.Len() > 0 {
		batches = append(batches, archive.Batch{Type: archive.TypeCancel, Data: archive.CancelTable(e.cancellations), Mode: e.opts.CancelMode})
	}
	committed, err := e.archiver.CommitAll(ctx, storeID, res.Date, batches)
	if err != nil {
		e.lastErr = err
		e.mu.Unlock()
		log.Error().Err(err).Msg("zapis archiwum nieudany")
		return ShipResult{}, err
	}
	for _, c := range committed {
		switch c.Type {
		case archive.TypeCargo:
			res.CargoEntryID, res.CargoAdded = c.Entry.ID, c.Stats.Added
		case archive.TypeCancel:
			res.CancelEntryID, res.Cancelled = c.Entry.ID, e.cancellations.Len()
		}
	}

	loop := e.resetLocked()
	e.mu.Unlock()

	if loop != nil {
		loop.Stop()
	}
	log.Info().Int("cargo_added", res.CargoAdded).Int("cancelled", res.Cancelled).Msg("kargoya verildi")
	return res, nil
}

// CancelReportDays – jak daleko wstecz szukamy anulowanych zamówień w archiwum.
const CancelReportDays = 365

// CancelReport pobiera anulowania z rynku i dopasowuje je do archiwum sklepu
// z ostatniego roku: wysłane (do zwrotu), wykryte w czasie kompletacji, reszta.
func (e *Engine) CancelReport(ctx context.Context, storeID uint, r integrations.DateRange) ([]reconcile.CancelledOrder, error) {
	if storeID == 0 {
		return nil, ErrNoStore
	}
	if e.deps.Market == nil {
		return nil, ErrNoMarketplace
	}
	cred, err := e.deps.Store.GetStoredCredentials(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if !cred.Valid() {
		return nil, ErrNoCredentials
	}
	cancelled, err := e.deps.Market.FetchCancelledOrders(ctx, cred, r)
	if err != nil {
		return nil, err
	}

	now := e.deps.Clock()
	entries, err := e.deps.Store.ListArchiveEntries(ctx, storeID, archive.Day(now.AddDate(0, 0, -CancelReportDays)), archive.Day(now), "")
	if err != nil {
		return nil, err
	}
	archives := make([]reconcile.ArchivedTable, 0, len(entries))
	for _, en := range entries {
		archives = append(archives, reconcile.ArchivedTable{EntryID: en.ID, Cargo: en.Type == archive.TypeCargo, Data: en.Data})
	}
	out, miss := reconcile.ClassifyCancelled(cancelled, archives)
	if miss != nil {
		return nil, miss
	}
	return out, nil
}

// ReturnOrder usuwa zamówienie z wpisu archiwum (np. przyjęty zwrot
// wysłanego, a potem anulowanego zamówienia).
func (e *Engine) ReturnOrder(ctx context.Context, entryID uint, orderNo string) (removed int, deleted bool, err error) {
	return e.archiver.RemoveOrder(ctx, entryID, orderNo)
}

// ArchiveTable zapisuje dowolną tabelę do archiwum dnia (ręczny import
// archiwum); numer zamówienia jest wymagany, żeby scalanie miało klucz.
func (e *Engine) ArchiveTable(ctx context.Context, storeID uint, typ archive.Type, date string, t table.Table) (*archive.Entry, archive.MergeStats, error) {
	if storeID == 0 {
		return nil, archive.MergeStats{}, ErrNoStore
	}
	if err := columns.ResolveTable(t).Require(columns.OrderNumber); err != nil {
		return nil, archive.MergeStats{}, err
	}
	mode := e.opts.CargoMode
	if typ == archive.TypeCancel {
		mode = e.opts.CancelMode
	}
	return e.archiver.Commit(ctx, storeID, typ, date, t, mode)
}
