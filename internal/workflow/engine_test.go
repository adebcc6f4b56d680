package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/archive"
	"github.com/Sivellexfc/paket-pilot/internal/db"
	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/Sivellexfc/paket-pilot/internal/reconcile"
	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fakeMarket struct {
	mu        sync.Mutex
	open      table.Table
	openErr   error
	cancelled table.Table
	calls     int
}

func (m *fakeMarket) Name() string { return "fake" }

func (m *fakeMarket) FetchOpenOrders(ctx context.Context, cred integrations.Credentials, r integrations.DateRange) (table.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.openErr != nil {
		return table.Table{}, m.openErr
	}
	return m.open.Clone(), nil
}

func (m *fakeMarket) FetchCancelledOrders(ctx context.Context, cred integrations.Credentials, r integrations.DateRange) (table.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled.Clone(), nil
}

func (m *fakeMarket) set(t table.Table, err error) {
	m.mu.Lock()
	m.open, m.openErr = t, err
	m.mu.Unlock()
}

func (m *fakeMarket) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type line struct {
	order, product, barcode string
	qty                     float64
}

func orders(lines ...line) table.Table {
	rows := make([][]table.Cell, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []table.Cell{l.order, l.product, l.barcode, l.qty})
	}
	return table.MustNew([]table.Cell{"Sipariş Numarası", "Ürün Adı", "Barkod", "Adet"}, rows)
}

var (
	kazak = line{"1001", "Kazak", "A", 2}
	bere  = line{"1002", "Bere", "B", 1}
)

func openStore(t *testing.T) (*db.Handle, uint) {
	t.Helper()
	ctx := context.Background()
	h, err := db.Open(db.Config{Driver: db.DriverSQLite, DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())}, "")
	require.NoError(t, err)
	require.NoError(t, h.Migrate())
	t.Cleanup(func() { _ = h.Close() })

	s, err := h.AddStore(ctx, "Test")
	require.NoError(t, err)
	require.NoError(t, h.UpdateStoreIntegration(ctx, s.ID, integrations.Credentials{SellerID: "42", APIKey: "k", APISecret: "s"}))
	return h, s.ID
}

func newEngine(h Store, m integrations.Marketplace, opts Options) *Engine {
	if opts.Interval == 0 {
		opts.Interval = -1
	}
	n := 0
	return New(zerolog.Nop(), Deps{
		Store:  h,
		Market: m,
		Clock:  func() time.Time { return testNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("session-%d", n)
		},
	}, opts)
}

func TestStart_Errors(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	e := newEngine(h, &fakeMarket{}, Options{})

	assert.ErrorIs(t, e.Start(ctx, 0), ErrNoStore)
	assert.ErrorIs(t, e.Refresh(ctx), ErrNotPreparing)
	_, err := e.MarkShipped(ctx)
	assert.ErrorIs(t, err, ErrNotPreparing)

	require.NoError(t, e.Start(ctx, id))
	assert.ErrorIs(t, e.Start(ctx, id), ErrAlreadyPreparing)
	assert.Equal(t, StatePreparing, e.Status().State)
	assert.Equal(t, "session-1", e.Status().Session)

	e.Stop()
	assert.Equal(t, StateIdle, e.Status().State)
	e.Stop()
}

func TestRefresh_NoCredentialsOrMarket(t *testing.T) {
	ctx := context.Background()
	h, _ := openStore(t)
	s, err := h.AddStore(ctx, "Bez API")
	require.NoError(t, err)

	e := newEngine(h, &fakeMarket{}, Options{})
	require.NoError(t, e.Start(ctx, s.ID))
	assert.ErrorIs(t, e.Refresh(ctx), ErrNoCredentials)
	assert.ErrorIs(t, e.Status().LastErr, ErrNoCredentials)
	e.Stop()

	e = newEngine(h, nil, Options{})
	require.NoError(t, e.Start(ctx, s.ID))
	assert.ErrorIs(t, e.Refresh(ctx), ErrNoMarketplace)
	e.Stop()
}

func TestLifecycle_CancelCountShip(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	m := &fakeMarket{open: orders(kazak, bere)}
	e := newEngine(h, m, Options{})

	require.NoError(t, e.Start(ctx, id))
	require.NoError(t, e.Refresh(ctx))

	st := e.Status()
	assert.Equal(t, 2, st.SourceRows)
	assert.Equal(t, 2, st.TargetRows)
	assert.False(t, st.ShipmentReady)
	assert.Empty(t, e.Tracking(), "first snapshot records nothing")

	view := e.Snapshot()
	assert.Zero(t, view.Cancellations.Len())
	assert.Equal(t, []string{"İptal Tespit Tarihi", "Sipariş Numarası", "Ürün Adı", "Barkod", "Adet"}, view.Cancellations.HeaderStrings())

	_, err := e.MarkShipped(ctx)
	require.ErrorIs(t, err, ErrShipmentBlocked)
	assert.Equal(t, "Sayım eşleşmiyor, kargoya verilemez. Hatalı barkodlar: A, B", UserMessage(err))

	// 1002 znika z listy otwartych
	m.set(orders(kazak), nil)
	require.NoError(t, e.Refresh(ctx))

	st = e.Status()
	assert.Equal(t, 1, st.SourceRows)
	assert.Equal(t, 1, st.Cancellations)
	assert.Equal(t, 1, st.TargetRows, "uncounted row of the cancelled barcode is dropped")

	events := e.Tracking()
	require.Len(t, events, 1)
	assert.Equal(t, reconcile.EventCancel, events[0].Type)
	assert.Equal(t, "1002", events[0].OrderNumber)
	assert.Equal(t, "Bere", events[0].ProductName)
	assert.Equal(t, "session-1", events[0].SessionID)

	v, err := e.CountTarget("A", 1, 2)
	require.NoError(t, err)
	assert.True(t, v.AllValid)
	assert.True(t, e.Status().ShipmentReady)

	res, err := e.MarkShipped(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", res.Date)
	assert.Equal(t, 1, res.CargoAdded)
	assert.Equal(t, 1, res.Cancelled)
	assert.NotZero(t, res.CargoEntryID)
	assert.NotZero(t, res.CancelEntryID)

	st = e.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Zero(t, st.SourceRows)
	assert.Zero(t, st.Cancellations)

	cargo, err := h.GetArchiveEntry(ctx, id, archive.TypeCargo, "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, cargo)
	assert.Equal(t, []string{"1001"}, archive.OrderNumbers(cargo.Data))
	assert.Contains(t, cargo.Data.Rows[0], table.Cell(archive.StatusShipped))

	cancel, err := h.GetArchiveEntry(ctx, id, archive.TypeCancel, "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, cancel)
	assert.Equal(t, []string{"1002"}, archive.OrderNumbers(cancel.Data))
	assert.Contains(t, cancel.Data.Rows[0], table.Cell(archive.StageAwaitingShipment))

	stored, err := h.ListTrackingEvents(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "1002", stored[0].OrderNumber)

	n, err := e.ClearTracking(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Empty(t, e.Tracking())
}

func TestStart_FiltersShippedAndSeedsCancellations(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	m := &fakeMarket{open: orders(kazak, bere)}
	e := newEngine(h, m, Options{})

	_, _, err := e.ArchiveTable(ctx, id, archive.TypeCargo, "2024-04-30", orders(kazak))
	require.NoError(t, err)
	seed := reconcile.CancellationRows(orders(line{"0999", "Şal", "C", 1}), reconcile.Snapshot{"0999": "Şal"}, testNow)
	_, _, err = e.ArchiveTable(ctx, id, archive.TypeCancel, "2024-05-01", archive.CancelTable(seed))
	require.NoError(t, err)

	require.NoError(t, e.Start(ctx, id))
	assert.Equal(t, 1, e.Status().Cancellations)

	require.NoError(t, e.Refresh(ctx))
	st := e.Status()
	assert.Equal(t, 1, st.SourceRows)
	assert.Equal(t, 1, st.Filtered)
	assert.Equal(t, []string{"1002"}, archive.OrderNumbers(e.Snapshot().Source))
}

func TestRefresh_FetchErrorKeepsState(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	m := &fakeMarket{open: orders(kazak, bere)}
	e := newEngine(h, m, Options{})
	require.NoError(t, e.Start(ctx, id))
	require.NoError(t, e.Refresh(ctx))

	m.set(table.Table{}, &integrations.FetchError{Op: "fake", Status: 401, Body: "nope"})
	err := e.Refresh(ctx)
	require.Error(t, err)

	st := e.Status()
	assert.Equal(t, 2, st.SourceRows)
	require.Error(t, st.LastErr)
	assert.Contains(t, UserMessage(st.LastErr), "401")
	assert.Zero(t, st.Cancellations)

	m.set(orders(kazak, bere), nil)
	require.NoError(t, e.Refresh(ctx))
	assert.NoError(t, e.Status().LastErr)
}

func TestRefresh_ReturnedOrderLeavesCancellations(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	m := &fakeMarket{open: orders(kazak, bere)}
	e := newEngine(h, m, Options{})
	require.NoError(t, e.Start(ctx, id))
	require.NoError(t, e.Refresh(ctx))

	m.set(orders(kazak), nil)
	require.NoError(t, e.Refresh(ctx))
	require.Equal(t, 1, e.Status().Cancellations)

	m.set(orders(kazak, bere), nil)
	require.NoError(t, e.Refresh(ctx))
	assert.Zero(t, e.Status().Cancellations)

	events := e.Tracking()
	require.Len(t, events, 2)
	assert.Equal(t, reconcile.EventNew, events[0].Type)
	assert.Equal(t, reconcile.EventCancel, events[1].Type)
}

func TestImportTable(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	e := newEngine(h, nil, Options{})

	assert.ErrorIs(t, e.ImportTable(ctx, integrations.SideSource, "a.csv", orders(kazak)), ErrNotPreparing)
	require.NoError(t, e.Start(ctx, id))

	require.NoError(t, e.ImportTable(ctx, integrations.SideSource, "a.csv", orders(kazak)))
	assert.Equal(t, 1, e.Status().TargetRows)

	counted := table.MustNew(
		[]table.Cell{"Barkod", "Paket Sayısı", "Adet Sayısı"},
		[][]table.Cell{{"A", 1, 2}},
	)
	require.NoError(t, e.ImportTable(ctx, integrations.SideTarget, "hedef_a.csv", counted))
	assert.True(t, e.Validation().AllValid)

	assert.Error(t, e.ImportTable(ctx, "side", "x.csv", counted))
	assert.Error(t, e.ImportTable(ctx, integrations.SideTarget, "x.csv", table.Table{}))
}

func TestEditTarget(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	e := newEngine(h, &fakeMarket{open: orders(kazak)}, Options{})
	require.NoError(t, e.Start(ctx, id))
	require.NoError(t, e.Refresh(ctx))

	// Ürün Adı | Barkod | Paket Sayısı | Adet Sayısı
	_, err := e.EditTarget(0, 2, 1)
	require.NoError(t, err)
	v, err := e.EditTarget(0, 3, 2.0)
	require.NoError(t, err)
	assert.True(t, v.AllValid)

	v, err = e.EditTarget(0, 3, 3.0)
	require.NoError(t, err)
	assert.False(t, v.AllValid)
	assert.Equal(t, []string{"A"}, v.Mismatched())

	_, err = e.EditTarget(5, 0, "x")
	assert.Error(t, err)
}

func TestCountTarget_ExtraBarcodeBlocks(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	e := newEngine(h, &fakeMarket{open: orders(kazak)}, Options{})
	require.NoError(t, e.Start(ctx, id))
	require.NoError(t, e.Refresh(ctx))

	_, err := e.CountTarget("A", 1, 2)
	require.NoError(t, err)
	v, err := e.CountTarget("Z", 1, 1)
	require.NoError(t, err)
	assert.False(t, v.AllValid)
	assert.Equal(t, []string{"Z"}, v.Mismatched())

	view := e.Snapshot()
	require.Equal(t, 2, view.Target.Len())
	assert.Equal(t, reconcile.UnknownProduct, view.Target.Rows[1][0])
}

func TestMarkShipped_EmptyTarget(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	e := newEngine(h, &fakeMarket{open: orders()}, Options{})
	require.NoError(t, e.Start(ctx, id))
	require.NoError(t, e.Refresh(ctx))

	_, err := e.MarkShipped(ctx)
	assert.ErrorIs(t, err, ErrTargetEmpty)
	assert.Equal(t, StatePreparing, e.Status().State)
}

func TestCancelReport(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	m := &fakeMarket{cancelled: orders(kazak, bere, line{"1003", "Şal", "C", 1})}
	e := newEngine(h, m, Options{})

	cargo, _, err := e.ArchiveTable(ctx, id, archive.TypeCargo, "2024-04-20", orders(kazak))
	require.NoError(t, err)
	cancel, _, err := e.ArchiveTable(ctx, id, archive.TypeCancel, "2024-04-21", orders(bere))
	require.NoError(t, err)

	_, err = e.CancelReport(ctx, 0, integrations.LastDays(testNow, 7))
	assert.ErrorIs(t, err, ErrNoStore)

	out, err := e.CancelReport(ctx, id, integrations.LastDays(testNow, 7))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, reconcile.AfterShipment, out[0].Class)
	assert.Equal(t, cargo.ID, out[0].EntryID)
	assert.Equal(t, reconcile.DuringPreparation, out[1].Class)
	assert.Equal(t, cancel.ID, out[1].EntryID)
	assert.Equal(t, reconcile.Plain, out[2].Class)

	removed, deleted, err := e.ReturnOrder(ctx, cargo.ID, "1001")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, deleted)
}

func TestArchiveTable_RequiresOrderNumber(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	e := newEngine(h, nil, Options{})

	_, _, err := e.ArchiveTable(ctx, id, archive.TypeCargo, "2024-05-01", table.MustNew([]table.Cell{"Barkod"}, nil))
	require.Error(t, err)
	assert.Contains(t, UserMessage(err), "Sipariş No")
}

func TestLoop_RefreshesUntilStopped(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := &fakeMarket{open: orders(kazak)}
	e := newEngine(h, m, Options{Interval: 5 * time.Millisecond})
	require.NoError(t, e.Start(ctx, id))

	require.Eventually(t, func() bool { return m.callCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	st := e.Status()
	assert.Equal(t, 1, st.SourceRows)
	assert.True(t, st.Looping)
	assert.GreaterOrEqual(t, st.Ticks, uint64(1))
	assert.Zero(t, st.TickFailures)

	e.SetInterval(time.Hour)

	e.Stop()
	calls := m.callCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, m.callCount())
}

func TestLoop_StopsAfterShipment(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := &fakeMarket{open: orders(kazak)}
	e := newEngine(h, m, Options{Interval: 5 * time.Millisecond})
	require.NoError(t, e.Start(ctx, id))
	require.Eventually(t, func() bool { return e.Status().SourceRows == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err := e.CountTarget("A", 1, 2)
	require.NoError(t, err)
	_, err = e.MarkShipped(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, e.Status().State)
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Equal(t, "Lütfen önce bir mağaza seçin.", UserMessage(ErrNoStore))
	assert.Equal(t, "Sayım eşleşmiyor, kargoya verilemez.", UserMessage(ErrShipmentBlocked))
	assert.Equal(t, "API hatası: 500", UserMessage(fmt.Errorf("wrap: %w", &integrations.FetchError{Status: 500})))
	assert.Contains(t, UserMessage(&integrations.FetchError{Status: 403}), "yetkilendirme")
	assert.Equal(t, "İstek zaman aşımına uğradı.", UserMessage(context.DeadlineExceeded))
	assert.Equal(t, "İşlem başarısız: boom", UserMessage(errors.New("boom\ndetails")))
}

var errDiskFull = errors.New("disk full")

// brokenStore psuje zapis wpisów archiwum wybranego typu w transakcji.
type brokenStore struct {
	*db.Handle
	mu  sync.Mutex
	typ archive.Type
}

func (s *brokenStore) fail(typ archive.Type) {
	s.mu.Lock()
	s.typ = typ
	s.mu.Unlock()
}

func (s *brokenStore) Transaction(ctx context.Context, fn func(tx archive.Store) error) error {
	return s.Handle.Transaction(ctx, func(tx archive.Store) error {
		return fn(brokenTx{Store: tx, s: s})
	})
}

type brokenTx struct {
	archive.Store
	s *brokenStore
}

func (t brokenTx) PutArchiveEntry(ctx context.Context, e *archive.Entry) error {
	t.s.mu.Lock()
	broken := t.s.typ == e.Type
	t.s.mu.Unlock()
	if broken {
		return errDiskFull
	}
	return t.Store.PutArchiveEntry(ctx, e)
}

func TestMarkShipped_ArchiveFailureKeepsSession(t *testing.T) {
	for _, typ := range []archive.Type{archive.TypeCargo, archive.TypeCancel} {
		t.Run(string(typ), func(t *testing.T) {
			ctx := context.Background()
			h, id := openStore(t)
			s := &brokenStore{Handle: h}
			m := &fakeMarket{open: orders(kazak, bere)}
			e := newEngine(s, m, Options{})

			require.NoError(t, e.Start(ctx, id))
			require.NoError(t, e.Refresh(ctx))
			m.set(orders(kazak), nil)
			require.NoError(t, e.Refresh(ctx))
			_, err := e.CountTarget("A", 1, 2)
			require.NoError(t, err)

			s.fail(typ)
			_, err = e.MarkShipped(ctx)
			require.ErrorIs(t, err, errDiskFull)
			msg := UserMessage(err)
			assert.NotContains(t, msg, "\n")
			assert.Contains(t, msg, "disk full")

			st := e.Status()
			assert.Equal(t, StatePreparing, st.State)
			assert.True(t, st.ShipmentReady)
			assert.Equal(t, 1, st.SourceRows)
			assert.Equal(t, 1, st.Cancellations)
			assert.ErrorIs(t, st.LastErr, errDiskFull)

			for _, at := range []archive.Type{archive.TypeCargo, archive.TypeCancel} {
				entry, err := h.GetArchiveEntry(ctx, id, at, "2024-05-01")
				require.NoError(t, err)
				assert.Nil(t, entry, "nothing of %s is left behind", at)
			}

			// kolejna runda nie widzi wysłanego zamówienia jako anulowanego
			require.NoError(t, e.Refresh(ctx))
			st = e.Status()
			assert.Equal(t, 1, st.SourceRows)
			assert.Equal(t, 1, st.Cancellations)
			assert.True(t, st.ShipmentReady)
			assert.Len(t, e.Tracking(), 1)
			assert.Equal(t, []string{"1002"}, archive.OrderNumbers(e.Snapshot().Cancellations))

			s.fail("")
			res, err := e.MarkShipped(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, res.CargoAdded)
			assert.Equal(t, 1, res.Cancelled)
			assert.Equal(t, StateIdle, e.Status().State)

			cargo, err := h.GetArchiveEntry(ctx, id, archive.TypeCargo, "2024-05-01")
			require.NoError(t, err)
			require.NotNil(t, cargo)
			assert.Equal(t, []string{"1001"}, archive.OrderNumbers(cargo.Data))
			assert.Equal(t, 1, cargo.Data.Len(), "retry does not duplicate cargo rows")

			cancel, err := h.GetArchiveEntry(ctx, id, archive.TypeCancel, "2024-05-01")
			require.NoError(t, err)
			require.NotNil(t, cancel)
			assert.Equal(t, []string{"1002"}, archive.OrderNumbers(cancel.Data))
		})
	}
}

func TestRefresh_CancellationsAfterSourceWithoutOrderColumn(t *testing.T) {
	ctx := context.Background()
	h, id := openStore(t)
	m := &fakeMarket{open: orders(kazak, bere)}
	e := newEngine(h, m, Options{})
	require.NoError(t, e.Start(ctx, id))
	require.NoError(t, e.Refresh(ctx))

	noOrders := table.MustNew([]table.Cell{"Ürün Adı", "Barkod", "Adet"}, [][]table.Cell{
		{"Kazak", "A", float64(2)},
		{"Bere", "B", float64(1)},
	})
	require.NoError(t, e.ImportSource(ctx, noOrders))
	assert.Zero(t, e.Status().Cancellations)

	m.set(orders(kazak), nil)
	require.NoError(t, e.Refresh(ctx))

	cancels := e.Snapshot().Cancellations
	assert.Equal(t, []string{"1002"}, archive.OrderNumbers(cancels))
	require.Equal(t, 1, cancels.Len())
	assert.Contains(t, cancels.Rows[0], table.Cell("Bere"))
}
