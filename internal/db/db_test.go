package db

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/archive"
	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/Sivellexfc/paket-pilot/internal/reconcile"
	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Handle {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	h, err := Open(Config{Driver: DriverSQLite, DSN: dsn}, "")
	require.NoError(t, err)
	require.NoError(t, h.Migrate())
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func orders(nos ...string) table.Table {
	rows := make([][]table.Cell, 0, len(nos))
	for _, n := range nos {
		rows = append(rows, []table.Cell{n, "x", float64(1)})
	}
	return table.MustNew([]table.Cell{"Sipariş No", "Barkod", "Adet"}, rows)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"}, t.TempDir())
	assert.Error(t, err)
	_, err = Open(Config{Driver: DriverPostgres}, t.TempDir())
	assert.Error(t, err)
}

func TestOpenAt_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	h, err := OpenAt(dir)
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.Migrate())
	require.NoError(t, h.Migrate(), "second migrate is a no-op")
	assert.FileExists(t, h.Path)
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	h := openTest(t)

	s, err := h.AddStore(ctx, " Mağaza A ")
	require.NoError(t, err)
	assert.Equal(t, "Mağaza A", s.Name)

	_, err = h.AddStore(ctx, "Mağaza A")
	assert.Error(t, err, "names are unique")

	cred, err := h.GetStoredCredentials(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, cred.Valid())

	require.NoError(t, h.UpdateStoreIntegration(ctx, s.ID, integrations.Credentials{SellerID: "42", APIKey: "k", APISecret: "s"}))
	cred, err = h.GetStoredCredentials(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, integrations.Credentials{SellerID: "42", APIKey: "k", APISecret: "s"}, cred)

	list, err := h.ListStores(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, h.DeleteStore(ctx, s.ID))
	_, err = h.GetStore(ctx, s.ID)
	assert.ErrorIs(t, err, ErrStoreNotFound)
	assert.ErrorIs(t, h.UpdateStoreIntegration(ctx, s.ID, integrations.Credentials{}), ErrStoreNotFound)
}

func TestArchiveEntries_RoundTripAndUniqueness(t *testing.T) {
	ctx := context.Background()
	h := openTest(t)

	got, err := h.GetArchiveEntry(ctx, 1, archive.TypeCargo, "2024-05-01")
	require.NoError(t, err)
	assert.Nil(t, got)

	e := &archive.Entry{StoreID: 1, Type: archive.TypeCargo, Date: "2024-05-01", Data: orders("A1")}
	require.NoError(t, h.PutArchiveEntry(ctx, e))
	require.NotZero(t, e.ID)

	dup := &archive.Entry{StoreID: 1, Type: archive.TypeCargo, Date: "2024-05-01", Data: orders("B1")}
	assert.ErrorIs(t, h.PutArchiveEntry(ctx, dup), archive.ErrDuplicateKey)

	got, err = h.GetArchiveEntry(ctx, 1, archive.TypeCargo, "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, orders("A1"), got.Data)

	// inny typ tego samego dnia to osobny wpis
	c := &archive.Entry{StoreID: 1, Type: archive.TypeCancel, Date: "2024-05-01", Data: orders("C1")}
	require.NoError(t, h.PutArchiveEntry(ctx, c))

	all, err := h.ListArchiveEntries(ctx, 1, "2024-05-01", "2024-05-01", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, h.DeleteArchiveEntry(ctx, c.ID))
	got, err = h.GetArchiveEntryByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestArchiver_OnDatabase(t *testing.T) {
	ctx := context.Background()
	h := openTest(t)
	a := archive.NewArchiver(zerolog.Nop(), h)

	_, _, err := a.Commit(ctx, 1, archive.TypeCargo, "2024-05-01", orders("A1"), archive.ModeMerge)
	require.NoError(t, err)
	e, stats, err := a.Commit(ctx, 1, archive.TypeCargo, "2024-05-01", orders("A1", "A2"), archive.ModeMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, []string{"A1", "A2"}, archive.OrderNumbers(e.Data))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := a.Commit(ctx, 1, archive.TypeCargo, "2024-05-02", orders(fmt.Sprint("B", i)), archive.ModeMerge)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := h.ListArchiveEntries(ctx, 1, "2024-05-02", "2024-05-02", archive.TypeCargo)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, archive.OrderNumbers(entries[0].Data), 5)

	shipped, err := h.ListShippedOrderNumbers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2", "B0", "B1", "B2", "B3", "B4"}, shipped)

	n, deleted, err := a.RemoveOrder(ctx, e.ID, "A1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, deleted)
}

func TestTrackingEvents(t *testing.T) {
	ctx := context.Background()
	h := openTest(t)
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, h.AddTrackingEvents(ctx, 1, []reconcile.TrackingEvent{
		{Time: t0, OrderNumber: "1", ProductName: "A", Type: reconcile.EventNew, SessionID: "s"},
		{Time: t0.Add(time.Minute), OrderNumber: "2", ProductName: "B", Type: reconcile.EventCancel, SessionID: "s"},
	}))
	require.NoError(t, h.AddTrackingEvents(ctx, 1, nil))

	ev, err := h.ListTrackingEvents(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, ev, 2)
	assert.Equal(t, "2", ev[0].OrderNumber)
	assert.Equal(t, reconcile.EventCancel, ev[0].Type)

	n, err := h.CleanupTrackingEvents(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestImportBatches(t *testing.T) {
	ctx := context.Background()
	h := openTest(t)

	data := table.MustNew([]table.Cell{"Barkod", "Adet"}, [][]table.Cell{{"A", "1"}, {"B", "2"}})
	id, err := h.SaveImportBatch(ctx, integrations.ImportRecord{StoreID: 1, Filename: "a.csv", Side: integrations.SideSource, SHA256: "abc", Data: data})
	require.NoError(t, err)

	ok, err := h.HasImportSHA(ctx, 1, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.HasImportSHA(ctx, 2, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	b, back, err := h.LoadImportBatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Rows)
	assert.Equal(t, data, back)

	list, err := h.ListImportBatches(ctx, 1, integrations.SideSource)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, h.DeleteImportBatch(ctx, id))
	_, _, err = h.LoadImportBatch(ctx, id)
	assert.Error(t, err)
}

func TestKV(t *testing.T) {
	ctx := context.Background()
	h := openTest(t)
	_, ok, err := h.GetKV(ctx, "store")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.SetKV(ctx, "store", "1"))
	require.NoError(t, h.SetKV(ctx, "store", "2"))
	v, ok, err := h.GetKV(ctx, "store")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}
