package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackingLog_NewestFirstWithCap(t *testing.T) {
	var l TrackingLog
	for i := 0; i < TrackingCap+10; i++ {
		l.Record(TrackingEvent{OrderNumber: fmt.Sprint(i), Type: EventNew})
	}
	ev := l.Events()
	require.Len(t, ev, TrackingCap)
	assert.Equal(t, fmt.Sprint(TrackingCap+9), ev[0].OrderNumber)
	assert.Equal(t, "10", ev[TrackingCap-1].OrderNumber)

	// Kopia, nie widok.
	ev[0].OrderNumber = "changed"
	assert.NotEqual(t, "changed", l.Events()[0].OrderNumber)

	l.Clear()
	assert.Zero(t, l.Len())
}

func TestTrackingLog_BatchOrder(t *testing.T) {
	var l TrackingLog
	l.Record(TrackingEvent{OrderNumber: "a"}, TrackingEvent{OrderNumber: "b"})
	l.Record()
	ev := l.Events()
	require.Len(t, ev, 2)
	assert.Equal(t, "b", ev[0].OrderNumber)
	assert.Equal(t, "a", ev[1].OrderNumber)
}

func TestEventsFromDiff(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d := DiffResult{
		Arrivals:      Snapshot{"3": "C", "2": "B"},
		Cancellations: Snapshot{"1": "A"},
	}
	ev := EventsFromDiff(d, at, "s1")
	require.Len(t, ev, 3)
	assert.Equal(t, TrackingEvent{Time: at, OrderNumber: "2", ProductName: "B", Type: EventNew, SessionID: "s1"}, ev[0])
	assert.Equal(t, "3", ev[1].OrderNumber)
	assert.Equal(t, EventCancel, ev[2].Type)
	assert.Equal(t, "A", ev[2].ProductName)
}

func TestClassifyCancelled(t *testing.T) {
	cancelled := mustTable(t, [][]table.Cell{
		{"Sipariş Numarası", "Sipariş Statüsü", "Ürün Adı", "Barkod", "Adet", "Müşteri"},
		{"A1", "Cancelled", "Kazak", "x", 1, "Ayşe"},
		{"B2", "Cancelled", "", "y", 1, "Mehmet"},
		{"C3", "Cancelled", "Şapka", "z", 1, ""},
		{"", "Cancelled", "?", "q", 1, ""},
	})
	archives := []ArchivedTable{
		{EntryID: 7, Cargo: true, Data: mustTable(t, [][]table.Cell{{"Sipariş No", "Barkod"}, {"A1", "x"}})},
		{EntryID: 8, Data: mustTable(t, [][]table.Cell{{columns.HeaderDetectedAt, "Sipariş No"}, {"01.05.2024", "A1"}, {"01.05.2024", "B2"}})},
		{EntryID: 9, Data: mustTable(t, [][]table.Cell{{"Barkod"}, {"C3"}})},
	}

	out, miss := ClassifyCancelled(cancelled, archives)
	require.Nil(t, miss)
	require.Len(t, out, 3)

	assert.Equal(t, AfterShipment, out[0].Class)
	assert.Equal(t, uint(7), out[0].EntryID)
	assert.Equal(t, "Ayşe", out[0].Customer)
	assert.Equal(t, "Kargoya Verilen İptal", out[0].Class.String())

	assert.Equal(t, DuringPreparation, out[1].Class)
	assert.Equal(t, uint(8), out[1].EntryID)
	assert.Equal(t, UnknownProduct, out[1].ProductName)

	assert.Equal(t, Plain, out[2].Class)
	assert.Zero(t, out[2].EntryID)
	assert.Equal(t, "İptal", out[2].Class.String())
}
