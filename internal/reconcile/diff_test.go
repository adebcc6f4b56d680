package reconcile

import (
	"testing"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersTable(t *testing.T, rows ...[]table.Cell) table.Table {
	t.Helper()
	return mustTable(t, append([][]table.Cell{{"Sipariş Numarası", "Ürün Adı", "Barkod", "Adet"}}, rows...))
}

func TestDiff_FirstRunHasNoChanges(t *testing.T) {
	cur := ordersTable(t, []table.Cell{"1001", "Shirt", "A", 1})
	var d Differ
	res := d.Diff(cur, columns.ResolveTable(cur))

	assert.True(t, res.First)
	assert.Empty(t, res.Arrivals)
	assert.Empty(t, res.Cancellations)
	assert.Equal(t, Snapshot{"1001": "Shirt"}, d.Previous())
}

func TestDiff_DetectsCancellation(t *testing.T) {
	prev := Snapshot{"1001": "Shirt", "1002": "Hat"}
	cur := ordersTable(t, []table.Cell{"1001", "Shirt", "A", 1})

	res := Diff(prev, cur, columns.ResolveTable(cur))
	assert.False(t, res.First)
	assert.Equal(t, Snapshot{"1002": "Hat"}, res.Cancellations)
	assert.Empty(t, res.Arrivals)
	assert.True(t, res.Changed())
}

func TestDiffer_ReplacesPrevious(t *testing.T) {
	var d Differ
	t1 := ordersTable(t, []table.Cell{"1", "A", "a", 1}, []table.Cell{"2", "B", "b", 1})
	t2 := ordersTable(t, []table.Cell{"2", "B", "b", 1}, []table.Cell{"3", "", "c", 1})
	t3 := ordersTable(t, []table.Cell{"2", "B", "b", 1}, []table.Cell{"3", "", "c", 1})

	d.Diff(t1, columns.ResolveTable(t1))

	res := d.Diff(t2, columns.ResolveTable(t2))
	assert.Equal(t, Snapshot{"3": UnknownProduct}, res.Arrivals)
	assert.Equal(t, Snapshot{"1": "A"}, res.Cancellations)

	res = d.Diff(t3, columns.ResolveTable(t3))
	assert.False(t, res.Changed())

	d.Reset()
	assert.Nil(t, d.Previous())
	assert.True(t, d.Diff(t3, columns.ResolveTable(t3)).First)
}

func TestDiffer_MissingOrderColumnKeepsPrevious(t *testing.T) {
	var d Differ
	t1 := ordersTable(t, []table.Cell{"1", "A", "a", 1})
	d.Diff(t1, columns.ResolveTable(t1))

	bad := mustTable(t, [][]table.Cell{{"Barkod", "Adet"}, {"a", 1}})
	res := d.Diff(bad, columns.ResolveTable(bad))
	require.NotNil(t, res.Missing)
	assert.Equal(t, columns.OrderNumber, res.Missing.Role)
	assert.Equal(t, Snapshot{"1": "A"}, d.Previous())
}

func TestSnapshotOf_SkipsEmptyAndKeepsFirstName(t *testing.T) {
	tb := ordersTable(t,
		[]table.Cell{" 1 ", "", "a", 1},
		[]table.Cell{"1", "Kazak", "b", 1},
		[]table.Cell{"1", "Şapka", "c", 1},
		[]table.Cell{"", "x", "d", 1},
	)
	snap, miss := SnapshotOf(tb, columns.ResolveTable(tb))
	require.Nil(t, miss)
	assert.Equal(t, Snapshot{"1": "Kazak"}, snap)
}

func TestCancellationRows(t *testing.T) {
	prev := ordersTable(t,
		[]table.Cell{"1001", "Shirt", "A", 1},
		[]table.Cell{"1002", "Hat", "B", 2},
	)
	at := time.Date(2024, 5, 1, 14, 3, 9, 0, time.UTC)
	out := CancellationRows(prev, Snapshot{"1002": "Hat"}, at)

	want := table.MustNew(
		[]table.Cell{columns.HeaderDetectedAt, "Sipariş Numarası", "Ürün Adı", "Barkod", "Adet"},
		[][]table.Cell{{"01.05.2024 14:03:09", "1002", "Hat", "B", 2}},
	)
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	empty := EmptyCancellations(prev)
	assert.Equal(t, want.Headers, empty.Headers)
	assert.Equal(t, 0, empty.Len())
}

func TestFilterAlreadyShipped(t *testing.T) {
	src := ordersTable(t,
		[]table.Cell{"1", "A", "a", 1},
		[]table.Cell{"2", "B", "b", 1},
		[]table.Cell{" 3 ", "C", "c", 1},
	)
	cm := columns.ResolveTable(src)
	shipped := ShippedSet([]string{"2", "3", ""})

	once, removed := FilterAlreadyShipped(src, shipped, cm)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, once.Len())
	assert.Equal(t, 3, src.Len())

	twice, removed := FilterAlreadyShipped(once, shipped, columns.ResolveTable(once))
	assert.Zero(t, removed)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("filter is not a fixed point (-once +twice):\n%s", diff)
	}
}

func TestFilterAlreadyShipped_FailsOpenWithoutOrderColumn(t *testing.T) {
	src := mustTable(t, [][]table.Cell{{"Barkod", "Adet"}, {"2", 1}})
	out, removed := FilterAlreadyShipped(src, ShippedSet([]string{"2"}), columns.ResolveTable(src))
	assert.Zero(t, removed)
	assert.Equal(t, src, out)
}
