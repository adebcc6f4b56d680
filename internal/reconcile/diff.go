package reconcile

import (
	"sort"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/table"
)

// DetectedAtLayout – format kolumny "İptal Tespit Tarihi" (jak tr-TR w UI).
const DetectedAtLayout = "02.01.2006 15:04:05"

// Snapshot: numer zamówienia -> nazwa produktu.
type Snapshot map[string]string

// OrderNumbers zwraca posortowane klucze.
func (s Snapshot) OrderNumbers() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SnapshotOf skanuje kolumnę z numerem zamówienia. Puste numery są pomijane,
// przy powtórzeniach wygrywa pierwsza niepusta nazwa produktu.
func SnapshotOf(t table.Table, cm columns.ColumnMap) (Snapshot, *columns.MissingColumnError) {
	if miss := cm.Missing(columns.OrderNumber); miss != nil {
		return nil, miss
	}
	snap := make(Snapshot, len(t.Rows))
	for _, row := range t.Rows {
		no := cm.Text(row, columns.OrderNumber)
		if no == "" {
			continue
		}
		name := cm.Text(row, columns.ProductName)
		if name == "" {
			name = UnknownProduct
		}
		if prev, ok := snap[no]; ok && prev != UnknownProduct {
			continue
		}
		snap[no] = name
	}
	return snap, nil
}

// DiffResult – wynik porównania snapshotów. First oznacza, że nie było
// poprzedniego snapshotu (stan początkowy, nie błąd).
type DiffResult struct {
	Arrivals      Snapshot
	Cancellations Snapshot
	First         bool
	Missing       *columns.MissingColumnError
	Current       Snapshot
}

// Changed – czy cokolwiek przyszło albo zniknęło.
func (d DiffResult) Changed() bool {
	return len(d.Arrivals) > 0 || len(d.Cancellations) > 0
}

// Diff porównuje poprzedni snapshot z bieżącą tabelą. previous == nil to
// pierwszy przebieg: brak przybyłych i anulowanych.
func Diff(previous Snapshot, current table.Table, cm columns.ColumnMap) DiffResult {
	cur, miss := SnapshotOf(current, cm)
	if miss != nil {
		return DiffResult{Arrivals: Snapshot{}, Cancellations: Snapshot{}, Missing: miss}
	}
	res := DiffResult{Arrivals: Snapshot{}, Cancellations: Snapshot{}, Current: cur}
	if previous == nil {
		res.First = true
		return res
	}
	for no, name := range cur {
		if _, ok := previous[no]; !ok {
			res.Arrivals[no] = name
		}
	}
	for no, name := range previous {
		if _, ok := cur[no]; !ok {
			res.Cancellations[no] = name
		}
	}
	return res
}

// Differ trzyma jeden "poprzedni" snapshot na sesję. Nie jest bezpieczny
// współbieżnie; właściciel (workflow.Engine) serializuje dostęp.
type Differ struct {
	previous Snapshot
}

// Diff porównuje i podmienia poprzedni snapshot na bieżący. Gdy tabela nie
// ma kolumny z numerem zamówienia, poprzedni snapshot zostaje bez zmian.
func (d *Differ) Diff(current table.Table, cm columns.ColumnMap) DiffResult {
	res := Diff(d.previous, current, cm)
	if res.Missing == nil {
		d.previous = res.Current
	}
	return res
}

// Previous zwraca kopię bieżącego poprzedniego snapshotu (nil przed pierwszym Diff).
func (d *Differ) Previous() Snapshot {
	if d.previous == nil {
		return nil
	}
	return d.previous.Clone()
}

func (d *Differ) Reset() { d.previous = nil }

// CancellationRows wybiera z poprzedniej tabeli źródłowej wiersze
// anulowanych zamówień i dokleja z przodu czas wykrycia.
func CancellationRows(previous table.Table, cancelled Snapshot, at time.Time) table.Table {
	if previous.IsZero() {
		return table.Table{}
	}
	cm := columns.ResolveTable(previous)
	stamp := at.Format(DetectedAtLayout)
	kept := previous.Filter(func(row []table.Cell) bool {
		_, ok := cancelled[cm.Text(row, columns.OrderNumber)]
		return cm.Has(columns.OrderNumber) && ok
	})
	return kept.PrependColumn(columns.HeaderDetectedAt, func([]table.Cell) table.Cell { return stamp })
}

// EmptyCancellations – pusta tabela anulowań z nagłówkami źródła.
func EmptyCancellations(source table.Table) table.Table {
	if source.IsZero() {
		return table.MustNew([]table.Cell{columns.HeaderDetectedAt, "Sipariş No", columns.HeaderProductName, columns.HeaderBarcode, "Adet"}, nil)
	}
	return table.Table{Headers: source.Headers}.PrependColumn(columns.HeaderDetectedAt, nil)
}

// FilterAlreadyShipped usuwa wiersze zamówień, które już są w archiwum
// wysyłek. Bez kolumny z numerem zamówienia tabela przechodzi bez zmian.
func FilterAlreadyShipped(t table.Table, shipped map[string]struct{}, cm columns.ColumnMap) (table.Table, int) {
	if len(shipped) == 0 || !cm.Has(columns.OrderNumber) {
		return t, 0
	}
	out := t.Filter(func(row []table.Cell) bool {
		_, done := shipped[cm.Text(row, columns.OrderNumber)]
		return !done
	})
	return out, t.Len() - out.Len()
}

// ShippedSet buduje zbiór z listy numerów (puste pomijane).
func ShippedSet(orderNumbers []string) map[string]struct{} {
	out := make(map[string]struct{}, len(orderNumbers))
	for _, no := range orderNumbers {
		if no != "" {
			out[no] = struct{}{}
		}
	}
	return out
}
