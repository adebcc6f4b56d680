// Package archive scala dzienne tabele (wysyłki, anulowania) bez duplikatów.
package archive

import (
	"fmt"

	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/table"
)

type Mode string

const (
	ModeMerge     Mode = "merge"
	ModeOverwrite Mode = "overwrite"
)

// ParseMode akceptuje "merge"/"overwrite"; puste = def.
func ParseMode(s string, def Mode) (Mode, error) {
	switch Mode(s) {
	case "":
		return def, nil
	case ModeMerge, ModeOverwrite:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown archive mode %q", s)
}

type Type string

const (
	TypeCargo  Type = "cargo"
	TypeCancel Type = "cancel"
)

func (t Type) Valid() bool { return t == TypeCargo || t == TypeCancel }

// Znaczniki dopisywane przy zatwierdzeniu wysyłki.
const (
	StatusShipped         = "Kargoya Verildi"
	StageAwaitingShipment = "Hazırlanmayı Beklerken İptal"
)

type MergeStats struct {
	Added       int
	Skipped     int // duplikaty po numerze zamówienia
	Unkeyed     int // dodane bez numeru (nie da się deduplikować)
	Overwritten bool
	NewColumns  int
}

// Merge łączy przychodzącą tabelę z istniejącym wpisem dnia.
//
// existing == nil (albo pusta tabela): wynikiem jest incoming.
// ModeOverwrite: wynikiem jest incoming, stary wpis przepada.
// ModeMerge: dopisujemy wiersze incoming, których numeru zamówienia nie ma
// jeszcze w existing. Wiersze bez numeru dopisujemy zawsze. Kolumny incoming
// dopasowujemy do nagłówków existing po znormalizowanym tekście; nieznane
// kolumny trafiają na koniec, a stare wiersze dostają tam nil.
func Merge(existing *table.Table, incoming table.Table, mode Mode) (table.Table, MergeStats) {
	if existing == nil || existing.IsZero() {
		return incoming.Clone(), MergeStats{Added: incoming.Len()}
	}
	if mode == ModeOverwrite {
		return incoming.Clone(), MergeStats{Added: incoming.Len(), Overwritten: true}
	}

	out, colMap, newCols := alignHeaders(*existing, incoming)
	stats := MergeStats{NewColumns: newCols}

	ecm := columns.ResolveTable(out)
	icm := columns.ResolveTable(incoming)
	keyed := ecm.Has(columns.OrderNumber) && icm.Has(columns.OrderNumber)

	seen := make(map[string]struct{})
	if keyed {
		for _, row := range out.Rows {
			if no := ecm.Text(row, columns.OrderNumber); no != "" {
				seen[no] = struct{}{}
			}
		}
	}

	for _, row := range incoming.Rows {
		no := ""
		if keyed {
			no = icm.Text(row, columns.OrderNumber)
		}
		if no != "" {
			if _, dup := seen[no]; dup {
				stats.Skipped++
				continue
			}
		} else {
			stats.Unkeyed++
		}
		aligned := make([]table.Cell, len(out.Headers))
		for src, dst := range colMap {
			aligned[dst] = row[src]
		}
		out.Rows = append(out.Rows, aligned)
		stats.Added++
	}
	return out, stats
}

// alignHeaders zwraca kopię existing poszerzoną o nowe kolumny oraz mapę
// indeks w incoming -> indeks w wyniku.
func alignHeaders(existing, incoming table.Table) (table.Table, []int, int) {
	out := existing.Clone()
	byName := make(map[string]int, len(out.Headers))
	for i, h := range out.Headers {
		n := columns.Normalize(table.CellString(h))
		if _, ok := byName[n]; !ok {
			byName[n] = i
		}
	}

	colMap := make([]int, len(incoming.Headers))
	added := 0
	for i, h := range incoming.Headers {
		n := columns.Normalize(table.CellString(h))
		if j, ok := byName[n]; ok {
			colMap[i] = j
			delete(byName, n) // powtórzony nagłówek w incoming dostaje własną kolumnę
			continue
		}
		out = out.AppendColumn(h, nil)
		colMap[i] = len(out.Headers) - 1
		added++
	}
	return out, colMap, added
}

// RemoveOrder usuwa wszystkie wiersze danego zamówienia.
func RemoveOrder(t table.Table, orderNo string) (table.Table, int, error) {
	cm := columns.ResolveTable(t)
	if err := cm.Require(columns.OrderNumber); err != nil {
		return table.Table{}, 0, err
	}
	out := t.Filter(func(row []table.Cell) bool {
		return cm.Text(row, columns.OrderNumber) != orderNo
	})
	return out, t.Len() - out.Len(), nil
}

// OrderNumbers – niepuste numery zamówień z tabeli (bez duplikatów, w kolejności).
func OrderNumbers(t table.Table) []string {
	cm := columns.ResolveTable(t)
	if !cm.Has(columns.OrderNumber) {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, row := range t.Rows {
		no := cm.Text(row, columns.OrderNumber)
		if no == "" || seen[no] {
			continue
		}
		seen[no] = true
		out = append(out, no)
	}
	return out
}

// ShippedTable buduje wpis wysyłek: źródło bez anulowanych zamówień i bez
// wierszy bez numeru, ze statusem "Kargoya Verildi".
func ShippedTable(source table.Table, cancelled map[string]struct{}) table.Table {
	cm := columns.ResolveTable(source)
	kept := source.Filter(func(row []table.Cell) bool {
		no := cm.Text(row, columns.OrderNumber)
		if no == "" {
			return false
		}
		_, c := cancelled[no]
		return !c
	})
	if i, ok := cm.Index(columns.Status); ok {
		return kept.MapColumn(i, func([]table.Cell) table.Cell { return StatusShipped })
	}
	return kept.AppendColumn(columns.HeaderStatus, func([]table.Cell) table.Cell { return StatusShipped })
}

// CancelTable dokleja kolumnę "İptal Aşaması" do tabeli anulowań. Jeśli
// kolumna już jest (tabela wczytana z archiwum), uzupełnia tylko puste komórki.
func CancelTable(cancellations table.Table) table.Table {
	if i, ok := columns.ResolveTable(cancellations).Index(columns.CancelStage); ok {
		return cancellations.MapColumn(i, func(row []table.Cell) table.Cell {
			if table.CellString(row[i]) != "" {
				return row[i]
			}
			return StageAwaitingShipment
		})
	}
	return cancellations.AppendColumn(columns.HeaderCancelStage, func([]table.Cell) table.Cell { return StageAwaitingShipment })
}
