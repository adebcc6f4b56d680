package reconcile

import (
	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/table"
)

// CancelClass – gdzie w naszym archiwum znaleźliśmy anulowane zamówienie.
type CancelClass int

const (
	// Plain – nie ma go w żadnym archiwum.
	Plain CancelClass = iota
	// DuringPreparation – wykryte jako anulowane podczas kompletacji.
	DuringPreparation
	// AfterShipment – zamówienie już wysłane, czeka na zwrot.
	AfterShipment
)

func (c CancelClass) String() string {
	switch c {
	case AfterShipment:
		return "Kargoya Verilen İptal"
	case DuringPreparation:
		return "Hazırlanırken İptal"
	default:
		return "İptal"
	}
}

// ArchivedTable – dane jednego wpisu archiwum do porównania.
type ArchivedTable struct {
	EntryID uint
	Cargo   bool // false = archiwum anulowań
	Data    table.Table
}

type CancelledOrder struct {
	OrderNumber string
	ProductName string
	Customer    string
	Class       CancelClass
	// EntryID wpisu archiwum, z którego można usunąć zamówienie (0 dla Plain).
	EntryID uint
	Row     []table.Cell
}

// ClassifyCancelled zestawia listę anulowań z rynku z naszymi archiwami.
// Archiwum wysyłek ma pierwszeństwo przed archiwum anulowań; przy kilku
// wpisach tego samego typu wygrywa ostatni na liście.
func ClassifyCancelled(cancelled table.Table, archives []ArchivedTable) ([]CancelledOrder, *columns.MissingColumnError) {
	cm := columns.ResolveTable(cancelled)
	if miss := cm.Missing(columns.OrderNumber); miss != nil {
		return nil, miss
	}

	cargo := map[string]uint{}
	cancel := map[string]uint{}
	for _, a := range archives {
		acm := columns.ResolveTable(a.Data)
		if !acm.Has(columns.OrderNumber) {
			continue
		}
		dst := cancel
		if a.Cargo {
			dst = cargo
		}
		for _, row := range a.Data.Rows {
			if no := acm.Text(row, columns.OrderNumber); no != "" {
				dst[no] = a.EntryID
			}
		}
	}

	out := make([]CancelledOrder, 0, cancelled.Len())
	for _, row := range cancelled.Rows {
		no := cm.Text(row, columns.OrderNumber)
		if no == "" {
			continue
		}
		co := CancelledOrder{
			OrderNumber: no,
			ProductName: cm.Text(row, columns.ProductName),
			Customer:    cm.Text(row, columns.Recipient),
			Row:         append([]table.Cell(nil), row...),
		}
		if co.ProductName == "" {
			co.ProductName = UnknownProduct
		}
		if id, ok := cargo[no]; ok {
			co.Class, co.EntryID = AfterShipment, id
		} else if id, ok := cancel[no]; ok {
			co.Class, co.EntryID = DuringPreparation, id
		}
		out = append(out, co)
	}
	return out, nil
}
