package importer

import (
	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/reconcile"
	"github.com/Sivellexfc/paket-pilot/internal/table"
)

// Report – krótkie podsumowanie wczytanego pliku, do logów i CLI.
type Report struct {
	Rows         int
	Barcodes     int // różne niepuste kody
	EmptyBarcode int // wiersze bez kodu (agregator je pomija)
	Packages     int
	Quantity     float64
	Missing      []string // etykiety brakujących kolumn, np. "Barkod"
}

// Inspect rozwiązuje kolumny i agreguje tabelę tak, jak zrobi to silnik.
func Inspect(t table.Table) Report {
	rep := Report{Rows: t.Len()}
	cm := columns.ResolveTable(t)

	for _, r := range []columns.Role{columns.OrderNumber, columns.Barcode, columns.Quantity} {
		if !cm.Has(r) {
			rep.Missing = append(rep.Missing, r.Label())
		}
	}
	if cm.Has(columns.Barcode) {
		for _, row := range t.Rows {
			if cm.Text(row, columns.Barcode) == "" {
				rep.EmptyBarcode++
			}
		}
	}

	agg := reconcile.Aggregate(t, cm)
	if agg.OK() {
		rep.Barcodes = len(agg.Rows)
		rep.Packages, rep.Quantity = agg.Totals()
	}
	return rep
}
