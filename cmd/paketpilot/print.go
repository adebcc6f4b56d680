package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Sivellexfc/paket-pilot/internal/reconcile"
	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/Sivellexfc/paket-pilot/internal/workflow"
)

// printTable wypisuje tabelę z numerami wierszy (te same indeksy co w "edit").
func printTable(w io.Writer, t table.Table) {
	if t.IsZero() {
		fmt.Fprintln(w, "(veri yok)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\t"+strings.Join(t.HeaderStrings(), "\t"))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = table.CellString(c)
		}
		fmt.Fprintf(tw, "%d\t%s\n", i, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d satır\n", t.Len())
}

func printValidation(w io.Writer, v reconcile.ValidationResult) {
	if v.Missing != nil {
		fmt.Fprintln(w, workflow.UserMessage(v.Missing))
		return
	}
	bad := v.Mismatched()
	if v.AllValid {
		fmt.Fprintf(w, "Sayım tamam (%d barkod).\n", len(v.PerBarcode))
		return
	}
	if len(bad) == 0 {
		fmt.Fprintln(w, "Sayım eksik.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Barkod\tPaket\tAdet\t")
	for _, code := range bad {
		e := v.PerBarcode[code]
		note := ""
		if e.Extra {
			note = "kaynakta yok"
		}
		fmt.Fprintf(tw, "%s\t%s %d/%d\t%s %s/%s\t%s\n", code,
			mark(e.ValidPacket), e.SourcePackages, e.TargetPackages,
			mark(e.ValidPiece), table.CellString(e.SourcePieces), table.CellString(e.TargetPieces), note)
	}
	_ = tw.Flush()
}

func printStatus(w io.Writer, st workflow.Status) {
	if st.State == workflow.StatePreparing {
		fmt.Fprintf(w, "Durum: hazırlanıyor | mağaza %d | oturum %s", st.StoreID, st.Session)
	} else {
		fmt.Fprint(w, "Durum: beklemede")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Kaynak: %d  Hedef: %d  İptal: %d  Filtrelenen: %d\n", st.SourceRows, st.TargetRows, st.Cancellations, st.Filtered)
	if !st.LastFetch.IsZero() {
		fmt.Fprintln(w, "Son güncelleme:", st.LastFetch.Format("15:04:05"))
	}
	if st.LastErr != nil {
		fmt.Fprintln(w, "Son hata:", workflow.UserMessage(st.LastErr))
	}
	if st.ShipmentReady {
		fmt.Fprintln(w, "Kargoya verilebilir.")
	}
}

func printEvents(w io.Writer, events []reconcile.TrackingEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "(olay yok)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, ev := range events {
		kind := "YENİ"
		if ev.Type == reconcile.EventCancel {
			kind = "İPTAL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.Time.Format("15:04:05"), kind, ev.OrderNumber, ev.ProductName)
	}
	_ = tw.Flush()
}

func mark(ok bool) string {
	if ok {
		return "ok"
	}
	return "X"
}
