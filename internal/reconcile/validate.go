package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Sivellexfc/paket-pilot/internal/columns"
)

// ValidationEntry – status jednego kodu kreskowego.
type ValidationEntry struct {
	Barcode     string
	ValidPacket bool
	ValidPiece  bool
	RowValid    bool
	// Extra: kod jest w tabeli docelowej, a nie ma go w źródle.
	Extra bool

	SourcePackages int
	TargetPackages int
	SourcePieces   float64
	TargetPieces   float64
}

type ValidationResult struct {
	PerBarcode map[string]ValidationEntry
	AllValid   bool
	// Missing – brak kolumny kodu/ilości po którejś stronie.
	Missing *columns.MissingColumnError
}

// Validate porównuje agregaty źródła i celu kod po kodzie.
//
// Liczby porównywane są dokładnie (==), również ułamkowe ilości.
// Kod obecny tylko w celu dostaje wpis z samymi false.
func Validate(source, target AggregateResult) ValidationResult {
	res := ValidationResult{PerBarcode: make(map[string]ValidationEntry)}
	if source.Missing != nil {
		res.Missing = source.Missing
		return res
	}
	if target.Missing != nil {
		res.Missing = target.Missing
		return res
	}

	res.AllValid = true
	tgt := target.ByBarcode()
	seen := make(map[string]bool, len(source.Rows))
	for _, s := range source.Rows {
		seen[s.Barcode] = true
		t := tgt[s.Barcode] // zero, gdy brak
		e := ValidationEntry{
			Barcode:        s.Barcode,
			ValidPacket:    s.PackageCount == t.PackageCount,
			ValidPiece:     s.Quantity == t.Quantity,
			SourcePackages: s.PackageCount,
			TargetPackages: t.PackageCount,
			SourcePieces:   s.Quantity,
			TargetPieces:   t.Quantity,
		}
		e.RowValid = e.ValidPacket && e.ValidPiece
		if !e.RowValid {
			res.AllValid = false
		}
		res.PerBarcode[s.Barcode] = e
	}
	for _, t := range target.Rows {
		if seen[t.Barcode] {
			continue
		}
		res.AllValid = false
		res.PerBarcode[t.Barcode] = ValidationEntry{
			Barcode:        t.Barcode,
			Extra:          true,
			TargetPackages: t.PackageCount,
			TargetPieces:   t.Quantity,
		}
	}
	return res
}

// Mismatched zwraca posortowane kody z RowValid == false.
func (r ValidationResult) Mismatched() []string {
	var out []string
	for code, e := range r.PerBarcode {
		if !e.RowValid {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

// Err – nil gdy wszystko się zgadza, inaczej *MismatchError albo błąd kolumny.
func (r ValidationResult) Err() error {
	if r.Missing != nil {
		return r.Missing
	}
	if r.AllValid {
		return nil
	}
	codes := r.Mismatched()
	entries := make([]ValidationEntry, 0, len(codes))
	for _, c := range codes {
		entries = append(entries, r.PerBarcode[c])
	}
	return &MismatchError{Entries: entries}
}

// MismatchError blokuje wysyłkę i mówi, które kody się nie zgadzają.
type MismatchError struct {
	Entries []ValidationEntry
}

func (e *MismatchError) Barcodes() []string {
	out := make([]string, len(e.Entries))
	for i, en := range e.Entries {
		out[i] = en.Barcode
	}
	return out
}

func (e *MismatchError) Error() string {
	if len(e.Entries) == 0 {
		return "quantity mismatch"
	}
	parts := make([]string, 0, len(e.Entries))
	for _, en := range e.Entries {
		if en.Extra {
			parts = append(parts, fmt.Sprintf("%s (not in source)", en.Barcode))
			continue
		}
		var what []string
		if !en.ValidPacket {
			what = append(what, fmt.Sprintf("packages %d/%d", en.TargetPackages, en.SourcePackages))
		}
		if !en.ValidPiece {
			what = append(what, fmt.Sprintf("pieces %g/%g", en.TargetPieces, en.SourcePieces))
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", en.Barcode, strings.Join(what, ", ")))
	}
	return "quantity mismatch: " + strings.Join(parts, "; ")
}
