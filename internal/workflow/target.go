package workflow

import (
	"fmt"

	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/reconcile"
	"github.com/Sivellexfc/paket-pilot/internal/table"
)

// SetTarget podmienia całą tabelę docelową (np. wczytany arkusz sayım).
func (e *Engine) SetTarget(t table.Table) error {
	if t.IsZero() {
		return fmt.Errorf("%w: empty target table", table.ErrMalformed)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePreparing {
		return ErrNotPreparing
	}
	e.target = t.Clone()
	e.revalidateLocked()
	return nil
}

// EditTarget zmienia jedną komórkę celu; walidacja liczy się od nowa.
func (e *Engine) EditTarget(row, col int, v table.Cell) (reconcile.ValidationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePreparing {
		return reconcile.ValidationResult{}, ErrNotPreparing
	}
	next, err := e.target.WithCell(row, col, v)
	if err != nil {
		return reconcile.ValidationResult{}, err
	}
	e.target = next
	e.revalidateLocked()
	return copyValidation(e.validation), nil
}

// CountTarget wpisuje policzone paczki i sztuki dla kodu. Kod spoza celu
// dostaje nowy wiersz (walidacja oznaczy go jako nadmiarowy, jeśli nie ma go w źródle).
func (e *Engine) CountTarget(barcode string, packages int, pieces float64) (reconcile.ValidationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePreparing {
		return reconcile.ValidationResult{}, ErrNotPreparing
	}
	if e.target.IsZero() {
		e.target = reconcile.TargetSkeleton(reconcile.AggregateResult{})
	}
	cm := columns.ResolveTable(e.target)
	if err := cm.Require(columns.Barcode, columns.PackageCount, columns.Quantity); err != nil {
		return reconcile.ValidationResult{}, err
	}
	bc, _ := cm.Index(columns.Barcode)
	pc, _ := cm.Index(columns.PackageCount)
	qc, _ := cm.Index(columns.Quantity)

	next := e.target
	found := false
	for i, row := range e.target.Rows {
		if cm.Text(row, columns.Barcode) != barcode {
			continue
		}
		found = true
		var err error
		if next, err = next.WithCell(i, pc, packages); err != nil {
			return reconcile.ValidationResult{}, err
		}
		if next, err = next.WithCell(i, qc, pieces); err != nil {
			return reconcile.ValidationResult{}, err
		}
		break
	}
	if !found {
		row := make([]table.Cell, len(e.target.Headers))
		row[bc], row[pc], row[qc] = barcode, packages, pieces
		if i, ok := cm.Index(columns.ProductName); ok {
			row[i] = e.productNameLocked(barcode)
		}
		var err error
		if next, err = e.target.AppendRows(row); err != nil {
			return reconcile.ValidationResult{}, err
		}
	}
	e.target = next
	e.revalidateLocked()
	return copyValidation(e.validation), nil
}

func (e *Engine) productNameLocked(barcode string) string {
	agg := reconcile.Aggregate(e.source, e.sourceCols)
	if row, ok := agg.ByBarcode()[barcode]; ok {
		return agg.ProductName(row)
	}
	return reconcile.UnknownProduct
}

// Validation – ostatni wynik porównania źródła z celem.
func (e *Engine) Validation() reconcile.ValidationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyValidation(e.validation)
}
