package reconcile

import (
	"math"
	"sort"

	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/table"
)

// UnknownProduct – nazwa produktu, gdy tabela jej nie podaje.
const UnknownProduct = "Bilinmiyor"

// AggregatedRow – jeden kod kreskowy po zsumowaniu wierszy.
type AggregatedRow struct {
	Barcode      string
	PackageCount int
	Quantity     float64
	SampleRow    []table.Cell // pierwszy napotkany wiersz z tym kodem
}

// AggregateResult – wynik agregacji. Missing != nil oznacza, że tabela nie ma
// kolumny z kodem albo ilością; wtedy Rows jest puste.
type AggregateResult struct {
	Rows    []AggregatedRow
	Missing *columns.MissingColumnError
	// ProductCol to indeks kolumny z nazwą w SampleRow (-1 gdy brak).
	ProductCol int
}

func (r AggregateResult) OK() bool { return r.Missing == nil }

// ByBarcode indeksuje wiersze po kodzie.
func (r AggregateResult) ByBarcode() map[string]AggregatedRow {
	out := make(map[string]AggregatedRow, len(r.Rows))
	for _, row := range r.Rows {
		out[row.Barcode] = row
	}
	return out
}

// ProductName zwraca nazwę produktu z wiersza próbki.
func (r AggregateResult) ProductName(row AggregatedRow) string {
	if r.ProductCol < 0 || r.ProductCol >= len(row.SampleRow) {
		return UnknownProduct
	}
	if s := table.CellString(row.SampleRow[r.ProductCol]); s != "" {
		return s
	}
	return UnknownProduct
}

// Totals – suma paczek i sztuk po wszystkich kodach.
func (r AggregateResult) Totals() (packages int, quantity float64) {
	for _, row := range r.Rows {
		packages += row.PackageCount
		quantity += row.Quantity
	}
	return packages, quantity
}

// Aggregate zwija tabelę do jednego wiersza na kod kreskowy.
//
// Wiersze z pustym kodem są pomijane, nieparsowalna ilość liczy się jako 0.
// Jeśli tabela ma już kolumnę "Paket Sayısı" (np. tabela docelowa), liczba
// paczek jest sumą tej kolumny; w przeciwnym razie każdy wiersz to jedna paczka.
// Wynik jest posortowany po kodzie, więc kolejność wierszy wejścia nie ma
// wpływu na liczby.
func Aggregate(t table.Table, cm columns.ColumnMap) AggregateResult {
	res := AggregateResult{ProductCol: -1}
	if miss := cm.Missing(columns.Barcode, columns.Quantity); miss != nil {
		res.Missing = miss
		return res
	}
	if i, ok := cm.Index(columns.ProductName); ok {
		res.ProductCol = i
	}
	counted := cm.Has(columns.PackageCount)

	byCode := make(map[string]*AggregatedRow)
	for _, row := range t.Rows {
		code := cm.Text(row, columns.Barcode)
		if code == "" {
			continue
		}
		agg, ok := byCode[code]
		if !ok {
			agg = &AggregatedRow{Barcode: code, SampleRow: append([]table.Cell(nil), row...)}
			byCode[code] = agg
		}
		qty, _ := table.CellFloat(cm.Cell(row, columns.Quantity))
		agg.Quantity += qty
		if counted {
			n, _ := table.CellFloat(cm.Cell(row, columns.PackageCount))
			agg.PackageCount += int(math.Round(n))
		} else {
			agg.PackageCount++
		}
	}

	res.Rows = make([]AggregatedRow, 0, len(byCode))
	for _, agg := range byCode {
		res.Rows = append(res.Rows, *agg)
	}
	sort.Slice(res.Rows, func(i, j int) bool { return res.Rows[i].Barcode < res.Rows[j].Barcode })
	return res
}

// AggregatedTable renderuje agregat jako tabelę "policzonych paczek":
// oryginalne nagłówki bez kolumn ilości i paczek, plus "Paket Sayısı"
// i "Adet Sayısı" na końcu.
func AggregatedTable(headers []table.Cell, cm columns.ColumnMap, res AggregateResult) (table.Table, error) {
	if res.Missing != nil {
		return table.Table{}, res.Missing
	}
	drop := map[int]bool{}
	for _, r := range []columns.Role{columns.Quantity, columns.PackageCount} {
		if i, ok := cm.Index(r); ok {
			drop[i] = true
		}
	}

	var outHeaders []table.Cell
	for i, h := range headers {
		if !drop[i] {
			outHeaders = append(outHeaders, h)
		}
	}
	outHeaders = append(outHeaders, columns.HeaderPackageCount, columns.HeaderPieceCount)

	rows := make([][]table.Cell, 0, len(res.Rows))
	for _, agg := range res.Rows {
		row := make([]table.Cell, 0, len(outHeaders))
		for i := range headers {
			if drop[i] {
				continue
			}
			var v table.Cell
			if i < len(agg.SampleRow) {
				v = agg.SampleRow[i]
			}
			row = append(row, v)
		}
		row = append(row, agg.PackageCount, agg.Quantity)
		rows = append(rows, row)
	}
	return table.New(outHeaders, rows)
}

// TargetSkeleton buduje pustą tabelę docelową: jeden wiersz na kod z
// nazwą produktu, bez liczników. Operator uzupełnia je podczas kompletacji.
func TargetSkeleton(source AggregateResult) table.Table {
	headers := []table.Cell{columns.HeaderProductName, columns.HeaderBarcode, columns.HeaderPackageCount, columns.HeaderPieceCount}
	rows := make([][]table.Cell, 0, len(source.Rows))
	for _, agg := range source.Rows {
		rows = append(rows, []table.Cell{source.ProductName(agg), agg.Barcode, nil, nil})
	}
	return table.MustNew(headers, rows)
}

// SyncTarget dopasowuje istniejący cel do nowego źródła: kody, które
// zniknęły ze źródła i nie mają jeszcze wpisanych liczników, wypadają,
// a nowe kody ze źródła dostają puste wiersze. Policzone wiersze zostają,
// nawet gdy kodu już nie ma w źródle (walidacja pokaże je jako nadmiarowe).
func SyncTarget(target table.Table, source AggregateResult) (out table.Table, added, dropped int) {
	if !source.OK() {
		return target, 0, 0
	}
	if target.IsZero() {
		out = TargetSkeleton(source)
		return out, out.Len(), 0
	}
	cm := columns.ResolveTable(target)
	if cm.Require(columns.Barcode, columns.PackageCount, columns.Quantity) != nil {
		return target, 0, 0
	}

	want := source.ByBarcode()
	present := make(map[string]bool, len(target.Rows))
	out = target.Filter(func(row []table.Cell) bool {
		bc := cm.Text(row, columns.Barcode)
		if _, ok := want[bc]; ok {
			present[bc] = true
			return true
		}
		if counted(row, cm) {
			present[bc] = true
			return true
		}
		dropped++
		return false
	})

	bc, _ := cm.Index(columns.Barcode)
	nameCol, hasName := cm.Index(columns.ProductName)
	var rows [][]table.Cell
	for _, agg := range source.Rows {
		if present[agg.Barcode] {
			continue
		}
		row := make([]table.Cell, len(target.Headers))
		row[bc] = agg.Barcode
		if hasName {
			row[nameCol] = source.ProductName(agg)
		}
		rows = append(rows, row)
	}
	if len(rows) > 0 {
		// szerokość wierszy zgadza się z nagłówkami, więc błędu tu nie ma
		out, _ = out.AppendRows(rows...)
		added = len(rows)
	}
	return out, added, dropped
}

func counted(row []table.Cell, cm columns.ColumnMap) bool {
	return table.CellString(cm.Cell(row, columns.PackageCount)) != "" ||
		table.CellString(cm.Cell(row, columns.Quantity)) != ""
}
