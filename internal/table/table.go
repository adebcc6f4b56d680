// internal/table/table.go
package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed – strukturalnie błędna tabela (brak nagłówków, wiersz o złej długości).
var ErrMalformed = errors.New("table: malformed")

// Cell to pojedyncza komórka: string, liczba albo nil.
type Cell = any

// Table to niemutowalny snapshot: nagłówki + wiersze tej samej długości.
// Każda "zmiana" zwraca nową tabelę – diffowanie opiera się na tym, że stare
// snapshoty nigdy się nie zmieniają.
type Table struct {
	Headers []Cell
	Rows    [][]Cell
}

// New buduje tabelę i sprawdza, że każdy wiersz ma len(headers) komórek.
func New(headers []Cell, rows [][]Cell) (Table, error) {
	if headers == nil {
		return Table{}, fmt.Errorf("%w: nil headers", ErrMalformed)
	}
	for i, r := range rows {
		if len(r) != len(headers) {
			return Table{}, fmt.Errorf("%w: row %d has %d cells, want %d", ErrMalformed, i, len(r), len(headers))
		}
	}
	return Table{Headers: copyRow(headers), Rows: copyRows(rows)}, nil
}

// MustNew – jak New, ale panikuje (fixtures w testach, stałe nagłówki).
func MustNew(headers []Cell, rows [][]Cell) Table {
	t, err := New(headers, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// FromGrid przyjmuje surową siatkę z arkusza/API: wiersz 0 = nagłówki.
// Wiersze z arkuszy bywają poszarpane – krótsze dopełniamy nil, dłuższe przycinamy.
func FromGrid(grid [][]Cell) (Table, error) {
	if len(grid) == 0 || grid[0] == nil {
		return Table{}, fmt.Errorf("%w: missing header row", ErrMalformed)
	}
	headers := copyRow(grid[0])
	rows := make([][]Cell, 0, len(grid)-1)
	for _, r := range grid[1:] {
		row := make([]Cell, len(headers))
		copy(row, r)
		rows = append(rows, row)
	}
	return Table{Headers: headers, Rows: rows}, nil
}

// FromStrings – wygodny wariant dla danych z CSV/XLSX.
func FromStrings(grid [][]string) (Table, error) {
	cells := make([][]Cell, len(grid))
	for i, r := range grid {
		row := make([]Cell, len(r))
		for j, v := range r {
			row[j] = v
		}
		cells[i] = row
	}
	return FromGrid(cells)
}

// Grid zwraca [nagłówki, wiersze...] – format zapisu w archiwum.
func (t Table) Grid() [][]Cell {
	out := make([][]Cell, 0, len(t.Rows)+1)
	out = append(out, copyRow(t.Headers))
	for _, r := range t.Rows {
		out = append(out, copyRow(r))
	}
	return out
}

// Len – liczba wierszy danych (bez nagłówka).
func (t Table) Len() int { return len(t.Rows) }

// IsZero – tabela bez nagłówków (stan "brak danych").
func (t Table) IsZero() bool { return t.Headers == nil }

// HeaderStrings zwraca nagłówki jako tekst.
func (t Table) HeaderStrings() []string {
	out := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		out[i] = CellString(h)
	}
	return out
}

// ColumnIndex – indeks nagłówka o dokładnie takim tekście albo -1.
func (t Table) ColumnIndex(header string) int {
	for i, h := range t.Headers {
		if CellString(h) == header {
			return i
		}
	}
	return -1
}

// Column zwraca wartości jednej kolumny (nil poza zakresem).
func (t Table) Column(col int) []Cell {
	if col < 0 || col >= len(t.Headers) {
		return nil
	}
	out := make([]Cell, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[col]
	}
	return out
}

func (t Table) Clone() Table {
	if t.Headers == nil {
		return Table{}
	}
	return Table{Headers: copyRow(t.Headers), Rows: copyRows(t.Rows)}
}

// Value zwraca komórkę albo nil poza zakresem.
func (t Table) Value(row, col int) Cell {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Headers) {
		return nil
	}
	return t.Rows[row][col]
}

// WithCell zwraca kopię z podmienioną jedną komórką.
func (t Table) WithCell(row, col int, v Cell) (Table, error) {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Headers) {
		return Table{}, fmt.Errorf("table: cell (%d,%d) out of range %dx%d", row, col, len(t.Rows), len(t.Headers))
	}
	out := t.Clone()
	out.Rows[row][col] = v
	return out, nil
}

// Filter zostawia wiersze, dla których keep zwraca true.
func (t Table) Filter(keep func(row []Cell) bool) Table {
	out := Table{Headers: copyRow(t.Headers), Rows: make([][]Cell, 0, len(t.Rows))}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, copyRow(r))
		}
	}
	return out
}

// AppendRows dokleja wiersze; każdy musi mieć len(Headers) komórek.
func (t Table) AppendRows(rows ...[]Cell) (Table, error) {
	for i, r := range rows {
		if len(r) != len(t.Headers) {
			return Table{}, fmt.Errorf("%w: appended row %d has %d cells, want %d", ErrMalformed, i, len(r), len(t.Headers))
		}
	}
	out := t.Clone()
	out.Rows = append(out.Rows, copyRows(rows)...)
	return out, nil
}

// AppendColumn dodaje kolumnę na końcu; fill dostaje oryginalny wiersz.
func (t Table) AppendColumn(header Cell, fill func(row []Cell) Cell) Table {
	out := Table{Headers: append(copyRow(t.Headers), header), Rows: make([][]Cell, len(t.Rows))}
	for i, r := range t.Rows {
		var v Cell
		if fill != nil {
			v = fill(r)
		}
		out.Rows[i] = append(copyRow(r), v)
	}
	return out
}

// PrependColumn dodaje kolumnę na początku (np. "İptal Tespit Tarihi").
func (t Table) PrependColumn(header Cell, fill func(row []Cell) Cell) Table {
	out := Table{Headers: append([]Cell{header}, t.Headers...), Rows: make([][]Cell, len(t.Rows))}
	for i, r := range t.Rows {
		var v Cell
		if fill != nil {
			v = fill(r)
		}
		out.Rows[i] = append([]Cell{v}, r...)
	}
	return out
}

// MapColumn zwraca kopię z kolumną col przeliczoną przez fn.
func (t Table) MapColumn(col int, fn func(row []Cell) Cell) Table {
	out := t.Clone()
	if col < 0 || col >= len(out.Headers) {
		return out
	}
	for i := range out.Rows {
		out.Rows[i][col] = fn(t.Rows[i])
	}
	return out
}

// CellString – tekstowa postać komórki, przycięta. Liczby bez zbędnych zer.
func CellString(c Cell) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// CellFloat parsuje komórkę jako liczbę. Przecinek traktujemy jak kropkę
// (eksporty z TR/PL). ok=false dla pustych i nieparsowalnych.
func CellFloat(c Cell) (float64, bool) {
	switch v := c.(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	s := CellString(c)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func copyRow(r []Cell) []Cell {
	if r == nil {
		return nil
	}
	out := make([]Cell, len(r))
	copy(out, r)
	return out
}

func copyRows(rows [][]Cell) [][]Cell {
	out := make([][]Cell, len(rows))
	for i, r := range rows {
		out[i] = copyRow(r)
	}
	return out
}
