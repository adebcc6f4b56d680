package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html/charset"
)

// DefaultCharset – eksporty z tureckich paneli bez BOM to zwykle cp1254.
const DefaultCharset = "windows-1254"

var ErrUnsupported = errors.New("importer: nieobsługiwany typ pliku")

// Supported mówi, czy ReadFile umie przeczytać plik o tej nazwie.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".csv", ".txt":
		return true
	}
	return false
}

// ReadFile czyta pierwszy arkusz .xlsx albo plik CSV do tabeli (wiersz 0 = nagłówki).
// cs to etykieta kodowania dla CSV, które nie są poprawnym UTF-8 ("" = DefaultCharset).
// Komórki zostają tekstem; liczby parsuje dopiero agregator.
func ReadFile(path, cs string) (table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return table.Table{}, err
	}
	defer f.Close()
	return Read(f, filepath.Base(path), cs)
}

// Read – jak ReadFile, ale z dowolnego readera; name służy tylko do rozpoznania typu.
func Read(r io.Reader, name, cs string) (table.Table, error) {
	var (
		grid [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		grid, err = readXLSX(r)
	case ".csv", ".txt":
		grid, err = readCSV(r, cs)
	default:
		return table.Table{}, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	if err != nil {
		return table.Table{}, fmt.Errorf("%s: %w", name, err)
	}
	grid = trimEmptyRows(grid)
	if len(grid) == 0 {
		return table.Table{}, fmt.Errorf("%s: %w: pusty plik", name, table.ErrMalformed)
	}
	return table.FromStrings(grid)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("brak arkuszy")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(r io.Reader, cs string) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	if !utf8.Valid(raw) {
		if cs == "" {
			cs = DefaultCharset
		}
		dec, err := charset.NewReaderLabel(normalizeCharset(cs), bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("charset %q: %w", cs, err)
		}
		if raw, err = io.ReadAll(dec); err != nil {
			return nil, err
		}
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = sniffDelimiter(raw)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

// sniffDelimiter patrzy tylko na pierwszą linię: wygrywa najczęstszy z ; , TAB.
func sniffDelimiter(raw []byte) rune {
	first := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		first = raw[:i]
	}
	best, bestN := ',', bytes.Count(first, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(first, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func trimEmptyRows(grid [][]string) [][]string {
	out := grid[:0]
	for _, row := range grid {
		empty := true
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}

// normalizeCharset mapuje nietypowe etykiety na nazwy rozpoznawane przez charset.NewReaderLabel
func normalizeCharset(cs string) string {
	c := strings.TrimSpace(strings.ToLower(cs))
	switch c {
	case "cp1254", "windows1254", "win-1254", "turkish":
		return "windows-1254"
	case "latin5", "latin-5", "iso8859-9", "iso_8859-9":
		return "iso-8859-9"
	default:
		return c
	}
}
