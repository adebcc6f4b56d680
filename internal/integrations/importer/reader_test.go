package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestReadCSV_Delimiters(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"semicolon", "Sipariş No;Barkod;Adet\n1001;ABC;2\n1002;ABC;3\n"},
		{"comma", "Sipariş No,Barkod,Adet\n1001,ABC,2\n1002,ABC,3\n"},
		{"tab", "Sipariş No\tBarkod\tAdet\n1001\tABC\t2\n1002\tABC\t3\n"},
		{"bom and crlf", "\xef\xbb\xbfSipariş No;Barkod;Adet\r\n1001;ABC;2\r\n1002;ABC;3\r\n"},
	}
	want := table.MustNew(
		[]table.Cell{"Sipariş No", "Barkod", "Adet"},
		[][]table.Cell{{"1001", "ABC", "2"}, {"1002", "ABC", "3"}},
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(strings.NewReader(tt.body), "orders.csv", "")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestReadCSV_Windows1254(t *testing.T) {
	enc, err := charmap.Windows1254.NewEncoder().String("Ürün Adı;Barkod;Adet\nGömlek Şal;ABC;1\n")
	require.NoError(t, err)
	p := writeFile(t, t.TempDir(), "eksport.csv", []byte(enc))

	got, err := ReadFile(p, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ürün Adı", "Barkod", "Adet"}, got.HeaderStrings())
	assert.Equal(t, "Gömlek Şal", got.Rows[0][0])
}

func TestReadCSV_RaggedAndEmptyRows(t *testing.T) {
	got, err := Read(strings.NewReader("Barkod;Adet;Not\nABC;1\n;;\n\nXYZ;2;x;extra\n"), "a.csv", "")
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, []table.Cell{"ABC", "1", nil}, got.Rows[0])
	assert.Equal(t, []table.Cell{"XYZ", "2", "x"}, got.Rows[1])
}

func TestReadXLSX_FirstSheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Sipariş Numarası", "Barkod", "Adet"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"1001", "ABC", 2}))
	_, err := f.NewSheet("Diğer")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Diğer", "A1", &[]any{"x"}))

	p := filepath.Join(t.TempDir(), "kargo.xlsx")
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	got, err := ReadFile(p, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sipariş Numarası", "Barkod", "Adet"}, got.HeaderStrings())
	assert.Equal(t, []table.Cell{"1001", "ABC", "2"}, got.Rows[0])
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(strings.NewReader("x"), "notes.pdf", "")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Read(strings.NewReader("\n\n"), "empty.csv", "")
	assert.ErrorIs(t, err, table.ErrMalformed)

	_, err = Read(strings.NewReader("not a zip"), "broken.xlsx", "")
	assert.Error(t, err)

	_, err = Read(strings.NewReader("a;b\n\xff;1\n"), "a.csv", "no-such-charset")
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.CSV"))
	assert.True(t, Supported("b.xlsx"))
	assert.False(t, Supported("c.xls"))
	assert.False(t, Supported("d"))
}

func TestInspect(t *testing.T) {
	tb := table.MustNew(
		[]table.Cell{"Sipariş No", "Barkod", "Adet"},
		[][]table.Cell{{"1", "ABC", "2"}, {"2", "ABC", "3"}, {"3", "", "1"}, {"4", "XYZ", "x"}},
	)
	rep := Inspect(tb)
	assert.Equal(t, Report{Rows: 4, Barcodes: 2, EmptyBarcode: 1, Packages: 3, Quantity: 5}, rep)

	rep = Inspect(table.MustNew([]table.Cell{"Ürün"}, nil))
	assert.Equal(t, []string{"Sipariş No", "Barkod", "Adet"}, rep.Missing)
}
