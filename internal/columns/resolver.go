// internal/columns/resolver.go
package columns

import (
	"fmt"
	"strings"

	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/agnivade/levenshtein"
)

// Role – semantyczna rola kolumny, niezależna od języka nagłówka.
type Role int

const (
	OrderNumber Role = iota
	Barcode
	PackageCount
	Quantity
	ProductName
	Status
	DetectionTimestamp
	PackageNumber
	Recipient
	CancelStage
)

// Nagłówki, które sami dopisujemy do tabel.
const (
	HeaderDetectedAt   = "İptal Tespit Tarihi"
	HeaderStatus       = "Sipariş Statüsü"
	HeaderCancelStage  = "İptal Aşaması"
	HeaderPackageCount = "Paket Sayısı"
	HeaderPieceCount   = "Adet Sayısı"
	HeaderProductName  = "Ürün Adı"
	HeaderBarcode      = "Barkod"
)

type roleDef struct {
	role     Role
	name     string
	label    string
	synonyms []string
	exclude  []string
}

// Kolejność ma znaczenie: role rozwiązywane wcześniej "zajmują" kolumnę
// i późniejsze nie mogą jej już użyć.
var roleDefs = []roleDef{
	{role: OrderNumber, name: "OrderNumber", label: "Sipariş No",
		synonyms: []string{"sipariş no", "sipariş numarası", "sipariş numara", "siparis no", "siparis numara", "order no", "order number", "order num"}},
	{role: Barcode, name: "Barcode", label: "Barkod",
		synonyms: []string{"barkod", "barcode", "barkodu"}},
	{role: PackageCount, name: "PackageCount", label: "Paket Sayısı",
		synonyms: []string{"paket sayısı", "package count"}},
	{role: Quantity, name: "Quantity", label: "Adet",
		synonyms: []string{"adet", "miktar", "quantity", "qty"}},
	{role: ProductName, name: "ProductName", label: "Ürün Adı",
		synonyms: []string{"ürün adı", "product name", "ürün", "product", "name"}},
	{role: Status, name: "Status", label: "Sipariş Statüsü",
		synonyms: []string{"sipariş statüsü", "kargo durumu", "durum", "status"}},
	{role: DetectionTimestamp, name: "DetectionTimestamp", label: "İptal Tespit Tarihi",
		synonyms: []string{"iptal tespit tarihi", "detected at"}},
	{role: PackageNumber, name: "PackageNumber", label: "Paket No",
		synonyms: []string{"paket no", "package no", "package number"}},
	{role: Recipient, name: "Recipient", label: "Alıcı",
		synonyms: []string{"alıcı", "müşteri", "customer"},
		exclude:  []string{"adres", "address"}},
	{role: CancelStage, name: "CancelStage", label: "İptal Aşaması",
		synonyms: []string{"iptal aşaması", "cancel stage"}},
}

func init() {
	for i := range roleDefs {
		for j, s := range roleDefs[i].synonyms {
			roleDefs[i].synonyms[j] = Normalize(s)
		}
		for j, s := range roleDefs[i].exclude {
			roleDefs[i].exclude[j] = Normalize(s)
		}
	}
}

func (r Role) String() string {
	if d, ok := defOf(r); ok {
		return d.name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Label – nazwa roli do komunikatów dla operatora.
func (r Role) Label() string {
	if d, ok := defOf(r); ok {
		return d.label
	}
	return r.String()
}

func defOf(r Role) (roleDef, bool) {
	for _, d := range roleDefs {
		if d.role == r {
			return d, true
		}
	}
	return roleDef{}, false
}

// ColumnMap – częściowe odwzorowanie rola -> indeks kolumny.
// Brak roli to normalny wynik, nie błąd.
type ColumnMap struct {
	idx     map[Role]int
	headers []string
}

// Index zwraca indeks kolumny dla roli.
func (m ColumnMap) Index(r Role) (int, bool) {
	i, ok := m.idx[r]
	return i, ok
}

func (m ColumnMap) Has(r Role) bool {
	_, ok := m.idx[r]
	return ok
}

// Require zwraca *MissingColumnError dla pierwszej brakującej roli.
func (m ColumnMap) Require(roles ...Role) error {
	for _, r := range roles {
		if !m.Has(r) {
			return newMissing(r, m.headers)
		}
	}
	return nil
}

// Missing – jak Require, ale typowany (nil gdy wszystko jest).
func (m ColumnMap) Missing(roles ...Role) *MissingColumnError {
	for _, r := range roles {
		if !m.Has(r) {
			return newMissing(r, m.headers)
		}
	}
	return nil
}

// Cell zwraca komórkę wiersza dla roli (nil gdy rola nieznana).
func (m ColumnMap) Cell(row []table.Cell, r Role) table.Cell {
	i, ok := m.idx[r]
	if !ok || i >= len(row) {
		return nil
	}
	return row[i]
}

// Text zwraca przyciętą wartość tekstową komórki dla roli.
func (m ColumnMap) Text(row []table.Cell, r Role) string {
	return table.CellString(m.Cell(row, r))
}

// Resolve znajduje kolumny po nazwach nagłówków.
//
// Dla każdej roli trzy przebiegi w kolejności: równość, prefiks "synonim ",
// zawieranie. W ramach przebiegu wygrywa najniższy indeks nagłówka.
// Nagłówek zawierający frazę z exclude nigdy nie pasuje do danej roli
// ("Alıcı Adresi" to nie "Alıcı").
func Resolve(headers []table.Cell) ColumnMap {
	raw := make([]string, len(headers))
	normalized := make([]string, len(headers))
	for i, h := range headers {
		raw[i] = table.CellString(h)
		normalized[i] = Normalize(raw[i])
	}

	m := ColumnMap{idx: make(map[Role]int), headers: raw}
	used := make(map[int]bool)
	for _, d := range roleDefs {
		if i, ok := matchRole(d, normalized, used); ok {
			m.idx[d.role] = i
			used[i] = true
		}
	}
	return m
}

// ResolveTable – skrót dla Resolve(t.Headers).
func ResolveTable(t table.Table) ColumnMap {
	return Resolve(t.Headers)
}

const (
	passEquals = iota
	passPrefix
	passContains
)

func matchRole(d roleDef, headers []string, used map[int]bool) (int, bool) {
	for pass := passEquals; pass <= passContains; pass++ {
		for i, h := range headers {
			if h == "" || used[i] || excluded(d, h) {
				continue
			}
			for _, syn := range d.synonyms {
				if matches(pass, h, syn) {
					return i, true
				}
			}
		}
	}
	return -1, false
}

func matches(pass int, h, syn string) bool {
	switch pass {
	case passEquals:
		return h == syn
	case passPrefix:
		return strings.HasPrefix(h, syn+" ")
	default:
		return strings.Contains(h, syn)
	}
}

func excluded(d roleDef, h string) bool {
	for _, ex := range d.exclude {
		if strings.Contains(h, ex) {
			return true
		}
	}
	return false
}

// MissingColumnError – wymagana rola nie została znaleziona w nagłówkach.
// Zwracany jako dane (AggregateResult.Missing itd.), żeby UI mógł pokazać
// "kolumna nie znaleziona" zamiast się wywracać.
type MissingColumnError struct {
	Role    Role
	Headers []string
	Closest string // najbliższy nagłówek wg odległości Levenshteina, może być pusty
}

func (e *MissingColumnError) Error() string {
	if e.Closest != "" {
		return fmt.Sprintf("missing column %s (closest header: %q)", e.Role, e.Closest)
	}
	return fmt.Sprintf("missing column %s", e.Role)
}

// maxHintDistance – powyżej tej odległości podpowiedź bardziej myli niż pomaga.
const maxHintDistance = 3

func newMissing(r Role, headers []string) *MissingColumnError {
	e := &MissingColumnError{Role: r, Headers: append([]string(nil), headers...)}
	d, ok := defOf(r)
	if !ok {
		return e
	}
	best := maxHintDistance + 1
	for _, h := range headers {
		nh := Normalize(h)
		if nh == "" {
			continue
		}
		for _, syn := range d.synonyms {
			if dist := levenshtein.ComputeDistance(nh, syn); dist < best {
				best = dist
				e.Closest = h
			}
		}
	}
	return e
}
