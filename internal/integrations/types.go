// internal/integrations/types.go
package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/rs/zerolog"
)

// Credentials – dane dostępowe sklepu do API rynku, przekazywane bez zmian.
type Credentials struct {
	SellerID  string
	APIKey    string
	APISecret string
}

func (c Credentials) Valid() bool {
	return c.SellerID != "" && c.APIKey != "" && c.APISecret != ""
}

// DateRange – przedział [Start, End] zapytań do API.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Today: od północy do 23:59:59.999 dnia now.
func Today(now time.Time) DateRange {
	return LastDays(now, 0)
}

// LastDays: od północy n dni temu do końca dnia now.
func LastDays(now time.Time, n int) DateRange {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -n)
	end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), now.Location())
	return DateRange{Start: start, End: end}
}

// Marketplace – źródło zamówień. Nagłówki zwracanych tabel nie są stałe
// między wywołaniami; wołający zawsze rozwiązuje kolumny od nowa.
type Marketplace interface {
	Name() string
	FetchOpenOrders(ctx context.Context, cred Credentials, r DateRange) (table.Table, error)
	FetchCancelledOrders(ctx context.Context, cred Credentials, r DateRange) (table.Table, error)
}

// FetchError – API odpowiedziało statusem spoza 2xx.
type FetchError struct {
	Op     string
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Body)
}

// Side – do której tabeli trafia zaimportowany plik.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// Sink przyjmuje tabele z importu (silnik workflow).
type Sink interface {
	ImportTable(ctx context.Context, side Side, filename string, t table.Table) error
}

// ImportRecord – jeden zaimportowany plik.
type ImportRecord struct {
	StoreID  uint
	Filename string
	Side     Side
	SHA256   string
	Data     table.Table
}

// ImportLog – historia importów (deduplikacja po SHA256).
type ImportLog interface {
	HasImportSHA(ctx context.Context, storeID uint, sha string) (bool, error)
	SaveImportBatch(ctx context.Context, rec ImportRecord) (uint, error)
}

// Env – zależności przekazywane integracjom działającym w tle.
type Env struct {
	StoreID uint
	Sink    Sink
	Imports ImportLog
}

// Integration – usługa działająca w tle w czasie sesji (np. obserwator katalogu).
type Integration interface {
	Name() string
	Start(ctx context.Context) error // blokuje do ctx.Done
	Stop()                           // idempotent
}

type Factory func(log zerolog.Logger, raw json.RawMessage, env Env) (Integration, error)

type MarketplaceFactory func(log zerolog.Logger, raw json.RawMessage) (Marketplace, error)
