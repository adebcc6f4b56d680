package archive

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/rs/zerolog"
)

// ErrDuplicateKey – magazyn odrzucił zapis, bo wpis (sklep, typ, dzień) już
// istnieje. Archiver rozwiązuje to ponownym odczytem i scaleniem.
var ErrDuplicateKey = errors.New("archive: duplicate (store, type, date) entry")

// ErrNotFound – brak wpisu o podanym ID.
var ErrNotFound = errors.New("archive: entry not found")

// DateLayout – format dnia w kluczu wpisu.
const DateLayout = "2006-01-02"

// Day zwraca klucz dnia dla t w jego strefie czasowej.
func Day(t time.Time) string { return t.Format(DateLayout) }

type Entry struct {
	ID      uint
	StoreID uint
	Type    Type
	Date    string
	Data    table.Table
}

// Store – to, czego archiwum potrzebuje od bazy.
// GetArchiveEntry zwraca (nil, nil), gdy wpisu nie ma.
// PutArchiveEntry wstawia (ID == 0) albo aktualizuje wpis; przy naruszeniu
// unikalności (sklep, typ, dzień) zwraca błąd opakowujący ErrDuplicateKey.
type Store interface {
	GetArchiveEntry(ctx context.Context, storeID uint, typ Type, date string) (*Entry, error)
	GetArchiveEntryByID(ctx context.Context, id uint) (*Entry, error)
	PutArchiveEntry(ctx context.Context, e *Entry) error
	DeleteArchiveEntry(ctx context.Context, id uint) error
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type key struct {
	store uint
	typ   Type
	date  string
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Archiver zapisuje dzienne wpisy. Odczyt i zapis wpisu dla jednego klucza
// (sklep, typ, dzień) to jedna sekcja krytyczna: mutex w procesie plus
// transakcja w bazie, a unikalny indeks łapie wyścig między procesami.
type Archiver struct {
	log   zerolog.Logger
	store Store

	mu    sync.Mutex
	locks map[key]*keyLock
}

func NewArchiver(log zerolog.Logger, store Store) *Archiver {
	return &Archiver{
		log:   log.With().Str("component", "archive").Logger(),
		store: store,
		locks: make(map[key]*keyLock),
	}
}

func (a *Archiver) lock(k key) func() {
	a.mu.Lock()
	l, ok := a.locks[k]
	if !ok {
		l = &keyLock{}
		a.locks[k] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		a.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.locks, k)
		}
		a.mu.Unlock()
	}
}

// Commit scala incoming z wpisem (storeID, typ, date) wg mode i zapisuje.
// Zwraca zapisany wpis (albo istniejący, gdy nie było nic do dopisania).
func (a *Archiver) Commit(ctx context.Context, storeID uint, typ Type, date string, incoming table.Table, mode Mode) (*Entry, MergeStats, error) {
	if !typ.Valid() {
		return nil, MergeStats{}, fmt.Errorf("archive: invalid type %q", typ)
	}
	if incoming.IsZero() {
		return nil, MergeStats{}, fmt.Errorf("archive: %w: empty incoming table", table.ErrMalformed)
	}
	k := key{storeID, typ, date}
	unlock := a.lock(k)
	defer unlock()

	var (
		saved *Entry
		stats MergeStats
		err   error
	)
	for attempt := 0; attempt < 2; attempt++ {
		saved, stats, err = a.commitOnce(ctx, k, incoming, mode)
		if err == nil || !errors.Is(err, ErrDuplicateKey) {
			break
		}
		a.log.Warn().Err(err).Uint("store_id", storeID).Str("type", string(typ)).Str("date", date).
			Msg("wpis dnia powstał równolegle, scalam ponownie")
	}
	if err != nil {
		return nil, MergeStats{}, fmt.Errorf("archive %s %s: %w", typ, date, err)
	}

	a.log.Info().Uint("store_id", storeID).Str("type", string(typ)).Str("date", date).
		Int("added", stats.Added).Int("skipped", stats.Skipped).Bool("overwritten", stats.Overwritten).
		Msg("archiwum zapisane")
	return saved, stats, nil
}

func (a *Archiver) commitOnce(ctx context.Context, k key, incoming table.Table, mode Mode) (*Entry, MergeStats, error) {
	var (
		saved *Entry
		stats MergeStats
	)
	err := a.store.Transaction(ctx, func(tx Store) error {
		var err error
		saved, stats, err = commitTx(ctx, tx, k, incoming, mode)
		return err
	})
	return saved, stats, err
}

func commitTx(ctx context.Context, tx Store, k key, incoming table.Table, mode Mode) (*Entry, MergeStats, error) {
	cur, err := tx.GetArchiveEntry(ctx, k.store, k.typ, k.date)
	if err != nil {
		return nil, MergeStats{}, err
	}
	var existing *table.Table
	if cur != nil {
		existing = &cur.Data
	}
	merged, st := Merge(existing, incoming, mode)
	if cur != nil && st.Added == 0 && st.NewColumns == 0 && !st.Overwritten {
		return cur, st, nil
	}
	e := &Entry{StoreID: k.store, Type: k.typ, Date: k.date, Data: merged}
	if cur != nil {
		e.ID = cur.ID
	}
	if err := tx.PutArchiveEntry(ctx, e); err != nil {
		return nil, MergeStats{}, err
	}
	return e, st, nil
}

// Batch – jedna tabela do zapisu w CommitAll.
type Batch struct {
	Type Type
	Data table.Table
	Mode Mode
}

// Committed – wynik zapisu jednej paczki z CommitAll.
type Committed struct {
	Type  Type
	Entry *Entry
	Stats MergeStats
}

// CommitAll zapisuje kilka wpisów jednego dnia w jednej transakcji: trafiają
// do bazy wszystkie albo żaden. Każdy typ może wystąpić co najwyżej raz.
func (a *Archiver) CommitAll(ctx context.Context, storeID uint, date string, batches []Batch) ([]Committed, error) {
	keys := make([]key, 0, len(batches))
	seen := make(map[Type]bool, len(batches))
	for _, b := range batches {
		if !b.Type.Valid() {
			return nil, fmt.Errorf("archive: invalid type %q", b.Type)
		}
		if seen[b.Type] {
			return nil, fmt.Errorf("archive: type %q twice in one commit", b.Type)
		}
		if b.Data.IsZero() {
			return nil, fmt.Errorf("archive: %w: empty incoming table", table.ErrMalformed)
		}
		seen[b.Type] = true
		keys = append(keys, key{storeID, b.Type, date})
	}
	if len(batches) == 0 {
		return nil, nil
	}

	// stała kolejność blokad, żeby dwa CommitAll się nie zakleszczyły
	sort.Slice(keys, func(i, j int) bool { return keys[i].typ < keys[j].typ })
	for _, k := range keys {
		unlock := a.lock(k)
		defer unlock()
	}

	var (
		out []Committed
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		out, err = a.commitAllOnce(ctx, storeID, date, batches)
		if err == nil || !errors.Is(err, ErrDuplicateKey) {
			break
		}
		a.log.Warn().Err(err).Uint("store_id", storeID).Str("date", date).
			Msg("wpis dnia powstał równolegle, scalam ponownie")
	}
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", date, err)
	}

	for _, c := range out {
		a.log.Info().Uint("store_id", storeID).Str("type", string(c.Type)).Str("date", date).
			Int("added", c.Stats.Added).Int("skipped", c.Stats.Skipped).Bool("overwritten", c.Stats.Overwritten).
			Msg("archiwum zapisane")
	}
	return out, nil
}

func (a *Archiver) commitAllOnce(ctx context.Context, storeID uint, date string, batches []Batch) ([]Committed, error) {
	var out []Committed
	err := a.store.Transaction(ctx, func(tx Store) error {
		out = out[:0]
		for _, b := range batches {
			saved, st, err := commitTx(ctx, tx, key{storeID, b.Type, date}, b.Data, b.Mode)
			if err != nil {
				return fmt.Errorf("%s: %w", b.Type, err)
			}
			out = append(out, Committed{Type: b.Type, Entry: saved, Stats: st})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveOrder usuwa zamówienie z wpisu (zwrot towaru, potwierdzone
// anulowanie). Wpis, w którym został sam nagłówek, jest kasowany.
func (a *Archiver) RemoveOrder(ctx context.Context, entryID uint, orderNo string) (removed int, deleted bool, err error) {
	e, err := a.store.GetArchiveEntryByID(ctx, entryID)
	if err != nil {
		return 0, false, err
	}
	if e == nil {
		return 0, false, fmt.Errorf("%w: id %d", ErrNotFound, entryID)
	}
	unlock := a.lock(key{e.StoreID, e.Type, e.Date})
	defer unlock()

	err = a.store.Transaction(ctx, func(tx Store) error {
		cur, err := tx.GetArchiveEntryByID(ctx, entryID)
		if err != nil {
			return err
		}
		if cur == nil {
			return fmt.Errorf("%w: id %d", ErrNotFound, entryID)
		}
		if cur.Data.Len() == 0 {
			deleted = true
			return tx.DeleteArchiveEntry(ctx, entryID)
		}
		out, n, err := RemoveOrder(cur.Data, orderNo)
		if err != nil {
			return err
		}
		removed = n
		if n == 0 {
			return nil
		}
		if out.Len() == 0 {
			deleted = true
			return tx.DeleteArchiveEntry(ctx, entryID)
		}
		cur.Data = out
		return tx.PutArchiveEntry(ctx, cur)
	})
	if err != nil {
		return 0, false, err
	}
	a.log.Info().Uint("entry_id", entryID).Str("order_no", orderNo).Int("removed", removed).Bool("deleted", deleted).
		Msg("zamówienie usunięte z archiwum")
	return removed, deleted, nil
}
