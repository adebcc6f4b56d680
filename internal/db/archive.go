package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/archive"
	"github.com/Sivellexfc/paket-pilot/internal/table"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// archiveStore implementuje archive.Store na *gorm.DB (zwykłym albo transakcji).
type archiveStore struct{ db *gorm.DB }

var _ archive.Store = (*Handle)(nil)

func toEntry(d DailyEntry) (*archive.Entry, error) {
	var t table.Table
	if d.Data != "" {
		if err := json.Unmarshal([]byte(d.Data), &t); err != nil {
			return nil, fmt.Errorf("daily entry %d: %w", d.ID, err)
		}
	}
	return &archive.Entry{ID: d.ID, StoreID: d.StoreID, Type: archive.Type(d.Type), Date: d.EntryDate, Data: t}, nil
}

func (s archiveStore) GetArchiveEntry(ctx context.Context, storeID uint, typ archive.Type, date string) (*archive.Entry, error) {
	var d DailyEntry
	err := s.db.WithContext(ctx).
		Where("store_id = ? AND type = ? AND entry_date = ?", storeID, string(typ), date).
		Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toEntry(d)
}

func (s archiveStore) GetArchiveEntryByID(ctx context.Context, id uint) (*archive.Entry, error) {
	var d DailyEntry
	err := s.db.WithContext(ctx).Take(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toEntry(d)
}

// PutArchiveEntry: ID == 0 -> INSERT ... ON CONFLICT DO NOTHING; gdy nic nie
// wstawiono, wpis dnia już istnieje i zwracamy archive.ErrDuplicateKey.
func (s archiveStore) PutArchiveEntry(ctx context.Context, e *archive.Entry) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	gdb := s.db.WithContext(ctx)

	if e.ID == 0 {
		d := DailyEntry{StoreID: e.StoreID, Type: string(e.Type), EntryDate: e.Date, Data: string(raw)}
		res := gdb.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "type"}, {Name: "entry_date"}},
			DoNothing: true,
		}).Create(&d)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %v", archive.ErrDuplicateKey, res.Error)
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return archive.ErrDuplicateKey
		}
		e.ID = d.ID
		return nil
	}

	res := gdb.Model(&DailyEntry{}).Where("id = ?", e.ID).Updates(map[string]any{
		"data":       string(raw),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", archive.ErrNotFound, e.ID)
	}
	return nil
}

func (s archiveStore) DeleteArchiveEntry(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&DailyEntry{}, id).Error
}

func (s archiveStore) Transaction(ctx context.Context, fn func(tx archive.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(archiveStore{db: tx})
	})
}

// --- Handle jako archive.Store ---

func (h *Handle) GetArchiveEntry(ctx context.Context, storeID uint, typ archive.Type, date string) (*archive.Entry, error) {
	return archiveStore{h.DB}.GetArchiveEntry(ctx, storeID, typ, date)
}

func (h *Handle) GetArchiveEntryByID(ctx context.Context, id uint) (*archive.Entry, error) {
	return archiveStore{h.DB}.GetArchiveEntryByID(ctx, id)
}

func (h *Handle) PutArchiveEntry(ctx context.Context, e *archive.Entry) error {
	return archiveStore{h.DB}.PutArchiveEntry(ctx, e)
}

func (h *Handle) DeleteArchiveEntry(ctx context.Context, id uint) error {
	return archiveStore{h.DB}.DeleteArchiveEntry(ctx, id)
}

func (h *Handle) Transaction(ctx context.Context, fn func(tx archive.Store) error) error {
	return archiveStore{h.DB}.Transaction(ctx, fn)
}

// ListArchiveEntries zwraca wpisy sklepu z przedziału dni [from, to]
// (YYYY-MM-DD, puste = bez ograniczenia). typ == "" oznacza oba typy.
// Kolejność: dzień rosnąco, potem ID.
func (h *Handle) ListArchiveEntries(ctx context.Context, storeID uint, from, to string, typ archive.Type) ([]archive.Entry, error) {
	q := h.ctx(ctx).Where("store_id = ?", storeID)
	if from != "" {
		q = q.Where("entry_date >= ?", from)
	}
	if to != "" {
		q = q.Where("entry_date <= ?", to)
	}
	if typ != "" {
		q = q.Where("type = ?", string(typ))
	}
	var rows []DailyEntry
	if err := q.Order("entry_date, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]archive.Entry, 0, len(rows))
	for _, r := range rows {
		e, err := toEntry(r)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

// ListShippedOrderNumbers – wszystkie numery zamówień z archiwum wysyłek sklepu.
func (h *Handle) ListShippedOrderNumbers(ctx context.Context, storeID uint) ([]string, error) {
	entries, err := h.ListArchiveEntries(ctx, storeID, "", "", archive.TypeCargo)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, e := range entries {
		for _, no := range archive.OrderNumbers(e.Data) {
			seen[no] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for no := range seen {
		out = append(out, no)
	}
	sort.Strings(out)
	return out, nil
}
