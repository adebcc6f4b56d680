package db

import (
	"fmt"
)

// Migrate tworzy/aktualizuje schemat bazy.
// Kolejność:
//  1. AutoMigrate
//  2. jeśli w daily_entries są duplikaty (sklep, typ, dzień) ze starszych wersji,
//     zostaw najnowszy wiersz
//  3. unikalny indeks uniq_daily_entry
func (h *Handle) Migrate() error {
	gdb := h.DB

	if err := gdb.AutoMigrate(
		&Store{},
		&DailyEntry{},
		&TrackingEvent{},
		&ImportBatch{},
		&ImportedRow{},
		&KV{},
	); err != nil {
		return fmt.Errorf("AutoMigrate error: %w", err)
	}

	if !gdb.Migrator().HasIndex(&DailyEntry{}, "uniq_daily_entry") {
		if err := gdb.Exec(`
			DELETE FROM daily_entries
			WHERE id NOT IN (
				SELECT keep_id FROM (
					SELECT MAX(id) AS keep_id FROM daily_entries
					GROUP BY store_id, type, entry_date
				) AS keep
			);
		`).Error; err != nil {
			return fmt.Errorf("purge duplicate daily_entries: %w", err)
		}
		if err := gdb.Exec(`
			CREATE UNIQUE INDEX uniq_daily_entry
			ON daily_entries(store_id, type, entry_date);
		`).Error; err != nil {
			return fmt.Errorf("create index uniq_daily_entry: %w", err)
		}
	}

	return nil
}
