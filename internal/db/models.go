// internal/db/models.go
package db

import "time"

// stores – sklepy i ich dane dostępowe do API
type Store struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;size:191"`
	SellerID  string
	APIKey    string
	APISecret string
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// daily_entries – dzienne archiwum (cargo/cancel); Data to siatka JSON
// [[nagłówki], [wiersz], ...]. Unikalność (store_id, type, entry_date) pilnuje
// indeks uniq_daily_entry zakładany w Migrate.
type DailyEntry struct {
	ID        uint      `gorm:"primaryKey"`
	StoreID   uint      `gorm:"index"`
	Type      string    `gorm:"size:16"`
	EntryDate string    `gorm:"size:10;index"` // YYYY-MM-DD
	Data      string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// tracking_events – pełna historia zdarzeń (bez limitu)
type TrackingEvent struct {
	ID          uint   `gorm:"primaryKey"`
	StoreID     uint   `gorm:"index"`
	SessionID   string `gorm:"size:36;index"`
	EventType   string `gorm:"size:16"` // new/cancel
	OrderNumber string `gorm:"index"`
	ProductName string
	CreatedAt   time.Time `gorm:"index"`
}

// import_batches – zaimportowane pliki
type ImportBatch struct {
	ID        uint   `gorm:"primaryKey"`
	StoreID   uint   `gorm:"index"`
	Filename  string
	Side      string `gorm:"size:16;index"` // source/target
	SHA256    string `gorm:"size:64;index"`
	Rows      int
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// imported_data – wiersze pliku (wiersz 0 = nagłówki), JSON
type ImportedRow struct {
	ID      uint   `gorm:"primaryKey"`
	BatchID uint   `gorm:"index"`
	Pos     int    `gorm:"index"`
	RowData string `gorm:"type:text"`
}

// kv – drobne ustawienia aplikacji
type KV struct {
	K string `gorm:"primaryKey;size:191"`
	V string
}

func (ImportedRow) TableName() string { return "imported_data" }
func (KV) TableName() string          { return "kv" }
