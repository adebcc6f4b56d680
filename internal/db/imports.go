package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/Sivellexfc/paket-pilot/internal/table"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ integrations.ImportLog = (*Handle)(nil)

func (h *Handle) HasImportSHA(ctx context.Context, storeID uint, sha string) (bool, error) {
	var n int64
	err := h.ctx(ctx).Model(&ImportBatch{}).Where("store_id = ? AND sha256 = ?", storeID, sha).Count(&n).Error
	return n > 0, err
}

// SaveImportBatch zapisuje plik i jego wiersze w jednej transakcji.
func (h *Handle) SaveImportBatch(ctx context.Context, rec integrations.ImportRecord) (uint, error) {
	batch := ImportBatch{
		StoreID:  rec.StoreID,
		Filename: rec.Filename,
		Side:     string(rec.Side),
		SHA256:   rec.SHA256,
		Rows:     rec.Data.Len(),
	}
	err := h.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&batch).Error; err != nil {
			return err
		}
		grid := rec.Data.Grid()
		rows := make([]ImportedRow, 0, len(grid))
		for i, r := range grid {
			b, err := json.Marshal(r)
			if err != nil {
				return err
			}
			rows = append(rows, ImportedRow{BatchID: batch.ID, Pos: i, RowData: string(b)})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return 0, fmt.Errorf("save import %q: %w", rec.Filename, err)
	}
	return batch.ID, nil
}

// ListImportBatches – najnowsze pierwsze; side == "" oznacza obie strony.
func (h *Handle) ListImportBatches(ctx context.Context, storeID uint, side integrations.Side) ([]ImportBatch, error) {
	q := h.ctx(ctx).Where("store_id = ?", storeID)
	if side != "" {
		q = q.Where("side = ?", string(side))
	}
	var out []ImportBatch
	err := q.Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

// LoadImportBatch odtwarza tabelę zapisanego pliku.
func (h *Handle) LoadImportBatch(ctx context.Context, id uint) (*ImportBatch, table.Table, error) {
	var b ImportBatch
	if err := h.ctx(ctx).Take(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, table.Table{}, fmt.Errorf("import batch %d not found", id)
		}
		return nil, table.Table{}, err
	}
	var rows []ImportedRow
	if err := h.ctx(ctx).Where("batch_id = ?", id).Order("pos").Find(&rows).Error; err != nil {
		return nil, table.Table{}, err
	}
	grid := make([][]table.Cell, 0, len(rows))
	for _, r := range rows {
		var cells []table.Cell
		if err := json.Unmarshal([]byte(r.RowData), &cells); err != nil {
			return nil, table.Table{}, fmt.Errorf("import batch %d row %d: %w", id, r.Pos, err)
		}
		grid = append(grid, cells)
	}
	if len(grid) == 0 {
		return &b, table.Table{}, nil
	}
	t, err := table.FromGrid(grid)
	return &b, t, err
}

func (h *Handle) DeleteImportBatch(ctx context.Context, id uint) error {
	return h.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", id).Delete(&ImportedRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&ImportBatch{}, id).Error
	})
}

// GetKV / SetKV – drobne ustawienia (np. ostatnio wybrany sklep).
func (h *Handle) GetKV(ctx context.Context, k string) (string, bool, error) {
	var kv KV
	err := h.ctx(ctx).Take(&kv, "k = ?", k).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return kv.V, true, nil
}

func (h *Handle) SetKV(ctx context.Context, k, v string) error {
	return h.ctx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&KV{K: k, V: v}).Error
}
