package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"gorm.io/gorm"
)

var ErrStoreNotFound = errors.New("store not found")

func (h *Handle) AddStore(ctx context.Context, name string) (*Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("store name is empty")
	}
	s := &Store{Name: name}
	if err := h.ctx(ctx).Create(s).Error; err != nil {
		return nil, fmt.Errorf("add store %q: %w", name, err)
	}
	return s, nil
}

func (h *Handle) ListStores(ctx context.Context) ([]Store, error) {
	var out []Store
	err := h.ctx(ctx).Order("name").Find(&out).Error
	return out, err
}

func (h *Handle) GetStore(ctx context.Context, id uint) (*Store, error) {
	var s Store
	err := h.ctx(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrStoreNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStoreIntegration zapisuje dane dostępowe API sklepu.
func (h *Handle) UpdateStoreIntegration(ctx context.Context, id uint, cred integrations.Credentials) error {
	res := h.ctx(ctx).Model(&Store{}).Where("id = ?", id).Updates(map[string]any{
		"seller_id":  strings.TrimSpace(cred.SellerID),
		"api_key":    strings.TrimSpace(cred.APIKey),
		"api_secret": strings.TrimSpace(cred.APISecret),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrStoreNotFound, id)
	}
	return nil
}

// DeleteStore usuwa sklep razem z jego archiwum, zdarzeniami i importami.
func (h *Handle) DeleteStore(ctx context.Context, id uint) error {
	return h.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		var batchIDs []uint
		if err := tx.Model(&ImportBatch{}).Where("store_id = ?", id).Pluck("id", &batchIDs).Error; err != nil {
			return err
		}
		if len(batchIDs) > 0 {
			if err := tx.Where("batch_id IN ?", batchIDs).Delete(&ImportedRow{}).Error; err != nil {
				return err
			}
		}
		for _, m := range []any{&ImportBatch{}, &TrackingEvent{}, &DailyEntry{}} {
			if err := tx.Where("store_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&Store{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: id %d", ErrStoreNotFound, id)
		}
		return nil
	})
}

// GetStoredCredentials zwraca zapisane dane API sklepu (mogą być niepełne).
func (h *Handle) GetStoredCredentials(ctx context.Context, storeID uint) (integrations.Credentials, error) {
	s, err := h.GetStore(ctx, storeID)
	if err != nil {
		return integrations.Credentials{}, err
	}
	return integrations.Credentials{SellerID: s.SellerID, APIKey: s.APIKey, APISecret: s.APISecret}, nil
}
