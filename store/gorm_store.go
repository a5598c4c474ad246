package store

import (
	"gorm.io/gorm"

	"leadgen/models"
)

// GormStore is the database flavor of the snapshot contract. It keeps the
// same load-all/save-all semantics as the file store: SaveAll replaces the
// whole table inside one transaction rather than updating individual rows.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.Lead{}); err != nil {
		return nil, err
	}
	return &GormStore{DB: db}, nil
}

func (gs *GormStore) LoadAll() ([]models.Lead, error) {
	var leads []models.Lead
	if err := gs.DB.Order("place_id").Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

func (gs *GormStore) SaveAll(leads []models.Lead) error {
	return gs.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&models.Lead{}).Error; err != nil {
			return err
		}
		if len(leads) == 0 {
			return nil
		}
		return tx.CreateInBatches(leads, 200).Error
	})
}
