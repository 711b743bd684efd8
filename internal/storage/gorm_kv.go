package storage

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is one persisted key-value row. The whole schema is a single
// key -> JSON blob table; there are no relational models.
type Record struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"type:text;not null"`
}

// GormKV stores records in PostgreSQL through GORM.
type GormKV struct {
	DB *gorm.DB
}

// NewGormKV runs the records migration and returns the backend.
func NewGormKV(db *gorm.DB) (*GormKV, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &GormKV{DB: db}, nil
}

func (g *GormKV) Get(key string) ([]byte, bool, error) {
	var rec Record
	err := g.DB.Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(rec.Value), true, nil
}

func (g *GormKV) Put(key string, value []byte) error {
	rec := Record{Key: key, Value: string(value)}
	return g.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&rec).Error
}

func (g *GormKV) Delete(key string) error {
	return g.DB.Where("key = ?", key).Delete(&Record{}).Error
}
