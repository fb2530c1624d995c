package sqlstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Blob struct {
	Key       string `gorm:"column:blob_key;primaryKey;size:191"`
	Value     []byte
	UpdatedAt time.Time
}

func (Blob) TableName() string { return "client_blobs" }

// BlobStore keeps client state in a single key/value table.
type BlobStore struct {
	db *gorm.DB
}

func NewBlobStore(db *gorm.DB) (*BlobStore, error) {
	if err := db.AutoMigrate(&Blob{}); err != nil {
		return nil, errors.Wrap(err, "sqlstore: migrate blobs")
	}
	return &BlobStore{db: db}, nil
}

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var b Blob
	err := s.db.WithContext(ctx).Where("blob_key = ?", key).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "sqlstore: get %s", key)
	}
	return b.Value, true, nil
}

func (s *BlobStore) Put(ctx context.Context, key string, value []byte) error {
	b := Blob{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "blob_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&b).Error
	return errors.Wrapf(err, "sqlstore: put %s", key)
}

func (s *BlobStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("blob_key = ?", key).Delete(&Blob{}).Error
	return errors.Wrapf(err, "sqlstore: delete %s", key)
}
