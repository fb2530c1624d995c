package sqlstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExchangeRecord is one archived user/assistant exchange. ID is the event id,
// which makes redelivered events idempotent.
type ExchangeRecord struct {
	ID               string `gorm:"primaryKey;size:26"`
	ConversationID   string `gorm:"size:191;index"`
	UserMessage      string `gorm:"type:text"`
	AssistantMessage string `gorm:"type:text"`
	MessageCount     int
	CommittedAt      time.Time
	ArchivedAt       time.Time `gorm:"autoCreateTime"`
}

func (ExchangeRecord) TableName() string { return "chat_exchanges" }

type Archive struct {
	db *gorm.DB
}

func NewArchive(db *gorm.DB) (*Archive, error) {
	if err := db.AutoMigrate(&ExchangeRecord{}); err != nil {
		return nil, errors.Wrap(err, "sqlstore: migrate archive")
	}
	return &Archive{db: db}, nil
}

// Record inserts rec and reports whether it was new.
func (a *Archive) Record(ctx context.Context, rec *ExchangeRecord) (bool, error) {
	res := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "sqlstore: record exchange %s", rec.ID)
	}
	return res.RowsAffected == 1, nil
}

// ListByConversation returns exchanges newest first. beforeID pages backwards;
// ids are ULIDs so lexical order is time order.
func (a *Archive) ListByConversation(ctx context.Context, conversationID string, limit int, beforeID string) ([]ExchangeRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := a.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(limit)
	if beforeID != "" {
		q = q.Where("id < ?", beforeID)
	}
	var out []ExchangeRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "sqlstore: list exchanges")
	}
	return out, nil
}

func (a *Archive) Count(ctx context.Context) (int64, error) {
	var n int64
	err := a.db.WithContext(ctx).Model(&ExchangeRecord{}).Count(&n).Error
	return n, errors.Wrap(err, "sqlstore: count exchanges")
}
