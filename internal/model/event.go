package model

import (
	"fmt"
	"time"

	"github.com/thep200/github-tracker/cfg"
	"github.com/thep200/github-tracker/pkg/db"
	"github.com/thep200/github-tracker/pkg/log"
	"gorm.io/gorm"
)

// RepoEventMessage là cấu trúc dữ liệu sync event gửi tới Kafka
type RepoEventMessage struct {
	Action     string    `json:"action"`
	Owner      string    `json:"owner"`
	Name       string    `json:"name"`
	StarCount  int       `json:"star_count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SyncEvent là audit log của các thay đổi do syncer thực hiện,
// được consumer ghi theo batch
type SyncEvent struct {
	Model
	Action     string    `json:"action" gorm:"column:action;type:varchar(32);not null"`
	Owner      string    `json:"owner" gorm:"column:owner;type:varchar(255);not null"`
	Name       string    `json:"name" gorm:"column:name;type:varchar(255);not null"`
	StarCount  int       `json:"star_count" gorm:"column:star_count;default:0"`
	OccurredAt time.Time `json:"occurred_at" gorm:"column:occurred_at;not null"`
}

func NewSyncEvent(config *cfg.Config, logger log.Logger, db *db.Mysql) (*SyncEvent, error) {
	event := &SyncEvent{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  db,
		},
	}
	return event, nil
}

func (e *SyncEvent) TableName() string {
	return "sync_events"
}

// CreateBatch ghi một loạt sync event trong một transaction
func (e *SyncEvent) CreateBatch(messages []RepoEventMessage) error {
	db, err := e.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	events := make([]SyncEvent, 0, len(messages))
	for _, msg := range messages {
		events = append(events, SyncEvent{
			Action:     msg.Action,
			Owner:      TruncateString(msg.Owner, 250),
			Name:       TruncateString(msg.Name, 250),
			StarCount:  msg.StarCount,
			OccurredAt: msg.OccurredAt,
		})
	}

	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.CreateInBatches(events, 100)
		if result.Error != nil {
			return fmt.Errorf("failed to batch create sync events: %w", result.Error)
		}
		return nil
	})
}
