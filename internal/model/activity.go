package model

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/thep200/github-tracker/cfg"
	"github.com/thep200/github-tracker/internal/activity"
	"github.com/thep200/github-tracker/pkg/db"
	"github.com/thep200/github-tracker/pkg/log"
	"gorm.io/gorm"
)

type Activity struct {
	Model
	RepoID  uint      `json:"repo_id" gorm:"column:repo_id;not null;uniqueIndex:idx_activities_repo_date"`
	Date    time.Time `json:"date" gorm:"column:date;type:date;not null;uniqueIndex:idx_activities_repo_date"`
	Commits int       `json:"commits" gorm:"column:commits;not null"`
	Authors string    `json:"authors" gorm:"column:authors;type:text"`
}

func NewActivity(config *cfg.Config, logger log.Logger, db *db.Mysql) (*Activity, error) {
	act := &Activity{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  db,
		},
	}
	return act, nil
}

func (a *Activity) TableName() string {
	return "activities"
}

// EncodeAuthors mã hóa tập tác giả thành JSON đã sắp xếp
// để so sánh với dữ liệu đã lưu luôn ổn định
func EncodeAuthors(names []string) (string, error) {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	encoded, err := json.Marshal(sorted)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Upsert ghi hoạt động của một ngày cho một repository: chèn nếu chưa có,
// chỉ ghi đè khi số commit hoặc tập tác giả khác với giá trị đã lưu.
// Trả về true nếu có ghi.
func (a *Activity) Upsert(tx *gorm.DB, repoID uint, day activity.Daily) (bool, error) {
	authors, err := EncodeAuthors(day.Authors)
	if err != nil {
		return false, err
	}

	var existing Activity
	err = tx.Where("repo_id = ? AND date = ?", repoID, day.Date).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row := &Activity{
			RepoID:  repoID,
			Date:    day.Date,
			Commits: day.Commits,
			Authors: authors,
		}
		if err := tx.Create(row).Error; err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if existing.Commits == day.Commits && existing.Authors == authors {
		return false, nil
	}

	res := tx.Model(&Activity{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
		"commits": day.Commits,
		"authors": authors,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
