package model

import (
	"github.com/thep200/github-tracker/cfg"
	"github.com/thep200/github-tracker/pkg/db"
	"github.com/thep200/github-tracker/pkg/log"
	"gorm.io/gorm"
)

// RankSnapshot giữ thứ hạng của một repository ngay trước lần cập nhật
// thuộc tính gần nhất. Mỗi repository có nhiều nhất một dòng.
type RankSnapshot struct {
	Model
	RepoID        uint `json:"repo_id" gorm:"column:repo_id;not null;uniqueIndex"`
	PreviousPlace int  `json:"previous_place" gorm:"column:previous_place;not null"`
}

// RankRow là thứ hạng hiện tại của một repository
type RankRow struct {
	RepoID uint
	Place  int
}

func NewRankSnapshot(config *cfg.Config, logger log.Logger, db *db.Mysql) (*RankSnapshot, error) {
	rank := &RankSnapshot{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  db,
		},
	}
	return rank, nil
}

func (r *RankSnapshot) TableName() string {
	return "rank_snapshots"
}

// Merge hợp nhất thứ hạng hiện tại vào bảng snapshot: chỉ cập nhật dòng có
// giá trị thay đổi, chèn dòng cho repository chưa có snapshot, không bao giờ xóa.
func (r *RankSnapshot) Merge(tx *gorm.DB, ranks []RankRow) (int, int, error) {
	var existing []RankSnapshot
	if err := tx.Find(&existing).Error; err != nil {
		return 0, 0, err
	}

	current := make(map[uint]int, len(existing))
	for _, row := range existing {
		current[row.RepoID] = row.PreviousPlace
	}

	updated, inserted := 0, 0
	for _, rank := range ranks {
		place, ok := current[rank.RepoID]
		switch {
		case !ok:
			row := &RankSnapshot{
				RepoID:        rank.RepoID,
				PreviousPlace: rank.Place,
			}
			if err := tx.Create(row).Error; err != nil {
				return updated, inserted, err
			}
			inserted++
		case place != rank.Place:
			res := tx.Model(&RankSnapshot{}).
				Where("repo_id = ?", rank.RepoID).
				Update("previous_place", rank.Place)
			if res.Error != nil {
				return updated, inserted, res.Error
			}
			updated++
		}
	}
	return updated, inserted, nil
}
