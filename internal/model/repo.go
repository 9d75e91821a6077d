package model

import (
	"time"

	"github.com/thep200/github-tracker/cfg"
	githubapi "github.com/thep200/github-tracker/internal/github_api"
	"github.com/thep200/github-tracker/pkg/db"
	"github.com/thep200/github-tracker/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Giới hạn độ dài theo GitHub: login tối đa 39 ký tự, tên repo tối đa 100
const (
	maxOwnerLength = 39
	maxNameLength  = 100
)

type Repo struct {
	Model
	GithubID   int64   `json:"github_id" gorm:"column:github_id;index"`
	Owner      string  `json:"owner" gorm:"column:owner;type:varchar(255);not null;uniqueIndex:idx_repos_owner_name"`
	Name       string  `json:"name" gorm:"column:name;type:varchar(255);not null;uniqueIndex:idx_repos_owner_name"`
	StarCount  int     `json:"star_count" gorm:"column:star_count;default:0"`
	WatchCount int     `json:"watch_count" gorm:"column:watch_count;default:0"`
	ForkCount  int     `json:"fork_count" gorm:"column:fork_count;default:0"`
	IssueCount int     `json:"issue_count" gorm:"column:issue_count;default:0"`
	Language   *string `json:"language" gorm:"column:language;type:varchar(100)"`
}

// TrackedRepo là một repository đã lưu kèm ngày hoạt động mới nhất của nó
type TrackedRepo struct {
	ID               uint
	Owner            string
	Name             string
	LastActivityDate *time.Time
}

func NewRepo(config *cfg.Config, logger log.Logger, db *db.Mysql) (*Repo, error) {
	repo := &Repo{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  db,
		},
	}
	return repo, nil
}

func (r *Repo) TableName() string {
	return "repos"
}

// ConditionalUpdate cập nhật các thuộc tính của một repository chỉ khi có ít
// nhất một giá trị khác với giá trị đã lưu. So sánh language dùng <=> để thay
// đổi từ hoặc về NULL vẫn được tính là khác.
// Trả về true nếu có ghi thay đổi.
func (r *Repo) ConditionalUpdate(tx *gorm.DB, id uint, snap *githubapi.RepoSnapshot) (bool, error) {
	res := tx.Exec(
		`UPDATE repos
		 SET star_count = ?, watch_count = ?, fork_count = ?, issue_count = ?, language = ?, updated_at = ?
		 WHERE id = ?
		   AND NOT (
		       star_count <=> ?
		       AND watch_count <=> ?
		       AND fork_count <=> ?
		       AND issue_count <=> ?
		       AND language <=> ?
		   )`,
		snap.Stars, snap.Watchers, snap.Forks, snap.OpenIssues, snap.Language, time.Now(),
		id,
		snap.Stars, snap.Watchers, snap.Forks, snap.OpenIssues, snap.Language,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// InsertIfAbsent chèn một repository mới và trả về id được cấp.
// Nếu (owner, name) đã tồn tại thì không làm gì và báo existed=true thay vì lỗi.
func (r *Repo) InsertIfAbsent(tx *gorm.DB, snap *githubapi.RepoSnapshot) (uint, bool, error) {
	row := &Repo{
		GithubID:   snap.GithubID,
		Owner:      TruncateString(snap.Owner, maxOwnerLength),
		Name:       TruncateString(snap.Name, maxNameLength),
		StarCount:  snap.Stars,
		WatchCount: snap.Watchers,
		ForkCount:  snap.Forks,
		IssueCount: snap.OpenIssues,
		Language:   snap.Language,
	}

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}, {Name: "name"}},
		DoNothing: true,
	}).Create(row)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		// Đã tồn tại, ví dụ do một lần chạy chồng lên nhau
		return 0, true, nil
	}
	return row.ID, false, nil
}

// All trả về các repository đã lưu trong khoảng id [fromID, toID] kèm ngày
// hoạt động mới nhất. fromID/toID bằng 0 nghĩa là không chặn phía đó.
func (r *Repo) All(db *gorm.DB, fromID, toID uint) ([]TrackedRepo, error) {
	q := db.Table("repos").
		Select("repos.id, repos.owner, repos.name, dates.last_activity_date").
		Joins(`LEFT JOIN (
			SELECT repo_id, MAX(date) AS last_activity_date
			FROM activities
			GROUP BY repo_id
		) AS dates ON repos.id = dates.repo_id`)
	if fromID > 0 {
		q = q.Where("repos.id >= ?", fromID)
	}
	if toID > 0 {
		q = q.Where("repos.id <= ?", toID)
	}

	var rows []TrackedRepo
	if err := q.Order("repos.id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FullNames trả về tập hợp owner/name của mọi repository đã lưu
func (r *Repo) FullNames(db *gorm.DB) (map[string]struct{}, error) {
	type pair struct {
		Owner string
		Name  string
	}
	var pairs []pair
	if err := db.Table("repos").Select("owner, name").Scan(&pairs).Error; err != nil {
		return nil, err
	}

	names := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		names[p.Owner+"/"+p.Name] = struct{}{}
	}
	return names, nil
}

// MaxGithubID trả về github id lớn nhất đã lưu, 0 nếu chưa có repository nào
func (r *Repo) MaxGithubID(db *gorm.DB) (int64, error) {
	var max int64
	if err := db.Raw(`SELECT COALESCE(MAX(github_id), 0) FROM repos`).Scan(&max).Error; err != nil {
		return 0, err
	}
	return max, nil
}

// CurrentRanks tính thứ hạng hiện tại theo số sao giảm dần,
// các repository bằng sao chia sẻ cùng thứ hạng
func (r *Repo) CurrentRanks(db *gorm.DB) ([]RankRow, error) {
	var rows []RankRow
	err := db.Raw(`SELECT id AS repo_id, RANK() OVER (ORDER BY star_count DESC) AS place FROM repos`).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
