package model

import (
	"context"
	"fmt"

	"github.com/thep200/github-tracker/cfg"
	"github.com/thep200/github-tracker/internal/activity"
	githubapi "github.com/thep200/github-tracker/internal/github_api"
	"github.com/thep200/github-tracker/pkg/db"
	"github.com/thep200/github-tracker/pkg/log"
	"gorm.io/gorm"
)

// Store gói các thao tác lưu trữ của syncer thành những đơn vị transaction:
// cập nhật thuộc tính + hoạt động của một repository hoặc chèn repository mới
// + toàn bộ lịch sử hoạt động đều thấy được cùng nhau hoặc không thấy gì cả.
type Store struct {
	Config     *cfg.Config
	Logger     log.Logger
	Mysql      *db.Mysql
	repoMd     *Repo
	activityMd *Activity
	rankMd     *RankSnapshot
}

func NewStore(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*Store, error) {
	repoMd, err := NewRepo(config, logger, mysql)
	if err != nil {
		return nil, fmt.Errorf("failed to create repo model: %w", err)
	}
	activityMd, err := NewActivity(config, logger, mysql)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity model: %w", err)
	}
	rankMd, err := NewRankSnapshot(config, logger, mysql)
	if err != nil {
		return nil, fmt.Errorf("failed to create rank snapshot model: %w", err)
	}

	return &Store{
		Config:     config,
		Logger:     logger,
		Mysql:      mysql,
		repoMd:     repoMd,
		activityMd: activityMd,
		rankMd:     rankMd,
	}, nil
}

func (s *Store) db(ctx context.Context) (*gorm.DB, error) {
	db, err := s.Mysql.Db()
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

// SnapshotRanks tính thứ hạng hiện tại theo số sao và hợp nhất vào bảng
// snapshot trong một transaction riêng. Trả về số dòng cập nhật và chèn mới.
func (s *Store) SnapshotRanks(ctx context.Context) (int, int, error) {
	db, err := s.db(ctx)
	if err != nil {
		return 0, 0, err
	}

	ranks, err := s.repoMd.CurrentRanks(db)
	if err != nil {
		return 0, 0, err
	}

	var updated, inserted int
	err = db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		updated, inserted, txErr = s.rankMd.Merge(tx, ranks)
		return txErr
	})
	return updated, inserted, err
}

// TrackedRepos trả về các repository đã lưu trong khoảng id cho trước
// kèm ngày hoạt động mới nhất của từng repository
func (s *Store) TrackedRepos(ctx context.Context, fromID, toID uint) ([]TrackedRepo, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	return s.repoMd.All(db, fromID, toID)
}

// HandledNames trả về tập owner/name của mọi repository đã lưu
func (s *Store) HandledNames(ctx context.Context) (map[string]struct{}, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	return s.repoMd.FullNames(db)
}

// HighWater trả về github id lớn nhất đã ingest, 0 nếu chưa có
func (s *Store) HighWater(ctx context.Context) (int64, error) {
	db, err := s.db(ctx)
	if err != nil {
		return 0, err
	}
	return s.repoMd.MaxGithubID(db)
}

// UpdateWithActivity cập nhật thuộc tính của một repository đã biết và upsert
// hoạt động của nó trong cùng một transaction.
// Trả về repository có thay đổi hay không và số dòng hoạt động đã ghi.
func (s *Store) UpdateWithActivity(ctx context.Context, repoID uint, snap *githubapi.RepoSnapshot, days []activity.Daily) (bool, int, error) {
	db, err := s.db(ctx)
	if err != nil {
		return false, 0, err
	}

	var changed bool
	var rows int
	err = db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		changed, txErr = s.repoMd.ConditionalUpdate(tx, repoID, snap)
		if txErr != nil {
			return txErr
		}
		for _, day := range days {
			wrote, txErr := s.activityMd.Upsert(tx, repoID, day)
			if txErr != nil {
				return txErr
			}
			if wrote {
				rows++
			}
		}
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return changed, rows, nil
}

// InsertWithActivity chèn một repository mới phát hiện cùng toàn bộ lịch sử
// hoạt động trong một transaction. Nếu chèn gặp xung đột unique thì bỏ qua
// phần hoạt động và báo existed=true, không phải lỗi.
func (s *Store) InsertWithActivity(ctx context.Context, snap *githubapi.RepoSnapshot, days []activity.Daily) (bool, int, error) {
	db, err := s.db(ctx)
	if err != nil {
		return false, 0, err
	}

	var existed bool
	var rows int
	err = db.Transaction(func(tx *gorm.DB) error {
		repoID, alreadyExists, txErr := s.repoMd.InsertIfAbsent(tx, snap)
		if txErr != nil {
			return txErr
		}
		if alreadyExists {
			existed = true
			return nil
		}
		for _, day := range days {
			wrote, txErr := s.activityMd.Upsert(tx, repoID, day)
			if txErr != nil {
				return txErr
			}
			if wrote {
				rows++
			}
		}
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return existed, rows, nil
}
