// Gói syncer điều phối một lần chạy đồng bộ gồm ba phase:
//   - Phase 0: snapshot thứ hạng theo sao trước khi ghi đè thuộc tính
//   - Phase 1: cập nhật các repository đã biết (ghi khi khác giá trị đã lưu)
//   - Phase 2: phát hiện và ingest repository mới theo id tăng dần
//
// Lỗi của từng repository chỉ được log, không làm hỏng cả lần chạy.
// Lỗi không mong đợi (ví dụ mất kết nối database) được trả về cho caller.

package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thep200/github-tracker/cfg"
	"github.com/thep200/github-tracker/internal/activity"
	githubapi "github.com/thep200/github-tracker/internal/github_api"
	"github.com/thep200/github-tracker/internal/model"
	"github.com/thep200/github-tracker/internal/syncinfo"
	"github.com/thep200/github-tracker/pkg/log"
)

// Thời điểm bắt đầu lấy lịch sử hoạt động khi repository chưa có dòng nào
var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Api là phần GitHub API mà syncer cần
type Api interface {
	FetchRepository(ctx context.Context, owner, name string) (*githubapi.RepoSnapshot, error)
	FetchActivity(ctx context.Context, owner, name string, since time.Time) ([]activity.Daily, error)
	NewRepositories(afterID int64, limit int, exclude map[string]struct{}) githubapi.RepoIterator
}

// Store là phần lưu trữ mà syncer cần
type Store interface {
	SnapshotRanks(ctx context.Context) (updated, inserted int, err error)
	TrackedRepos(ctx context.Context, fromID, toID uint) ([]model.TrackedRepo, error)
	HandledNames(ctx context.Context) (map[string]struct{}, error)
	HighWater(ctx context.Context) (int64, error)
	UpdateWithActivity(ctx context.Context, repoID uint, snap *githubapi.RepoSnapshot, days []activity.Daily) (changed bool, rows int, err error)
	InsertWithActivity(ctx context.Context, snap *githubapi.RepoSnapshot, days []activity.Daily) (existed bool, rows int, err error)
}

// Publisher phát sync event cho các consumer phía sau (tùy chọn)
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

type Syncer struct {
	Logger log.Logger
	Config *cfg.Config
	Api    Api
	Store  Store
	Events Publisher

	// Tập owner/name đã xử lý, dùng để loại trừ khi phát hiện repo mới.
	// Luôn được dựng từ toàn bộ repository đã lưu, kể cả khi Phase 1 bị bỏ qua.
	handled map[string]struct{}

	reportMu sync.Mutex
}

func NewSyncer(logger log.Logger, config *cfg.Config, api Api, store Store, events Publisher) (*Syncer, error) {
	if api == nil || store == nil {
		return nil, fmt.Errorf("syncer requires both api and store")
	}
	return &Syncer{
		Logger: logger,
		Config: config,
		Api:    api,
		Store:  store,
		Events: events,
	}, nil
}

// Run thực hiện một lần đồng bộ đầy đủ.
// Trả về report tổng kết, lỗi chỉ khi gặp sự cố không mong đợi.
func (s *Syncer) Run(ctx context.Context) (*syncinfo.Report, error) {
	report := &syncinfo.Report{StartedAt: time.Now()}

	// Phase 0: snapshot thứ hạng phải hoàn thành (hoặc bị bỏ qua tường minh)
	// trước khi phase cập nhật bắt đầu, vì snapshot chỉ có ý nghĩa khi là
	// bức tranh trước cập nhật.
	if s.Config.Sync.SkipRankUpdate {
		s.Logger.Info(ctx, "Phase 0 skipped")
	} else {
		s.Logger.Info(ctx, "===== Phase 0: rank snapshot =====")
		updated, inserted, err := s.Store.SnapshotRanks(ctx)
		if err != nil {
			return nil, fmt.Errorf("rank snapshot failed: %w", err)
		}
		report.RanksUpdated = updated
		report.RanksInserted = inserted
	}

	// Tập đã xử lý luôn gồm mọi repository đã lưu để phase phát hiện
	// không chèn lại chúng, kể cả khi Phase 1 bị bỏ qua hay bị giới hạn id.
	handled, err := s.Store.HandledNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored repositories: %w", err)
	}
	s.handled = handled

	// Phase 1
	if s.Config.Sync.SkipRepoUpdate {
		s.Logger.Info(ctx, "Phase 1 skipped")
	} else {
		s.Logger.Info(ctx, "===== Phase 1: update known repositories =====")
		if err := s.updatePhase(ctx, report); err != nil {
			return nil, err
		}
	}

	// Phase 2
	s.Logger.Info(ctx, "===== Phase 2: discover new repositories =====")
	if err := s.discoverPhase(ctx, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(report.StartedAt)
	return report, nil
}

func (s *Syncer) publish(ctx context.Context, action string, snap *githubapi.RepoSnapshot) {
	if s.Events == nil {
		return
	}
	msg := model.RepoEventMessage{
		Action:     action,
		Owner:      snap.Owner,
		Name:       snap.Name,
		StarCount:  snap.Stars,
		OccurredAt: time.Now(),
	}
	if err := s.Events.Publish(ctx, "sync_event", msg); err != nil {
		s.Logger.Warn(ctx, "Failed to publish sync event for %s/%s: %v", snap.Owner, snap.Name, err)
	}
}
