package syncer

import (
	"context"

	"github.com/thep200/github-tracker/internal/model"
	"github.com/thep200/github-tracker/internal/syncinfo"
	"golang.org/x/sync/errgroup"
)

// Phase 1: cập nhật các repository đã biết.
// Mỗi repository là một đơn vị độc lập: metadata và hoạt động của nó được ghi
// trong cùng một transaction, lỗi của một đơn vị không ảnh hưởng các đơn vị khác.
func (s *Syncer) updatePhase(ctx context.Context, report *syncinfo.Report) error {
	repos, err := s.Store.TrackedRepos(ctx, s.Config.Sync.UpdateFromID, s.Config.Sync.UpdateToID)
	if err != nil {
		return err
	}
	s.Logger.Info(ctx, "Sẽ cập nhật %d repositories", len(repos))

	workers := s.Config.Sync.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			s.syncTrackedRepo(gctx, repo, report)
			// Lỗi của từng repository không làm hỏng phase
			return nil
		})
	}
	return g.Wait()
}

func (s *Syncer) syncTrackedRepo(ctx context.Context, tracked model.TrackedRepo, report *syncinfo.Report) {
	fullName := tracked.Owner + "/" + tracked.Name

	snap, err := s.Api.FetchRepository(ctx, tracked.Owner, tracked.Name)
	if err != nil {
		// Repository vẫn nằm trong tập đã xử lý nên Phase 2 sẽ không chèn lại nó
		s.Logger.Warn(ctx, "Failed to fetch %s, skipping update: %v", fullName, err)
		s.reportMu.Lock()
		report.UpdateFailures++
		s.reportMu.Unlock()
		return
	}

	// Chỉ lấy hoạt động từ ngày mới nhất đã lưu trở đi
	since := epoch
	if tracked.LastActivityDate != nil {
		since = *tracked.LastActivityDate
	}
	days, actErr := s.Api.FetchActivity(ctx, tracked.Owner, tracked.Name, since)
	if actErr != nil {
		// Giữ lại những ngày đã gom được trước khi lỗi
		s.Logger.Warn(ctx, "Activity for %s truncated: %v", fullName, actErr)
	}

	changed, rows, err := s.Store.UpdateWithActivity(ctx, tracked.ID, snap, days)
	if err != nil {
		s.Logger.Error(ctx, "Failed to update %s: %v", fullName, err)
		s.reportMu.Lock()
		report.UpdateFailures++
		s.reportMu.Unlock()
		return
	}

	s.reportMu.Lock()
	if changed {
		report.ReposUpdated++
	} else {
		report.ReposUnchanged++
	}
	report.ActivityRowsWritten += rows
	s.reportMu.Unlock()

	if changed || rows > 0 {
		s.publish(ctx, "updated", snap)
	}
	s.Logger.Debug(ctx, "Updated repository %s (changed=%v, activity rows=%d)", fullName, changed, rows)
}
