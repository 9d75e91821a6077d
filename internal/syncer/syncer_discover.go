package syncer

import (
	"context"

	"github.com/thep200/github-tracker/internal/syncinfo"
)

// Phase 2: phát hiện và ingest repository mới.
// Duyệt danh sách public repositories từ mốc id cấu hình hoặc high-water mark
// đã lưu (mốc lớn hơn thắng), loại trừ mọi owner/name đã xử lý, tối đa theo
// giới hạn cấu hình. Lỗi transport khi liệt kê chỉ dừng phase này.
func (s *Syncer) discoverPhase(ctx context.Context, report *syncinfo.Report) error {
	floor := s.Config.Sync.NewRepoSince
	highWater, err := s.Store.HighWater(ctx)
	if err != nil {
		return err
	}
	if highWater > floor {
		floor = highWater
	}

	limit := s.Config.Sync.NewRepoLimit
	s.Logger.Info(ctx, "Phát hiện repository mới sau id %d (giới hạn %d, 0 là không giới hạn)", floor, limit)

	it := s.Api.NewRepositories(floor, limit, s.handled)
	for {
		snap, ok := it.Next(ctx)
		if !ok {
			break
		}
		fullName := snap.Owner + "/" + snap.Name

		// Lấy toàn bộ lịch sử hoạt động trước khi mở transaction chèn
		days, actErr := s.Api.FetchActivity(ctx, snap.Owner, snap.Name, epoch)
		if actErr != nil {
			s.Logger.Warn(ctx, "Activity for %s truncated: %v", fullName, actErr)
		}

		existed, rows, err := s.Store.InsertWithActivity(ctx, snap, days)
		if err != nil {
			s.Logger.Error(ctx, "Failed to ingest %s: %v", fullName, err)
			report.DiscoverFailures++
			continue
		}
		if existed {
			// Xung đột unique, ví dụ chồng chéo với chính Phase 1: bỏ qua, không phải lỗi
			s.Logger.Info(ctx, "Repository %s đã tồn tại, bỏ qua hoạt động", fullName)
			report.ConflictSkipped++
			continue
		}

		report.ReposAdded++
		report.ActivityRowsWritten += rows
		s.handled[fullName] = struct{}{}
		s.publish(ctx, "added", snap)
		s.Logger.Info(ctx, "Added repository %s (activity rows=%d)", fullName, rows)
	}

	// Dừng im lặng khi liệt kê lỗi, các phần tử đã ingest vẫn giữ nguyên
	if err := it.Err(); err != nil {
		s.Logger.Warn(ctx, "Discovery stopped early: %v", err)
		report.DiscoveryStopped = true
	}
	return nil
}
