package syncinfo

import (
	"context"
	"time"

	"github.com/thep200/github-tracker/pkg/log"
)

// Report là kết quả của một lần chạy đồng bộ
type Report struct {
	StartedAt time.Time
	Duration  time.Duration

	// Phase 0
	RanksUpdated  int
	RanksInserted int

	// Phase 1
	ReposUpdated   int
	ReposUnchanged int
	UpdateFailures int

	// Phase 2
	ReposAdded       int
	ConflictSkipped  int
	DiscoveryStopped bool
	DiscoverFailures int

	ActivityRowsWritten int
}

// Log in ra tổng kết của lần chạy
func (r *Report) Log(ctx context.Context, logger log.Logger) {
	logger.Info(ctx, "==== KẾT QUẢ SYNC ====")
	logger.Info(ctx, "Thời gian bắt đầu: %s", r.StartedAt.Format(time.RFC3339))
	logger.Info(ctx, "Tổng thời gian thực hiện: %v", r.Duration)
	logger.Info(ctx, "Rank snapshots: %d cập nhật, %d chèn mới", r.RanksUpdated, r.RanksInserted)
	logger.Info(ctx, "Repositories cập nhật: %d thay đổi, %d không đổi, %d lỗi", r.ReposUpdated, r.ReposUnchanged, r.UpdateFailures)
	logger.Info(ctx, "Repositories mới: %d thêm, %d bỏ qua do trùng, %d lỗi", r.ReposAdded, r.ConflictSkipped, r.DiscoverFailures)
	logger.Info(ctx, "Số dòng hoạt động đã ghi: %d", r.ActivityRowsWritten)
	if r.DiscoveryStopped {
		logger.Info(ctx, "Phase phát hiện dừng sớm do lỗi transport")
	}
}
