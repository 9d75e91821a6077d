package githubapi

import (
	"context"
	"time"

	"github.com/thep200/github-tracker/internal/activity"
)

// FetchActivity lấy và gom hoạt động commit theo ngày kể từ since.
//
// Tổng số commit được xác định trước bằng một probe request; không có
// pagination metadata nghĩa là không có hoạt động mới (không phải lỗi).
// Khi một trang bị lỗi, phần hoạt động đã gom được trả về cùng với lỗi để
// caller chủ động quyết định giữ lại kết quả một phần.
func (c *Caller) FetchActivity(ctx context.Context, owner, name string, since time.Time) ([]activity.Daily, error) {
	sinceStr := since.Format("2006-01-02")

	total, err := c.commitTotal(ctx, owner, name, sinceStr)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	pages := (total + commitsPerPage - 1) / commitsPerPage
	agg := activity.NewAggregator()
	var days []activity.Daily

	for page := 1; page <= pages; page++ {
		commits, err := c.commitsPage(ctx, owner, name, sinceStr, page)
		if err != nil {
			// Fail-fast: bỏ phần còn lại, giữ những ngày đã hoàn thành
			return days, err
		}

		for _, commit := range commits {
			day, author, ok := ParseCommit(commit)
			if !ok {
				continue
			}
			if done := agg.Add(day, author); done != nil {
				days = append(days, *done)
			}
		}
	}

	if last := agg.Flush(); last != nil {
		days = append(days, *last)
	}
	return days, nil
}
