// Gói activity gom dòng commit thành hoạt động theo từng ngày.
// Commit đầu vào phải được sắp xếp theo ngày giảm dần và các commit cùng ngày
// phải nằm liền kề nhau (đúng thứ tự GitHub API trả về).

package activity

import (
	"sort"
	"time"
)

// MaxAuthorName là độ dài tối đa cho phép của tên tác giả commit.
// Tên dài hơn sẽ không được thêm vào tập tác giả của ngày.
const MaxAuthorName = 100

// Daily là hoạt động của một repository trong một ngày.
type Daily struct {
	Date    time.Time
	Commits int
	Authors []string
}

// Aggregator gom các commit liền kề cùng ngày thành một Daily.
//
// Điều kiện tiên quyết: các lần gọi Add phải theo ngày giảm dần với các
// commit cùng ngày liền kề nhau. Aggregator không tự kiểm tra thứ tự.
type Aggregator struct {
	current time.Time
	started bool
	count   int
	authors map[string]struct{}
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		authors: make(map[string]struct{}),
	}
}

// Add nhận một commit với ngày và tên tác giả (chuỗi rỗng nếu không có).
// Khi gặp ngày mới, trả về Daily đã hoàn thành của ngày trước đó, ngược lại
// trả về nil.
func (a *Aggregator) Add(day time.Time, author string) *Daily {
	var done *Daily
	if !a.started {
		a.started = true
		a.current = day
	} else if !day.Equal(a.current) {
		done = a.emit()
		a.current = day
	}

	a.count++
	if author != "" && len(author) <= MaxAuthorName {
		a.authors[author] = struct{}{}
	}
	return done
}

// Flush trả về Daily của ngày đang gom dở, nil nếu không còn gì.
func (a *Aggregator) Flush() *Daily {
	if !a.started || a.count == 0 {
		return nil
	}
	return a.emit()
}

func (a *Aggregator) emit() *Daily {
	names := make([]string, 0, len(a.authors))
	for name := range a.authors {
		names = append(names, name)
	}
	// Sắp xếp để so sánh với dữ liệu đã lưu được ổn định
	sort.Strings(names)

	daily := &Daily{
		Date:    a.current,
		Commits: a.count,
		Authors: names,
	}
	a.count = 0
	a.authors = make(map[string]struct{})
	return daily
}
