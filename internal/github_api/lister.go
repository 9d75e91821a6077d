package githubapi

import (
	"context"
	"fmt"
)

// RepoIterator là một dãy lazy các RepoSnapshot mới phát hiện.
// Sau khi Next trả về false, Err cho biết dãy kết thúc do lỗi transport
// hay do đã duyệt hết; các phần tử đã yield vẫn hợp lệ.
type RepoIterator interface {
	Next(ctx context.Context) (*RepoSnapshot, bool)
	Err() error
}

// Lister duyệt danh sách public repositories theo id tăng dần bắt đầu sau afterID.
// Các repository có owner/name nằm trong exclude bị bỏ qua và không tính vào limit.
// Lỗi khi lấy metadata của một repository riêng lẻ cũng chỉ bỏ qua phần tử đó.
// Lỗi của request liệt kê kết thúc dãy ngay lập tức, không retry.
type Lister struct {
	caller    *Caller
	afterID   int64
	limit     int
	exclude   map[string]struct{}
	yielded   int
	buf       []ListedRepoResponse
	bufIdx    int
	exhausted bool
	err       error
}

// NewRepositories tạo một iterator phát hiện repository mới.
// limit bằng 0 nghĩa là không giới hạn.
func (c *Caller) NewRepositories(afterID int64, limit int, exclude map[string]struct{}) RepoIterator {
	return &Lister{
		caller:  c,
		afterID: afterID,
		limit:   limit,
		exclude: exclude,
	}
}

func (l *Lister) Next(ctx context.Context) (*RepoSnapshot, bool) {
	for {
		if l.err != nil || l.exhausted {
			return nil, false
		}
		if l.limit > 0 && l.yielded >= l.limit {
			return nil, false
		}

		// Lấy trang tiếp theo khi buffer đã cạn
		if l.bufIdx >= len(l.buf) {
			page, err := l.caller.listRepositories(ctx, l.afterID)
			if err != nil {
				l.err = err
				return nil, false
			}
			if len(page) == 0 {
				l.exhausted = true
				return nil, false
			}
			l.buf = page
			l.bufIdx = 0
		}

		entry := l.buf[l.bufIdx]
		l.bufIdx++
		l.afterID = entry.Id

		fullName := fmt.Sprintf("%s/%s", entry.Owner.Login, entry.Name)
		if _, skip := l.exclude[fullName]; skip {
			continue
		}

		snapshot, err := l.caller.FetchRepository(ctx, entry.Owner.Login, entry.Name)
		if err != nil {
			// Lỗi metadata của một repo không dừng cả dãy
			l.caller.Logger.Warn(ctx, "Skipping repository %s: %v", fullName, err)
			continue
		}
		if snapshot.GithubID == 0 {
			snapshot.GithubID = entry.Id
		}

		l.yielded++
		return snapshot, true
	}
}

func (l *Lister) Err() error {
	return l.err
}
