// Gói githubapi cung cấp một caller cho GitHub API.
// Caller chịu trách nhiệm thực hiện yêu cầu API: lấy metadata repository,
// liệt kê public repositories theo id tăng dần và lấy lịch sử commit theo trang.
// Nó xử lý xác thực bằng mã thông báo truy cập nếu được cung cấp.

package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/thep200/github-tracker/cfg"
	"github.com/thep200/github-tracker/internal/limiter"
	"github.com/thep200/github-tracker/pkg/log"
)

const commitsPerPage = 100

type Caller struct {
	Logger      log.Logger
	Config      *cfg.Config
	client      *http.Client
	rateLimiter *limiter.RateLimiter
}

func NewCaller(logger log.Logger, config *cfg.Config) *Caller {
	timeout := config.GithubApi.RequestTimeout
	if timeout <= 0 {
		timeout = 30
	}
	rps := config.GithubApi.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &Caller{
		Logger:      logger,
		Config:      config,
		client:      &http.Client{Timeout: time.Duration(timeout) * time.Second},
		rateLimiter: limiter.NewRateLimiter(rps),
	}
}

// HandleRateLimit xử lý rate limit dựa trên thông tin từ header API
func (c *Caller) HandleRateLimit(ctx context.Context, resp *http.Response) (bool, error) {
	rateRemaining := resp.Header.Get("X-RateLimit-Remaining")

	if resp.StatusCode == http.StatusForbidden && rateRemaining == "0" {
		resetTimeStr := resp.Header.Get("X-RateLimit-Reset")
		resetTimeInt, err := strconv.ParseInt(resetTimeStr, 10, 64)

		if err != nil {
			// Nếu không thể parse được thời gian reset, sử dụng cấu hình mặc định
			waitTime := time.Duration(c.Config.GithubApi.RateLimitResetMin) * time.Minute
			c.Logger.Warn(ctx, "Rate limit hit! Không thể xác định thời gian reset chính xác. Chờ %v phút", c.Config.GithubApi.RateLimitResetMin)
			return true, fmt.Errorf("đạt giới hạn API, chờ %v", waitTime)
		}

		resetTime := time.Unix(resetTimeInt, 0)
		waitTime := time.Until(resetTime)
		if waitTime < 0 {
			waitTime = time.Duration(c.Config.GithubApi.RateLimitResetMin) * time.Minute
		}

		c.Logger.Warn(ctx, "Rate limit hit! GitHub API rate limit đạt ngưỡng. Cần chờ %v đến %v để tiếp tục",
			waitTime.Round(time.Second), resetTime.Format(time.RFC3339))

		return true, fmt.Errorf("đạt giới hạn API, thời gian reset: %v", resetTime.Format(time.RFC3339))
	}

	return false, nil
}

// get thực hiện một GET request với header mặc định và rate limiter.
// Body của response do caller đóng.
func (c *Caller) get(ctx context.Context, fullUrl string) (*http.Response, error) {
	delay := time.Duration(c.Config.GithubApi.ThrottleDelay) * time.Millisecond
	if err := c.rateLimiter.Wait(ctx, delay); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullUrl, nil)
	if err != nil {
		c.Logger.Error(ctx, "Cannot request: %v", err)
		return nil, err
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.Config.GithubApi.AccessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.Config.GithubApi.AccessToken))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.Logger.Error(ctx, "cannot send request: %v", err)
		return nil, err
	}

	// Kiểm tra rate limit
	isRateLimited, rateLimitErr := c.HandleRateLimit(ctx, resp)
	if isRateLimited {
		resp.Body.Close()
		return nil, rateLimitErr
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("cannot received response: %v", resp.Status)
	}

	return resp, nil
}

// FetchRepository gọi API lấy metadata của một repository cụ thể
func (c *Caller) FetchRepository(ctx context.Context, owner, name string) (*RepoSnapshot, error) {
	repoUrl := fmt.Sprintf("%s/repos/%s/%s", c.Config.GithubApi.ApiUrl, url.PathEscape(owner), url.PathEscape(name))

	resp, err := c.get(ctx, repoUrl)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rawResponse := &RepoResponse{}
	if err := json.NewDecoder(resp.Body).Decode(rawResponse); err != nil {
		return nil, err
	}

	snapshot := rawResponse.Snapshot()
	// Payload có thể thiếu owner login, giữ lại tên đã yêu cầu
	if snapshot.Owner == "" {
		snapshot.Owner = owner
	}
	if snapshot.Name == "" {
		snapshot.Name = name
	}
	return snapshot, nil
}

// listRepositories gọi API liệt kê public repositories có id lớn hơn sinceID.
// Tham số since loại trừ chính repository có id đó khỏi kết quả.
func (c *Caller) listRepositories(ctx context.Context, sinceID int64) ([]ListedRepoResponse, error) {
	listUrl := fmt.Sprintf("%s/repositories?since=%d", c.Config.GithubApi.ApiUrl, sinceID)

	resp, err := c.get(ctx, listUrl)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var repos []ListedRepoResponse
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func (c *Caller) commitsUrl(owner, name, since string, perPage, page int) string {
	return fmt.Sprintf(
		"%s/repos/%s/%s/commits?since=%s&per_page=%d&page=%d",
		c.Config.GithubApi.ApiUrl, url.PathEscape(owner), url.PathEscape(name), since, perPage, page,
	)
}

// commitTotal lấy tổng số commit kể từ since bằng một probe request per_page=1
// và đọc giá trị page= cuối cùng trong header Link.
// Không có header Link nghĩa là không có commit mới, không phải lỗi.
func (c *Caller) commitTotal(ctx context.Context, owner, name, since string) (int, error) {
	resp, err := c.get(ctx, c.commitsUrl(owner, name, since, 1, 1))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	link := resp.Header.Get("Link")
	if link == "" {
		return 0, nil
	}

	idx := strings.LastIndex(link, "page=")
	if idx < 0 {
		return 0, nil
	}
	numberRel := link[idx+len("page="):]
	if end := strings.Index(numberRel, ">"); end >= 0 {
		numberRel = numberRel[:end]
	}
	total, err := strconv.Atoi(numberRel)
	if err != nil {
		return 0, fmt.Errorf("cannot parse Link header %q: %w", link, err)
	}
	return total, nil
}

// commitsPage lấy một trang commit, sắp xếp theo ngày commit giảm dần
func (c *Caller) commitsPage(ctx context.Context, owner, name, since string, page int) ([]CommitResponse, error) {
	resp, err := c.get(ctx, c.commitsUrl(owner, name, since, commitsPerPage, page))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var commits []CommitResponse
	if err := json.NewDecoder(resp.Body).Decode(&commits); err != nil {
		return nil, err
	}
	return commits, nil
}

// ParseCommit trích xuất ngày commit và tên tác giả từ một commit.
// Dùng committer thay vì author vì committer mới là người thực sự đưa thay đổi vào,
// và GitHub sắp xếp commit theo ngày commit chứ không phải ngày author.
// Trả về ok=false nếu commit không có timestamp sử dụng được.
func ParseCommit(commit CommitResponse) (time.Time, string, bool) {
	committer := commit.Commit.Committer
	if committer == nil || committer.Date == "" {
		return time.Time{}, "", false
	}

	ts, err := time.Parse(time.RFC3339, committer.Date)
	if err != nil {
		return time.Time{}, "", false
	}

	ts = ts.UTC()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	return day, committer.Name, true
}
