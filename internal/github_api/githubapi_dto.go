// Gói dto cung cấp các đối tượng truyền dữ liệu cho dự án
// Chuyển đổi phản hồi GitHub API thành các cấu trúc

package githubapi

type Owner struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// RepoResponse là phản hồi của GET /repos/{owner}/{repo}
type RepoResponse struct {
	Id              int64   `json:"id"`
	Name            string  `json:"name"`
	FullName        string  `json:"full_name"`
	Owner           Owner   `json:"owner"`
	StargazersCount int64   `json:"stargazers_count"`
	ForksCount      int64   `json:"forks_count"`
	WatchersCount   int64   `json:"watchers_count"`
	OpenIssuesCount int64   `json:"open_issues_count"`
	Language        *string `json:"language"`
}

// ListedRepoResponse là một phần tử của GET /repositories?since={id}
type ListedRepoResponse struct {
	Id       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    Owner  `json:"owner"`
}

type CommitPerson struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
}

type CommitDetail struct {
	Message   string        `json:"message"`
	Committer *CommitPerson `json:"committer"`
}

// CommitResponse là một phần tử của GET /repos/{owner}/{repo}/commits
type CommitResponse struct {
	SHA    string       `json:"sha"`
	Commit CommitDetail `json:"commit"`
}

// RepoSnapshot là dữ liệu repository đã chuẩn hóa, dùng chung cho syncer và storage
type RepoSnapshot struct {
	GithubID   int64
	Owner      string
	Name       string
	Stars      int
	Watchers   int
	Forks      int
	OpenIssues int
	Language   *string
}

func (r *RepoResponse) Snapshot() *RepoSnapshot {
	return &RepoSnapshot{
		GithubID:   r.Id,
		Owner:      r.Owner.Login,
		Name:       r.Name,
		Stars:      int(r.StargazersCount),
		Watchers:   int(r.WatchersCount),
		Forks:      int(r.ForksCount),
		OpenIssues: int(r.OpenIssuesCount),
		Language:   r.Language,
	}
}
