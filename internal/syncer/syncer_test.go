package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thep200/github-tracker/cfg"
	"github.com/thep200/github-tracker/internal/activity"
	githubapi "github.com/thep200/github-tracker/internal/github_api"
	"github.com/thep200/github-tracker/internal/model"
	"github.com/thep200/github-tracker/pkg/log"
)

type mockApi struct {
	mock.Mock
}

func (m *mockApi) FetchRepository(ctx context.Context, owner, name string) (*githubapi.RepoSnapshot, error) {
	args := m.Called(ctx, owner, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*githubapi.RepoSnapshot), args.Error(1)
}

func (m *mockApi) FetchActivity(ctx context.Context, owner, name string, since time.Time) ([]activity.Daily, error) {
	args := m.Called(ctx, owner, name, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]activity.Daily), args.Error(1)
}

func (m *mockApi) NewRepositories(afterID int64, limit int, exclude map[string]struct{}) githubapi.RepoIterator {
	args := m.Called(afterID, limit, exclude)
	return args.Get(0).(githubapi.RepoIterator)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SnapshotRanks(ctx context.Context) (int, int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockStore) TrackedRepos(ctx context.Context, fromID, toID uint) ([]model.TrackedRepo, error) {
	args := m.Called(ctx, fromID, toID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TrackedRepo), args.Error(1)
}

func (m *mockStore) HandledNames(ctx context.Context) (map[string]struct{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *mockStore) HighWater(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) UpdateWithActivity(ctx context.Context, repoID uint, snap *githubapi.RepoSnapshot, days []activity.Daily) (bool, int, error) {
	args := m.Called(ctx, repoID, snap, days)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *mockStore) InsertWithActivity(ctx context.Context, snap *githubapi.RepoSnapshot, days []activity.Daily) (bool, int, error) {
	args := m.Called(ctx, snap, days)
	return args.Bool(0), args.Int(1), args.Error(2)
}

// fakeIterator phát các snapshot cho trước rồi kết thúc với err (nếu có)
type fakeIterator struct {
	snaps []*githubapi.RepoSnapshot
	idx   int
	err   error
}

func (f *fakeIterator) Next(ctx context.Context) (*githubapi.RepoSnapshot, bool) {
	if f.idx >= len(f.snaps) {
		return nil, false
	}
	snap := f.snaps[f.idx]
	f.idx++
	return snap, true
}

func (f *fakeIterator) Err() error {
	return f.err
}

func testConfig(t *testing.T) *cfg.Config {
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)
	return config
}

func newTestSyncer(t *testing.T, config *cfg.Config, api *mockApi, store *mockStore) *Syncer {
	logger, err := log.NewCslLogger()
	require.NoError(t, err)
	s, err := NewSyncer(logger, config, api, store, nil)
	require.NoError(t, err)
	return s
}

func snap(owner, name string, stars int) *githubapi.RepoSnapshot {
	return &githubapi.RepoSnapshot{Owner: owner, Name: name, Stars: stars, GithubID: 1000}
}

func TestSyncer_RankSnapshotBeforeUpdates(t *testing.T) {
	config := testConfig(t)
	api := new(mockApi)
	store := new(mockStore)

	var calls []string
	store.On("SnapshotRanks", mock.Anything).Run(func(args mock.Arguments) {
		calls = append(calls, "ranks")
	}).Return(2, 1, nil)
	store.On("HandledNames", mock.Anything).Return(map[string]struct{}{"a/one": {}}, nil)
	store.On("TrackedRepos", mock.Anything, uint(0), uint(0)).Return([]model.TrackedRepo{
		{ID: 1, Owner: "a", Name: "one"},
	}, nil)
	api.On("FetchRepository", mock.Anything, "a", "one").Return(snap("a", "one", 10), nil)
	api.On("FetchActivity", mock.Anything, "a", "one", mock.Anything).Return([]activity.Daily(nil), nil)
	store.On("UpdateWithActivity", mock.Anything, uint(1), mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		calls = append(calls, "update")
	}).Return(true, 0, nil)
	store.On("HighWater", mock.Anything).Return(int64(0), nil)
	api.On("NewRepositories", mock.Anything, mock.Anything, mock.Anything).Return(&fakeIterator{})

	s := newTestSyncer(t, config, api, store)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	// Snapshot thứ hạng phải xảy ra trước mọi lần ghi cập nhật
	require.Equal(t, []string{"ranks", "update"}, calls)
	assert.Equal(t, 2, report.RanksUpdated)
	assert.Equal(t, 1, report.RanksInserted)
	assert.Equal(t, 1, report.ReposUpdated)
}

func TestSyncer_RankSnapshotFailureEscalates(t *testing.T) {
	config := testConfig(t)
	api := new(mockApi)
	store := new(mockStore)

	store.On("SnapshotRanks", mock.Anything).Return(0, 0, errors.New("deadlock"))

	s := newTestSyncer(t, config, api, store)
	_, err := s.Run(context.Background())
	require.Error(t, err)

	// Không phase nào được chạy sau khi snapshot thất bại
	store.AssertNotCalled(t, "TrackedRepos", mock.Anything, mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "NewRepositories", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncer_SkipFlags(t *testing.T) {
	config := testConfig(t)
	config.Sync.SkipRankUpdate = true
	config.Sync.SkipRepoUpdate = true

	api := new(mockApi)
	store := new(mockStore)

	store.On("HandledNames", mock.Anything).Return(map[string]struct{}{"a/one": {}}, nil)
	store.On("HighWater", mock.Anything).Return(int64(0), nil)
	api.On("NewRepositories", config.Sync.NewRepoSince, 0, mock.Anything).Run(func(args mock.Arguments) {
		// Tập loại trừ vẫn được dựng từ repository đã lưu dù Phase 1 bị bỏ qua
		exclude := args.Get(2).(map[string]struct{})
		assert.Contains(t, exclude, "a/one")
	}).Return(&fakeIterator{})

	s := newTestSyncer(t, config, api, store)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	store.AssertNotCalled(t, "SnapshotRanks", mock.Anything)
	store.AssertNotCalled(t, "TrackedRepos", mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, report.ReposUpdated)
}

func TestSyncer_FailedFetchStillExcludedFromDiscovery(t *testing.T) {
	config := testConfig(t)
	config.Sync.SkipRankUpdate = true

	api := new(mockApi)
	store := new(mockStore)

	store.On("HandledNames", mock.Anything).Return(map[string]struct{}{"a/one": {}}, nil)
	store.On("TrackedRepos", mock.Anything, uint(0), uint(0)).Return([]model.TrackedRepo{
		{ID: 1, Owner: "a", Name: "one"},
	}, nil)
	api.On("FetchRepository", mock.Anything, "a", "one").Return(nil, errors.New("api 502"))
	store.On("HighWater", mock.Anything).Return(int64(0), nil)
	api.On("NewRepositories", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		exclude := args.Get(2).(map[string]struct{})
		assert.Contains(t, exclude, "a/one")
	}).Return(&fakeIterator{})

	s := newTestSyncer(t, config, api, store)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.UpdateFailures)
	store.AssertNotCalled(t, "UpdateWithActivity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncer_DiscoveryFloorUsesHighWater(t *testing.T) {
	config := testConfig(t)
	config.Sync.SkipRankUpdate = true
	config.Sync.SkipRepoUpdate = true

	api := new(mockApi)
	store := new(mockStore)

	store.On("HandledNames", mock.Anything).Return(map[string]struct{}{}, nil)
	store.On("HighWater", mock.Anything).Return(int64(900000000), nil)
	// High-water mark lớn hơn mốc cấu hình nên thắng
	api.On("NewRepositories", int64(900000000), 0, mock.Anything).Return(&fakeIterator{})

	s := newTestSyncer(t, config, api, store)
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestSyncer_DiscoveryConflictSkipped(t *testing.T) {
	config := testConfig(t)
	config.Sync.SkipRankUpdate = true
	config.Sync.SkipRepoUpdate = true

	api := new(mockApi)
	store := new(mockStore)

	fresh := snap("b", "two", 5)
	dup := snap("c", "three", 7)

	store.On("HandledNames", mock.Anything).Return(map[string]struct{}{}, nil)
	store.On("HighWater", mock.Anything).Return(int64(0), nil)
	api.On("NewRepositories", mock.Anything, mock.Anything, mock.Anything).
		Return(&fakeIterator{snaps: []*githubapi.RepoSnapshot{fresh, dup}})
	api.On("FetchActivity", mock.Anything, "b", "two", epoch).Return([]activity.Daily{
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Commits: 2, Authors: []string{"A"}},
	}, nil)
	api.On("FetchActivity", mock.Anything, "c", "three", epoch).Return([]activity.Daily(nil), nil)
	store.On("InsertWithActivity", mock.Anything, fresh, mock.Anything).Return(false, 1, nil)
	store.On("InsertWithActivity", mock.Anything, dup, mock.Anything).Return(true, 0, nil)

	s := newTestSyncer(t, config, api, store)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.ReposAdded)
	assert.Equal(t, 1, report.ConflictSkipped)
	assert.Equal(t, 1, report.ActivityRowsWritten)
	assert.False(t, report.DiscoveryStopped)
}

func TestSyncer_DiscoveryTransportErrorStopsSilently(t *testing.T) {
	config := testConfig(t)
	config.Sync.SkipRankUpdate = true
	config.Sync.SkipRepoUpdate = true

	api := new(mockApi)
	store := new(mockStore)

	fresh := snap("b", "two", 5)

	store.On("HandledNames", mock.Anything).Return(map[string]struct{}{}, nil)
	store.On("HighWater", mock.Anything).Return(int64(0), nil)
	api.On("NewRepositories", mock.Anything, mock.Anything, mock.Anything).
		Return(&fakeIterator{snaps: []*githubapi.RepoSnapshot{fresh}, err: errors.New("listing 500")})
	api.On("FetchActivity", mock.Anything, "b", "two", epoch).Return([]activity.Daily(nil), nil)
	store.On("InsertWithActivity", mock.Anything, fresh, mock.Anything).Return(false, 0, nil)

	s := newTestSyncer(t, config, api, store)
	report, err := s.Run(context.Background())

	// Lỗi liệt kê không làm hỏng cả lần chạy, phần đã ingest vẫn giữ nguyên
	require.NoError(t, err)
	assert.Equal(t, 1, report.ReposAdded)
	assert.True(t, report.DiscoveryStopped)
}

func TestSyncer_SecondRunUnchanged(t *testing.T) {
	config := testConfig(t)
	config.Sync.SkipRankUpdate = true

	api := new(mockApi)
	store := new(mockStore)

	store.On("HandledNames", mock.Anything).Return(map[string]struct{}{"a/one": {}}, nil)
	store.On("TrackedRepos", mock.Anything, uint(0), uint(0)).Return([]model.TrackedRepo{
		{ID: 1, Owner: "a", Name: "one"},
	}, nil)
	api.On("FetchRepository", mock.Anything, "a", "one").Return(snap("a", "one", 10), nil)
	api.On("FetchActivity", mock.Anything, "a", "one", mock.Anything).Return([]activity.Daily(nil), nil)
	// Mọi giá trị đã khớp với dữ liệu lưu nên không có dòng nào được ghi
	store.On("UpdateWithActivity", mock.Anything, uint(1), mock.Anything, mock.Anything).Return(false, 0, nil)
	store.On("HighWater", mock.Anything).Return(int64(0), nil)
	api.On("NewRepositories", mock.Anything, mock.Anything, mock.Anything).Return(&fakeIterator{})

	s := newTestSyncer(t, config, api, store)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.ReposUpdated)
	assert.Equal(t, 1, report.ReposUnchanged)
	assert.Zero(t, report.ActivityRowsWritten)
}

func TestSyncer_UpdateUsesLastActivityDate(t *testing.T) {
	config := testConfig(t)
	config.Sync.SkipRankUpdate = true

	api := new(mockApi)
	store := new(mockStore)

	last := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store.On("HandledNames", mock.Anything).Return(map[string]struct{}{"a/one": {}, "b/two": {}}, nil)
	store.On("TrackedRepos", mock.Anything, uint(0), uint(0)).Return([]model.TrackedRepo{
		{ID: 1, Owner: "a", Name: "one", LastActivityDate: &last},
		{ID: 2, Owner: "b", Name: "two"},
	}, nil)
	api.On("FetchRepository", mock.Anything, "a", "one").Return(snap("a", "one", 1), nil)
	api.On("FetchRepository", mock.Anything, "b", "two").Return(snap("b", "two", 2), nil)
	// Repo có hoạt động đã lưu chỉ lấy từ ngày mới nhất, repo chưa có lấy từ epoch
	api.On("FetchActivity", mock.Anything, "a", "one", last).Return([]activity.Daily(nil), nil)
	api.On("FetchActivity", mock.Anything, "b", "two", epoch).Return([]activity.Daily(nil), nil)
	store.On("UpdateWithActivity", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, 0, nil)
	store.On("HighWater", mock.Anything).Return(int64(0), nil)
	api.On("NewRepositories", mock.Anything, mock.Anything, mock.Anything).Return(&fakeIterator{})

	s := newTestSyncer(t, config, api, store)
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	api.AssertExpectations(t)
}
