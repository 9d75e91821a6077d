package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listHandler mô phỏng endpoint /repositories và /repos/{owner}/{name}.
// Mỗi trang liệt kê trả về các entry có id lớn hơn since, tối đa pageSize.
type listHandler struct {
	entries  []ListedRepoResponse
	pageSize int
	// owner/name bị lỗi khi lấy metadata
	brokenMeta map[string]bool
	// since id khiến request liệt kê trả về lỗi 500
	failAt    int64
	listCalls atomic.Int32
}

func (h *listHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/repositories" {
		h.listCalls.Add(1)
		var since int64
		fmt.Sscanf(r.URL.Query().Get("since"), "%d", &since)
		if h.failAt != 0 && since >= h.failAt {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Write([]byte("["))
		count := 0
		for _, e := range h.entries {
			if e.Id <= since || count >= h.pageSize {
				continue
			}
			if count > 0 {
				w.Write([]byte(","))
			}
			fmt.Fprintf(w, `{"id": %d, "name": %q, "owner": {"login": %q}}`, e.Id, e.Name, e.Owner.Login)
			count++
		}
		w.Write([]byte("]"))
		return
	}

	// /repos/{owner}/{name}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/repos/"), "/")
	owner, name := parts[0], parts[1]
	if h.brokenMeta[owner+"/"+name] {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	for _, e := range h.entries {
		if e.Owner.Login == owner && e.Name == name {
			fmt.Fprintf(w, `{"id": %d, "name": %q, "owner": {"login": %q}, "stargazers_count": %d}`, e.Id, e.Name, e.Owner.Login, e.Id*10)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func entry(id int64, owner, name string) ListedRepoResponse {
	return ListedRepoResponse{Id: id, Name: name, Owner: Owner{Login: owner}}
}

func drain(ctx context.Context, it RepoIterator) []*RepoSnapshot {
	var snaps []*RepoSnapshot
	for {
		snap, ok := it.Next(ctx)
		if !ok {
			return snaps
		}
		snaps = append(snaps, snap)
	}
}

func TestLister_AscendingFromFloor(t *testing.T) {
	handler := &listHandler{
		entries:  []ListedRepoResponse{entry(10, "a", "one"), entry(20, "b", "two"), entry(30, "c", "three")},
		pageSize: 2,
	}
	caller, _ := newTestCaller(t, handler)

	it := caller.NewRepositories(10, 0, nil)
	snaps := drain(context.Background(), it)

	require.NoError(t, it.Err())
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(20), snaps[0].GithubID)
	assert.Equal(t, int64(30), snaps[1].GithubID)
	assert.Equal(t, "b", snaps[0].Owner)
	assert.Equal(t, 200, snaps[0].Stars)
}

func TestLister_ExcludedDoesNotConsumeLimit(t *testing.T) {
	handler := &listHandler{
		entries:  []ListedRepoResponse{entry(1, "a", "one"), entry(2, "b", "two"), entry(3, "c", "three")},
		pageSize: 100,
	}
	caller, _ := newTestCaller(t, handler)

	exclude := map[string]struct{}{"a/one": {}}
	it := caller.NewRepositories(0, 2, exclude)
	snaps := drain(context.Background(), it)

	require.NoError(t, it.Err())
	// a/one bị loại trừ nhưng không tính vào limit, nên vẫn đủ 2 phần tử
	require.Len(t, snaps, 2)
	assert.Equal(t, "b/two", snaps[0].Owner+"/"+snaps[0].Name)
	assert.Equal(t, "c/three", snaps[1].Owner+"/"+snaps[1].Name)
}

func TestLister_MetadataFailureSkipsWithoutConsumingLimit(t *testing.T) {
	handler := &listHandler{
		entries:    []ListedRepoResponse{entry(1, "a", "one"), entry(2, "b", "two"), entry(3, "c", "three")},
		pageSize:   100,
		brokenMeta: map[string]bool{"b/two": true},
	}
	caller, _ := newTestCaller(t, handler)

	it := caller.NewRepositories(0, 2, nil)
	snaps := drain(context.Background(), it)

	require.NoError(t, it.Err())
	require.Len(t, snaps, 2)
	assert.Equal(t, "a/one", snaps[0].Owner+"/"+snaps[0].Name)
	assert.Equal(t, "c/three", snaps[1].Owner+"/"+snaps[1].Name)
}

func TestLister_ListingFailureStopsSequence(t *testing.T) {
	handler := &listHandler{
		entries:  []ListedRepoResponse{entry(1, "a", "one"), entry(2, "b", "two"), entry(3, "c", "three")},
		pageSize: 2,
		failAt:   2,
	}
	caller, _ := newTestCaller(t, handler)

	it := caller.NewRepositories(0, 0, nil)
	snaps := drain(context.Background(), it)

	// Trang đầu (id 1, 2) được yield, trang kế lỗi và kết thúc dãy
	require.Len(t, snaps, 2)
	assert.Error(t, it.Err())

	// Next sau lỗi vẫn trả về false, không gọi thêm request nào
	calls := handler.listCalls.Load()
	_, ok := it.Next(context.Background())
	assert.False(t, ok)
	assert.Equal(t, calls, handler.listCalls.Load())
}

func TestLister_Exhausted(t *testing.T) {
	handler := &listHandler{pageSize: 100}
	caller, _ := newTestCaller(t, handler)

	it := caller.NewRepositories(815368990, 0, nil)
	snaps := drain(context.Background(), it)

	assert.Empty(t, snaps)
	assert.NoError(t, it.Err())
}
