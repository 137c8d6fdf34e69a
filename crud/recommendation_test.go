package crud

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odinbook/domain"
	"odinbook/errs"
)

func TestRankCandidates(t *testing.T) {
	const a, f1, f2, r1, r2 = 1, 2, 3, 4, 5
	friendsOf := map[int][]int{
		f1: {a, r1, r2},
		f2: {a, r2},
	}
	got := rankCandidates(a, []int{f1, f2}, friendsOf)
	assert.Equal(t, []domain.Ranked{
		{UserID: r2, MutualFriends: 2},
		{UserID: r1, MutualFriends: 1},
	}, got)
}

func TestRankCandidatesExcludesSubjectAndFriends(t *testing.T) {
	// f1 and f2 are friends of each other as well as of the subject.
	friendsOf := map[int][]int{
		2: {1, 3, 7, 9},
		3: {1, 2, 9},
	}
	got := rankCandidates(1, []int{2, 3}, friendsOf)
	assert.Equal(t, []domain.Ranked{
		{UserID: 9, MutualFriends: 2},
		{UserID: 7, MutualFriends: 1},
	}, got)
}

func TestRankCandidatesBreaksTiesByID(t *testing.T) {
	friendsOf := map[int][]int{2: {1, 30, 10, 20}}
	got := rankCandidates(1, []int{2}, friendsOf)
	assert.Equal(t, []domain.Ranked{
		{UserID: 10, MutualFriends: 1},
		{UserID: 20, MutualFriends: 1},
		{UserID: 30, MutualFriends: 1},
	}, got)
}

func TestRankCandidatesWithoutFriends(t *testing.T) {
	assert.Empty(t, rankCandidates(1, nil, map[int][]int{}))
}

func TestClampPage(t *testing.T) {
	cases := []struct{ offset, limit, wantOffset, wantLimit int }{
		{0, 0, 0, DefaultLimit},
		{-3, 5, 0, 5},
		{20, 500, 20, MaxLimit},
	}
	for _, c := range cases {
		o, l := clampPage(c.offset, c.limit)
		assert.Equal(t, c.wantOffset, o)
		assert.Equal(t, c.wantLimit, l)
	}
}

func TestRecommend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 6)
	a, f1, f2, r1, r2, lonely := u[0], u[1], u[2], u[3], u[4], u[5]
	f.befriend(t, a, f1)
	f.befriend(t, a, f2)
	f.befriend(t, f1, r1)
	f.befriend(t, f1, r2)
	f.befriend(t, f2, r2)
	require.NoError(t, f.s.Friend.SendRequest(ctx, r1, a))

	recs, err := f.s.Recommendation.Recommend(ctx, owner, a, a, 0, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, r2, recs[0].User.ID)
	assert.Equal(t, 2, recs[0].MutualFriends)
	assert.Equal(t, domain.NotFriend, recs[0].User.FriendState)
	assert.Equal(t, r1, recs[1].User.ID)
	assert.Equal(t, 1, recs[1].MutualFriends)
	assert.Equal(t, domain.FriendRequestReceived, recs[1].User.FriendState)

	for _, r := range recs {
		assert.NotContains(t, []int{a, f1, f2, lonely}, r.User.ID)
	}

	again, err := f.s.Recommendation.Recommend(ctx, owner, a, a, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, recs, again)

	page, err := f.s.Recommendation.Recommend(ctx, owner, a, a, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, r1, page[0].User.ID)

	page, err = f.s.Recommendation.Recommend(ctx, owner, a, a, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = f.s.Recommendation.Recommend(ctx, stranger, r1, a, 0, 10)
	assert.Equal(t, errs.AuthorizationDenied, errs.ErrorReason(err))
}

// memoryRanking is a RankingCache kept in a map.
type memoryRanking struct {
	mu   sync.Mutex
	data map[int][]domain.Ranked
	sets int
}

func (m *memoryRanking) Get(ctx context.Context, subjectID int) ([]domain.Ranked, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[subjectID]
	return r, ok, nil
}

func (m *memoryRanking) Set(ctx context.Context, subjectID int, ranking []domain.Ranked) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[subjectID] = ranking
	m.sets++
	return nil
}

func (m *memoryRanking) Invalidate(ctx context.Context, subjectID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, subjectID)
	return nil
}

func TestRecommendPagesShareSnapshot(t *testing.T) {
	cache := &memoryRanking{data: map[int][]domain.Ranked{}}
	f := newFixture(t, WithRankingCache(cache))
	ctx := context.Background()
	u := f.users(t, 5)
	a, f1, c1, c2, c3 := u[0], u[1], u[2], u[3], u[4]
	f.befriend(t, a, f1)
	f.befriend(t, f1, c1)
	f.befriend(t, f1, c2)
	f.befriend(t, f1, c3)

	first, err := f.s.Recommendation.Recommend(ctx, owner, a, a, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, []int{c1, c2}, []int{first[0].User.ID, first[1].User.ID})

	// c1 becomes a friend between two page loads; page two is cut from the
	// same ranking, so c3 is neither skipped nor repeated.
	f.befriend(t, a, c1)
	second, err := f.s.Recommendation.Recommend(ctx, owner, a, a, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, c3, second[0].User.ID)
	assert.Equal(t, 1, cache.sets)

	// The first page always recomputes.
	fresh, err := f.s.Recommendation.Recommend(ctx, owner, a, a, 0, 10)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, c2, fresh[0].User.ID)
	assert.Equal(t, 2, cache.sets)
}

func TestRecommendCachedPageSkipsNewFriends(t *testing.T) {
	cache := &memoryRanking{data: map[int][]domain.Ranked{}}
	f := newFixture(t, WithRankingCache(cache))
	ctx := context.Background()
	u := f.users(t, 5)
	a, f1, c1, c2, c3 := u[0], u[1], u[2], u[3], u[4]
	f.befriend(t, a, f1)
	f.befriend(t, f1, c1)
	f.befriend(t, f1, c2)
	f.befriend(t, f1, c3)

	first, err := f.s.Recommendation.Recommend(ctx, owner, a, a, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// c3 sits on the second page of the cached ranking.
	f.befriend(t, a, c3)
	second, err := f.s.Recommendation.Recommend(ctx, owner, a, a, 2, 2)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 1, cache.sets)

	// A ranking that somehow lists the subject keeps it out as well.
	cache.data[a] = []domain.Ranked{{UserID: c1, MutualFriends: 1}, {UserID: a, MutualFriends: 1}, {UserID: c2, MutualFriends: 1}}
	page, err := f.s.Recommendation.Recommend(ctx, owner, a, a, 1, 5)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, c2, page[0].User.ID)
	assert.Equal(t, domain.NotFriend, page[0].User.FriendState)
}
