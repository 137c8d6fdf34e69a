package crud

import (
	"context"
	"log/slog"
	"sort"

	"odinbook/domain"
)

// Page size bounds shared by every paginated listing.
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// RecommendationService suggests friends of friends, most mutual friends first.
// It implements the domain.RecommendationService interface.
type RecommendationService struct {
	graph friendGraph
	users userLoader
	// cache is optional. Without it every page recomputes the full ranking.
	cache domain.RankingCache
}

// friendGraph is the part of FriendService the recommendation engine reads from.
type friendGraph interface {
	FriendIDs(ctx context.Context, userID int) ([]int, error)
	FriendIDsOf(ctx context.Context, userIDs []int) (map[int][]int, error)
	Annotate(ctx context.Context, viewerID int, users []domain.User) error
}

// userLoader loads many accounts at once. UserService implements it.
type userLoader interface {
	ByIDs(ctx context.Context, ids []int) ([]domain.User, error)
}

// NewRecommendationService returns an instance of RecommendationService.
func NewRecommendationService(graph friendGraph, users userLoader, cache domain.RankingCache) *RecommendationService {
	return &RecommendationService{
		graph: graph,
		users: users,
		cache: cache,
	}
}

var _ domain.RecommendationService = &RecommendationService{}

// Recommend returns one page of the subject's ranked friend-of-friend suggestions.
//
// The first page always recomputes the ranking and, if a cache is configured,
// stores it. Later pages are cut from the cached ranking while it lives, so that
// a page boundary does not move when the graph changes between two calls.
// Entries that became friends of the subject since are left out of such pages.
// Without the cache, or once it expired, pages are cut from a fresh ranking and
// may skip or repeat entries under concurrent graph changes.
func (rs *RecommendationService) Recommend(ctx context.Context, authz domain.Authorization, viewerID, subjectID, offset, limit int) ([]domain.Recommendation, error) {
	if err := authorize(authz, "see these recommendations"); err != nil {
		return nil, err
	}
	offset, limit = clampPage(offset, limit)

	ranking, cached, err := rs.ranking(ctx, subjectID, offset)
	if err != nil {
		return nil, err
	}
	page := paginate(ranking, offset, limit)
	if cached {
		if page, err = rs.dropFriends(ctx, subjectID, page); err != nil {
			return nil, err
		}
	}
	if len(page) == 0 {
		return []domain.Recommendation{}, nil
	}

	ids := make([]int, len(page))
	for i, r := range page {
		ids[i] = r.UserID
	}
	users, err := rs.users.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := rs.graph.Annotate(ctx, viewerID, users); err != nil {
		return nil, err
	}
	byID := make(map[int]*domain.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	recs := make([]domain.Recommendation, 0, len(page))
	for _, r := range page {
		// Accounts deleted after the ranking was taken are left out.
		u, ok := byID[r.UserID]
		if !ok {
			continue
		}
		recs = append(recs, domain.Recommendation{User: u, MutualFriends: r.MutualFriends})
	}
	return recs, nil
}

// ranking returns the full ranking of the subject, from the cache when allowed.
// The flag reports whether the ranking came from the cache.
func (rs *RecommendationService) ranking(ctx context.Context, subjectID, offset int) ([]domain.Ranked, bool, error) {
	if rs.cache != nil && offset > 0 {
		cached, ok, err := rs.cache.Get(ctx, subjectID)
		if err != nil {
			slog.WarnContext(ctx, "reading ranking cache", "subject", subjectID, "error", err)
		} else if ok {
			return cached, true, nil
		}
	}

	friends, err := rs.graph.FriendIDs(ctx, subjectID)
	if err != nil {
		return nil, false, err
	}
	friendsOf, err := rs.graph.FriendIDsOf(ctx, friends)
	if err != nil {
		return nil, false, err
	}
	ranking := rankCandidates(subjectID, friends, friendsOf)

	if rs.cache != nil {
		if err := rs.cache.Set(ctx, subjectID, ranking); err != nil {
			slog.WarnContext(ctx, "writing ranking cache", "subject", subjectID, "error", err)
		}
	}
	return ranking, false, nil
}

// dropFriends removes the subject and its current friends from a page cut from a
// cached ranking. Positions stay those of the snapshot, so the page may come out
// shorter than requested.
func (rs *RecommendationService) dropFriends(ctx context.Context, subjectID int, page []domain.Ranked) ([]domain.Ranked, error) {
	if len(page) == 0 {
		return page, nil
	}
	friends, err := rs.graph.FriendIDs(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	isFriend := toSet(friends)
	kept := make([]domain.Ranked, 0, len(page))
	for _, r := range page {
		if r.UserID == subjectID || isFriend[r.UserID] {
			continue
		}
		kept = append(kept, r)
	}
	return kept, nil
}

// rankCandidates is the two-hop traversal. Candidates are the friends of the
// subject's friends, minus the subject and its friends, each counted once no
// matter how many paths reach it. A candidate's mutual friend count is the number
// of the subject's friends whose list contains it, which equals the size of the
// intersection of both friend lists because lists are symmetric.
// The result is sorted by mutual friends, descending, then by id, ascending.
func rankCandidates(subjectID int, friends []int, friendsOf map[int][]int) []domain.Ranked {
	isFriend := toSet(friends)
	mutual := make(map[int]int)
	for _, f := range friends {
		for _, c := range friendsOf[f] {
			if c == subjectID || isFriend[c] {
				continue
			}
			mutual[c]++
		}
	}

	ranking := make([]domain.Ranked, 0, len(mutual))
	for id, n := range mutual {
		ranking = append(ranking, domain.Ranked{UserID: id, MutualFriends: n})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].MutualFriends != ranking[j].MutualFriends {
			return ranking[i].MutualFriends > ranking[j].MutualFriends
		}
		return ranking[i].UserID < ranking[j].UserID
	})
	return ranking
}

// clampPage applies the default and maximum page size.
func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return offset, limit
}

func paginate(ranking []domain.Ranked, offset, limit int) []domain.Ranked {
	if offset >= len(ranking) {
		return nil
	}
	end := offset + limit
	if end > len(ranking) {
		end = len(ranking)
	}
	return ranking[offset:end]
}
