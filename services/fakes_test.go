package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"copypatrol/models"
)

// updateCall protokolliert einen UpdateReviewState-Aufruf auf dem fakeStore.
type updateCall struct {
	id       int64
	status   string
	reviewer string
	ts       *time.Time
}

// fakeStore ist ein In-Memory-RecordStore für die Service-Tests. Updates
// werden protokolliert und auf den gehaltenen Records angewendet, damit ein
// zweiter Aggregate-Durchlauf den persistierten Zustand sieht.
type fakeStore struct {
	mu       sync.Mutex
	records  []models.Record
	projects map[string][]string

	lastQuery RecordQuery
	updates   []updateCall

	fetchErr    error
	updateErr   error
	projectsErr error
}

func (s *fakeStore) FetchRecords(ctx context.Context, q RecordQuery) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = q
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	var out []models.Record
	for _, r := range s.records {
		switch q.Filter {
		case models.FilterOpen:
			if !r.Open() {
				continue
			}
		case models.FilterReviewed:
			if r.Open() {
				continue
			}
		case models.FilterMine:
			if r.StatusUser != q.FilterUser {
				continue
			}
		}
		if q.LastID > 0 && r.ID >= q.LastID {
			continue
		}
		if q.DraftsOnly && r.PageNS != models.NSDraft {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *fakeStore) FetchRecordByID(ctx context.Context, id int64) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			r := s.records[i]
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) UpdateReviewState(ctx context.Context, id int64, status, reviewer string, reviewTimestamp *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Status = status
			s.records[i].StatusUser = reviewer
			s.records[i].ReviewTimestamp = reviewTimestamp
			s.updates = append(s.updates, updateCall{id: id, status: status, reviewer: reviewer, ts: reviewTimestamp})
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeStore) ProjectsFor(ctx context.Context, lang, title string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projectsErr != nil {
		return nil, s.projectsErr
	}
	return s.projects[lang+"/"+title], nil
}

func (s *fakeStore) Leaderboard(ctx context.Context, lang string) (*LeaderboardData, error) {
	return &LeaderboardData{}, nil
}

func (s *fakeStore) Languages(ctx context.Context) ([]string, error) {
	return []string{"en"}, nil
}

func (s *fakeStore) DraftsExist(ctx context.Context, lang string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Lang == lang && r.PageNS == models.NSDraft {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) updateCalls() []updateCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]updateCall, len(s.updates))
	copy(out, s.updates)
	return out
}

// fakeWiki ist ein In-Memory-WikiOracle.
type fakeWiki struct {
	mu sync.Mutex

	editors   map[int64]string
	dead      map[string]bool
	counts    map[string]int
	whitelist []string

	editorsErr   error
	deadErr      error
	countsErr    error
	whitelistErr error

	whitelistCalls int
}

func (w *fakeWiki) RevisionEditors(ctx context.Context, revisionIDs []int64) (map[int64]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.editorsErr != nil {
		return nil, w.editorsErr
	}
	out := make(map[int64]string)
	for _, id := range revisionIDs {
		if user, ok := w.editors[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

func (w *fakeWiki) DeadPages(ctx context.Context, titles []string) (map[string]bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.deadErr != nil {
		return nil, w.deadErr
	}
	out := make(map[string]bool)
	for _, title := range titles {
		if w.dead[title] {
			out[title] = true
		}
	}
	return out, nil
}

func (w *fakeWiki) EditCounts(ctx context.Context, usernames []string) (map[string]int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.countsErr != nil {
		return nil, w.countsErr
	}
	out := make(map[string]int)
	for _, user := range usernames {
		if count, ok := w.counts[user]; ok {
			out[user] = count
		}
	}
	return out, nil
}

func (w *fakeWiki) FetchWhitelist(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.whitelistCalls++
	if w.whitelistErr != nil {
		return nil, w.whitelistErr
	}
	return w.whitelist, nil
}

func (w *fakeWiki) whitelistFetches() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.whitelistCalls
}

// fakeScores ist ein In-Memory-ScoreOracle.
type fakeScores struct {
	mu     sync.Mutex
	scores map[int64]*float64
	err    error
}

func (s *fakeScores) Scores(ctx context.Context, revisionIDs []int64) (map[int64]*float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[int64]*float64)
	for _, id := range revisionIDs {
		if score, ok := s.scores[id]; ok {
			out[id] = score
		}
	}
	return out, nil
}

func floatPtr(v float64) *float64 {
	return &v
}
