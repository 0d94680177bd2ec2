package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"copypatrol/config"
	"copypatrol/models"
)

func testConfig() *config.Config {
	return &config.Config{
		WikipediaURL:  "https://en.wikipedia.org",
		WikiLang:      "en",
		ReportBaseURL: "https://tools.wmflabs.org/eranbot/ithenticate.py",
		BotUser:       "Community Tech bot",
		PageSize:      50,
	}
}

func testRecord(id, diff int64, title string) models.Record {
	return models.Record{
		ID:            id,
		Diff:          diff,
		Lang:          "en",
		PageTitle:     title,
		DiffTimestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestAggregator(store *fakeStore, wiki *fakeWiki, scores *fakeScores) *Aggregator {
	cfg := testConfig()
	logger := zap.NewNop()
	links := &LinkBuilder{WikiBaseURL: cfg.WikipediaURL, ReportBaseURL: cfg.ReportBaseURL}
	return NewAggregator(cfg, store, wiki,
		NewEnrichmentGateway(wiki, scores, logger),
		NewWhitelistCache(wiki.FetchWhitelist, logger),
		NewReviewService(store, links, cfg.BotUser, logger),
		links, logger)
}

func TestAggregateAutoResolvesWhitelistedEditor(t *testing.T) {
	store := &fakeStore{records: []models.Record{
		testRecord(10, 1010, "Alpha"),
		testRecord(9, 1009, "Beta"),
		testRecord(8, 1008, "Gamma"),
	}}
	wiki := &fakeWiki{
		editors:   map[int64]string{1010: "Alice", 1009: "TrustedBot", 1008: "Bob"},
		whitelist: []string{"TrustedBot"},
	}
	agg := newTestAggregator(store, wiki, &fakeScores{})

	out, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterOpen})
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, int64(10), out[0].ID)
	assert.Equal(t, int64(8), out[1].ID)

	updates := store.updateCalls()
	require.Len(t, updates, 1)
	assert.Equal(t, int64(9), updates[0].id)
	assert.Equal(t, models.StatusFalse, updates[0].status)
	assert.Equal(t, "Community Tech bot", updates[0].reviewer)
	require.NotNil(t, updates[0].ts)

	// Zweiter Durchlauf: Record 9 ist bereits geschlossen, kein weiteres Update
	out, err = agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterOpen})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(10), out[0].ID)
	assert.Equal(t, int64(8), out[1].ID)
	assert.Len(t, store.updateCalls(), 1)
}

func TestAggregateAutoResolvesDeadPage(t *testing.T) {
	store := &fakeStore{records: []models.Record{
		testRecord(5, 505, "Living_Page"),
		testRecord(4, 404, "Deleted_Page"),
	}}
	wiki := &fakeWiki{
		editors: map[int64]string{505: "Alice", 404: "Bob"},
		dead:    map[string]bool{"Deleted Page": true},
	}
	agg := newTestAggregator(store, wiki, &fakeScores{})

	out, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterOpen})
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, int64(5), out[0].ID)

	updates := store.updateCalls()
	require.Len(t, updates, 1)
	assert.Equal(t, int64(4), updates[0].id)
	assert.Equal(t, models.StatusFalse, updates[0].status)
}

func TestAggregateAllFilterSkipsAutoResolution(t *testing.T) {
	store := &fakeStore{records: []models.Record{
		testRecord(3, 303, "Alpha"),
		testRecord(2, 202, "Beta"),
	}}
	wiki := &fakeWiki{
		editors:   map[int64]string{303: "TrustedBot", 202: "Bob"},
		whitelist: []string{"TrustedBot"},
	}
	agg := newTestAggregator(store, wiki, &fakeScores{})

	out, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterAll})
	require.NoError(t, err)

	assert.Len(t, out, 2)
	assert.Empty(t, store.updateCalls())
	// Whitelist wird unter all gar nicht erst geholt
	assert.Zero(t, wiki.whitelistFetches())
}

func TestAggregateDraftTitles(t *testing.T) {
	draft := testRecord(7, 707, "My_Draft")
	draft.PageNS = models.NSDraft
	store := &fakeStore{
		records:  []models.Record{draft},
		projects: map[string][]string{"en/Draft:My_Draft": {"Military_history"}},
	}
	wiki := &fakeWiki{editors: map[int64]string{707: "Alice"}}
	agg := newTestAggregator(store, wiki, &fakeScores{})
	links := agg.Links

	out, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterOpen})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "Draft:My Draft", out[0].PageTitle)
	assert.Equal(t, links.PageLink("Draft:My Draft"), out[0].PageLink)
	assert.Equal(t, links.DiffLink("Draft:My Draft", 707), out[0].DiffLink)
	assert.Equal(t, []string{"Military history"}, out[0].WikiProjects)
}

func TestAggregateDraftDeadCheckUsesQualifiedTitle(t *testing.T) {
	draft := testRecord(7, 707, "Gone_Draft")
	draft.PageNS = models.NSDraft
	store := &fakeStore{records: []models.Record{draft}}
	wiki := &fakeWiki{
		editors: map[int64]string{707: "Alice"},
		// Nur der qualifizierte Titel ist als tot bekannt
		dead: map[string]bool{"Draft:Gone Draft": true},
	}
	agg := newTestAggregator(store, wiki, &fakeScores{})

	out, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterOpen})
	require.NoError(t, err)

	assert.Empty(t, out)
	require.Len(t, store.updateCalls(), 1)
	assert.Equal(t, int64(7), store.updateCalls()[0].id)
}

func TestAggregateScoreThreshold(t *testing.T) {
	store := &fakeStore{records: []models.Record{
		testRecord(3, 303, "Alpha"),
		testRecord(2, 202, "Beta"),
		testRecord(1, 101, "Gamma"),
	}}
	wiki := &fakeWiki{editors: map[int64]string{303: "A", 202: "B", 101: "C"}}
	scores := &fakeScores{scores: map[int64]*float64{
		303: floatPtr(0.427), // genau auf der Schwelle: nicht anzeigen
		202: floatPtr(0.43),
		101: nil, // von ORES nicht bewertet
	}}
	agg := newTestAggregator(store, wiki, scores)

	out, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterOpen})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Empty(t, out[0].OresScore)
	assert.Equal(t, "43.00", out[1].OresScore)
	assert.Empty(t, out[2].OresScore)
}

func TestAggregateMineWithoutLoginDegradesToOpen(t *testing.T) {
	store := &fakeStore{records: []models.Record{testRecord(1, 101, "Alpha")}}
	agg := newTestAggregator(store, &fakeWiki{}, &fakeScores{})

	_, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterMine})
	require.NoError(t, err)
	assert.Equal(t, models.FilterOpen, store.lastQuery.Filter)
	assert.Empty(t, store.lastQuery.FilterUser)
}

func TestAggregateUnknownFilterDegradesToOpen(t *testing.T) {
	agg := newTestAggregator(&fakeStore{}, &fakeWiki{}, &fakeScores{})
	assert.Equal(t, models.FilterOpen, agg.ResolveFilter("bogus", "Alice"))
	assert.Equal(t, models.FilterOpen, agg.ResolveFilter("", ""))
	assert.Equal(t, models.FilterMine, agg.ResolveFilter(models.FilterMine, "Alice"))
}

func TestAggregateMineQueriesOwnReviews(t *testing.T) {
	reviewed := testRecord(2, 202, "Beta")
	reviewed.Status = models.StatusFixed
	reviewed.StatusUser = "Alice"
	store := &fakeStore{records: []models.Record{testRecord(3, 303, "Alpha"), reviewed}}
	agg := newTestAggregator(store, &fakeWiki{editors: map[int64]string{202: "Bob"}}, &fakeScores{})

	out, err := agg.Aggregate(context.Background(), AggregateRequest{
		Filter:      models.FilterMine,
		CurrentUser: "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, models.FilterMine, store.lastQuery.Filter)
	assert.Equal(t, "Alice", store.lastQuery.FilterUser)
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].ID)
}

func TestAggregateEditorEnrichment(t *testing.T) {
	store := &fakeStore{records: []models.Record{testRecord(1, 101, "Alpha")}}
	wiki := &fakeWiki{
		editors: map[int64]string{101: "Jane Doe"},
		counts:  map[string]int{"Jane Doe": 1234},
		dead:    map[string]bool{"User talk:Jane Doe": true},
	}
	agg := newTestAggregator(store, wiki, &fakeScores{})
	links := agg.Links

	out, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterOpen})
	require.NoError(t, err)
	require.Len(t, out, 1)

	d := out[0]
	assert.Equal(t, "Jane Doe", d.Editor)
	require.NotNil(t, d.EditCount)
	assert.Equal(t, 1234, *d.EditCount)
	assert.Equal(t, links.UserPage("Jane Doe"), d.EditorPage)
	assert.Equal(t, links.UserTalk("Jane Doe"), d.EditorTalk)
	assert.Equal(t, links.UserContribs("Jane Doe"), d.EditorContribs)
	assert.False(t, d.EditorPageDead)
	assert.True(t, d.EditorTalkDead)
}

func TestAggregateSurvivesEditorLookupFailure(t *testing.T) {
	store := &fakeStore{records: []models.Record{testRecord(1, 101, "Alpha")}}
	wiki := &fakeWiki{editorsErr: errors.New("api down")}
	agg := newTestAggregator(store, wiki, &fakeScores{})

	out, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterOpen})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Editor)
	assert.Nil(t, out[0].EditCount)
}

func TestAggregateStoreFailureIsFatal(t *testing.T) {
	store := &fakeStore{fetchErr: errors.New("connection refused")}
	agg := newTestAggregator(store, &fakeWiki{}, &fakeScores{})

	_, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterOpen})
	assert.Error(t, err)
}

func TestAggregateEmptyPage(t *testing.T) {
	agg := newTestAggregator(&fakeStore{}, &fakeWiki{}, &fakeScores{})

	out, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterOpen})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestAggregateExtractsCopyvioSources(t *testing.T) {
	r := testRecord(1, 101, "Alpha")
	r.Report = "Report for Alpha\n* 55% 12 words at https://example.com/a\n* 31% 4 words at https://example.org/b"
	store := &fakeStore{records: []models.Record{r}}
	agg := newTestAggregator(store, &fakeWiki{editors: map[int64]string{101: "A"}}, &fakeScores{})

	out, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterOpen})
	require.NoError(t, err)
	require.Len(t, out, 1)

	require.Len(t, out[0].Copyvios, 2)
	assert.Equal(t, 55, out[0].Copyvios[0].Percentage)
	assert.Equal(t, "https://example.com/a", out[0].Copyvios[0].URL)
}

func TestAggregateReviewedRecordFields(t *testing.T) {
	ts := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	r := testRecord(1, 101, "Alpha")
	r.Status = models.StatusFixed
	r.StatusUser = "Reviewer One"
	r.ReviewTimestamp = &ts
	store := &fakeStore{records: []models.Record{r}}
	agg := newTestAggregator(store, &fakeWiki{editors: map[int64]string{101: "A"}}, &fakeScores{})

	out, err := agg.Aggregate(context.Background(), AggregateRequest{Filter: models.FilterAll})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, agg.Links.UserPage("Reviewer One"), out[0].ReviewedByURL)
	assert.Equal(t, "2024-03-02 09:30", out[0].ReviewTimestamp)
	assert.Equal(t, "2024-03-01 12:00", out[0].DiffTimestamp)
}
