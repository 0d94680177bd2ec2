package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnrichCollectsAllSources(t *testing.T) {
	wiki := &fakeWiki{
		dead:   map[string]bool{"Gone Page": true},
		counts: map[string]int{"Alice": 42},
	}
	scores := &fakeScores{scores: map[int64]*float64{101: floatPtr(0.9)}}
	gateway := NewEnrichmentGateway(wiki, scores, zap.NewNop())

	enr := gateway.Enrich(context.Background(),
		[]string{"Gone Page", "Alive Page"}, []string{"Alice"}, []int64{101})

	assert.True(t, enr.DeadPages["Gone Page"])
	assert.False(t, enr.DeadPages["Alive Page"])
	assert.Equal(t, 42, enr.EditCounts["Alice"])
	require.NotNil(t, enr.RiskScores[101])
	assert.InDelta(t, 0.9, *enr.RiskScores[101], 1e-9)
}

func TestEnrichIsolatesSingleFailure(t *testing.T) {
	wiki := &fakeWiki{
		deadErr: errors.New("api down"),
		counts:  map[string]int{"Alice": 42},
	}
	scores := &fakeScores{scores: map[int64]*float64{101: floatPtr(0.5)}}
	gateway := NewEnrichmentGateway(wiki, scores, zap.NewNop())

	enr := gateway.Enrich(context.Background(),
		[]string{"Some Page"}, []string{"Alice"}, []int64{101})

	// Die ausgefallene Quelle hinterlässt eine leere Map, die anderen liefern
	assert.NotNil(t, enr.DeadPages)
	assert.Empty(t, enr.DeadPages)
	assert.Equal(t, 42, enr.EditCounts["Alice"])
	require.NotNil(t, enr.RiskScores[101])
}

func TestEnrichSurvivesTotalFailure(t *testing.T) {
	wiki := &fakeWiki{
		deadErr:   errors.New("down"),
		countsErr: errors.New("down"),
	}
	scores := &fakeScores{err: errors.New("down")}
	gateway := NewEnrichmentGateway(wiki, scores, zap.NewNop())

	enr := gateway.Enrich(context.Background(), []string{"A"}, []string{"B"}, []int64{1})

	assert.NotNil(t, enr.DeadPages)
	assert.NotNil(t, enr.EditCounts)
	assert.NotNil(t, enr.RiskScores)
	assert.Empty(t, enr.DeadPages)
	assert.Empty(t, enr.EditCounts)
	assert.Empty(t, enr.RiskScores)
}

func TestEnrichEmptyInputs(t *testing.T) {
	gateway := NewEnrichmentGateway(&fakeWiki{}, &fakeScores{}, zap.NewNop())

	enr := gateway.Enrich(context.Background(), nil, nil, nil)

	assert.NotNil(t, enr.DeadPages)
	assert.NotNil(t, enr.EditCounts)
	assert.NotNil(t, enr.RiskScores)
}
