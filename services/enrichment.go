package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"copypatrol/providers"
)

// Enrichment ist das Ergebnis eines Fan-outs über die drei externen
// Anreicherungsquellen. Alle Maps sind nie nil; eine ausgefallene Quelle
// hinterlässt nur eine leere Map.
type Enrichment struct {
	// Titel, die im Wiki nicht (mehr) existieren
	DeadPages map[string]bool
	// Editcount pro Benutzername
	EditCounts map[string]int
	// Damaging-Wahrscheinlichkeit pro Revision; nil = nicht bewertet
	RiskScores map[int64]*float64
}

// EnrichmentGateway fragt Dead-Page-Status, Editcounts und Risiko-Scores
// parallel ab. Die drei Teilabfragen sind unabhängig; der Ausfall einer
// Quelle darf die anderen weder blockieren noch scheitern lassen.
type EnrichmentGateway struct {
	Wiki   providers.WikiOracle
	Scores providers.ScoreOracle
	Logger *zap.Logger
}

// NewEnrichmentGateway erstellt ein Gateway über den beiden Orakeln.
func NewEnrichmentGateway(wiki providers.WikiOracle, scores providers.ScoreOracle, logger *zap.Logger) *EnrichmentGateway {
	return &EnrichmentGateway{Wiki: wiki, Scores: scores, Logger: logger}
}

// Enrich führt die drei Teilabfragen nebenläufig aus und kehrt erst zurück,
// wenn alle abgeschlossen oder einzeln gescheitert sind (Barrier-Join, keine
// Pipeline). Die Eingaben müssen vom Aufrufer bereits dedupliziert sein —
// das Gateway stellt pro Batch genau eine Anfrage je Quelle.
func (g *EnrichmentGateway) Enrich(ctx context.Context, pageTitles, usernames []string, revisionIDs []int64) *Enrichment {
	result := &Enrichment{
		DeadPages:  map[string]bool{},
		EditCounts: map[string]int{},
		RiskScores: map[int64]*float64{},
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		dead, err := g.Wiki.DeadPages(ctx, pageTitles)
		if err != nil {
			g.Logger.Warn("Dead-Page-Abfrage ausgefallen", zap.Error(err))
			return
		}
		if dead != nil {
			result.DeadPages = dead
		}
	}()

	go func() {
		defer wg.Done()
		counts, err := g.Wiki.EditCounts(ctx, usernames)
		if err != nil {
			g.Logger.Warn("Editcount-Abfrage ausgefallen", zap.Error(err))
			return
		}
		if counts != nil {
			result.EditCounts = counts
		}
	}()

	go func() {
		defer wg.Done()
		scores, err := g.Scores.Scores(ctx, revisionIDs)
		if err != nil {
			g.Logger.Warn("Score-Abfrage ausgefallen", zap.Error(err))
			return
		}
		if scores != nil {
			result.RiskScores = scores
		}
	}()

	wg.Wait()
	return result
}
