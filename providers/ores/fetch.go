package ores

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"copypatrol/config"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher fragt das Damaging-Modell des ORES-Scoringdienstes ab.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt eine neue Instanz des ORES-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Scores liefert pro Revisions-ID die Damaging-Wahrscheinlichkeit.
// Revisionen, die ORES nicht kennt (error-Objekt in der Antwort), werden als
// nil eingetragen: nil heißt "nicht bewertet", nicht "unbedenklich". Fehlt der
// scores-Block komplett, ist der Dienst down — dann kommt eine leere Map
// zurück, kein Fehler.
func (f *Fetcher) Scores(ctx context.Context, revisionIDs []int64) (map[int64]*float64, error) {
	scores := make(map[int64]*float64, len(revisionIDs))
	if len(revisionIDs) == 0 {
		return scores, nil
	}

	wiki := f.Config.WikiLang + "wiki"
	reqURL := fmt.Sprintf("%s/v2/scores/%s/damaging/?revids=%s",
		f.Config.ORESBaseURL, wiki, joinIDs(revisionIDs))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ores-anfrage fehlgeschlagen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ores: status %d", resp.StatusCode)
	}

	var parsed scoresResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ores-antwort nicht lesbar: %w", err)
	}
	wikiBlock, ok := parsed.Scores[wiki]
	if parsed.Scores == nil || !ok {
		// ORES ist down
		f.Logger.Warn("ORES hat keinen scores-Block geliefert", zap.String("wiki", wiki))
		return map[int64]*float64{}, nil
	}

	for revStr, value := range wikiBlock.Damaging.Scores {
		revID, err := strconv.ParseInt(revStr, 10, 64)
		if err != nil {
			continue
		}
		if value.Error != nil || value.Probability == nil {
			// Revision nicht gefunden
			scores[revID] = nil
			continue
		}
		p := value.Probability.True
		scores[revID] = &p
	}
	return scores, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, "|")
}
