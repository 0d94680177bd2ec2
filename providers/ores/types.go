package ores

import "encoding/json"

// scoresResponse ist die Antwort der ORES v2 Scores-API. Pro Revision kommt
// entweder ein probability-Objekt oder ein error-Objekt.
type scoresResponse struct {
	Scores map[string]wikiScores `json:"scores"`
}

type wikiScores struct {
	Damaging struct {
		Scores map[string]revisionScore `json:"scores"`
	} `json:"damaging"`
}

type revisionScore struct {
	Error       *json.RawMessage `json:"error,omitempty"`
	Probability *struct {
		True  float64 `json:"true"`
		False float64 `json:"false"`
	} `json:"probability,omitempty"`
}
