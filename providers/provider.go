package providers

import "context"

// WikiOracle bündelt alle Abfragen gegen das Ziel-Wiki, die für die
// Anreicherung der Records gebraucht werden. Alle Batch-Methoden erwarten
// bereits deduplizierte Eingaben.
type WikiOracle interface {
	// RevisionEditors liefert pro Revisions-ID den Benutzernamen des Editors.
	RevisionEditors(ctx context.Context, revisionIDs []int64) (map[int64]string, error)

	// DeadPages liefert die Teilmenge der Titel, die im Wiki nicht existieren.
	DeadPages(ctx context.Context, titles []string) (map[string]bool, error)

	// EditCounts liefert pro Benutzername die Anzahl der Edits.
	EditCounts(ctx context.Context, usernames []string) (map[string]int, error)

	// FetchWhitelist holt die gepflegte Liste reviewbefreiter Editoren.
	FetchWhitelist(ctx context.Context) ([]string, error)
}

// ScoreOracle liefert maschinelle Damaging-Wahrscheinlichkeiten pro Revision.
// nil bedeutet "nicht bewertet", nicht "unbedenklich". Ein Komplettausfall des
// Dienstes ergibt eine leere Map, keinen Fehler.
type ScoreOracle interface {
	Scores(ctx context.Context, revisionIDs []int64) (map[int64]*float64, error)
}
