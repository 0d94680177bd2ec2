package services

import (
	"context"
	"errors"
	"time"

	"copypatrol/models"
)

// Fehler des Storage-Layers.
var ErrNotFound = errors.New("record nicht gefunden")

// RecordQuery beschreibt eine Seitenabfrage auf die Record-Tabelle.
// Alle Felder sind explizit und typisiert; der Nullwert bedeutet "kein Filter".
type RecordQuery struct {
	// Aufgelöster Filter (all, open, reviewed, mine)
	Filter string
	// Nur Reviews dieses Benutzers (für Filter mine)
	FilterUser string
	// Sprachcode des Wikis
	Lang string
	// Cursor: liefert nur Records mit ID strikt kleiner als LastID. 0 = Anfang.
	LastID int64
	// Maximale Anzahl Records
	Limit int
	// Nur Records aus dem Draft-Namespace
	DraftsOnly bool
	// Nur Records, deren Seite einem dieser WikiProjekte angehört
	WikiProjects []string
	// Suche nach Seitentitel (Teilstring bzw. exakt)
	SearchText  string
	SearchExact bool
	// Zusätzlich diese Revision holen und in die Seite einmischen
	Revision int64
}

// RecordStore ist die Schnittstelle zum Primärspeicher der Records.
type RecordStore interface {
	// FetchRecords liefert eine Seite Records, absteigend nach ID sortiert.
	FetchRecords(ctx context.Context, q RecordQuery) ([]models.Record, error)

	// FetchRecordByID liefert einen einzelnen Record oder ErrNotFound.
	FetchRecordByID(ctx context.Context, id int64) (*models.Record, error)

	// UpdateReviewState persistiert (status, reviewer, review_timestamp) als
	// ein einziges atomares Update. reviewTimestamp nil löscht den Zeitstempel.
	UpdateReviewState(ctx context.Context, id int64, status, reviewer string, reviewTimestamp *time.Time) error

	// ProjectsFor liefert die WikiProjekte einer Seite, alphabetisch sortiert.
	ProjectsFor(ctx context.Context, lang, title string) ([]string, error)

	// Leaderboard liefert die aktivsten Reviewer (7 Tage, 30 Tage, gesamt).
	Leaderboard(ctx context.Context, lang string) (*LeaderboardData, error)

	// Languages liefert die Sprachcodes, zu denen Records existieren.
	Languages(ctx context.Context) ([]string, error)

	// DraftsExist meldet, ob es für die Sprache Records im Draft-Namespace gibt.
	DraftsExist(ctx context.Context, lang string) (bool, error)
}

// LeaderboardEntry ist eine Zeile der Reviewer-Statistik.
type LeaderboardEntry struct {
	User  string `json:"user"`
	Count int    `json:"count"`
}

// LeaderboardData bündelt die drei Zeiträume der Reviewer-Statistik.
type LeaderboardData struct {
	LastWeek  []LeaderboardEntry `json:"last_week"`
	LastMonth []LeaderboardEntry `json:"last_month"`
	AllTime   []LeaderboardEntry `json:"all_time"`
}
