package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"copypatrol/models"
	"copypatrol/services"
)

// reportCutoff: Records vor diesem Datum stammen aus einer früheren
// Bot-Generation mit anderem Report-Format und werden nie ausgeliefert.
var reportCutoff = time.Date(2016, 6, 20, 0, 0, 0, 0, time.UTC)

// leaderboardSize ist die Anzahl Zeilen pro Leaderboard-Zeitraum.
const leaderboardSize = 10

// RecordStore ist die gorm-Implementierung des Primärspeichers.
type RecordStore struct {
	DB     *gorm.DB
	Logger *zap.Logger

	// Bot-Account; seine automatischen Reviews zählen nicht fürs Leaderboard
	BotUser string
}

// NewRecordStore erstellt den Store über der Datenbankverbindung.
func NewRecordStore(db *gorm.DB, botUser string, logger *zap.Logger) *RecordStore {
	return &RecordStore{DB: db, BotUser: botUser, Logger: logger}
}

// FetchRecords liefert eine Seite Records, absteigend nach ID. Der Cursor
// LastID schneidet strikt unterhalb ab; eine per Revision angeforderte Zeile
// wird zusätzlich eingemischt, ohne Duplikate zu erzeugen.
func (s *RecordStore) FetchRecords(ctx context.Context, q services.RecordQuery) ([]models.Record, error) {
	db := s.DB.WithContext(ctx).Model(&models.Record{}).
		Where("diff_timestamp > ?", reportCutoff)
	if q.Lang != "" {
		db = db.Where("lang = ?", q.Lang)
	}

	switch q.Filter {
	case models.FilterOpen:
		db = db.Where("status = ''")
	case models.FilterReviewed:
		db = db.Where("status <> ''")
	case models.FilterMine:
		db = db.Where("status_user = ?", q.FilterUser)
	}

	if q.LastID > 0 {
		db = db.Where("id < ?", q.LastID)
	}
	if q.DraftsOnly {
		db = db.Where("page_ns = ?", models.NSDraft)
	}
	if len(q.WikiProjects) > 0 {
		sub := s.DB.Model(&models.WikiProject{}).
			Select("wp_page_title").
			Where("wp_lang = ? AND wp_project IN ?", q.Lang, q.WikiProjects)
		db = db.Where("page_title IN (?)", sub)
	}
	if q.SearchText != "" {
		// Titel liegen in der Datenbank mit Unterstrichen
		search := strings.ReplaceAll(q.SearchText, " ", "_")
		if q.SearchExact {
			db = db.Where("page_title = ?", search)
		} else {
			db = db.Where("page_title LIKE ?", "%"+search+"%")
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	var records []models.Record
	if err := db.Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}

	if q.Revision > 0 {
		records, _ = s.mergeRevision(ctx, records, q.Revision)
	}
	return records, nil
}

// mergeRevision mischt den Record der angefragten Revision in die Seite ein.
// Fehlt die Revision oder scheitert die Abfrage, bleibt die Seite unverändert.
func (s *RecordStore) mergeRevision(ctx context.Context, records []models.Record, revision int64) ([]models.Record, error) {
	for _, r := range records {
		if r.Diff == revision {
			return records, nil
		}
	}

	var extra models.Record
	err := s.DB.WithContext(ctx).
		Where("diff = ? AND diff_timestamp > ?", revision, reportCutoff).
		First(&extra).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.Logger.Warn("Revision nicht einmischbar", zap.Int64("revision", revision), zap.Error(err))
		}
		return records, err
	}

	records = append(records, extra)
	sort.Slice(records, func(i, j int) bool { return records[i].ID > records[j].ID })
	return records, nil
}

// FetchRecordByID liefert einen einzelnen Record oder services.ErrNotFound.
func (s *RecordStore) FetchRecordByID(ctx context.Context, id int64) (*models.Record, error) {
	var record models.Record
	err := s.DB.WithContext(ctx).First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateReviewState schreibt (status, status_user, review_timestamp) als ein
// einziges Update. reviewTimestamp nil setzt die Spalte auf NULL; eine
// unbekannte ID meldet services.ErrNotFound.
func (s *RecordStore) UpdateReviewState(ctx context.Context, id int64, status, reviewer string, reviewTimestamp *time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.Record{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           status,
			"status_user":      reviewer,
			"review_timestamp": reviewTimestamp,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

// ProjectsFor liefert die WikiProjekte einer Seite, alphabetisch sortiert.
// Der Titel wird in der Datenbankform mit Unterstrichen erwartet.
func (s *RecordStore) ProjectsFor(ctx context.Context, lang, title string) ([]string, error) {
	var projects []string
	err := s.DB.WithContext(ctx).Model(&models.WikiProject{}).
		Where("wp_lang = ? AND wp_page_title = ?", lang, title).
		Order("wp_project ASC").
		Pluck("wp_project", &projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// Leaderboard liefert die aktivsten Reviewer über drei Zeiträume. Der
// Bot-Account wird ausgeschlossen, seine Auto-Reviews sind keine Leistung.
func (s *RecordStore) Leaderboard(ctx context.Context, lang string) (*services.LeaderboardData, error) {
	now := time.Now().UTC()

	week, err := s.topReviewers(ctx, lang, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	month, err := s.topReviewers(ctx, lang, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	all, err := s.topReviewers(ctx, lang, time.Time{})
	if err != nil {
		return nil, err
	}

	return &services.LeaderboardData{LastWeek: week, LastMonth: month, AllTime: all}, nil
}

func (s *RecordStore) topReviewers(ctx context.Context, lang string, since time.Time) ([]services.LeaderboardEntry, error) {
	// "user" ist in Postgres reserviert, daher eigene Scan-Struktur
	type reviewerRow struct {
		Reviewer string
		Reviews  int
	}

	db := s.DB.WithContext(ctx).Model(&models.Record{}).
		Select("status_user AS reviewer, COUNT(*) AS reviews").
		Where("status_user <> '' AND status_user <> ?", s.BotUser)
	if lang != "" {
		db = db.Where("lang = ?", lang)
	}
	if !since.IsZero() {
		db = db.Where("review_timestamp >= ?", since)
	}

	var rows []reviewerRow
	err := db.Group("status_user").
		Order("reviews DESC, reviewer ASC").
		Limit(leaderboardSize).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]services.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, services.LeaderboardEntry{User: row.Reviewer, Count: row.Reviews})
	}
	return entries, nil
}

// Languages liefert alle Sprachcodes, zu denen Records existieren.
func (s *RecordStore) Languages(ctx context.Context) ([]string, error) {
	var langs []string
	err := s.DB.WithContext(ctx).Model(&models.Record{}).
		Distinct().
		Order("lang ASC").
		Pluck("lang", &langs).Error
	if err != nil {
		return nil, err
	}
	return langs, nil
}

// DraftsExist meldet, ob die Sprache Records im Draft-Namespace hat. Steuert,
// ob die Oberfläche den Drafts-Filter überhaupt anbietet.
func (s *RecordStore) DraftsExist(ctx context.Context, lang string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Record{}).
		Where("lang = ? AND page_ns = ?", lang, models.NSDraft).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
