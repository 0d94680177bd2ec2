package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"copypatrol/models"
)

// Typisierte Fehler der Review-Übergänge.
var (
	// ErrUnauthorized: Übergang ohne angemeldeten Benutzer angefordert.
	ErrUnauthorized = errors.New("review erfordert einen angemeldeten benutzer")
	// ErrStorage: das Persistieren des Übergangs ist fehlgeschlagen.
	ErrStorage = errors.New("review konnte nicht gespeichert werden")
	// ErrInvalidStatus: angeforderter Zielstatus ist kein legaler Übergang.
	ErrInvalidStatus = errors.New("unbekannter review-status")
)

var reviewsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "copypatrol_reviews_total",
		Help: "Total number of persisted review transitions, by resulting status.",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(reviewsCounter)
}

// ReportArchiver legt den Report-Blob eines Records als Beweissicherung ab.
type ReportArchiver interface {
	ArchiveReport(ctx context.Context, record *models.Record) error
}

// ReviewResult ist die Antwort auf einen erfolgreichen Review-Übergang.
type ReviewResult struct {
	Reviewer           string `json:"user"`
	ReviewerProfileURL string `json:"userpage,omitempty"`
	ReviewTimestamp    string `json:"timestamp,omitempty"`
	Status             string `json:"status"`
}

// ReviewService führt die Review-Übergänge aus und persistiert sie.
// Legale Übergänge: open→fixed, open→false sowie das Undo zurück nach open.
type ReviewService struct {
	Store  RecordStore
	Links  *LinkBuilder
	Logger *zap.Logger

	// Account für automatische Reviews
	BotUser string

	// Optionales Beweisarchiv; nil deaktiviert die Archivierung
	Archive ReportArchiver
}

// NewReviewService erstellt den Review-Service.
func NewReviewService(store RecordStore, links *LinkBuilder, botUser string, logger *zap.Logger) *ReviewService {
	return &ReviewService{Store: store, Links: links, BotUser: botUser, Logger: logger}
}

// SetStatus setzt den Review-Status eines Records auf fixed oder false.
// Der Übergang wird als ein einziges atomares Update persistiert; bei einem
// Fehler bleibt der Record unverändert.
func (s *ReviewService) SetStatus(ctx context.Context, id int64, status, actor string, timestamp time.Time) (*ReviewResult, error) {
	if status != models.StatusFixed && status != models.StatusFalse {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if actor == "" {
		return nil, ErrUnauthorized
	}

	timestamp = timestamp.UTC()
	if err := s.Store.UpdateReviewState(ctx, id, status, actor, &timestamp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	reviewsCounter.WithLabelValues(status).Inc()
	s.Logger.Info("Review gespeichert",
		zap.Int64("id", id), zap.String("status", status), zap.String("user", actor))

	if status == models.StatusFixed {
		s.archiveEvidence(ctx, id)
	}

	return &ReviewResult{
		Reviewer:           actor,
		ReviewerProfileURL: s.Links.UserPage(actor),
		ReviewTimestamp:    FormatTimestamp(timestamp),
		Status:             status,
	}, nil
}

// Undo setzt einen Record bedingungslos zurück auf offen und löscht Reviewer
// und Zeitstempel. previousStatus ist nur ein Konsistenzsignal der Oberfläche
// und wird nicht gegen den gespeicherten Zustand geprüft.
func (s *ReviewService) Undo(ctx context.Context, id int64, previousStatus, actor string) (*ReviewResult, error) {
	if actor == "" {
		return nil, ErrUnauthorized
	}

	if err := s.Store.UpdateReviewState(ctx, id, models.StatusOpen, "", nil); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.Logger.Info("Review zurückgenommen",
		zap.Int64("id", id), zap.String("previous_status", previousStatus), zap.String("user", actor))

	return &ReviewResult{Status: models.StatusOpen}, nil
}

// AutoResolve markiert einen Record als false-positive im Namen des
// Bot-Accounts. Dieser Pfad braucht keinen angemeldeten Benutzer — er wird
// vom Aggregator für Whitelist-Editoren und tote Seiten ausgelöst.
func (s *ReviewService) AutoResolve(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.Store.UpdateReviewState(ctx, id, models.StatusFalse, s.BotUser, &now); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	reviewsCounter.WithLabelValues("bot").Inc()
	return nil
}

// archiveEvidence sichert den Report-Blob eines bestätigten Falls ins Archiv.
// Best effort: Fehler werden geloggt, der Review-Übergang ist davon unberührt.
func (s *ReviewService) archiveEvidence(ctx context.Context, id int64) {
	if s.Archive == nil {
		return
	}
	record, err := s.Store.FetchRecordByID(ctx, id)
	if err != nil {
		s.Logger.Warn("Record für Archivierung nicht ladbar", zap.Int64("id", id), zap.Error(err))
		return
	}
	if err := s.Archive.ArchiveReport(ctx, record); err != nil {
		s.Logger.Warn("Report-Archivierung fehlgeschlagen", zap.Int64("id", id), zap.Error(err))
	}
}
