package models

import "time"

// Review-Status eines Records. Ein leerer Status bedeutet "offen".
const (
	StatusOpen  = ""
	StatusFixed = "fixed"
	StatusFalse = "false"
)

// Filter für die Record-Auslieferung.
const (
	FilterAll      = "all"
	FilterOpen     = "open"
	FilterReviewed = "reviewed"
	FilterMine     = "mine"
)

// NSDraft ist der Namespace für Entwürfe. Titel aus diesem Namespace werden
// vor jeder titelbasierten Abfrage mit "Draft:" qualifiziert.
const NSDraft = 118

// Record repräsentiert einen automatisch gemeldeten, potenziellen
// Copyright-Verstoß in einem einzelnen Edit.
type Record struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Betroffene Seite
	Lang      string `json:"lang" gorm:"index;not null;default:'en'"`
	PageTitle string `json:"page_title" gorm:"index;not null"`
	PageNS    int    `json:"page_ns" gorm:"not null;default:0"`

	// Herkunft des Edits
	Diff          int64     `json:"diff" gorm:"column:diff;index;not null"`
	DiffTimestamp time.Time `json:"diff_timestamp"`

	// Roh-Report des externen Ähnlichkeitstools
	Report string `json:"report,omitempty" gorm:"type:text"`

	// Review-Zustand. Invariante: Status == "" genau dann, wenn StatusUser == "".
	Status          string     `json:"status" gorm:"index;not null;default:''"`
	StatusUser      string     `json:"status_user" gorm:"index;not null;default:''"`
	ReviewTimestamp *time.Time `json:"review_timestamp,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Record) TableName() string {
	return "copyright_diffs"
}

// Open meldet, ob der Record noch keine Review-Entscheidung hat.
func (r *Record) Open() bool {
	return r.Status == StatusOpen
}

// SourceMatch ist ein einzelner Treffer aus dem Ähnlichkeitsreport:
// Übereinstimmungsgrad, Fundstellenanzahl und Quell-URL.
type SourceMatch struct {
	Percentage int    `json:"percentage"`
	Count      int    `json:"count"`
	URL        string `json:"url"`
}

// ValidFilter prüft, ob der übergebene Filterwert bekannt ist.
func ValidFilter(filter string) bool {
	switch filter {
	case FilterAll, FilterOpen, FilterReviewed, FilterMine:
		return true
	}
	return false
}
