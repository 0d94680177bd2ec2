package services

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"copypatrol/config"
	"copypatrol/models"
	"copypatrol/providers"
)

// oresDisplayThreshold: Scores bis einschließlich dieser Schwelle werden gar
// nicht angezeigt (weggelassen, nicht genullt), um keine falsche Sicherheit
// zu suggerieren.
const oresDisplayThreshold = 0.427

var autoResolvedCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "copypatrol_auto_resolved_records_total",
		Help: "Total number of records auto-resolved by the bot during aggregation.",
	},
)

func init() {
	prometheus.MustRegister(autoResolvedCounter)
}

// AggregateRequest sind die Parameter einer Seitenabfrage, wie sie vom
// Routing-Layer hereinkommen. Unbekannte oder unzulässige Werte werden bei
// der Auflösung degradiert, nie abgelehnt.
type AggregateRequest struct {
	// Angefragter Filter; unbekannte Werte und mine ohne Benutzer → open
	Filter string
	// Angemeldeter Benutzer; leer = anonym
	CurrentUser string
	// Cursor: ID des letzten Records der Vorseite. 0 = Anfang.
	LastID int64
	// Nur Draft-Namespace
	DraftsOnly bool
	// Nur Seiten dieser WikiProjekte
	WikiProjects []string
	// Titelsuche
	SearchText  string
	SearchExact bool
	// Zusätzlich diese Revision in die Seite einmischen
	Revision int64
	// Seitengröße; 0 = konfigurierter Default
	PageSize int
}

// requestScope ist der einmal am Eintritt berechnete, request-weite Zustand.
// Er ersetzt verstecktes Memoisieren: alle Schritte lesen denselben Scope.
type requestScope struct {
	filter   string
	user     string
	pageSize int
}

// DisplayRecord ist ein anzeigefertiger Record: der persistierte Kern plus
// die request-weise angereicherten, nie persistierten Projektionsfelder.
type DisplayRecord struct {
	models.Record

	// Formatierte Zeitstempel verdrängen die Rohwerte in der Ausgabe.
	DiffTimestamp   string `json:"diff_timestamp"`
	ReviewTimestamp string `json:"review_timestamp,omitempty"`

	PageLink    string `json:"page_link"`
	DiffLink    string `json:"diff_link"`
	HistoryLink string `json:"history_link"`
	ReportLink  string `json:"turnitin_report"`

	Copyvios []models.SourceMatch `json:"copyvios"`

	Editor         string `json:"editor,omitempty"`
	EditCount      *int   `json:"editcount,omitempty"`
	EditorPage     string `json:"editor_page,omitempty"`
	EditorTalk     string `json:"editor_talk,omitempty"`
	EditorContribs string `json:"editor_contribs,omitempty"`
	EditorPageDead bool   `json:"editor_page_dead"`
	EditorTalkDead bool   `json:"editor_talk_dead"`

	PageDead     bool     `json:"page_dead"`
	WikiProjects []string `json:"wikiprojects"`

	// Damaging-Score in Prozent, zwei Nachkommastellen; leer = kein oder zu
	// niedriger Score
	OresScore string `json:"ores_score,omitempty"`

	ReviewedByURL string `json:"reviewed_by_url,omitempty"`
}

// Aggregator baut aus den rohen Records die anzeigefertige Seite: Storage-
// Abfrage, Batch-Anreicherung, Auto-Resolution und Merge.
type Aggregator struct {
	Config    *config.Config
	Store     RecordStore
	Wiki      providers.WikiOracle
	Gateway   *EnrichmentGateway
	Whitelist *WhitelistCache
	Review    *ReviewService
	Links     *LinkBuilder
	Logger    *zap.Logger
}

// NewAggregator erstellt den Aggregator über seinen Kollaborateuren.
func NewAggregator(cfg *config.Config, store RecordStore, wiki providers.WikiOracle,
	gateway *EnrichmentGateway, whitelist *WhitelistCache, review *ReviewService,
	links *LinkBuilder, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		Config:    cfg,
		Store:     store,
		Wiki:      wiki,
		Gateway:   gateway,
		Whitelist: whitelist,
		Review:    review,
		Links:     links,
		Logger:    logger,
	}
}

// ResolveFilter löst den angefragten Filter auf: mine ohne angemeldeten
// Benutzer und unbekannte Werte degradieren zu open.
func (a *Aggregator) ResolveFilter(filter, currentUser string) string {
	if filter == "" || !models.ValidFilter(filter) {
		return models.FilterOpen
	}
	if filter == models.FilterMine && currentUser == "" {
		return models.FilterOpen
	}
	return filter
}

func (a *Aggregator) newScope(req AggregateRequest) requestScope {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = a.Config.PageSize
	}
	return requestScope{
		filter:   a.ResolveFilter(req.Filter, req.CurrentUser),
		user:     req.CurrentUser,
		pageSize: pageSize,
	}
}

// Aggregate liefert eine Seite anzeigefertiger Records, absteigend nach ID.
// Ein Storage-Fehler ist fatal für den Request; Ausfälle der Anreicherungs-
// quellen degradieren still. Auto-aufgelöste Records werden entfernt, nie
// umsortiert.
func (a *Aggregator) Aggregate(ctx context.Context, req AggregateRequest) ([]DisplayRecord, error) {
	scope := a.newScope(req)
	log := a.Logger.With(zap.String("filter", scope.filter))

	query := RecordQuery{
		Filter:       scope.filter,
		Lang:         a.Config.WikiLang,
		LastID:       req.LastID,
		Limit:        scope.pageSize,
		DraftsOnly:   req.DraftsOnly,
		WikiProjects: req.WikiProjects,
		SearchText:   req.SearchText,
		SearchExact:  req.SearchExact,
		Revision:     req.Revision,
	}
	if scope.filter == models.FilterMine {
		query.FilterUser = scope.user
	}

	records, err := a.Store.FetchRecords(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("records nicht ladbar: %w", err)
	}
	if len(records) == 0 {
		return []DisplayRecord{}, nil
	}

	// Batch-Eingaben sammeln: ein Enrichment-Aufruf pro Seite, nie pro Record.
	diffIDs := make([]int64, 0, len(records))
	titleSet := make(map[string]bool)
	pageTitles := make([]string, 0, len(records)*3)
	addTitle := func(title string) {
		if !titleSet[title] {
			titleSet[title] = true
			pageTitles = append(pageTitles, title)
		}
	}
	for _, r := range records {
		diffIDs = append(diffIDs, r.Diff)
		addTitle(RemoveUnderscores(qualifiedTitle(&r)))
	}

	editors, err := a.Wiki.RevisionEditors(ctx, diffIDs)
	if err != nil {
		// Ohne Editoren bleiben die Editor-Felder leer; die Seite kommt trotzdem.
		log.Warn("Revisions-Editoren nicht abrufbar", zap.Error(err))
		editors = map[int64]string{}
	}

	userSet := make(map[string]bool)
	usernames := make([]string, 0, len(editors))
	for _, r := range records {
		editor := editors[r.Diff]
		if editor == "" || userSet[editor] {
			continue
		}
		userSet[editor] = true
		usernames = append(usernames, editor)
		addTitle("User:" + editor)
		addTitle("User talk:" + editor)
	}

	enrichment := a.Gateway.Enrich(ctx, pageTitles, usernames, diffIDs)

	var whitelist map[string]bool
	if scope.filter == models.FilterOpen {
		whitelist = a.Whitelist.Get(ctx)
	}

	out := make([]DisplayRecord, 0, len(records))
	for _, r := range records {
		editor := editors[r.Diff]
		dbTitle := qualifiedTitle(&r)
		displayTitle := RemoveUnderscores(dbTitle)
		pageDead := enrichment.DeadPages[displayTitle]

		// Auto-Resolution: Whitelist-Editor oder tote Seite wird im Namen des
		// Bots geschlossen und nicht als offen angezeigt. Gilt nur für den
		// aufgelösten Filter open; unter all bleiben die Fälle auditierbar.
		if scope.filter == models.FilterOpen && r.Open() &&
			((editor != "" && whitelist[editor]) || pageDead) {
			if err := a.Review.AutoResolve(ctx, r.ID); err != nil {
				log.Error("Auto-Resolution fehlgeschlagen", zap.Int64("id", r.ID), zap.Error(err))
			}
			autoResolvedCounter.Inc()
			continue
		}

		d := DisplayRecord{Record: r}
		d.Record.PageTitle = displayTitle
		d.PageDead = pageDead
		d.DiffTimestamp = FormatTimestamp(r.DiffTimestamp)
		d.PageLink = a.Links.PageLink(displayTitle)
		d.DiffLink = a.Links.DiffLink(displayTitle, r.Diff)
		d.HistoryLink = a.Links.HistoryLink(displayTitle)
		d.ReportLink = a.Links.ReportLink(r.ID)
		d.Copyvios = ExtractSources(r.Report)

		if editor != "" {
			d.Editor = editor
			if count, ok := enrichment.EditCounts[editor]; ok {
				c := count
				d.EditCount = &c
			}
			d.EditorPage = a.Links.UserPage(editor)
			d.EditorTalk = a.Links.UserTalk(editor)
			d.EditorContribs = a.Links.UserContribs(editor)
			d.EditorPageDead = enrichment.DeadPages["User:"+editor]
			d.EditorTalkDead = enrichment.DeadPages["User talk:"+editor]
		}

		if r.StatusUser != "" {
			d.ReviewedByURL = a.Links.UserPage(r.StatusUser)
			if r.ReviewTimestamp != nil {
				d.ReviewTimestamp = FormatTimestamp(*r.ReviewTimestamp)
			}
		}

		projects, err := a.Store.ProjectsFor(ctx, r.Lang, dbTitle)
		if err != nil {
			log.Warn("WikiProjekte nicht abrufbar", zap.String("title", dbTitle), zap.Error(err))
		}
		d.WikiProjects = make([]string, 0, len(projects))
		for _, project := range projects {
			d.WikiProjects = append(d.WikiProjects, RemoveUnderscores(project))
		}

		if score := enrichment.RiskScores[r.Diff]; score != nil && *score > oresDisplayThreshold {
			d.OresScore = fmt.Sprintf("%.2f", *score*100)
		}

		out = append(out, d)
	}

	log.Debug("Seite aggregiert",
		zap.Int("fetched", len(records)), zap.Int("returned", len(out)))
	return out, nil
}

// qualifiedTitle liefert den vollqualifizierten Titel: Drafts bekommen das
// Namespace-Präfix, bevor irgendeine titelbasierte Abfrage oder Anzeige läuft.
func qualifiedTitle(r *models.Record) string {
	if r.PageNS == models.NSDraft {
		return "Draft:" + r.PageTitle
	}
	return r.PageTitle
}
