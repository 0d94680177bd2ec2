package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"copypatrol/config"
)

// Die Action API erlaubt maximal 50 Titel bzw. IDs pro Abfrage.
const batchSize = 50

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Zeilen der Whitelist-Seite: "* Benutzername" oder "* [[User:Benutzername|...]]"
var whitelistLineRegex = regexp.MustCompile(`(?m)^\*\s*(?:\[\[(?:[Uu]ser:)?([^\]|]+)(?:\|[^\]]*)?\]\]|([^\[].*))$`)

// Fetcher kapselt die Abfragen gegen die MediaWiki Action API.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt eine neue Instanz des Wiki-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// RevisionEditors liefert pro Revisions-ID den Benutzernamen des Editors.
func (f *Fetcher) RevisionEditors(ctx context.Context, revisionIDs []int64) (map[int64]string, error) {
	editors := make(map[int64]string, len(revisionIDs))
	for _, chunk := range chunkIDs(revisionIDs) {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("prop", "revisions")
		params.Set("rvprop", "ids|user")
		params.Set("revids", joinIDs(chunk))

		var resp queryResponse
		if err := f.doQuery(ctx, params, &resp); err != nil {
			return nil, fmt.Errorf("revisions-abfrage fehlgeschlagen: %w", err)
		}
		for _, page := range resp.Query.Pages {
			for _, rev := range page.Revisions {
				if rev.User != "" {
					editors[rev.RevID] = rev.User
				}
			}
		}
	}
	return editors, nil
}

// DeadPages liefert die Teilmenge der Titel, die im Wiki nicht existieren.
func (f *Fetcher) DeadPages(ctx context.Context, titles []string) (map[string]bool, error) {
	dead := make(map[string]bool)
	for _, chunk := range chunkStrings(titles) {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("titles", strings.Join(chunk, "|"))

		var resp queryResponse
		if err := f.doQuery(ctx, params, &resp); err != nil {
			return nil, fmt.Errorf("dead-page-abfrage fehlgeschlagen: %w", err)
		}
		for _, page := range resp.Query.Pages {
			if page.Missing {
				dead[page.Title] = true
			}
		}
	}
	return dead, nil
}

// EditCounts liefert pro Benutzername die Anzahl der Edits.
func (f *Fetcher) EditCounts(ctx context.Context, usernames []string) (map[string]int, error) {
	counts := make(map[string]int, len(usernames))
	for _, chunk := range chunkStrings(usernames) {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "users")
		params.Set("usprop", "editcount")
		params.Set("ususers", strings.Join(chunk, "|"))

		var resp queryResponse
		if err := f.doQuery(ctx, params, &resp); err != nil {
			return nil, fmt.Errorf("editcount-abfrage fehlgeschlagen: %w", err)
		}
		for _, user := range resp.Query.Users {
			if !user.Missing {
				counts[user.Name] = user.EditCount
			}
		}
	}
	return counts, nil
}

// FetchWhitelist holt die Whitelist-Seite und extrahiert die Benutzernamen
// aus den Listenzeilen.
func (f *Fetcher) FetchWhitelist(ctx context.Context) ([]string, error) {
	log := f.Logger.With(zap.String("page", f.Config.WhitelistPage))

	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", f.Config.WhitelistPage)
	params.Set("prop", "wikitext")

	var resp parseResponse
	if err := f.doQuery(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("whitelist-seite nicht abrufbar: %w", err)
	}

	var users []string
	for _, match := range whitelistLineRegex.FindAllStringSubmatch(resp.Parse.Wikitext, -1) {
		name := match[1]
		if name == "" {
			name = match[2]
		}
		name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
		if name != "" {
			users = append(users, name)
		}
	}
	log.Debug("Whitelist geladen", zap.Int("users", len(users)))
	return users, nil
}

// doQuery führt einen GET gegen die Action API aus und dekodiert die Antwort.
func (f *Fetcher) doQuery(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	reqURL := f.Config.WikiAPIBaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("action api: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func chunkStrings(values []string) [][]string {
	var chunks [][]string
	for len(values) > batchSize {
		chunks = append(chunks, values[:batchSize])
		values = values[batchSize:]
	}
	if len(values) > 0 {
		chunks = append(chunks, values)
	}
	return chunks
}

func chunkIDs(ids []int64) [][]int64 {
	var chunks [][]int64
	for len(ids) > batchSize {
		chunks = append(chunks, ids[:batchSize])
		ids = ids[batchSize:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, "|")
}
