package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// whitelistTTL ist das Frische-Fenster der gecachten Whitelist.
const whitelistTTL = 2 * time.Hour

// whitelistRefreshTimeout begrenzt einen einzelnen Refresh gegen die Quelle.
const whitelistRefreshTimeout = 30 * time.Second

// WhitelistFetchFunc holt die autoritative Whitelist von der Quelle.
type WhitelistFetchFunc func(ctx context.Context) ([]string, error)

// WhitelistCache ist ein Read-Through-Cache für die Liste reviewbefreiter
// Editoren. Pro Ablauf läuft höchstens ein Refresh; parallele Aufrufer werden
// über singleflight auf dasselbe Ergebnis zusammengeführt. Schlägt der
// Refresh fehl, wird der letzte bekannte Stand geliefert — das Fehlen der
// Whitelist darf die Record-Anzeige nie blockieren.
type WhitelistCache struct {
	Logger *zap.Logger

	fetch  WhitelistFetchFunc
	flight singleflight.Group

	mu       sync.RWMutex
	value    map[string]bool
	hasValue bool
	expires  time.Time
}

// NewWhitelistCache erstellt einen leeren Cache über der Fetch-Funktion.
func NewWhitelistCache(fetch WhitelistFetchFunc, logger *zap.Logger) *WhitelistCache {
	return &WhitelistCache{Logger: logger, fetch: fetch}
}

// Get liefert die aktuelle Whitelist als Set. Die zurückgegebene Map ist
// geteilt und darf vom Aufrufer nicht verändert werden.
func (c *WhitelistCache) Get(ctx context.Context) map[string]bool {
	c.mu.RLock()
	if c.hasValue && time.Now().Before(c.expires) {
		value := c.value
		c.mu.RUnlock()
		return value
	}
	c.mu.RUnlock()

	return c.refresh()
}

// Warm stößt einen Refresh an, unabhängig vom Ablaufzeitpunkt. Gedacht für
// den Cron-Vorwärmer; Fehler sind bereits geloggt.
func (c *WhitelistCache) Warm() {
	c.mu.Lock()
	c.expires = time.Time{}
	c.mu.Unlock()
	c.refresh()
}

// refresh führt höchstens einen Fetch gleichzeitig aus. Der Fetch läuft
// bewusst von der Request-Cancellation entkoppelt: das Ergebnis landet im
// geteilten Cache und gehört keinem einzelnen Aufrufer.
func (c *WhitelistCache) refresh() map[string]bool {
	result, _, _ := c.flight.Do("whitelist", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), whitelistRefreshTimeout)
		defer cancel()

		users, err := c.fetch(ctx)
		if err != nil {
			c.mu.RLock()
			stale := c.value
			hasStale := c.hasValue
			c.mu.RUnlock()
			if hasStale {
				c.Logger.Warn("Whitelist-Refresh fehlgeschlagen, nutze letzten Stand",
					zap.Int("users", len(stale)), zap.Error(err))
				return stale, nil
			}
			c.Logger.Warn("Whitelist-Refresh fehlgeschlagen, kein Stand vorhanden", zap.Error(err))
			return map[string]bool{}, nil
		}

		value := make(map[string]bool, len(users))
		for _, user := range users {
			value[user] = true
		}
		c.mu.Lock()
		c.value = value
		c.hasValue = true
		c.expires = time.Now().Add(whitelistTTL)
		c.mu.Unlock()

		c.Logger.Debug("Whitelist aktualisiert", zap.Int("users", len(value)))
		return value, nil
	})
	return result.(map[string]bool)
}
