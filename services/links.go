package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// displayTimeLayout ist das Anzeigeformat für Edit- und Review-Zeitstempel.
const displayTimeLayout = "2006-01-02 15:04"

// LinkBuilder baut die Wiki- und Report-Links für die Anzeige.
type LinkBuilder struct {
	// Basis-URL des Wikis, z.B. https://en.wikipedia.org
	WikiBaseURL string
	// Basis-URL des externen Ähnlichkeitsreports
	ReportBaseURL string
}

// PageLink liefert die URL der Wiki-Seite.
func (l *LinkBuilder) PageLink(title string) string {
	return l.WikiBaseURL + "/wiki/" + url.PathEscape(title)
}

// DiffLink liefert die URL des Diffs auf der Seite.
func (l *LinkBuilder) DiffLink(title string, diff int64) string {
	return fmt.Sprintf("%s/w/index.php?title=%s&diff=%d",
		l.WikiBaseURL, url.QueryEscape(title), diff)
}

// HistoryLink liefert die URL der Versionsgeschichte der Seite.
func (l *LinkBuilder) HistoryLink(title string) string {
	return l.WikiBaseURL + "/wiki/" + url.PathEscape(title) + "?action=history"
}

// ReportLink liefert die URL des externen Ähnlichkeitsreports.
func (l *LinkBuilder) ReportLink(recordID int64) string {
	return fmt.Sprintf("%s?rid=%d", l.ReportBaseURL, recordID)
}

// UserPage liefert die URL der Benutzerseite.
func (l *LinkBuilder) UserPage(user string) string {
	if user == "" {
		return ""
	}
	return l.WikiBaseURL + "/wiki/User:" + url.PathEscape(underscoreTitle(user))
}

// UserTalk liefert die URL der Diskussionsseite des Benutzers.
func (l *LinkBuilder) UserTalk(user string) string {
	if user == "" {
		return ""
	}
	return l.WikiBaseURL + "/wiki/User_talk:" + url.PathEscape(underscoreTitle(user))
}

// UserContribs liefert die URL der Beitragsliste des Benutzers.
func (l *LinkBuilder) UserContribs(user string) string {
	if user == "" {
		return ""
	}
	return l.WikiBaseURL + "/wiki/Special:Contributions/" + url.PathEscape(underscoreTitle(user))
}

// RemoveUnderscores wandelt einen Datenbank-Titel in die Anzeigeform mit
// Leerzeichen um.
func RemoveUnderscores(title string) string {
	return strings.ReplaceAll(title, "_", " ")
}

// FormatTimestamp formatiert einen Zeitstempel für die Anzeige (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(displayTimeLayout)
}

func underscoreTitle(title string) string {
	return strings.ReplaceAll(title, " ", "_")
}
