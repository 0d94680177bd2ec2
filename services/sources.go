package services

import (
	"regexp"
	"strconv"

	"copypatrol/models"
)

// Listenzeilen im Report: '[Zeilenumbruch]* ... (Prozent) (Anzahl) ... (URL)'.
// Der Report kommt von einem externen, unkontrollierten Tool — Zeilen, die
// nicht dem vollen Tripel entsprechen, werden kommentarlos übersprungen.
var sourceRegex = regexp.MustCompile(`\n\*.*?(\d+)%\s+(\d+).*?\b(https?://[^\s()<>]+)\b`)

// ExtractSources extrahiert die Quelltreffer aus einem Ähnlichkeitsreport.
// Ein leerer oder unbrauchbarer Report ergibt eine leere Liste, nie einen
// Fehler. Die Reihenfolge entspricht dem Auftreten im Report; Duplikate
// bleiben erhalten.
func ExtractSources(report string) []models.SourceMatch {
	matches := sourceRegex.FindAllStringSubmatch(report, -1)
	sources := make([]models.SourceMatch, 0, len(matches))
	for _, m := range matches {
		percentage, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		count, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		sources = append(sources, models.SourceMatch{
			Percentage: percentage,
			Count:      count,
			URL:        m[3],
		})
	}
	return sources
}
