package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4280"`

	// Ziel-Wiki. Alle Links und API-Abfragen beziehen sich auf dieses Wiki.
	WikipediaURL string `envconfig:"WIKIPEDIA_URL" default:"https://en.wikipedia.org"`
	WikiLang     string `envconfig:"WIKI_LANG" default:"en"`

	// MediaWiki Action API (Dead-Page-Checks, Editcounts, Revisions-Editoren, Whitelist-Seite)
	WikiAPIBaseURL string `envconfig:"WIKI_API_BASE_URL" default:"https://en.wikipedia.org/w/api.php"`
	// Wiki-Seite, auf der die Whitelist gepflegt wird (ein Benutzername pro Listenzeile)
	WhitelistPage string `envconfig:"WHITELIST_PAGE" default:"User:EranBot/Copyright/User_whitelist"`

	// ORES Damaging-Scoring
	ORESBaseURL string `envconfig:"ORES_BASE_URL" default:"https://ores.wikimedia.org"`

	// Link-Basis für die externen Ähnlichkeitsreports
	ReportBaseURL string `envconfig:"REPORT_BASE_URL" default:"https://tools.wmflabs.org/eranbot/ithenticate.py"`

	// Account, unter dem automatische Reviews verbucht werden
	BotUser string `envconfig:"BOT_USER" default:"Community Tech bot"`

	// Seitengröße für die Record-Auslieferung
	PageSize int `envconfig:"PAGE_SIZE" default:"50"`

	// Zeitplan für das Vorwärmen der Whitelist (Cache bleibt heiß, Requests zahlen den Refresh nicht)
	WhitelistCronSchedule string `envconfig:"WHITELIST_CRON_SCHEDULE" default:"0 */2 * * *"`

	// Optionales S3-kompatibles Archiv für Report-Blobs bestätigter Fälle.
	// Bleibt ArchiveS3URL leer, ist die Archivierung deaktiviert.
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION" default:"eu-central-1"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ArchiveEnabled meldet, ob ein Report-Archiv konfiguriert ist.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3URL != "" && c.ArchiveS3Bucket != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
