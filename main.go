package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"copypatrol/config"
	"copypatrol/models"
	"copypatrol/providers/ores"
	"copypatrol/providers/wiki"
	"copypatrol/services"
	"copypatrol/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// currentUserMiddleware liest den vom Auth-Proxy gesetzten Benutzernamen aus
// dem Request-Header. Leerer Header = anonymer Besucher.
func currentUserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user", strings.TrimSpace(c.GetHeader("X-Forwarded-User")))
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString("user")
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.Record{}, &models.WikiProject{})

	// Setup Providers
	wikiFetcher := wiki.NewFetcher(cfg, logging)
	oresFetcher := ores.NewFetcher(cfg, logging)

	// Setup Services
	store := storage.NewRecordStore(db, cfg.BotUser, logging)
	whitelist := services.NewWhitelistCache(wikiFetcher.FetchWhitelist, logging)
	gateway := services.NewEnrichmentGateway(wikiFetcher, oresFetcher, logging)
	links := &services.LinkBuilder{
		WikiBaseURL:   cfg.WikipediaURL,
		ReportBaseURL: cfg.ReportBaseURL,
	}
	review := services.NewReviewService(store, links, cfg.BotUser, logging)
	if cfg.ArchiveEnabled() {
		s3Client, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		review.Archive = storage.NewReportArchive(s3Client, cfg.ArchiveS3Bucket, logging)
		logging.Info("Report archive enabled", zap.String("bucket", cfg.ArchiveS3Bucket))
	}
	aggregator := services.NewAggregator(cfg, store, wikiFetcher, gateway, whitelist, review, links, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(currentUserMiddleware())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupRecordRoutes(router, aggregator, store, cfg, logging)
	setupReviewRoutes(router, review, logging)
	setupStatsRoutes(router, store, cfg, logging)

	// Setup Cron: Whitelist vorwärmen, damit Requests den Refresh nie zahlen
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.WhitelistCronSchedule, func() {
		logging.Info("Running scheduled whitelist warm-up...")
		whitelist.Warm()
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupRecordRoutes(router *gin.Engine, aggregator *services.Aggregator, store *storage.RecordStore, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/records")

	// GET - Eine Seite anzeigefertiger Records
	rg.GET("/", func(c *gin.Context) {
		req := services.AggregateRequest{
			Filter:      c.Query("filter"),
			CurrentUser: currentUser(c),
			LastID:      parseInt64(c.Query("lastid")),
			DraftsOnly:  c.Query("drafts") == "1" || c.Query("drafts") == "true",
			SearchText:  c.Query("searchtext"),
			SearchExact: c.Query("exact") == "1" || c.Query("exact") == "true",
			Revision:    parseInt64(c.Query("revision")),
		}
		if projects := c.Query("wikiprojects"); projects != "" {
			req.WikiProjects = strings.Split(projects, "|")
		}

		records, err := aggregator.Aggregate(c.Request.Context(), req)
		if err != nil {
			log.Error("Record aggregation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"filter":  aggregator.ResolveFilter(req.Filter, req.CurrentUser),
			"records": records,
		})
	})

	// GET - Existieren Draft-Records für die Sprache?
	rg.GET("/drafts-exist", func(c *gin.Context) {
		exists, err := store.DraftsExist(c.Request.Context(), cfg.WikiLang)
		if err != nil {
			log.Error("Drafts check failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"exists": exists})
	})
}

func setupReviewRoutes(router *gin.Engine, review *services.ReviewService, log *zap.Logger) {
	rg := router.Group("/review")

	respond := func(c *gin.Context, result *services.ReviewResult, err error) {
		switch {
		case err == nil:
			c.JSON(http.StatusOK, result)
		case errors.Is(err, services.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		case errors.Is(err, services.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		default:
			log.Error("Review transition failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		}
	}

	// GET - Record als fixed oder false markieren
	rg.GET("/add", func(c *gin.Context) {
		id := parseInt64(c.Query("id"))
		if id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		result, err := review.SetStatus(c.Request.Context(), id, c.Query("val"), currentUser(c), time.Now())
		respond(c, result, err)
	})

	// GET - Review zurücknehmen, Record wird wieder offen
	rg.GET("/undo", func(c *gin.Context) {
		id := parseInt64(c.Query("id"))
		if id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		result, err := review.Undo(c.Request.Context(), id, c.Query("status"), currentUser(c))
		respond(c, result, err)
	})
}

func setupStatsRoutes(router *gin.Engine, store *storage.RecordStore, cfg *config.Config, log *zap.Logger) {
	// GET - Aktivste Reviewer über drei Zeiträume
	router.GET("/leaderboard", func(c *gin.Context) {
		data, err := store.Leaderboard(c.Request.Context(), cfg.WikiLang)
		if err != nil {
			log.Error("Leaderboard query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, data)
	})

	// GET - Sprachen, zu denen Records existieren
	router.GET("/languages", func(c *gin.Context) {
		langs, err := store.Languages(c.Request.Context())
		if err != nil {
			log.Error("Languages query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, langs)
	})
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
