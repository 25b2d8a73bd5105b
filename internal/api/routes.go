package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"nil-match/backend/internal/matching"
	"nil-match/backend/internal/scoring"
	"nil-match/backend/internal/store"
)

// Config defines server dependencies.
type Config struct {
	DBPath             string
	RulesPath          string
	AllowedOrigins     []string
	SilentDB           bool
	DefaultPageSize    int
	RecomputeOnStartup bool
}

// Server wires HTTP handlers with persistence and scoring.
type Server struct {
	db             *store.Database
	scorer         *scoring.Scorer
	matcher        *matching.Service
	notifier       *MatchNotifier
	allowedOrigins []string
	rulesPath      string
	pageSize       int
	now            func() time.Time
	newID          func() string
}

const defaultPageSize = 50

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	scorer := scoring.Default()
	if path := strings.TrimSpace(cfg.RulesPath); path != "" {
		rules, err := scoring.LoadRules(path)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("scoring rules: %w", err)
		}
		scorer = scoring.NewScorer(rules)
		logrus.WithFields(logrus.Fields{
			"path":       path,
			"keywords":   len(rules.AudienceKeywords),
			"categories": len(rules.CategorySports),
		}).Info("loaded scoring rules")
	}

	server := newServer(db, scorer, cfg)

	if cfg.RecomputeOnStartup {
		if _, err := server.matcher.Recompute(context.Background(), matching.TriggerStartup); err != nil {
			logrus.WithError(err).Warn("initial match recompute")
		}
	}
	return server, nil
}

func newServer(db *store.Database, scorer *scoring.Scorer, cfg Config) *Server {
	pageSize := cfg.DefaultPageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	notifier := NewMatchNotifier()
	matcher := matching.NewService(db, scorer)
	matcher.SetListener(notifier)

	return &Server{
		db:             db,
		scorer:         scorer,
		matcher:        matcher,
		notifier:       notifier,
		allowedOrigins: cfg.AllowedOrigins,
		rulesPath:      cfg.RulesPath,
		pageSize:       pageSize,
		now:            time.Now,
		newID:          newRecordID,
	}
}

// Close releases the underlying database.
func (s *Server) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/brands", s.handleListBrands)
		api.POST("/brands", s.handleCreateBrand)
		api.GET("/brands/:id", s.handleGetBrand)
		api.GET("/athletes", s.handleListAthletes)
		api.POST("/athletes", s.handleCreateAthlete)
		api.GET("/athletes/:id", s.handleGetAthlete)
		api.POST("/evaluate", s.handleEvaluate)
		api.GET("/matches", s.handleListMatches)
		api.POST("/matches/recompute", s.handleRecompute)
		api.GET("/matches/stream", s.handleMatchStream)
		api.GET("/matches/:id", s.handleGetMatch)
		api.GET("/stats", s.handleStats)
		api.GET("/deals", s.handleListDeals)
		api.POST("/deals", s.handleCreateDeal)
		api.PATCH("/deals/:id", s.handleUpdateDeal)
		api.GET("/export.csv", s.handleExportCSV)
		api.GET("/export.json", s.handleExportJSON)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stream_clients": s.notifier.ClientCount()})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rules_path":        s.rulesPath,
		"categories":        s.scorer.Categories(),
		"sports":            scoring.Sports(),
		"audience_keywords": s.scorer.Keywords(),
		"weights":           scoring.Weights(),
		"thresholds": gin.H{
			"excellent":           scoring.ExcellentThreshold,
			"strong":              scoring.StrongThreshold,
			"low_engagement_rate": scoring.LowEngagementRate,
			"limited_budget":      scoring.LimitedBudget,
			"small_audience":      scoring.SmallAudience,
		},
		"page_size": s.pageSize,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	brands, err := s.db.CountBrands()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	athletes, err := s.db.CountAthletes()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	active, err := s.db.CountDealsByStatus(store.DealActive)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	top, err := s.db.CountTopEvaluations(scoring.ExcellentThreshold)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		TotalBrands:   brands,
		TotalAthletes: athletes,
		ActiveDeals:   active,
		TopMatches:    top,
		LastRecompute: s.matcher.LastSummary(),
	})
}

// recompute runs a match recompute after a catalog change. A failure is logged and reported
// alongside the created record rather than failing the request.
func (s *Server) recompute(ctx context.Context, trigger string) (*matching.Summary, string) {
	summary, err := s.matcher.Recompute(ctx, trigger)
	if err != nil {
		logrus.WithError(err).WithField("trigger", trigger).Error("match recompute failed")
		return nil, err.Error()
	}
	return &summary, ""
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// renderLookupError maps a missing record to 404 and anything else to 500.
func (s *Server) renderLookupError(c *gin.Context, kind, id string, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.renderError(c, http.StatusNotFound, fmt.Errorf("%s %s not found", kind, id))
		return
	}
	s.renderError(c, http.StatusInternalServerError, err)
}

func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func parseIDParam(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", errors.New("identifier is required")
	}
	return trimmed, nil
}

// parsePage reads page and pageSize query values. Pages are zero based.
func parsePage(c *gin.Context, fallback int) (offset, limit int) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(firstNonEmpty(c.Query("pageSize"), c.Query("page_size")))
	if pageSize <= 0 {
		pageSize = fallback
	}
	return page * pageSize, pageSize
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
