package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"nil-match/backend/internal/matching"
	"nil-match/backend/internal/scoring"
	"nil-match/backend/internal/store"
)

// matchQuery builds the store filter shared by the list and export endpoints.
func matchQuery(c *gin.Context) (store.EvaluationQuery, error) {
	query := store.EvaluationQuery{
		BrandID:   strings.TrimSpace(firstNonEmpty(c.Query("brand_id"), c.Query("brandId"))),
		AthleteID: strings.TrimSpace(firstNonEmpty(c.Query("athlete_id"), c.Query("athleteId"))),
		Sort:      strings.TrimSpace(c.Query("sort")),
	}

	if value := firstNonEmpty(c.Query("min_score"), c.Query("minScore")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 || parsed > 100 {
			return query, fmt.Errorf("invalid min_score: %s", value)
		}
		query.MinScore = parsed
	}
	if value := firstNonEmpty(c.Query("max_score"), c.Query("maxScore")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 || parsed > 100 {
			return query, fmt.Errorf("invalid max_score: %s", value)
		}
		query.MaxScore = &parsed
	}
	if band := strings.TrimSpace(c.Query("band")); band != "" {
		low, high, ok := scoring.BandRange(band)
		if !ok {
			return query, fmt.Errorf("unknown band: %s", band)
		}
		if low > query.MinScore {
			query.MinScore = low
		}
		if query.MaxScore == nil || high < *query.MaxScore {
			query.MaxScore = &high
		}
	}
	return query, nil
}

// catalogIndex resolves display names for match rows.
type catalogIndex struct {
	brands   map[string]*store.Brand
	athletes map[string]*store.Athlete
}

func (s *Server) loadCatalogIndex() (*catalogIndex, error) {
	brands, err := s.db.ListBrands()
	if err != nil {
		return nil, err
	}
	athletes, err := s.db.ListAthletes()
	if err != nil {
		return nil, err
	}
	idx := &catalogIndex{
		brands:   make(map[string]*store.Brand, len(brands)),
		athletes: make(map[string]*store.Athlete, len(athletes)),
	}
	for i := range brands {
		idx.brands[brands[i].ID] = &brands[i]
	}
	for i := range athletes {
		idx.athletes[athletes[i].ID] = &athletes[i]
	}
	return idx, nil
}

func (idx *catalogIndex) dto(row store.Evaluation) MatchDTO {
	if idx == nil {
		return MatchFromModel(row, nil, nil)
	}
	return MatchFromModel(row, idx.brands[row.BrandID], idx.athletes[row.AthleteID])
}

func (s *Server) handleListMatches(c *gin.Context) {
	query, err := matchQuery(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	query.Offset, query.Limit = parsePage(c, s.pageSize)

	rows, total, err := s.db.ListEvaluations(query)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	idx, err := s.loadCatalogIndex()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]MatchDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, idx.dto(row))
	}
	c.JSON(http.StatusOK, MatchesResponse{Items: dtos, Total: total})
}

func (s *Server) handleGetMatch(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	row, err := s.db.GetEvaluation(id)
	if err != nil {
		s.renderLookupError(c, "match", id, err)
		return
	}

	var brand *store.Brand
	if found, err := s.db.GetBrand(row.BrandID); err == nil {
		brand = found
	}
	var athlete *store.Athlete
	if found, err := s.db.GetAthlete(row.AthleteID); err == nil {
		athlete = found
	}
	c.JSON(http.StatusOK, MatchFromModel(*row, brand, athlete))
}

func (s *Server) handleRecompute(c *gin.Context) {
	summary, err := s.matcher.Recompute(c.Request.Context(), matching.TriggerManual)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handleEvaluate scores one brand/athlete pair without touching the stored match set.
func (s *Server) handleEvaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	var brand store.Brand
	switch id := strings.TrimSpace(req.BrandID); {
	case id != "":
		found, err := s.db.GetBrand(id)
		if err != nil {
			s.renderLookupError(c, "brand", id, err)
			return
		}
		brand = *found
	case req.Brand != nil:
		parsed, err := req.Brand.toModel()
		if err != nil {
			s.renderError(c, http.StatusBadRequest, fmt.Errorf("brand: %w", err))
			return
		}
		brand = parsed
	default:
		s.renderError(c, http.StatusBadRequest, errors.New("brand_id or brand is required"))
		return
	}

	var athlete store.Athlete
	switch id := strings.TrimSpace(req.AthleteID); {
	case id != "":
		found, err := s.db.GetAthlete(id)
		if err != nil {
			s.renderLookupError(c, "athlete", id, err)
			return
		}
		athlete = *found
	case req.Athlete != nil:
		parsed, err := req.Athlete.toModel()
		if err != nil {
			s.renderError(c, http.StatusBadRequest, fmt.Errorf("athlete: %w", err))
			return
		}
		athlete = parsed
	default:
		s.renderError(c, http.StatusBadRequest, errors.New("athlete_id or athlete is required"))
		return
	}

	result := s.scorer.Evaluate(brand, athlete)
	keywords := s.scorer.MatchedKeywords(brand.TargetAudience)
	if keywords == nil {
		keywords = []string{}
	}
	c.JSON(http.StatusOK, EvaluateResponse{
		Result:          result,
		Band:            scoring.Band(result.Score),
		MatchedKeywords: keywords,
	})
}

func (s *Server) handleMatchStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("match websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("match websocket closed")
			} else {
				logrus.WithError(err).Warn("match websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) exportRows(c *gin.Context) ([]MatchDTO, bool) {
	query, err := matchQuery(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return nil, false
	}
	query.Limit = -1

	rows, _, err := s.db.ListEvaluations(query)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return nil, false
	}
	idx, err := s.loadCatalogIndex()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return nil, false
	}
	dtos := make([]MatchDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, idx.dto(row))
	}
	return dtos, true
}

func (s *Server) handleExportCSV(c *gin.Context) {
	dtos, ok := s.exportRows(c)
	if !ok {
		return
	}

	c.Header("Content-Disposition", "attachment; filename=nil-matches.csv")
	c.Header("Content-Type", "text/csv")

	writer := csv.NewWriter(c.Writer)
	headers := []string{"rank", "brand_id", "brand_name", "athlete_id", "athlete_name", "score", "band", "audience_overlap", "location_match", "engagement_quality", "category_alignment", "budget_fit", "risk_factors", "explanation"}
	if err := writer.Write(headers); err != nil {
		return
	}
	for _, dto := range dtos {
		line := []string{
			strconv.Itoa(dto.Rank + 1),
			dto.BrandID,
			dto.BrandName,
			dto.AthleteID,
			dto.AthleteName,
			strconv.Itoa(dto.Score),
			dto.Band,
			fmt.Sprintf("%.2f", dto.AudienceOverlap),
			fmt.Sprintf("%.2f", dto.LocationMatch),
			fmt.Sprintf("%.2f", dto.EngagementQuality),
			fmt.Sprintf("%.2f", dto.CategoryAlignment),
			fmt.Sprintf("%.2f", dto.BudgetFit),
			strings.Join(dto.RiskFactors, "|"),
			dto.Explanation,
		}
		if err := writer.Write(line); err != nil {
			return
		}
	}
	writer.Flush()
}

func (s *Server) handleExportJSON(c *gin.Context) {
	dtos, ok := s.exportRows(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", "attachment; filename=nil-matches.json")
	c.JSON(http.StatusOK, dtos)
}
