package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"nil-match/backend/internal/matching"
	"nil-match/backend/internal/store"
)

func (req BrandRequest) toModel() (store.Brand, error) {
	brand := store.Brand{
		Name:           strings.TrimSpace(req.Name),
		Category:       strings.TrimSpace(req.Category),
		Location:       strings.TrimSpace(req.Location),
		TargetAudience: strings.TrimSpace(req.TargetAudience),
		Description:    strings.TrimSpace(req.Description),
	}
	switch {
	case brand.Name == "":
		return brand, errors.New("name is required")
	case brand.Category == "":
		return brand, errors.New("category is required")
	case brand.Location == "":
		return brand, errors.New("location is required")
	case brand.TargetAudience == "":
		return brand, errors.New("target_audience is required")
	case req.Budget == nil:
		return brand, errors.New("budget is required")
	case *req.Budget < 0:
		return brand, errors.New("budget must not be negative")
	}
	brand.Budget = *req.Budget
	return brand, nil
}

func (req AthleteRequest) toModel() (store.Athlete, error) {
	athlete := store.Athlete{
		Name:     strings.TrimSpace(req.Name),
		Sport:    strings.TrimSpace(req.Sport),
		School:   strings.TrimSpace(req.School),
		Location: strings.TrimSpace(req.Location),
		Bio:      strings.TrimSpace(req.Bio),
	}
	switch {
	case athlete.Name == "":
		return athlete, errors.New("name is required")
	case athlete.Sport == "":
		return athlete, errors.New("sport is required")
	case athlete.School == "":
		return athlete, errors.New("school is required")
	case athlete.Location == "":
		return athlete, errors.New("location is required")
	case req.Followers == nil:
		return athlete, errors.New("followers is required")
	case *req.Followers < 0:
		return athlete, errors.New("followers must not be negative")
	case req.EngagementRate != nil && *req.EngagementRate < 0:
		return athlete, errors.New("engagement_rate must not be negative")
	}
	athlete.Followers = *req.Followers
	if req.EngagementRate != nil {
		athlete.EngagementRate = *req.EngagementRate
	} else {
		athlete.EngagementRate = store.DefaultEngagementRate(athlete.Followers)
	}
	return athlete, nil
}

func (s *Server) handleListBrands(c *gin.Context) {
	rows, err := s.db.ListBrands()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]BrandDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, BrandFromModel(row))
	}
	c.JSON(http.StatusOK, BrandsResponse{Items: dtos, Total: len(dtos)})
}

func (s *Server) handleGetBrand(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	brand, err := s.db.GetBrand(id)
	if err != nil {
		s.renderLookupError(c, "brand", id, err)
		return
	}
	c.JSON(http.StatusOK, BrandFromModel(*brand))
}

func (s *Server) handleCreateBrand(c *gin.Context) {
	var req BrandRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	brand, err := req.toModel()
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	brand.ID = s.newID()
	brand.CreatedAt = s.now().UTC()

	if err := s.db.CreateBrand(&brand); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"brand_id": brand.ID,
		"category": brand.Category,
	}).Info("brand created")

	summary, recomputeErr := s.recompute(c.Request.Context(), matching.TriggerBrand)
	c.JSON(http.StatusCreated, CreateResponse{
		Item:           BrandFromModel(brand),
		Recompute:      summary,
		RecomputeError: recomputeErr,
	})
}

func (s *Server) handleListAthletes(c *gin.Context) {
	rows, err := s.db.ListAthletes()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]AthleteDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, AthleteFromModel(row))
	}
	c.JSON(http.StatusOK, AthletesResponse{Items: dtos, Total: len(dtos)})
}

func (s *Server) handleGetAthlete(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	athlete, err := s.db.GetAthlete(id)
	if err != nil {
		s.renderLookupError(c, "athlete", id, err)
		return
	}
	c.JSON(http.StatusOK, AthleteFromModel(*athlete))
}

func (s *Server) handleCreateAthlete(c *gin.Context) {
	var req AthleteRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	athlete, err := req.toModel()
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	athlete.ID = s.newID()
	athlete.CreatedAt = s.now().UTC()

	if err := s.db.CreateAthlete(&athlete); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"athlete_id": athlete.ID,
		"sport":      athlete.Sport,
	}).Info("athlete created")

	summary, recomputeErr := s.recompute(c.Request.Context(), matching.TriggerAthlete)
	c.JSON(http.StatusCreated, CreateResponse{
		Item:           AthleteFromModel(athlete),
		Recompute:      summary,
		RecomputeError: recomputeErr,
	})
}
