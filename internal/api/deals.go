package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"nil-match/backend/internal/store"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseDate accepts RFC 3339 timestamps or plain dates. An empty value yields nil.
func parseDate(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("invalid date: %s", trimmed)
}

func (s *Server) handleListDeals(c *gin.Context) {
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	if status != "" && !store.ValidDealStatus(status) {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("unknown deal status: %s", status))
		return
	}
	rows, err := s.db.ListDeals(status)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]DealDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, DealFromModel(row))
	}
	c.JSON(http.StatusOK, gin.H{"items": dtos, "total": len(dtos)})
}

func (s *Server) handleCreateDeal(c *gin.Context) {
	var req DealRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	brandID := strings.TrimSpace(req.BrandID)
	athleteID := strings.TrimSpace(req.AthleteID)
	if brandID == "" || athleteID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("brand_id and athlete_id are required"))
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = store.DealPending
	}
	if !store.ValidDealStatus(status) {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("unknown deal status: %s", status))
		return
	}
	if req.Value < 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("value must not be negative"))
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("start_date: %w", err))
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("end_date: %w", err))
		return
	}
	if start != nil && end != nil && end.Before(*start) {
		s.renderError(c, http.StatusBadRequest, errors.New("end_date is before start_date"))
		return
	}

	if _, err := s.db.GetBrand(brandID); err != nil {
		s.renderLookupError(c, "brand", brandID, err)
		return
	}
	if _, err := s.db.GetAthlete(athleteID); err != nil {
		s.renderLookupError(c, "athlete", athleteID, err)
		return
	}

	now := s.now().UTC()
	deal := store.Deal{
		ID:        s.newID(),
		BrandID:   brandID,
		AthleteID: athleteID,
		Status:    status,
		Value:     req.Value,
		StartDate: start,
		EndDate:   end,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.CreateDeal(&deal); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"deal_id":    deal.ID,
		"brand_id":   brandID,
		"athlete_id": athleteID,
		"status":     status,
	}).Info("deal created")
	c.JSON(http.StatusCreated, DealFromModel(deal))
}

func (s *Server) handleUpdateDeal(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	var req DealStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !store.ValidDealStatus(status) {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("unknown deal status: %q", status))
		return
	}

	deal, err := s.db.UpdateDealStatus(id, status)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.renderError(c, http.StatusNotFound, fmt.Errorf("deal %s not found", id))
		return
	case errors.Is(err, store.ErrInvalidTransition):
		s.renderError(c, http.StatusConflict, err)
		return
	default:
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"deal_id": id,
		"status":  deal.Status,
	}).Info("deal status updated")
	c.JSON(http.StatusOK, DealFromModel(*deal))
}
