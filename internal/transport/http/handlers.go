package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
	"github.com/rawsignal/RivianMate-sub001/internal/store"
	"github.com/rawsignal/RivianMate-sub001/internal/trend"
)

// handleLinkAccount creates a local account from remote credentials and
// installs its poll schedule.
// POST /v1/accounts
func (s *Server) handleLinkAccount(c *gin.Context) {
	var req struct {
		RemoteAccountID string `json:"remote_account_id" binding:"required"`
		AccessToken     string `json:"access_token" binding:"required"`
		RefreshToken    string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account := &domain.Account{
		ID:              uuid.NewString(),
		RemoteAccountID: req.RemoteAccountID,
		AccessToken:     req.AccessToken,
		RefreshToken:    req.RefreshToken,
		PollInterval:    s.cfg.AsleepInterval,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	if err := s.db.UpsertAccount(ctx, account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.scheduler.RegisterAccount(account.ID)

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"id": account.ID}})
}

// handleUnlinkAccount removes the schedule and deletes the account.
// DELETE /v1/accounts/:id
func (s *Server) handleUnlinkAccount(c *gin.Context) {
	id := c.Param("id")
	s.scheduler.RemoveAccount(id)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	if err := s.db.DeleteAccount(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleTriggerPoll kicks an on-demand refresh cycle.
// POST /v1/accounts/:id/poll
func (s *Server) handleTriggerPoll(c *gin.Context) {
	if !s.scheduler.TriggerImmediatePoll(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not registered"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "poll scheduled"})
}

// handleListVehicles returns the account's vehicles.
// GET /v1/accounts/:id/vehicles
func (s *Server) handleListVehicles(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	vehicles, err := s.db.ListVehicles(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": vehicles,
		"meta": gin.H{"count": len(vehicles)},
	})
}

// handleGetState returns the canonical merged state for one vehicle.
// GET /v1/vehicles/:id/state
func (s *Server) handleGetState(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	state, err := s.db.GetVehicleState(ctx, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no state for vehicle"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": state})
}

// handleGetSnapshots returns the battery snapshot series, optionally
// bounded by from/to RFC3339 timestamps.
// GET /v1/vehicles/:id/snapshots
func (s *Server) handleGetSnapshots(c *gin.Context) {
	from, err := parseTimeParam(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
		return
	}
	to, err := parseTimeParam(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	snaps, err := s.db.ListSnapshots(ctx, c.Param("id"), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": snaps,
		"meta": gin.H{"count": len(snaps)},
	})
}

// handleGetTrend recomputes the degradation model from the snapshot
// series.
// GET /v1/vehicles/:id/trend
func (s *Server) handleGetTrend(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	snaps, err := s.db.ListSnapshots(ctx, c.Param("id"), nil, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(snaps) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no battery snapshots for vehicle"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": trend.Compute(snaps)})
}

func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
