package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"codegov/internal/evidence"
	"codegov/internal/finops"
	"codegov/internal/mission"
	"codegov/internal/redact"
	"codegov/internal/transform"
	"codegov/internal/types"
)

// respondError translates component errors into the {error, details?}
// body with the standard status mapping. Unforeseen errors become a 500
// with a secret-free message.
func (s *Server) respondError(c *gin.Context, err error) {
	var validation *types.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidChangeSpec", "details": validation.Error()})
		return
	}
	var block *mission.SecurityBlockError
	if errors.As(err, &block) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "SecurityBlock", "details": block.Error()})
		return
	}
	var violation *redact.PolicyViolationError
	if errors.As(err, &violation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "PolicyViolation", "details": violation.Error()})
		return
	}
	var exceeded *finops.BudgetExceededError
	if errors.As(err, &exceeded) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BudgetExceeded", "details": exceeded.Error()})
		return
	}

	switch {
	case errors.Is(err, mission.ErrMissionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "MissionNotFound", "details": err.Error()})
	case errors.Is(err, mission.ErrCheckpointNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "CheckpointNotFound", "details": err.Error()})
	case errors.Is(err, mission.ErrBatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "BatchNotFound", "details": err.Error()})
	case errors.Is(err, finops.ErrBudgetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "BudgetNotFound", "details": err.Error()})
	case errors.Is(err, evidence.ErrPackNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "PackNotFound", "details": err.Error()})
	case errors.Is(err, finops.ErrModelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "ModelNotFound", "details": err.Error()})
	case errors.Is(err, finops.ErrNoViableModel):
		c.JSON(http.StatusBadRequest, gin.H{"error": "NoViableModel", "details": err.Error()})
	case errors.Is(err, mission.ErrNotPending):
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidMission", "details": err.Error()})
	case errors.Is(err, mission.ErrNotReversible):
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidMission", "details": err.Error()})
	case errors.Is(err, transform.ErrInvalidSelector):
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidSelector", "details": err.Error()})
	case errors.Is(err, evidence.ErrInvalidEventType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidEventType", "details": err.Error()})
	default:
		s.log.Error("internal error: " + err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "InternalServerError"})
	}
}

// badRequest reports a malformed body.
func badRequest(c *gin.Context, details string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidRequest", "details": details})
}
