package server

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"codegov/internal/evidence"
	"codegov/internal/types"
)

type appendEventRequest struct {
	Type      types.EventType        `json:"type" binding:"required"`
	MissionID string                 `json:"missionId"`
	Data      map[string]interface{} `json:"data"`
}

func (s *Server) appendEvent(c *gin.Context) {
	var req appendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ev, err := s.events.Append(types.Event{
		Type:      req.Type,
		MissionID: req.MissionID,
		Data:      req.Data,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

func (s *Server) missionProvenance(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.coord.GetMission(id); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.events.Provenance(id))
}

type exportRequest struct {
	MissionID  string           `json:"missionId" binding:"required"`
	ChangeSpec types.ChangeSpec `json:"changeSpec" binding:"required"`
}

// exportAuditPack assembles the mission's audit pack and streams the
// archive. The finalize checkpoint records the pack reference.
func (s *Server) exportAuditPack(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := req.ChangeSpec.Validate(); err != nil {
		s.respondError(c, err)
		return
	}
	if _, err := s.coord.GetMission(req.MissionID); err != nil {
		s.respondError(c, err)
		return
	}

	approvals, err := s.coord.Approvals(req.MissionID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	record, archive, err := s.events.BuildPack(c.Request.Context(), evidence.PackInput{
		MissionID:  req.MissionID,
		ChangeSpec: &req.ChangeSpec,
		Approvals:  approvals,
		Finops:     s.finopsSummary(),
		Versions: map[string]string{
			"service": s.cfg.Name,
			"version": s.cfg.Version,
			"runtime": runtime.Version(),
		},
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.coord.AttachAuditPack(req.MissionID, record.ID); err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=audit-pack-%s.zip", record.ID))
	c.Header("X-Pack-Id", record.ID)
	c.Data(http.StatusOK, "application/zip", archive)
}

// finopsSummary snapshots usage and budgets for the audit pack.
func (s *Server) finopsSummary() map[string]interface{} {
	budgets := s.ledger.ListBudgets()
	statuses := make([]budgetStatus, 0, len(budgets))
	for _, b := range budgets {
		statuses = append(statuses, toBudgetStatus(b))
	}
	return map[string]interface{}{
		"budgets": statuses,
		"alerts":  s.ledger.Alerts(),
		"usage":   s.ledger.UsageTotals(),
	}
}
