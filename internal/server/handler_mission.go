package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"codegov/internal/types"
)

type createMissionRequest struct {
	Title string          `json:"title" binding:"required"`
	Risk  types.RiskLevel `json:"risk"`
}

func (s *Server) createMission(c *gin.Context) {
	var req createMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	m, err := s.coord.CreateMission(req.Title, req.Risk)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) listMissions(c *gin.Context) {
	c.JSON(http.StatusOK, s.coord.ListMissions())
}

func (s *Server) getMission(c *gin.Context) {
	m, err := s.coord.GetMission(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) approveCheckpoint(c *gin.Context) {
	m, err := s.coord.ApproveCheckpoint(c.Param("id"), types.CheckpointName(c.Param("name")))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) rejectCheckpoint(c *gin.Context) {
	m, err := s.coord.RejectCheckpoint(c.Param("id"), types.CheckpointName(c.Param("name")))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type createBatchRequest struct {
	PRs   []string          `json:"prs"`
	Files map[string]string `json:"files"`
}

func (s *Server) createBatch(c *gin.Context) {
	var req createBatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	batch, err := s.coord.CreateBatch(c.Param("id"), req.PRs, req.Files)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

func (s *Server) rollbackBatch(c *gin.Context) {
	files, err := s.coord.RollbackBatch(c.Param("id"), c.Param("batchId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "snapshot restored",
		"files":   files,
	})
}

type applyCheckpointRequest struct {
	ChangeSpec types.ChangeSpec  `json:"changeSpec" binding:"required"`
	Files      map[string]string `json:"files" binding:"required"`
}

// applyCheckpoint runs the gated execute pipeline for a mission over
// caller-provided file contents.
func (s *Server) applyCheckpoint(c *gin.Context) {
	var req applyCheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := req.ChangeSpec.Validate(); err != nil {
		s.respondError(c, err)
		return
	}
	outcome, err := s.coord.ApplyCheckpoint(c.Request.Context(), c.Param("id"), &req.ChangeSpec, req.Files)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}
