package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"codegov/internal/transform"
	"codegov/internal/types"
)

type dteApplyRequest struct {
	types.ChangeSpec
	WorkingDir string `json:"workingDir"`
	DryRun     bool   `json:"dryRun"`
}

func (s *Server) dteApply(c *gin.Context) {
	var req dteApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := req.ChangeSpec.Validate(); err != nil {
		s.respondError(c, err)
		return
	}
	workdir := req.WorkingDir
	if workdir == "" {
		workdir = "."
	}
	result := s.engine.Apply(c.Request.Context(), &req.ChangeSpec, workdir, transform.ApplyOptions{DryRun: req.DryRun})
	c.JSON(http.StatusOK, result)
}

type dteVerifyRequest struct {
	Spec       types.ChangeSpec `json:"spec" binding:"required"`
	WorkingDir string           `json:"workingDir" binding:"required"`
	// MissionID optionally attaches the verification metrics to the
	// mission's verify checkpoint.
	MissionID string `json:"missionId"`
}

func (s *Server) dteVerify(c *gin.Context) {
	var req dteVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := req.Spec.Validate(); err != nil {
		s.respondError(c, err)
		return
	}
	if req.MissionID != "" {
		if _, err := s.coord.GetMission(req.MissionID); err != nil {
			s.respondError(c, err)
			return
		}
	}
	result := s.engine.Verify(c.Request.Context(), &req.Spec, req.WorkingDir)
	if req.MissionID != "" {
		if _, err := s.coord.RecordVerification(req.MissionID, result); err != nil {
			s.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, result)
}
