package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"codegov/internal/finops"
	"codegov/internal/redact"
)

type preflightRequest struct {
	Content  string            `json:"content" binding:"required"`
	Provider string            `json:"provider"`
	Metadata map[string]string `json:"metadata"`
}

// gatewayPreflight scans outbound content before it reaches a provider.
// Critical findings veto the request; everything else is redacted in the
// sanitized copy.
func (s *Server) gatewayPreflight(c *gin.Context) {
	start := time.Now()
	var req preflightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, scanErr := s.redactor.Scan(req.Content, "gateway")

	violations := make([]redact.Finding, 0)
	redactions := make([]redact.Finding, 0)
	for _, f := range res.Findings {
		if f.Severity == redact.SeverityCritical {
			violations = append(violations, f)
		} else {
			redactions = append(redactions, f)
		}
	}
	ok := scanErr == nil && len(violations) == 0

	c.Header("X-Preflight-Latency-Ms", fmt.Sprintf("%d", time.Since(start).Milliseconds()))
	body := gin.H{
		"ok":         ok,
		"violations": violations,
		"redactions": redactions,
	}
	if ok {
		body["sanitizedContent"] = res.Redacted
	}
	c.JSON(http.StatusOK, body)
}

type routeRequest struct {
	Task              string `json:"task" binding:"required"`
	Budget            string `json:"budget"`
	PreferredProvider string `json:"preferredProvider"`
}

// gatewayRoute picks a provider model for a task, honoring budget
// routing when a budget is named.
func (s *Server) gatewayRoute(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	tokens := estimateTokens(req.Task)

	var provider, policy string
	switch {
	case req.Budget != "":
		model, err := s.ledger.RouteRequest(req.Budget, tokens)
		if err != nil {
			s.respondError(c, err)
			return
		}
		provider, policy = model, "budget-priority-routing"
	case req.PreferredProvider != "":
		provider, policy = req.PreferredProvider, "preferred-provider"
	default:
		provider, policy = finops.DefaultModelPremium, "default-model"
	}

	estimated := 0.0
	if f, err := s.ledger.ForecastCost(provider, tokens, 0); err == nil {
		estimated = f.EstimatedCost
	}
	c.JSON(http.StatusOK, gin.H{
		"provider":      provider,
		"policyApplied": policy,
		"estimatedCost": estimated,
	})
}

// estimateTokens approximates the provider tokenizer at 4 bytes/token.
func estimateTokens(content string) int {
	return len(content)/4 + 1
}
