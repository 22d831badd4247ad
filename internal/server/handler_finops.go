package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"codegov/internal/finops"
	"codegov/internal/types"
)

type forecastRequest struct {
	ChangeSpec json.RawMessage `json:"changeSpec" binding:"required"`
	Provider   string          `json:"provider"`
}

// finopsForecast projects the cost of executing a change spec. The
// token estimate derives from the spec payload size; nothing is charged.
func (s *Server) finopsForecast(c *gin.Context) {
	var req forecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	provider := req.Provider
	if provider == "" {
		provider = finops.DefaultModelPremium
	}
	inputTokens := estimateTokens(string(req.ChangeSpec))
	outputTokens := inputTokens / 4

	forecast, err := s.ledger.ForecastCost(provider, inputTokens, outputTokens)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"usdEstimate": forecast.EstimatedCost,
		"tokens":      inputTokens + outputTokens,
		"p95Latency":  forecastLatencyMs(inputTokens + outputTokens),
		"confidence":  forecast.Confidence,
		"breakdown":   forecast.Breakdown,
	})
}

// forecastLatencyMs is a coarse provider latency model: a fixed floor
// plus generation time proportional to the token count.
func forecastLatencyMs(tokens int) int {
	return 400 + tokens/10
}

type budgetStatus struct {
	types.Budget
	Breached  bool    `json:"breached"`
	Remaining float64 `json:"remaining"`
}

func toBudgetStatus(b types.Budget) budgetStatus {
	return budgetStatus{Budget: b, Breached: b.Breached(), Remaining: b.Remaining()}
}

func (s *Server) listBudgets(c *gin.Context) {
	budgets := s.ledger.ListBudgets()
	out := make([]budgetStatus, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, toBudgetStatus(b))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createBudget(c *gin.Context) {
	var b types.Budget
	if err := c.ShouldBindJSON(&b); err != nil {
		badRequest(c, err.Error())
		return
	}
	if b.MaxCost <= 0 {
		badRequest(c, "maxCost must be positive")
		return
	}
	created := s.ledger.CreateBudget(&b)
	c.JSON(http.StatusCreated, toBudgetStatus(*created))
}

func (s *Server) listModelPolicies(c *gin.Context) {
	c.JSON(http.StatusOK, s.ledger.Pricing().Models())
}

func (s *Server) putModelPolicy(c *gin.Context) {
	var p finops.ModelPricing
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	if p.ModelID == "" {
		badRequest(c, "modelId is required")
		return
	}
	s.ledger.Pricing().Register(p)
	c.JSON(http.StatusOK, s.ledger.Pricing().Models())
}
