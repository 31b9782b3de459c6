package actions

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

// DimensionScore is one of the five sizing dimensions, each scored 0-2 with
// the scorer's reasoning.
type DimensionScore struct {
	Score     int    `json:"score" binding:"min=0,max=2"`
	Reasoning string `json:"reasoning" binding:"required"`
}

// SizingRequest carries a full sizing pass. Points become the literal sum of
// the five dimension scores (range 0-10).
type SizingRequest struct {
	ScopeClarity           DimensionScore `json:"scope_clarity" binding:"required"`
	DecisionPoints         DimensionScore `json:"decision_points" binding:"required"`
	ContextWindowDemand    DimensionScore `json:"context_window_demand" binding:"required"`
	VerificationComplexity DimensionScore `json:"verification_complexity" binding:"required"`
	DomainSpecificity      DimensionScore `json:"domain_specificity" binding:"required"`
	Confidence             int            `json:"confidence" binding:"min=0,max=5"`
	RiskFactors            []string       `json:"risk_factors,omitempty"`
	BreakdownSuggestions   string         `json:"breakdown_suggestions,omitempty"`
	ScoredBy               string         `json:"scored_by,omitempty"`
	WorkLogContent         string         `json:"work_log_content" binding:"required"`
	Author                 string         `json:"author,omitempty"`
}

// pointsBreakdown is the opaque record persisted alongside the points sum.
type pointsBreakdown struct {
	Dimensions           map[string]DimensionScore `json:"dimensions"`
	Total                int                       `json:"total"`
	Confidence           int                       `json:"confidence"`
	RiskFactors          []string                  `json:"risk_factors"`
	BreakdownSuggestions string                    `json:"breakdown_suggestions,omitempty"`
	ScoredBy             string                    `json:"scored_by,omitempty"`
	ScoredAt             string                    `json:"scored_at"`
}

// SizeTaskTx sizes a task: sums the dimension scores into points, stores the
// breakdown record and confidence, and appends a sizing work-log entry.
func SizeTaskTx(tx *sql.Tx, taskID string, req *SizingRequest) (*models.Task, error) {
	if _, err := store.GetTaskRow(tx, taskID); err != nil {
		return nil, err
	}

	dimensions := map[string]DimensionScore{
		"scope_clarity":           req.ScopeClarity,
		"decision_points":         req.DecisionPoints,
		"context_window_demand":   req.ContextWindowDemand,
		"verification_complexity": req.VerificationComplexity,
		"domain_specificity":      req.DomainSpecificity,
	}
	total := 0
	for _, d := range dimensions {
		total += d.Score
	}

	breakdown := pointsBreakdown{
		Dimensions:           dimensions,
		Total:                total,
		Confidence:           req.Confidence,
		RiskFactors:          req.RiskFactors,
		BreakdownSuggestions: req.BreakdownSuggestions,
		ScoredBy:             req.ScoredBy,
		ScoredAt:             time.Now().UTC().Format(time.RFC3339),
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal points breakdown: %w", err)
	}

	if err := store.ApplySizingTx(tx, taskID, total, breakdownJSON, req.Confidence); err != nil {
		return nil, err
	}

	if _, err := store.InsertWorkLogTx(tx, taskID, req.Author, models.OperationSizing, req.WorkLogContent); err != nil {
		return nil, err
	}

	return store.LoadTaskTree(tx, taskID)
}
