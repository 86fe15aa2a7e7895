package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"contract-flow/pkg/config"
	"contract-flow/pkg/llm"
	"contract-flow/pkg/logging"
)

const riskSystem = `You are a legal expert analyzing contract risks. Respond with a single JSON object.`

const riskPrompt = `Analyze the following contract for potential risks and issues. Consider:
1. Legal compliance
2. Financial risks
3. Liability concerns
4. Ambiguous language
5. Missing clauses
6. Unfavorable terms

Return JSON with exactly these keys:
  "overall_risk_score": integer from 1 to 10,
  "risk_summary": short overview of the risk assessment,
  "clauses": array of {"clause": clause name or quote, "risk_level": "high" | "medium" | "low", "details": explanation},
  "key_concerns": array of short strings.

Contract:
%s`

// RiskLevel describes how a level is presented.
type RiskLevel struct {
	Color       string `json:"color"`
	Description string `json:"description"`
}

var riskLevels = map[string]RiskLevel{
	"high":   {Color: "red", Description: "High risk - requires immediate attention"},
	"medium": {Color: "yellow", Description: "Medium risk - should be reviewed"},
	"low":    {Color: "green", Description: "Low risk - standard terms"},
}

// LevelInfo returns the presentation of level, gray/unknown when not recognized.
func LevelInfo(level string) RiskLevel {
	if info, ok := riskLevels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return info
	}
	return RiskLevel{Color: "gray", Description: "Unknown risk level"}
}

// ClauseRisk is one assessed clause.
type ClauseRisk struct {
	Clause      string `json:"clause"`
	RiskLevel   string `json:"risk_level"`
	Details     string `json:"details"`
	Color       string `json:"color"`
	Description string `json:"level_description"`
}

// RiskReport is the result of Risks. Error is set when the model output
// could not be used; the score is then zero.
type RiskReport struct {
	Error            string       `json:"error,omitempty"`
	OverallRiskScore int          `json:"overall_risk_score"`
	RiskSummary      string       `json:"risk_summary"`
	Clauses          []ClauseRisk `json:"clauses"`
	KeyConcerns      []string     `json:"key_concerns"`
}

var riskSchema = map[string]any{
	"type":     "object",
	"required": []string{"overall_risk_score", "risk_summary"},
	"properties": map[string]any{
		"overall_risk_score": map[string]any{"type": "integer", "minimum": 0, "maximum": 10},
		"risk_summary":       map[string]any{"type": "string"},
		"clauses": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"clause", "risk_level"},
				"properties": map[string]any{
					"clause":     map[string]any{"type": "string"},
					"risk_level": map[string]any{"type": "string"},
					"details":    map[string]any{"type": "string"},
				},
			},
		},
		"key_concerns": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
}

func failedRiskReport(err error) RiskReport {
	return RiskReport{
		Error:            fmt.Sprintf("Failed to analyze risks: %v", err),
		OverallRiskScore: 0,
		RiskSummary:      "Analysis failed",
		Clauses:          []ClauseRisk{},
		KeyConcerns:      []string{"Analysis could not be completed"},
	}
}

// Risks scores content. Model failures and unusable output produce a
// degraded report rather than an error; only missing input or a missing API
// key are errors.
func (s *Service) Risks(ctx context.Context, rc config.Request, content string) (RiskReport, error) {
	if err := requireContent(content); err != nil {
		return RiskReport{}, err
	}
	c, err := s.client(ctx, rc)
	if err != nil {
		return RiskReport{}, err
	}
	log := logging.FromContext(ctx, s.logger)

	raw, err := c.Complete(ctx, llm.Request{
		System:      riskSystem,
		User:        fmt.Sprintf(riskPrompt, content),
		Temperature: 0.7,
		MaxTokens:   2000,
		JSON:        true,
	})
	if err != nil {
		log.Warn("risk analysis failed", zap.Error(err))
		return failedRiskReport(err), nil
	}
	report, err := ParseRiskReport(raw)
	if err != nil {
		log.Warn("risk analysis returned unusable output", zap.Error(err))
		return failedRiskReport(err), nil
	}
	log.Info("risk analysis completed", zap.Int("score", report.OverallRiskScore), zap.Int("clauses", len(report.Clauses)))
	return report, nil
}

// ParseRiskReport validates and decodes the model's JSON.
func ParseRiskReport(raw string) (RiskReport, error) {
	body := []byte(llm.StripCodeFence(raw))
	if err := llm.ValidateJSONAgainstSchema(riskSchema, body); err != nil {
		return RiskReport{}, err
	}
	var report RiskReport
	if err := json.Unmarshal(body, &report); err != nil {
		return RiskReport{}, fmt.Errorf("decode risk report: %w", err)
	}
	report.Error = ""
	if report.Clauses == nil {
		report.Clauses = []ClauseRisk{}
	}
	if report.KeyConcerns == nil {
		report.KeyConcerns = []string{}
	}
	for i := range report.Clauses {
		info := LevelInfo(report.Clauses[i].RiskLevel)
		report.Clauses[i].RiskLevel = strings.ToLower(report.Clauses[i].RiskLevel)
		report.Clauses[i].Color = info.Color
		report.Clauses[i].Description = info.Description
	}
	return report, nil
}
