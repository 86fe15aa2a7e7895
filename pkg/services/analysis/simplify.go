package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"contract-flow/pkg/config"
	"contract-flow/pkg/llm"
	"contract-flow/pkg/logging"
)

const simplifySystem = `You are a legal language simplification expert.
Your task is to:
1. Break down complex legal terms into plain English
2. Maintain the legal meaning while making it understandable
3. Provide explanations for key terms
4. Keep the document structure intact

Return a JSON object with:
{
    "simplified_text": "The full simplified contract",
    "sections": [
        {
            "original": "Original section text",
            "simplified": "Simplified version",
            "key_terms": {"term": "explanation"}
        }
    ],
    "glossary": {"legal_term": "simple explanation"}
}`

type SimplifiedSection struct {
	Original   string            `json:"original"`
	Simplified string            `json:"simplified"`
	KeyTerms   map[string]string `json:"key_terms"`
}

// Simplification is a plain-language version of a contract. On failure Error
// is set and SimplifiedText holds the original text.
type Simplification struct {
	Error          string              `json:"error,omitempty"`
	SimplifiedText string              `json:"simplified_text"`
	Sections       []SimplifiedSection `json:"sections"`
	Glossary       map[string]string   `json:"glossary"`
}

var simplifySchema = map[string]any{
	"type":     "object",
	"required": []string{"simplified_text"},
	"properties": map[string]any{
		"simplified_text": map[string]any{"type": "string"},
		"sections":        map[string]any{"type": "array"},
		"glossary":        map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
	},
}

func failedSimplification(content string, err error) Simplification {
	return Simplification{
		Error:          fmt.Sprintf("Failed to simplify language: %v", err),
		SimplifiedText: content,
		Sections:       []SimplifiedSection{},
		Glossary:       map[string]string{},
	}
}

// Simplify rewrites content in plain English with a glossary.
func (s *Service) Simplify(ctx context.Context, rc config.Request, content string) (Simplification, error) {
	if err := requireContent(content); err != nil {
		return Simplification{}, err
	}
	c, err := s.client(ctx, rc)
	if err != nil {
		return Simplification{}, err
	}
	log := logging.FromContext(ctx, s.logger)

	raw, err := c.Complete(ctx, llm.Request{
		System: simplifySystem,
		User:   "Simplify this contract:\n\n" + content,
		JSON:   true,
	})
	if err != nil {
		log.Warn("simplification failed", zap.Error(err))
		return failedSimplification(content, err), nil
	}

	body := []byte(llm.StripCodeFence(raw))
	if err := llm.ValidateJSONAgainstSchema(simplifySchema, body); err != nil {
		log.Warn("simplification returned unusable output", zap.Error(err))
		return failedSimplification(content, err), nil
	}
	var out Simplification
	if err := json.Unmarshal(body, &out); err != nil {
		return failedSimplification(content, err), nil
	}
	out.Error = ""
	if out.Sections == nil {
		out.Sections = []SimplifiedSection{}
	}
	if out.Glossary == nil {
		out.Glossary = map[string]string{}
	}
	return out, nil
}
