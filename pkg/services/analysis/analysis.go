package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/config"
	"contract-flow/pkg/llm"
	"contract-flow/pkg/logging"
)

// ClientSource resolves the LLM client for a request's configuration.
type ClientSource interface {
	For(ctx context.Context, cfg config.LLMConfig) (llm.Client, error)
}

// Service runs the contract review prompts.
type Service struct {
	llms   ClientSource
	logger *zap.Logger
}

func NewService(llms ClientSource, logger *zap.Logger) *Service {
	return &Service{llms: llms, logger: logger}
}

func (s *Service) client(ctx context.Context, rc config.Request) (llm.Client, error) {
	c, err := s.llms.For(ctx, rc.LLM)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return nil, apperr.New("LLM_NOT_CONFIGURED", "No language model API key is configured", fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err))
		}
		return nil, apperr.Upstream("llm", err)
	}
	return c, nil
}

func requireContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperr.Invalid("No content provided")
	}
	return nil
}

const analyzeSystem = `You are a legal expert analyzing contracts.
Provide a structured analysis with clear section headers and items.

Format your response exactly like this:

SECTION: Key Terms and Definitions
- Term: Description of the term
- Another Term: Its description

SECTION: Obligations and Responsibilities
- Obligation: Description
- Responsibility: Details

And so on for each section. Always use 'SECTION:' to start a new section.`

// Item is one bullet of a section.
type Item struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Section groups the items under one SECTION: header.
type Section struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Analyze returns the model's sectioned review of content.
func (s *Service) Analyze(ctx context.Context, rc config.Request, content string) ([]Section, error) {
	if err := requireContent(content); err != nil {
		return nil, err
	}
	c, err := s.client(ctx, rc)
	if err != nil {
		return nil, err
	}
	raw, err := c.Complete(ctx, llm.Request{
		System:      analyzeSystem,
		User:        "Analyze this contract:\n\n" + content,
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, apperr.Upstream("llm", err)
	}
	sections := ParseSections(raw)
	logging.FromContext(ctx, s.logger).Info("contract analyzed", zap.Int("sections", len(sections)))
	return sections, nil
}

// ParseSections reads the SECTION: format. Bullets before the first header
// are ignored; a bullet without a colon becomes an untitled item.
func ParseSections(raw string) []Section {
	sections := []Section{}
	var cur *Section
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "SECTION:"):
			if cur != nil {
				sections = append(sections, *cur)
			}
			cur = &Section{Title: strings.TrimSpace(strings.TrimPrefix(line, "SECTION:")), Items: []Item{}}
		case strings.HasPrefix(line, "-") && cur != nil:
			text := strings.TrimSpace(line[1:])
			if title, desc, ok := strings.Cut(text, ":"); ok {
				cur.Items = append(cur.Items, Item{Title: strings.TrimSpace(title), Description: strings.TrimSpace(desc)})
			} else {
				cur.Items = append(cur.Items, Item{Description: text})
			}
		}
	}
	if cur != nil {
		sections = append(sections, *cur)
	}
	return sections
}

const rewriteSystem = `You are a legal expert rewriting contracts.
Follow these guidelines:
1. Maintain all essential legal terms and clauses
2. Keep the same structure unless specified otherwise
3. Ensure all parties, dates, and key terms are preserved
4. Format the output as a proper legal document
5. Only make changes that align with the given instructions`

// Rewrite applies instructions to content.
func (s *Service) Rewrite(ctx context.Context, rc config.Request, content, instructions string) (string, error) {
	if strings.TrimSpace(content) == "" || strings.TrimSpace(instructions) == "" {
		return "", apperr.Invalid("Missing content or instructions")
	}
	c, err := s.client(ctx, rc)
	if err != nil {
		return "", err
	}
	user := "Please rewrite this contract following these specific instructions:\n\nInstructions:\n" +
		instructions + "\n\nOriginal Contract:\n" + content +
		"\n\nProvide the rewritten contract maintaining proper legal formatting."
	out, err := c.Complete(ctx, llm.Request{System: rewriteSystem, User: user, Temperature: 0.7, MaxTokens: 2000})
	if err != nil {
		return "", apperr.Upstream("llm", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", apperr.Upstream("llm", errors.New("empty rewrite"))
	}
	logging.FromContext(ctx, s.logger).Info("contract rewritten", zap.Int("chars", len(out)))
	return out, nil
}
