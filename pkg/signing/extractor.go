package signing

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"contract-flow/pkg/llm"
	"contract-flow/pkg/logging"
)

// Extractor asks the model for signature locations. It never fails: any
// model or parse problem yields an empty slice so callers fall back to the
// default slots.
type Extractor struct {
	Schema Schema
	logger *zap.Logger
}

func NewExtractor(schema Schema, logger *zap.Logger) *Extractor {
	if schema != SchemaBlock {
		schema = SchemaJSON
	}
	return &Extractor{Schema: schema, logger: logger}
}

// Extract returns the filtered locations for contractText.
func (e *Extractor) Extract(ctx context.Context, client llm.Client, contractText string) []Location {
	locs, err := e.Analyze(ctx, client, contractText)
	if err != nil {
		logging.FromContext(ctx, e.logger).Warn("signature location analysis failed, using defaults",
			zap.String("schema", string(e.Schema)), zap.Error(err))
		return []Location{}
	}
	return locs
}

// Analyze is Extract with the failure reported.
func (e *Extractor) Analyze(ctx context.Context, client llm.Client, contractText string) ([]Location, error) {
	if client == nil {
		return nil, llm.ErrNotConfigured
	}
	if contractText == "" {
		return nil, errors.New("empty contract text")
	}
	system, user := BuildLocationPrompt(contractText, e.Schema)
	raw, err := client.Complete(ctx, llm.Request{
		System:      system,
		User:        user,
		Temperature: locationTemperature,
		MaxTokens:   locationMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	res := ParseResponse(raw, e.Schema)
	switch res.Kind {
	case ParseOK:
		locs := FilterLocations(res.Locations)
		logging.FromContext(ctx, e.logger).Info("signature locations parsed",
			zap.Int("records", len(res.Locations)), zap.Int("kept", len(locs)))
		return locs, nil
	case ParseMalformed:
		return nil, res.Err()
	default:
		return nil, errors.New("unknown parse result")
	}
}
