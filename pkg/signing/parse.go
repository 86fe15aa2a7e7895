package signing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"contract-flow/pkg/llm"
)

const blockDelimiter = "SIGNATURE_BLOCK:"

// ParseKind tags a ParseResult.
type ParseKind int

const (
	ParseOK ParseKind = iota
	ParseMalformed
)

// ParseResult is either a list of locations or the reason the model output
// could not be read.
type ParseResult struct {
	Kind      ParseKind
	Locations []Location
	Reason    string
}

func Ok(locs []Location) ParseResult {
	return ParseResult{Kind: ParseOK, Locations: locs}
}

func Malformed(format string, args ...any) ParseResult {
	return ParseResult{Kind: ParseMalformed, Reason: fmt.Sprintf(format, args...)}
}

// Err returns a *MalformedResponseError for malformed results and nil otherwise.
func (r ParseResult) Err() error {
	if r.Kind == ParseMalformed {
		return &MalformedResponseError{Reason: r.Reason}
	}
	return nil
}

// MalformedResponseError reports model output that does not follow the requested format.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed signature location response: " + e.Reason
}

// ParseResponse dispatches on schema.
func ParseResponse(raw string, schema Schema) ParseResult {
	if schema == SchemaBlock {
		return ParseBlockResponse(raw)
	}
	return ParseJSONResponse(raw)
}

// ParseBlockResponse reads the line-oriented format: a SIGNATURE_BLOCK: line
// opens a record and "- Key: Value" lines fill it.
func ParseBlockResponse(raw string) ParseResult {
	var (
		locs []Location
		cur  *Location
	)
	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == blockDelimiter {
			if cur != nil {
				locs = append(locs, *cur)
			}
			cur = &Location{AdditionalFields: []string{}}
			continue
		}
		if cur == nil || !strings.HasPrefix(line, "- ") {
			continue
		}
		key, value, ok := strings.Cut(line[2:], ":")
		if !ok {
			return Malformed("line %d has no key separator: %q", i+1, line)
		}
		key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
		value = strings.TrimSpace(value)

		switch key {
		case "role":
			cur.Role = value
		case "position":
			cur.Position = value
		case "anchor_text":
			cur.AnchorText = value
		case "context":
			cur.Context = value
		case "additional_fields":
			cur.AdditionalFields = splitList(value)
		case "is_primary":
			cur.IsPrimary, _ = strconv.ParseBool(strings.ToLower(value))
		}
	}
	if cur != nil {
		locs = append(locs, *cur)
	}
	return Ok(locs)
}

// splitList turns "[Date, Title]" into ["Date", "Title"].
func splitList(value string) []string {
	value = strings.Trim(value, "[]")
	fields := []string{}
	for _, f := range strings.Split(value, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

var locationArraySchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type":     "object",
		"required": []string{"role", "anchor_text"},
		"properties": map[string]any{
			"role":              map[string]any{"type": "string"},
			"anchor_text":       map[string]any{"type": "string"},
			"context":           map[string]any{"type": "string"},
			"additional_fields": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"is_primary":        map[string]any{"type": "boolean"},
		},
	},
}

// ParseJSONResponse reads a JSON array of location objects. An object with a
// single "locations" array, as returned by JSON-mode models, is accepted too.
func ParseJSONResponse(raw string) ParseResult {
	body := []byte(llm.StripCodeFence(raw))

	var wrapped struct {
		Locations json.RawMessage `json:"locations"`
	}
	if len(body) > 0 && body[0] == '{' {
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return Malformed("invalid JSON: %v", err)
		}
		if len(wrapped.Locations) == 0 {
			return Malformed("object response without a locations array")
		}
		body = wrapped.Locations
	}

	if err := llm.ValidateJSONAgainstSchema(locationArraySchema, body); err != nil {
		return Malformed("%v", err)
	}
	var locs []Location
	if err := json.Unmarshal(body, &locs); err != nil {
		return Malformed("invalid JSON: %v", err)
	}
	for i := range locs {
		if locs[i].AdditionalFields == nil {
			locs[i].AdditionalFields = []string{}
		}
	}
	return Ok(locs)
}

// FilterLocations drops records without an anchor or context and makes sure
// every context contains its anchor.
func FilterLocations(locs []Location) []Location {
	out := make([]Location, 0, len(locs))
	for _, loc := range locs {
		if loc.AnchorText == "" || loc.Context == "" {
			continue
		}
		if !strings.Contains(loc.Context, loc.AnchorText) {
			loc.Context = loc.AnchorText + " " + loc.Context
		}
		out = append(out, loc)
	}
	return out
}
