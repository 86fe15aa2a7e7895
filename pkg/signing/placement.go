package signing

import (
	"context"

	"go.uber.org/zap"

	"contract-flow/pkg/logging"
	"contract-flow/pkg/pdfdoc"
)

// ContextNudge moves a context-matched point below the context line.
const ContextNudge = 20

// DefaultSlots are used when no location could be resolved.
var DefaultSlots = []pdfdoc.TextPosition{
	{Page: 1, X: 50, Y: 650},
	{Page: 1, X: 350, Y: 650},
}

// DefaultPlacements wraps DefaultSlots without additional fields.
func DefaultPlacements() []Placement {
	out := make([]Placement, len(DefaultSlots))
	for i, p := range DefaultSlots {
		out[i] = Placement{Position: p, AdditionalFields: []string{}}
	}
	return out
}

// ResolvePlacements searches the PDF for each location's anchor text and,
// failing that, its context. Locations found nowhere are skipped. Searches
// run one after another.
func ResolvePlacements(ctx context.Context, locator Locator, pdf []byte, locs []Location, logger *zap.Logger) []Placement {
	log := logging.FromContext(ctx, logger)
	var out []Placement
	for _, loc := range locs {
		pos, ok := locate(locator, pdf, loc.AnchorText, log)
		if !ok && loc.Context != "" {
			if pos, ok = locate(locator, pdf, loc.Context, log); ok {
				pos.Y += ContextNudge
			}
		}
		if !ok {
			log.Debug("signature anchor not found", zap.String("anchor", loc.AnchorText))
			continue
		}
		out = append(out, Placement{Position: pos, AdditionalFields: loc.AdditionalFields})
	}
	return out
}

func locate(locator Locator, pdf []byte, search string, log *zap.Logger) (pdfdoc.TextPosition, bool) {
	pos, ok, err := locator.Locate(pdf, search)
	if err != nil {
		log.Warn("pdf text search failed", zap.Error(err))
		return pdfdoc.TextPosition{}, false
	}
	return pos, ok
}
