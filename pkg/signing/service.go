package signing

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/config"
	"contract-flow/pkg/logging"
)

const (
	DefaultSubject      = "Please sign this document"
	DefaultDocumentName = "Contract.pdf"
)

// SendRequest is the input of Service.Send.
type SendRequest struct {
	Contract         string
	Signers          []Signer
	UseAIPositioning bool
	Subject          string
	Status           Status
}

// SendResult describes a dispatched envelope.
type SendResult struct {
	EnvelopeID string
	Signers    int
	// AIPlaced is the number of placements resolved from model output; zero
	// means the default slots were used.
	AIPlaced int
}

// Service renders a contract, places signature tabs and dispatches the envelope.
type Service struct {
	renderer  Renderer
	locator   Locator
	provider  Provider
	llms      ClientSource
	extractor *Extractor
	policy    SlotPolicy
	logger    *zap.Logger
}

func NewService(renderer Renderer, locator Locator, provider Provider, llms ClientSource, cfg config.SigningConfig, logger *zap.Logger) *Service {
	policy := SlotPolicy(cfg.SlotPolicy)
	if policy != SlotWrap {
		policy = SlotReuse
	}
	return &Service{
		renderer:  renderer,
		locator:   locator,
		provider:  provider,
		llms:      llms,
		extractor: NewExtractor(Schema(cfg.Schema), logger),
		policy:    policy,
		logger:    logger,
	}
}

// Send validates req, renders the PDF, resolves signature placements
// (falling back to the default slots) and creates the envelope. The provider
// is called exactly once.
func (s *Service) Send(ctx context.Context, rc config.Request, req SendRequest) (SendResult, error) {
	if err := validateSend(req); err != nil {
		return SendResult{}, err
	}
	log := logging.FromContext(ctx, s.logger)

	pdf, err := s.renderer.Render(req.Contract)
	if err != nil {
		return SendResult{}, apperr.New("RENDER_FAILED", "Failed to render contract PDF", err)
	}
	log.Info("contract rendered", zap.Int("pdf_bytes", len(pdf)))

	var placements []Placement
	if req.UseAIPositioning {
		placements = s.aiPlacements(ctx, rc, req.Contract, pdf)
	}
	aiPlaced := len(placements)
	if aiPlaced == 0 {
		log.Info("using default signature positions")
	}

	env := Envelope{
		Subject:      req.Subject,
		DocumentName: DefaultDocumentName,
		Document:     pdf,
		Signers:      Assign(req.Signers, placements, s.policy),
		Status:       req.Status,
	}
	if env.Subject == "" {
		env.Subject = DefaultSubject
	}
	if env.Status == "" {
		env.Status = StatusSent
	}

	id, err := s.provider.CreateEnvelope(ctx, rc.DocuSign, env)
	if err != nil {
		if errors.Is(err, config.ErrDocuSignNotConfigured) {
			return SendResult{}, apperr.New("DOCUSIGN_NOT_CONFIGURED", err.Error(), fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err))
		}
		return SendResult{}, apperr.Upstream("docusign", err)
	}
	log.Info("envelope created", zap.String("envelope_id", id), zap.Int("signers", len(req.Signers)), zap.Int("ai_placed", aiPlaced))
	return SendResult{EnvelopeID: id, Signers: len(req.Signers), AIPlaced: aiPlaced}, nil
}

func (s *Service) aiPlacements(ctx context.Context, rc config.Request, contract string, pdf []byte) []Placement {
	log := logging.FromContext(ctx, s.logger)
	client, err := s.llms.For(ctx, rc.LLM)
	if err != nil {
		log.Warn("ai positioning unavailable", zap.Error(err))
		return nil
	}
	locs := s.extractor.Extract(ctx, client, contract)
	if len(locs) == 0 {
		return nil
	}
	placements := ResolvePlacements(ctx, s.locator, pdf, locs, s.logger)
	log.Info("ai signature positions resolved", zap.Int("locations", len(locs)), zap.Int("placed", len(placements)))
	return placements
}

// Locations runs only the model step, for previewing placements.
func (s *Service) Locations(ctx context.Context, rc config.Request, contract string) ([]Location, error) {
	if strings.TrimSpace(contract) == "" {
		return nil, apperr.Invalid("contract_text is required")
	}
	client, err := s.llms.For(ctx, rc.LLM)
	if err != nil {
		return nil, apperr.New("LLM_NOT_CONFIGURED", "No language model API key is configured", fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err))
	}
	locs, err := s.extractor.Analyze(ctx, client, contract)
	if err != nil {
		var malformed *MalformedResponseError
		if errors.As(err, &malformed) {
			logging.FromContext(ctx, s.logger).Warn("malformed signature response", zap.String("reason", malformed.Reason))
			return []Location{}, nil
		}
		return nil, apperr.Upstream("llm", err)
	}
	return locs, nil
}

func validateSend(req SendRequest) error {
	if strings.TrimSpace(req.Contract) == "" || len(req.Signers) == 0 {
		return apperr.Invalid("Contract and signers are required")
	}
	for i, sg := range req.Signers {
		if strings.TrimSpace(sg.Name) == "" {
			return apperr.Invalidf("signer %d: name is required", i+1)
		}
		if _, err := mail.ParseAddress(sg.Email); err != nil {
			return apperr.Invalidf("signer %d: invalid email %q", i+1, sg.Email)
		}
	}
	switch req.Status {
	case "", StatusCreated, StatusSent:
	default:
		return apperr.Invalidf("status must be %q or %q", StatusCreated, StatusSent)
	}
	return nil
}
