package signing

import (
	"context"

	"contract-flow/pkg/config"
	"contract-flow/pkg/llm"
	"contract-flow/pkg/pdfdoc"
)

// Location is one place the model believes a signature belongs.
type Location struct {
	Role             string   `json:"role"`
	AnchorText       string   `json:"anchor_text"`
	Context          string   `json:"context,omitempty"`
	AdditionalFields []string `json:"additional_fields"`
	IsPrimary        bool     `json:"is_primary"`
	// Position is the model's free-text description, only produced by the block format.
	Position string `json:"position,omitempty"`
}

// Signer is a recipient as submitted by the client.
type Signer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Placement is a resolved signature point plus the extra fields wanted there.
type Placement struct {
	Position         pdfdoc.TextPosition
	AdditionalFields []string
}

// SignHereTab is the signer's primary signature field.
type SignHereTab struct {
	Page int
	X    int
	Y    int
}

// TextTab is a labelled text field. The name tab carries Value, additional
// fields carry Label.
type TextTab struct {
	Page  int
	X     int
	Y     int
	Label string
	Value string
	Width int
}

// Assignment binds a signer to a recipient id and its tabs.
type Assignment struct {
	Email          string
	Name           string
	RecipientID    int
	RoutingOrder   int
	Position       pdfdoc.TextPosition
	SignHere       SignHereTab
	NameTab        TextTab
	AdditionalTabs []TextTab
}

type Status string

const (
	StatusCreated Status = "created"
	StatusSent    Status = "sent"
)

// Envelope is the document plus routing handed to the e-signature provider.
type Envelope struct {
	Subject      string
	DocumentName string
	Document     []byte
	Signers      []Assignment
	Status       Status
}

// Renderer turns contract text into PDF bytes.
type Renderer interface {
	Render(text string) ([]byte, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(text string) ([]byte, error)

func (f RendererFunc) Render(text string) ([]byte, error) { return f(text) }

// Locator finds the first word containing search in a PDF.
type Locator interface {
	Locate(pdf []byte, search string) (pdfdoc.TextPosition, bool, error)
}

// Provider submits envelopes to the e-signature service.
type Provider interface {
	CreateEnvelope(ctx context.Context, cfg config.DocuSignConfig, env Envelope) (string, error)
}

// ClientSource resolves the LLM client for a request's configuration.
type ClientSource interface {
	For(ctx context.Context, cfg config.LLMConfig) (llm.Client, error)
}
