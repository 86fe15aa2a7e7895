package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/logging"
	"contract-flow/pkg/pdfdoc"
)

// OCR reads text from a scanned image.
type OCR interface {
	ExtractText(ctx context.Context, filename string, data []byte) (string, error)
}

// Service turns uploaded documents into plain text.
type Service struct {
	pdf    *pdfdoc.Extractor
	ocr    OCR
	logger *zap.Logger
}

// NewService returns an extractor. ocr may be nil, in which case image
// uploads are rejected.
func NewService(pdf *pdfdoc.Extractor, ocr OCR, logger *zap.Logger) *Service {
	return &Service{pdf: pdf, ocr: ocr, logger: logger}
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".gif": true, ".tif": true, ".tiff": true,
}

// Extract dispatches on the file extension and returns trimmed text.
func (s *Service) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.Invalid("No file selected")
	}
	log := logging.FromContext(ctx, s.logger).With(zap.String("file", filename), zap.Int("bytes", len(data)))

	var (
		text string
		err  error
	)
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		text, err = s.fromPDF(data)
	case ext == ".docx":
		text, err = FromDOCX(data)
	case ext == ".txt" || ext == ".md":
		text, err = FromText(data)
	case imageExts[ext]:
		if s.ocr == nil {
			return "", apperr.Invalid("Image uploads require OCR to be configured")
		}
		text, err = s.ocr.ExtractText(ctx, filename, data)
		if err != nil {
			log.Error("ocr failed", zap.Error(err))
			return "", apperr.Upstream("ocr", err)
		}
	default:
		return "", apperr.Invalidf("Unsupported file type: %s", ext)
	}
	if err != nil {
		log.Warn("text extraction failed", zap.Error(err))
		return "", apperr.New("EXTRACTION_FAILED", "Could not process file", fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.New("EXTRACTION_FAILED", "Could not process file", apperr.ErrInvalidInput)
	}
	log.Info("text extracted", zap.String("type", ext), zap.Int("chars", len(text)))
	return text, nil
}

func (s *Service) fromPDF(data []byte) (string, error) {
	if err := pdfdoc.Validate(data); err != nil {
		return "", err
	}
	return s.pdf.Text(data)
}
