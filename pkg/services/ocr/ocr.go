package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"contract-flow/pkg/models"
)

// ErrNotConfigured is returned when no Azure endpoint or key is set.
var ErrNotConfigured = errors.New("ocr is not configured")

type recognizer interface {
	RecognizePrintedTextInStream(ctx context.Context, detectOrientation bool, imageParameter io.ReadCloser, language computervision.OcrLanguages) (computervision.OcrResult, error)
}

// Service handles OCR operations for scanned contract pages
type Service struct {
	client recognizer
	logger *zap.Logger
}

// NewService creates a new OCR service
func NewService(endpoint, apiKey string, logger *zap.Logger) *Service {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &Service{client: &client, logger: logger}
}

// EnhanceImageForOCR writes a high-contrast grayscale copy of the image at
// srcPath to destPath.
func (s *Service) EnhanceImageForOCR(srcPath, destPath string) error {
	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	img = imaging.AdjustGamma(img, 1.2)

	// Azure rejects images over 4200px on a side
	b := img.Bounds()
	if b.Dx() > 4200 || b.Dy() > 4200 {
		img = imaging.Fit(img, 4200, 4200, imaging.Lanczos)
	}

	if err := imaging.Save(img, destPath); err != nil {
		return fmt.Errorf("failed to save processed image: %w", err)
	}
	return nil
}

// ExtractText runs OCR over an uploaded image. The source and enhanced copies
// live in a temporary directory that is removed before returning.
func (s *Service) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	lines, err := s.ExtractLines(ctx, filename, data)
	if err != nil {
		return "", err
	}
	return JoinLines(lines), nil
}

// ExtractLines is ExtractText with line positions.
func (s *Service) ExtractLines(ctx context.Context, filename string, data []byte) ([]models.TextLine, error) {
	tempDir, err := os.MkdirTemp("", "contract_ocr_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			s.logger.Warn("failed to clean up temp directory", zap.Error(err))
		}
	}()

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".png"
	}
	srcPath := filepath.Join(tempDir, "upload"+ext)
	if err := os.WriteFile(srcPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	processedPath := filepath.Join(tempDir, "processed.jpg")
	if err := s.EnhanceImageForOCR(srcPath, processedPath); err != nil {
		return nil, err
	}

	imageData, err := os.ReadFile(processedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read processed file: %w", err)
	}

	result, err := s.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(imageData)),
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	lines := extractTextFromOCRResult(result)
	s.logger.Info("ocr completed", zap.String("file", filename), zap.Int("lines", len(lines)))
	return lines, nil
}

// extractTextFromOCRResult extracts text lines with position information from OCR result
func extractTextFromOCRResult(result computervision.OcrResult) []models.TextLine {
	var textLines []models.TextLine
	if result.Regions == nil {
		return textLines
	}
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			var boundingBox []int
			if line.BoundingBox != nil {
				for _, part := range strings.Split(*line.BoundingBox, ",") {
					val, _ := strconv.Atoi(strings.TrimSpace(part))
					boundingBox = append(boundingBox, val)
				}
			}

			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}

			if len(boundingBox) >= 4 {
				textLines = append(textLines, models.TextLine{
					Text:   strings.Join(words, " "),
					X:      boundingBox[0],
					Y:      boundingBox[1],
					Width:  boundingBox[2],
					Height: boundingBox[3],
				})
			}
		}
	}
	return textLines
}

// JoinLines orders lines top to bottom, then left to right, and joins them.
func JoinLines(lines []models.TextLine) string {
	sorted := append([]models.TextLine(nil), lines...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})
	texts := make([]string, len(sorted))
	for i, l := range sorted {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}
