package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// CourierAdvance is the advance of every Courier glyph (600/1000 em).
const CourierAdvance = 0.6

var configOnce sync.Once

// TextPosition locates a word on a page. X and Y use a bottom-left origin,
// Y being page height minus the word's top edge.
type TextPosition struct {
	Page   int     `json:"page_number"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Extractor reads the text layer of a PDF into positioned words.
type Extractor struct {
	Tolerance WordTolerance
	// GlyphAdvance is the per-glyph advance in em for fonts that carry no
	// widths and are not one of the standard 14.
	GlyphAdvance float64
}

func NewExtractor() *Extractor {
	return &Extractor{Tolerance: DefaultTolerance, GlyphAdvance: CourierAdvance}
}

func pdfConfig() *model.Configuration {
	configOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Pages decodes every page's content stream and returns its words. Each
// page's fonts are read from its resources so that composite (Type0) fonts and
// ToUnicode maps decode to the text they draw.
func (e *Extractor) Pages(pdf []byte) ([]Page, error) {
	ctx, err := api.ReadAndValidate(bytes.NewReader(pdf), pdfConfig())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("read page dimensions: %w", err)
	}

	pages := make([]Page, 0, len(dims))
	for i, d := range dims {
		nr := i + 1
		pageDict, _, inherited, err := ctx.PageDict(nr, false)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", nr, err)
		}
		content, err := ctx.PageContent(pageDict, nr)
		if err != nil && !errors.Is(err, model.ErrNoContent) {
			return nil, fmt.Errorf("failed to extract content: %w", err)
		}

		in := newInterpreter(e.GlyphAdvance)
		if inherited != nil {
			in.fonts = loadFonts(ctx.XRefTable, inherited.Resources)
		}
		pages = append(pages, Page{
			Number: nr,
			Width:  d.Width,
			Height: d.Height,
			Words:  clusterWords(in.run(content), d.Height, e.Tolerance),
		})
	}
	return pages, nil
}

// Text returns the document's text, one line per extracted text line.
func (e *Extractor) Text(pdf []byte) (string, error) {
	pages, err := e.Pages(pdf)
	if err != nil {
		return "", err
	}
	return PlainText(pages), nil
}

// Locate finds the first word containing search, case-insensitively, scanning
// pages in order and words in reading order. A miss returns false with no error.
func (e *Extractor) Locate(pdf []byte, search string) (TextPosition, bool, error) {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return TextPosition{}, false, nil
	}
	pages, err := e.Pages(pdf)
	if err != nil {
		return TextPosition{}, false, err
	}
	pos, ok := FindWord(pages, needle)
	return pos, ok, nil
}

// FindWord is Locate over already extracted pages.
func FindWord(pages []Page, search string) (TextPosition, bool) {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return TextPosition{}, false
	}
	for _, p := range pages {
		for _, w := range p.Words {
			if strings.Contains(strings.ToLower(w.Text), needle) {
				return TextPosition{
					Page:   p.Number,
					X:      w.X0,
					Y:      p.Height - w.Top,
					Width:  w.X1 - w.X0,
					Height: w.Bottom - w.Top,
				}, true
			}
		}
	}
	return TextPosition{}, false
}

// Validate checks that pdf parses as a PDF document.
func Validate(pdf []byte) error {
	if err := api.Validate(bytes.NewReader(pdf), pdfConfig()); err != nil {
		return fmt.Errorf("invalid pdf: %w", err)
	}
	return nil
}
