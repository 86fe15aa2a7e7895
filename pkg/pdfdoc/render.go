package pdfdoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Layout of rendered contracts. Courier keeps glyph advances fixed, which the
// word extractor relies on.
const (
	FontFamily = "Courier"
	FontSize   = 10.0
	LineHeight = 12.0
)

// Render lays out text as a US Letter PDF, one wrapped block per input line.
func Render(text string) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle("Contract", false)
	pdf.SetAutoPageBreak(true, 36)
	pdf.AddPage()
	pdf.SetFont(FontFamily, "", FontSize)

	text = strings.ReplaceAll(Sanitize(text), "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		pdf.MultiCell(0, LineHeight, line, "", "L", false)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
