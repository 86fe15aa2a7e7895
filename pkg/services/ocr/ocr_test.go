package ocr

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contract-flow/pkg/models"
)

func strPtr(s string) *string { return &s }

func ocrLine(box string, words ...string) computervision.OcrLine {
	ws := make([]computervision.OcrWord, len(words))
	for i, w := range words {
		ws[i] = computervision.OcrWord{Text: strPtr(w)}
	}
	return computervision.OcrLine{BoundingBox: strPtr(box), Words: &ws}
}

type fakeRecognizer struct {
	result computervision.OcrResult
	got    int
}

func (f *fakeRecognizer) RecognizePrintedTextInStream(_ context.Context, _ bool, img io.ReadCloser, _ computervision.OcrLanguages) (computervision.OcrResult, error) {
	b, _ := io.ReadAll(img)
	f.got = len(b)
	return f.result, nil
}

func testPNG(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, 10, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractText(t *testing.T) {
	lines := []computervision.OcrLine{
		ocrLine("10,80,200,12", "Signed:", "________"),
		ocrLine("10,20,300,12", "SERVICE", "AGREEMENT"),
		ocrLine("bad"),
	}
	regions := []computervision.OcrRegion{{Lines: &lines}}
	fake := &fakeRecognizer{result: computervision.OcrResult{Regions: &regions}}
	svc := &Service{client: fake, logger: zap.NewNop()}

	text, err := svc.ExtractText(context.Background(), "scan.png", testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "SERVICE AGREEMENT\nSigned: ________", text)
	assert.Positive(t, fake.got)
}

func TestExtractTextRejectsNonImage(t *testing.T) {
	svc := &Service{client: &fakeRecognizer{}, logger: zap.NewNop()}
	_, err := svc.ExtractText(context.Background(), "scan.png", []byte("not an image"))
	assert.Error(t, err)
}

func TestExtractTextFromEmptyResult(t *testing.T) {
	assert.Empty(t, extractTextFromOCRResult(computervision.OcrResult{}))
}

func TestJoinLines(t *testing.T) {
	got := JoinLines([]models.TextLine{
		{Text: "right", X: 300, Y: 10},
		{Text: "left", X: 10, Y: 10},
		{Text: "top", X: 50, Y: 2},
	})
	assert.Equal(t, "top\nleft\nright", got)
}
