package extractor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResume = "Senior Go engineer with ten years of experience building distributed systems."

// fakeRecognizer 按调用顺序返回预设文本
type fakeRecognizer struct {
	mu     sync.Mutex
	texts  []string
	err    error
	calls  int
	images []image.Image
}

func (f *fakeRecognizer) Recognize(_ context.Context, img image.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, img)
	if f.err != nil {
		return "", f.err
	}
	text := ""
	if f.calls < len(f.texts) {
		text = f.texts[f.calls]
	}
	f.calls++
	return text, nil
}

type fakeRasterizer struct {
	pages int
	err   error
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ []byte, dpi float64) ([]image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	if dpi < DefaultOCRDPI {
		return nil, errors.New("dpi too low")
	}
	pages := make([]image.Image, f.pages)
	for i := range pages {
		pages[i] = image.NewRGBA(image.Rect(0, 0, 8, 8))
	}
	return pages, nil
}

func staticStrategy(name, text string, calls *int) PDFStrategy {
	return PDFStrategy{Name: name, Extract: func(context.Context, []byte, string) (string, error) {
		if calls != nil {
			*calls++
		}
		return text, nil
	}}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), opts...)
	require.NoError(t, err)
	return e
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		img.Set(x, x, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := newTestEngine(t, WithPDFStrategies(staticStrategy("noop", "", nil)))

	for _, name := range []string{"resume.txt", "resume", "cv.odt"} {
		_, err := e.Extract(context.Background(), []byte("data"), name)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)

		var extErr *ExtractionError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, name, extErr.Filename)
	}
}

func TestExtractPDFStopsAtFirstSufficientStrategy(t *testing.T) {
	var first, second int
	e := newTestEngine(t, WithPDFStrategies(
		staticStrategy("layout", sampleResume, &first),
		staticStrategy("structural", "should not run", &second),
	))

	text, err := e.Extract(context.Background(), []byte("%PDF"), "CV.PDF")
	require.NoError(t, err)
	assert.Equal(t, sampleResume, text)
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second, "第一个方法足够时不应继续尝试")
}

func TestExtractPDFFailingStrategiesAreSkipped(t *testing.T) {
	e := newTestEngine(t, WithPDFStrategies(
		PDFStrategy{Name: "broken", Extract: func(context.Context, []byte, string) (string, error) {
			return "", errors.New("malformed xref")
		}},
		PDFStrategy{Name: "panics", Extract: func(context.Context, []byte, string) (string, error) {
			panic("index out of range")
		}},
		staticStrategy("structural", sampleResume, nil),
	))

	text, err := e.Extract(context.Background(), []byte("%PDF"), "cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, sampleResume, text)
}

func TestExtractPDFInsufficientWithoutOCR(t *testing.T) {
	e := newTestEngine(t, WithPDFStrategies(
		staticStrategy("layout", "short", nil),
		staticStrategy("structural", "", nil),
	))

	_, err := e.Extract(context.Background(), []byte("%PDF"), "scan.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientText)
	assert.Contains(t, err.Error(), "OCR")
}

func TestExtractPDFFallsBackToOCR(t *testing.T) {
	rec := &fakeRecognizer{texts: []string{
		"Page one: Senior Go engineer with ten years of experience.",
		"Page two: Kubernetes, PostgreSQL, gRPC.",
	}}
	e := newTestEngine(t,
		WithPDFStrategies(staticStrategy("layout", "tiny", nil)),
		WithOCR(rec, &fakeRasterizer{pages: 2}),
	)

	text, err := e.Extract(context.Background(), []byte("%PDF"), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.calls, "每页应识别一次")
	assert.True(t, strings.HasPrefix(text, "Page one"))
	assert.Contains(t, text, "experience. Page two")
}

func TestExtractPDFKeepsLongerDigitalText(t *testing.T) {
	digital := strings.Repeat("word ", 8) // 40个字符，不足阈值
	rec := &fakeRecognizer{texts: []string{"ocr"}}
	e := newTestEngine(t,
		WithPDFStrategies(staticStrategy("layout", digital, nil)),
		WithOCR(rec, &fakeRasterizer{pages: 1}),
	)

	_, err := e.Extract(context.Background(), []byte("%PDF"), "scan.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientText)
	assert.Contains(t, err.Error(), "39", "应报告较长的数字提取结果长度")
}

func TestExtractPDFOCRFailureIsTerminal(t *testing.T) {
	e := newTestEngine(t,
		WithPDFStrategies(staticStrategy("layout", "", nil)),
		WithOCR(&fakeRecognizer{}, &fakeRasterizer{err: errors.New("mupdf: cannot open")}),
	)

	_, err := e.Extract(context.Background(), []byte("%PDF"), "scan.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Contains(t, err.Error(), "mupdf")
}

func TestExtractIsIdempotent(t *testing.T) {
	e := newTestEngine(t, WithPDFStrategies(staticStrategy("layout", "  "+sampleResume+"\n\n\n• Go  ", nil)))

	a, err := e.Extract(context.Background(), []byte("%PDF"), "cv.pdf")
	require.NoError(t, err)
	b, err := e.Extract(context.Background(), []byte("%PDF"), "cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, sampleResume+"  Go", a)
}

func TestExtractImageRequiresOCR(t *testing.T) {
	e := newTestEngine(t, WithPDFStrategies(staticStrategy("noop", "", nil)))

	_, err := e.Extract(context.Background(), pngBytes(t), "photo.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOCRDisabled)
}

func TestExtractImage(t *testing.T) {
	rec := &fakeRecognizer{texts: []string{sampleResume}}
	e := newTestEngine(t,
		WithPDFStrategies(staticStrategy("noop", "", nil)),
		WithOCR(rec, nil),
	)

	text, err := e.Extract(context.Background(), pngBytes(t), "photo.PNG")
	require.NoError(t, err)
	assert.Equal(t, sampleResume, text)
	require.Len(t, rec.images, 1)
	assert.Equal(t, image.Rect(0, 0, 16, 16), rec.images[0].Bounds())
}

func TestExtractImageDecodeFailure(t *testing.T) {
	e := newTestEngine(t,
		WithPDFStrategies(staticStrategy("noop", "", nil)),
		WithOCR(&fakeRecognizer{texts: []string{sampleResume}}, nil),
	)

	_, err := e.Extract(context.Background(), []byte("not an image"), "photo.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestPreprocessFailureFallsBackToOriginal(t *testing.T) {
	for name, pre := range map[string]Preprocessor{
		"error": func(image.Image) (image.Image, error) { return nil, errors.New("boom") },
		"panic": func(image.Image) (image.Image, error) { panic("boom") },
	} {
		t.Run(name, func(t *testing.T) {
			rec := &fakeRecognizer{texts: []string{sampleResume}}
			e := newTestEngine(t,
				WithPDFStrategies(staticStrategy("noop", "", nil)),
				WithOCR(rec, nil),
				WithPreprocessor(pre),
			)

			text, err := e.Extract(context.Background(), pngBytes(t), "photo.png")
			require.NoError(t, err)
			assert.Equal(t, sampleResume, text)
			require.Len(t, rec.images, 1)
			assert.NotNil(t, rec.images[0])
		})
	}
}

func TestPreprocessForOCR(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 6))
	src.Set(1, 1, color.RGBA{R: 200, G: 10, B: 10, A: 255})

	out, err := PreprocessForOCR(src)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds().Size(), out.Bounds().Size())

	r, g, b, _ := out.At(1, 1).RGBA()
	assert.Equal(t, r, g, "灰度化后各通道应相等")
	assert.Equal(t, g, b)

	_, err = PreprocessForOCR(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

func TestContrastPercentage(t *testing.T) {
	assert.InDelta(t, 50.0, contrastPercentage(2.0), 1e-9)
	assert.InDelta(t, 0.0, contrastPercentage(1.0), 1e-9)
	assert.Equal(t, -100.0, contrastPercentage(0))
}

func TestWithDPIHasFloor(t *testing.T) {
	e := newTestEngine(t, WithPDFStrategies(staticStrategy("noop", "", nil)), WithDPI(72))
	assert.Equal(t, DefaultOCRDPI, e.dpi)
}
