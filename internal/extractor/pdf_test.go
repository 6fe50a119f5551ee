package extractor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRowRestoresWordGaps(t *testing.T) {
	row := []pdf.Text{
		{X: 40, W: 25, S: "World", FontSize: 10},
		{X: 10, W: 25, S: "Hello", FontSize: 10},
		{X: 65.5, W: 5, S: "!", FontSize: 10},
	}
	assert.Equal(t, "Hello World!", joinRow(row))
}

func TestJoinRowKeepsExistingSpaces(t *testing.T) {
	row := []pdf.Text{
		{X: 0, W: 10, S: "Go ", FontSize: 10},
		{X: 20, W: 10, S: "Python", FontSize: 10},
	}
	assert.Equal(t, "Go Python", joinRow(row))
}

func TestExtractPDFLayoutRejectsGarbage(t *testing.T) {
	_, err := extractPDFLayout(context.Background(), []byte("not a pdf"), "x.pdf")
	assert.Error(t, err)
}

func TestTikaStrategy(t *testing.T) {
	var gotMethod, gotName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotName = r.Header.Get("X-Tika-Resource-Name")
		body, _ := io.ReadAll(r.Body)
		if string(body) != "%PDF-1.4" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(sampleResume))
	}))
	defer server.Close()

	e := newTestEngine(t,
		WithPDFStrategies(staticStrategy("layout", "", nil)),
		WithTika(server.URL+"/", 0),
	)
	require.Len(t, e.pdfStrategies, 2)
	assert.Equal(t, "tika", e.pdfStrategies[1].Name)

	text, err := e.Extract(context.Background(), []byte("%PDF-1.4"), "cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, sampleResume, text)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "cv.pdf", gotName)
}

func TestTikaStrategyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := newTikaClient(server.URL, 0).extract(context.Background(), []byte("%PDF"), "cv.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}
