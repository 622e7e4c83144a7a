package render

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFRenderer_Render(t *testing.T) {
	questions := testQuestions()
	answers := testAnswers(t)
	result := sheet.Score(questions, answers)
	view := BuildSheetView(testExam(), questions, answers, ViewOptions{ShowKeys: true, Result: &result})

	var buf bytes.Buffer
	require.NoError(t, NewPDFRenderer("answer-sheet-service").Render(&buf, view))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestPDFRenderer_BreaksLongSheetsAcrossPages(t *testing.T) {
	var questions []sheet.Question
	for i := 1; i <= 40; i++ {
		questions = append(questions,
			sheet.Question{Index: i, Kind: sheet.TrueFalse, TrueFalse: &sheet.TrueFalseKey{CorrectAnswers: []bool{true, true, false, false}}})
	}
	view := BuildSheetView(testExam(), questions, nil, ViewOptions{})

	var buf bytes.Buffer
	require.NoError(t, NewPDFRenderer("test").Render(&buf, view))

	assert.Greater(t, bytes.Count(buf.Bytes(), []byte("/Type /Page\n")), 1)
}

func TestHTMLRenderer_Sheet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.HTMLRender = NewHTMLRenderer()

	questions := testQuestions()
	answers := testAnswers(t)
	result := sheet.Score(questions, answers)
	router.GET("/sheet", func(c *gin.Context) {
		c.HTML(http.StatusOK, SheetTemplate, BuildSheetView(testExam(), questions, answers, ViewOptions{ShowKeys: true, Result: &result}))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sheet", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<title>Physics midterm</title>")
	assert.Contains(t, body, "Part I. Multiple choice")
	assert.Contains(t, body, "Part III. Short answer")
	assert.Contains(t, body, "Score: 4.29 / 10")
	assert.Contains(t, body, "Key: 2024")
	assert.Contains(t, body, `class="bubble filled key"`)
}

func TestHTMLRenderer_BlankSheetHasNoScore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.HTMLRender = NewHTMLRenderer()
	router.GET("/sheet", func(c *gin.Context) {
		c.HTML(http.StatusOK, SheetTemplate, BuildSheetView(testExam(), testQuestions(), nil, ViewOptions{}))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sheet", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Score:")
	assert.NotContains(t, w.Body.String(), `class="bubble filled`)
}
