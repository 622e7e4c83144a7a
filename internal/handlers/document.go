package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/answer-sheet-service/internal/render"
	"github.com/SAP-F-2025/answer-sheet-service/internal/services"
	"github.com/gin-gonic/gin"
)

// documentWriter turns a SheetDocument into a PDF download or a printable
// HTML page.
type documentWriter struct {
	BaseHandler
	pdf *render.PDFRenderer
}

func (w *documentWriter) view(doc *services.SheetDocument) *render.SheetView {
	return render.BuildSheetView(doc.Exam, doc.Questions, doc.Sheet, render.ViewOptions{
		ShowKeys: doc.ShowKeys,
		Result:   doc.Result,
		Record:   doc.Record,
	})
}

func (w *documentWriter) writePDF(c *gin.Context, doc *services.SheetDocument, filename string) {
	var buf bytes.Buffer
	if err := w.pdf.Render(&buf, w.view(doc)); err != nil {
		w.RespondWithError(c, http.StatusInternalServerError, "Failed to render PDF", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (w *documentWriter) writeHTML(c *gin.Context, doc *services.SheetDocument) {
	c.HTML(http.StatusOK, render.SheetTemplate, w.view(doc))
}
