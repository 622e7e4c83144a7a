package render

import (
	"fmt"
	"io"

	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/go-pdf/fpdf"
)

// Layout sizes in millimetres.
const (
	pageMargin    = 12.0
	bubbleRadius  = 2.2
	bubbleStep    = 6.0
	lineHeight    = 6.0
	choiceColumns = 4
	choiceWidth   = 46.0
	blockGap      = 4.0
	promptWidth   = 180.0
)

var (
	inkColor    = [3]int{20, 20, 20}
	keyColor    = [3]int{22, 128, 61}
	mutedColor  = [3]int{120, 120, 120}
	headerColor = [3]int{235, 238, 245}
)

// PDFRenderer writes a SheetView as a vector A4 document.
type PDFRenderer struct {
	creator string
}

func NewPDFRenderer(creator string) *PDFRenderer {
	return &PDFRenderer{creator: creator}
}

func (r *PDFRenderer) Render(w io.Writer, view *SheetView) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pdf.SetTitle(view.Title, true)
	pdf.SetCreator(r.creator, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	p := &pdfPage{pdf: pdf, tr: tr}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pageMargin + 2)
		pdf.SetFont("Helvetica", "", 8)
		setText(pdf, mutedColor)
		pdf.CellFormat(0, 4, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	p.header(view)
	for _, section := range view.Sections {
		p.section(section)
		switch section.Kind {
		case sheet.MultipleChoice:
			p.choiceGrid(section.Questions)
		case sheet.TrueFalse:
			for _, q := range section.Questions {
				p.statementBlock(q)
			}
		case sheet.FillInBlank:
			p.numeralRow(section.Questions)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to lay out pdf: %w", err)
	}
	return pdf.Output(w)
}

type pdfPage struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// ensure starts a new page when height does not fit below the cursor.
func (p *pdfPage) ensure(height float64) {
	_, pageHeight := p.pdf.GetPageSize()
	if p.pdf.GetY()+height > pageHeight-pageMargin-4 {
		p.pdf.AddPage()
	}
}

func (p *pdfPage) header(view *SheetView) {
	pdf := p.pdf
	setText(pdf, inkColor)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, p.tr(view.Title), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	meta := fmt.Sprintf("Duration: %d minutes", view.DurationMinutes)
	if view.Subject != "" {
		meta = p.tr(view.Subject) + "   " + meta
	}
	pdf.CellFormat(0, lineHeight, meta, "", 1, "C", false, 0, "")

	if view.StudentID != "" {
		line := "Student: " + p.tr(view.StudentID)
		if view.SubmittedAt != nil {
			line += "   Submitted: " + view.SubmittedAt.Format("2006-01-02 15:04")
		}
		pdf.CellFormat(0, lineHeight, line, "", 1, "C", false, 0, "")
	} else {
		pdf.CellFormat(0, lineHeight, "Student: ______________________   ID: ____________", "", 1, "C", false, 0, "")
	}

	if view.Result != nil {
		pdf.SetFont("Helvetica", "B", 12)
		setText(pdf, keyColor)
		pdf.CellFormat(0, 8, fmt.Sprintf("Score: %.2f / %d   (%d of %d correct)",
			view.Result.Score, sheet.ScaleMax, view.Result.Correct, view.Result.Total), "", 1, "C", false, 0, "")
		setText(pdf, inkColor)
	}
	pdf.Ln(blockGap)
}

func (p *pdfPage) section(section Section) {
	pdf := p.pdf
	p.ensure(lineHeight * 3)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(headerColor[0], headerColor[1], headerColor[2])
	pdf.CellFormat(0, 7, section.Title, "", 1, "L", true, 0, "")
	pdf.Ln(2)
}

// choiceGrid prints multiple-choice questions in rows of choiceColumns.
func (p *pdfPage) choiceGrid(questions []QuestionView) {
	pdf := p.pdf
	left, _, _, _ := pdf.GetMargins()
	for i := 0; i < len(questions); i += choiceColumns {
		p.ensure(bubbleStep + 2)
		y := pdf.GetY()
		end := i + choiceColumns
		if end > len(questions) {
			end = len(questions)
		}
		for col, q := range questions[i:end] {
			x := left + float64(col)*choiceWidth
			p.number(x, y, q.Number)
			for j, b := range q.Options {
				p.bubble(x+12+float64(j)*bubbleStep, y+bubbleStep/2, b)
			}
			p.mark(x+12+float64(len(q.Options))*bubbleStep-1, y, q.Result)
		}
		pdf.SetY(y + bubbleStep + 1)
	}
	pdf.Ln(blockGap)
}

func (p *pdfPage) statementBlock(q QuestionView) {
	pdf := p.pdf
	left, _, _, _ := pdf.GetMargins()
	height := float64(len(q.Statements))*bubbleStep + lineHeight + 2
	p.ensure(height)

	y := pdf.GetY()
	p.number(left, y, q.Number)
	if q.Prompt != "" {
		pdf.SetXY(left+12, y)
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(promptWidth-12, lineHeight, p.tr(q.Prompt), "", 0, "L", false, 0, "")
	}
	p.mark(left+promptWidth-8, y, q.Result)
	y += lineHeight

	for _, row := range q.Statements {
		pdf.SetFont("Helvetica", "", 9)
		setText(pdf, inkColor)
		pdf.Text(left+14, y+bubbleStep/2+1, row.Label+")")
		p.bubble(left+24, y+bubbleStep/2, row.True)
		p.bubble(left+24+bubbleStep+1, y+bubbleStep/2, row.False)
		y += bubbleStep
	}
	pdf.SetY(y + 2)
}

// numeralRow prints fill-in-blank grids side by side, as many as fit the page width.
func (p *pdfPage) numeralRow(questions []QuestionView) {
	pdf := p.pdf
	left, _, right, _ := pdf.GetMargins()
	pageWidth, _ := pdf.GetPageSize()
	gridWidth := float64(sheet.DigitColumns+1)*bubbleStep + 8
	perRow := int((pageWidth - left - right) / gridWidth)
	if perRow < 1 {
		perRow = 1
	}
	gridHeight := lineHeight*2 + 12*bubbleStep

	for i := 0; i < len(questions); i += perRow {
		p.ensure(gridHeight)
		y := pdf.GetY()
		end := i + perRow
		if end > len(questions) {
			end = len(questions)
		}
		for col, q := range questions[i:end] {
			p.numeralGrid(left+float64(col)*gridWidth, y, q)
		}
		pdf.SetY(y + gridHeight + 2)
	}
}

func (p *pdfPage) numeralGrid(x, y float64, q QuestionView) {
	pdf := p.pdf
	g := q.Numeral
	if g == nil {
		return
	}
	p.number(x, y, q.Number)
	p.mark(x+float64(sheet.DigitColumns+1)*bubbleStep, y, q.Result)

	// Written answer box.
	pdf.SetFont("Helvetica", "B", 10)
	setText(pdf, inkColor)
	pdf.Rect(x+bubbleStep, y+lineHeight, float64(sheet.DigitColumns)*bubbleStep, lineHeight, "D")
	pdf.SetXY(x+bubbleStep, y+lineHeight)
	pdf.CellFormat(float64(sheet.DigitColumns)*bubbleStep, lineHeight, g.Answer, "", 0, "C", false, 0, "")

	top := y + lineHeight*2 + bubbleStep/2
	p.bubble(x+bubbleStep/2, top, g.Sign)
	p.bubble(x+bubbleStep/2, top+bubbleStep, g.Comma)
	for col, column := range g.Columns {
		cx := x + bubbleStep + bubbleStep/2 + float64(col)*bubbleStep
		for d, b := range column.Digits {
			p.bubble(cx, top+float64(d)*bubbleStep, b)
		}
	}

	if g.KeyText != "" {
		pdf.SetFont("Helvetica", "", 8)
		setText(pdf, keyColor)
		pdf.Text(x, top+10*bubbleStep+2, "Key: "+g.KeyText)
		setText(pdf, inkColor)
	}
}

func (p *pdfPage) number(x, y float64, n int) {
	pdf := p.pdf
	pdf.SetFont("Helvetica", "B", 10)
	setText(pdf, inkColor)
	pdf.SetXY(x, y)
	pdf.CellFormat(10, bubbleStep, fmt.Sprintf("%d.", n), "", 0, "R", false, 0, "")
}

// bubble draws one circle centred on (x, y). Filled bubbles are solid; key
// bubbles get a green ring.
func (p *pdfPage) bubble(x, y float64, b Bubble) {
	pdf := p.pdf
	pdf.SetLineWidth(0.2)
	pdf.SetDrawColor(inkColor[0], inkColor[1], inkColor[2])
	if b.Filled {
		pdf.SetFillColor(inkColor[0], inkColor[1], inkColor[2])
		pdf.Circle(x, y, bubbleRadius, "FD")
	} else {
		pdf.Circle(x, y, bubbleRadius, "D")
		pdf.SetFont("Helvetica", "", 6)
		setText(pdf, mutedColor)
		width := pdf.GetStringWidth(b.Label)
		pdf.Text(x-width/2, y+0.8, b.Label)
		setText(pdf, inkColor)
	}
	if b.Key {
		pdf.SetLineWidth(0.5)
		pdf.SetDrawColor(keyColor[0], keyColor[1], keyColor[2])
		pdf.Circle(x, y, bubbleRadius+0.8, "D")
		pdf.SetLineWidth(0.2)
		pdf.SetDrawColor(inkColor[0], inkColor[1], inkColor[2])
	}
}

// mark prints the per-question result, e.g. "3/4".
func (p *pdfPage) mark(x, y float64, result *sheet.QuestionResult) {
	if result == nil {
		return
	}
	pdf := p.pdf
	pdf.SetFont("Helvetica", "B", 8)
	if result.Correct == result.Total {
		setText(pdf, keyColor)
	} else {
		setText(pdf, mutedColor)
	}
	pdf.SetXY(x, y)
	pdf.CellFormat(8, bubbleStep, fmt.Sprintf("%d/%d", result.Correct, result.Total), "", 0, "L", false, 0, "")
	setText(pdf, inkColor)
}

func setText(pdf *fpdf.Fpdf, c [3]int) {
	pdf.SetTextColor(c[0], c[1], c[2])
}
