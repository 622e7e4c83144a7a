package render

import (
	"fmt"
	"html/template"

	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/gin-contrib/multitemplate"
)

// SheetTemplate is the template name registered by NewHTMLRenderer.
const SheetTemplate = "sheet"

var templateFuncs = template.FuncMap{
	"score": func(r *sheet.Result) string {
		if r == nil {
			return ""
		}
		return fmt.Sprintf("%.2f / %d", r.Score, sheet.ScaleMax)
	},
	"mark": func(r *sheet.QuestionResult) string {
		if r == nil {
			return ""
		}
		return fmt.Sprintf("%d/%d", r.Correct, r.Total)
	},
	"bubbleClass": func(b Bubble) string {
		class := "bubble"
		if b.Filled {
			class += " filled"
		}
		if b.Key {
			class += " key"
		}
		return class
	},
	"isChoice":    func(k sheet.Kind) bool { return k == sheet.MultipleChoice },
	"isStatement": func(k sheet.Kind) bool { return k == sheet.TrueFalse },
	"isNumeral":   func(k sheet.Kind) bool { return k == sheet.FillInBlank },
}

// NewHTMLRenderer returns a gin HTML renderer with the printable sheet
// template registered as SheetTemplate.
func NewHTMLRenderer() multitemplate.Renderer {
	r := multitemplate.NewRenderer()
	r.AddFromStringsFuncs(SheetTemplate, templateFuncs, sheetLayout)
	return r
}

const sheetLayout = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 12mm; color: #141414; }
header { text-align: center; margin-bottom: 8mm; }
h1 { font-size: 20px; margin: 0 0 4px; }
h2 { font-size: 14px; background: #ebeef5; padding: 4px 8px; }
.meta { font-size: 12px; }
.score { font-weight: bold; color: #16803d; font-size: 15px; }
.choices { display: grid; grid-template-columns: repeat(4, 1fr); gap: 6px 12px; }
.question { display: flex; align-items: center; gap: 4px; }
.number { font-weight: bold; width: 28px; text-align: right; }
.bubble { display: inline-block; width: 16px; height: 16px; border: 1px solid #141414; border-radius: 50%;
  font-size: 9px; line-height: 16px; text-align: center; color: #787878; }
.bubble.filled { background: #141414; color: #fff; }
.bubble.key { box-shadow: 0 0 0 2px #16803d; }
.mark { font-size: 11px; font-weight: bold; color: #787878; margin-left: 6px; }
.statements { margin: 4px 0 8px 32px; }
.numerals { display: flex; flex-wrap: wrap; gap: 16px; }
.grid { display: flex; gap: 2px; }
.column { display: flex; flex-direction: column; gap: 2px; }
.answer { border: 1px solid #141414; min-width: 72px; height: 18px; text-align: center; margin: 2px 0 4px 20px; }
.keytext { font-size: 11px; color: #16803d; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
<header>
<h1>{{.Title}}</h1>
<div class="meta">{{if .Subject}}{{.Subject}} &middot; {{end}}Duration: {{.DurationMinutes}} minutes</div>
{{if .StudentID}}<div class="meta">Student: {{.StudentID}}{{with .SubmittedAt}} &middot; Submitted: {{.Format "2006-01-02 15:04"}}{{end}}</div>
{{else}}<div class="meta">Student: ______________________ ID: ____________</div>{{end}}
{{with .Result}}<div class="score">Score: {{score .}} ({{.Correct}} of {{.Total}} correct)</div>{{end}}
</header>
{{range .Sections}}
<section>
<h2>{{.Title}}</h2>
{{if isChoice .Kind}}
<div class="choices">
{{range .Questions}}<div class="question"><span class="number">{{.Number}}.</span>{{range .Options}}<span class="{{bubbleClass .}}">{{.Label}}</span>{{end}}{{with .Result}}<span class="mark">{{mark .}}</span>{{end}}</div>
{{end}}
</div>
{{else if isStatement .Kind}}
{{range .Questions}}
<div class="question"><span class="number">{{.Number}}.</span><span>{{.Prompt}}</span>{{with .Result}}<span class="mark">{{mark .}}</span>{{end}}</div>
{{if .ImageURL}}<img src="{{.ImageURL}}" alt="" style="max-width: 60%; margin-left: 32px;">{{end}}
<div class="statements">
{{range .Statements}}<div class="question"><span class="number">{{.Label}})</span><span class="{{bubbleClass .True}}">T</span><span class="{{bubbleClass .False}}">F</span></div>
{{end}}
</div>
{{end}}
{{else if isNumeral .Kind}}
<div class="numerals">
{{range .Questions}}
<div>
<div class="question"><span class="number">{{.Number}}.</span>{{with .Result}}<span class="mark">{{mark .}}</span>{{end}}</div>
{{with .Numeral}}
<div class="answer">{{.Answer}}</div>
<div class="grid">
<div class="column"><span class="{{bubbleClass .Sign}}">-</span><span class="{{bubbleClass .Comma}}">,</span></div>
{{range .Columns}}<div class="column">{{range .Digits}}<span class="{{bubbleClass .}}">{{.Label}}</span>{{end}}</div>{{end}}
</div>
{{if .KeyText}}<div class="keytext">Key: {{.KeyText}}</div>{{end}}
{{end}}
</div>
{{end}}
</div>
{{end}}
</section>
{{end}}
</body>
</html>
`
