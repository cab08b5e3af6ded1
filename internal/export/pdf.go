package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
)

const pdfFontFamily = "minutes"

// renderPDF writes the minutes as an A4 PDF. A unicode TTF configured via
// PDF_FONT_PATH is registered so Japanese text renders; without one the
// built-in Helvetica is used.
func (a *Adapter) renderPDF(title, body string, meta domain.Metadata, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAuthor("audioGIJI", true)

	font := a.registerPDFFont(pdf)
	pdf.AddPage()

	pdf.SetFont(font, "B", 20)
	pdf.CellFormat(0, 12, title, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetTextColor(85, 85, 85)
	for _, row := range metaRows(meta) {
		pdf.SetFont(font, "B", 9)
		pdf.CellFormat(28, 5, row.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont(font, "", 9)
		pdf.MultiCell(0, 5, row.value, "", "L", false)
	}
	pdf.SetTextColor(26, 26, 26)
	pdf.Ln(8)

	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		kind, text := classifyLine(line)
		switch kind {
		case lineHeading:
			pdf.Ln(2)
			pdf.SetFont(font, "B", 15)
			pdf.MultiCell(0, 8, text, "", "L", false)
		case lineBullet:
			pdf.SetFont(font, "", 10)
			pdf.MultiCell(0, 6, "・"+text, "", "L", false)
		default:
			pdf.SetFont(font, "", 10)
			pdf.MultiCell(0, 6, text, "", "L", false)
		}
	}

	pdf.Ln(10)
	pdf.SetFont(font, "", 9)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 5, "作成日時: "+time.Now().Format(footerTimeFormat), "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// registerPDFFont loads the configured unicode font and returns the family
// name to draw with. Helvetica is the fallback when the font is missing or
// fails to load.
func (a *Adapter) registerPDFFont(pdf *gofpdf.Fpdf) string {
	if strings.TrimSpace(a.fontPath) == "" {
		return "Helvetica"
	}
	if _, err := os.Stat(a.fontPath); err != nil {
		a.log.WithField("path", a.fontPath).Warn("pdf font not found, using helvetica")
		return "Helvetica"
	}

	pdf.AddUTF8Font(pdfFontFamily, "", a.fontPath)
	pdf.AddUTF8Font(pdfFontFamily, "B", a.fontPath)
	if pdf.Err() {
		a.log.WithField("path", a.fontPath).WithField("error", pdf.Error().Error()).Warn("pdf font failed to load, using helvetica")
		pdf.ClearError()
		return "Helvetica"
	}
	return pdfFontFamily
}
