package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/raniamart/storefront/internal/domain"
)

const pdfFontFamily = "Helvetica"

// pdfMeasurer measures with the core font metrics. Text is translated to cp1252 first, the
// encoding the core fonts are written in.
type pdfMeasurer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (m pdfMeasurer) Width(f Font, s string) float64 {
	m.pdf.SetFont(pdfFontFamily, fontStyle(f), f.Size)
	return m.pdf.GetStringWidth(m.tr(s))
}

// renderPDF draws rec on A4. The document dates come from the record, so rendering the same
// record twice gives the same bytes.
func renderPDF(rec domain.ReceiptRecord) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	stamp := recordTime(rec)
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("RaniaMart Receipt "+rec.InvoiceNo, true)
	pdf.SetCreator("RaniaMart", true)
	pdf.SetAutoPageBreak(false, 0)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	m := pdfMeasurer{pdf: pdf, tr: tr}
	layout := BuildLayout(rec, m)

	for _, page := range layout.Pages {
		pdf.AddPage()
		for _, op := range page.Ops {
			switch op.Kind {
			case OpRule:
				pdf.SetDrawColor(op.Gray, op.Gray, op.Gray)
				pdf.Line(op.X, op.Y, op.X2, op.Y)
			case OpText:
				text := tr(op.Text)
				pdf.SetFont(pdfFontFamily, fontStyle(op.Font), op.Font.Size)
				x := op.X
				if op.Align == AlignRight {
					x -= pdf.GetStringWidth(text)
				}
				pdf.Text(x, op.Y, text)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// recordTime is the record's own timestamp, or the Unix epoch when it has none.
func recordTime(rec domain.ReceiptRecord) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, rec.CreatedAt); err == nil {
			return t.UTC()
		}
	}
	return time.Unix(0, 0).UTC()
}

func fontStyle(f Font) string {
	if f.Bold {
		return "B"
	}
	return ""
}
