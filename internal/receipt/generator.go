// Package receipt turns a server-confirmed checkout into a printable document. Rendering
// depends only on the ReceiptRecord, never on the clock, so a receipt can be re-generated from
// the archive at any time with the same result.
package receipt

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/raniamart/storefront/internal/domain"
	"github.com/raniamart/storefront/internal/logger"
	"github.com/raniamart/storefront/internal/metrics"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatText Format = "txt"
)

// ParseFormat accepts "pdf", "txt" and "text". An empty string means PDF.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pdf":
		return FormatPDF, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", domain.Validation(fmt.Sprintf("unsupported receipt format %q", s))
	}
}

func (f Format) ContentType() string {
	if f == FormatText {
		return "text/plain; charset=utf-8"
	}
	return "application/pdf"
}

// Document is a rendered receipt ready to be saved or served.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

type Generator struct {
	log *slog.Logger
}

func NewGenerator(l *slog.Logger) *Generator {
	return &Generator{log: logger.Component(l, "receipt")}
}

func (g *Generator) Render(rec domain.ReceiptRecord, format Format) (Document, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatPDF:
		data, err = renderPDF(rec)
	case FormatText:
		data = renderText(rec)
	default:
		return Document{}, domain.Validation(fmt.Sprintf("unsupported receipt format %q", format))
	}
	if err != nil {
		g.log.Error("receipt rendering failed", "invoice_no", rec.InvoiceNo, "format", string(format), "error", err)
		return Document{}, domain.Internal("render receipt", err)
	}

	metrics.ReceiptsRendered.WithLabelValues(string(format)).Inc()
	return Document{
		Name:        ArtifactName(rec.InvoiceNo, format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// ArtifactName is the file name a receipt is saved under.
func ArtifactName(invoiceNo string, format Format) string {
	return "RaniaMart-Receipt-" + sanitize(invoiceNo) + "." + string(format)
}

// sanitize keeps characters that are safe in file names on every platform.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "INV-UNKNOWN"
	}
	return out
}
