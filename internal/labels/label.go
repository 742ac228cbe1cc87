// Package labels renders the small printable shipping label for one
// customer: contact details, amount due, and a QR code pointing at a
// shortened map link when one exists.
package labels

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/shipbee/backoffice/internal/shipping"
	"github.com/shipbee/backoffice/internal/shortener"
	"github.com/shipbee/backoffice/pkg/logger"
)

const (
	labelWidth  = 2.95 // inches
	labelHeight = 1.96

	labelMargin = 0.12
	textLine    = 0.18

	qrSide   = 0.75
	qrPixels = 256
)

// URLShortener shrinks map links for the label's QR code.
type URLShortener interface {
	Create(ctx context.Context, req shortener.CreateRequest) (string, error)
}

// Generator renders label PDFs.
type Generator struct {
	shortener URLShortener
	logg      *logger.Logger
}

func NewGenerator(short URLShortener, logg *logger.Logger) (*Generator, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Generator{shortener: short, logg: logg}, nil
}

// Render writes the label PDF for one shipping record. A missing map link
// means no QR code; a shortener failure falls back to the raw link so label
// printing never blocks on the shortener being up.
func (g *Generator) Render(ctx context.Context, w io.Writer, rec shipping.Record) error {
	link := g.shortLink(ctx, rec)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "in",
		Size:    gofpdf.SizeType{Wd: labelWidth, Ht: labelHeight},
	})
	pdf.SetMargins(labelMargin, labelMargin, labelMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	textWidth := labelWidth - 2*labelMargin
	if link != "" {
		textWidth -= qrSide + labelMargin
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(textWidth, textLine+0.04, rec.FullName, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.MultiCell(textWidth, 0.14, rec.Address, "", "L", false)
	pdf.CellFormat(textWidth, textLine, rec.Phone, "", 1, "L", false, 0, "")
	pdf.CellFormat(textWidth, textLine, fmt.Sprintf("%d items", rec.ItemCount), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(labelMargin, labelHeight-labelMargin-0.24)
	pdf.CellFormat(textWidth, 0.24, "Due: $"+rec.AmountDue().StringFixed(2), "", 0, "L", false, 0, "")

	if link != "" {
		if err := g.drawQR(ctx, pdf, link); err != nil {
			g.logg.Warn(g.logg.WithCustomer(ctx, rec.FullName), "qr encode failed, printing label without code")
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render label: %w", err)
	}
	return nil
}

// shortLink resolves the QR target. Empty or whitespace-only map links
// produce no QR at all.
func (g *Generator) shortLink(ctx context.Context, rec shipping.Record) string {
	link := strings.TrimSpace(rec.MapLink)
	if link == "" {
		return ""
	}
	if g.shortener == nil {
		return link
	}
	short, err := g.shortener.Create(ctx, shortener.CreateRequest{
		URL:   link,
		Alias: shortener.GenerateAlias(rec.FullName),
	})
	if err != nil {
		g.logg.Warn(g.logg.WithCustomer(ctx, rec.FullName), "shortener unavailable, using raw map link")
		return link
	}
	return short
}

func (g *Generator) drawQR(ctx context.Context, pdf *gofpdf.Fpdf, content string) error {
	png, err := qrcode.Encode(content, qrcode.Medium, qrPixels)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("map-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("map-qr", labelWidth-labelMargin-qrSide, labelMargin, qrSide, qrSide, false, opts, 0, "")
	return pdf.Error()
}
