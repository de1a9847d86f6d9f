package receipt

import (
	"strconv"

	"github.com/raniamart/storefront/internal/domain"
)

// Page geometry in millimetres, A4 portrait, origin top left. Text y is the baseline.
const (
	marginLeft  = 14.0
	marginRight = 196.0
	pageTop     = 18.0
	// no row or totals block may extend below this line
	pageBottom = 270.0

	lineHeight     = 6.0
	minRowHeight   = 8.0
	wrapWidth      = 180.0
	nameWrapWidth  = 120.0
	colQty         = 140.0
	colQtyValue    = 142.0
	colPrice       = 156.0
	totalsLabelX   = 140.0
	totalsHeight   = 34.0
	bodyFontSize   = 10.0
	titleFontSize  = 16.0
	footerFontSize = 9.0
)

const (
	title    = "RaniaMart"
	subtitle = "Receipt / Nota Pembelian"
	thanks   = "Terima kasih sudah berbelanja di RaniaMart!"
)

type Font struct {
	Size float64
	Bold bool
}

var (
	bodyFont   = Font{Size: bodyFontSize}
	boldFont   = Font{Size: bodyFontSize, Bold: true}
	titleFont  = Font{Size: titleFontSize, Bold: true}
	footerFont = Font{Size: footerFontSize}
)

// Measurer reports the rendered width of s in millimetres.
type Measurer interface {
	Width(font Font, s string) float64
}

type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

type OpKind int

const (
	OpText OpKind = iota
	OpRule
)

// Op is one drawing instruction. For OpText, X is the left edge or, with AlignRight, the right
// edge. For OpRule the line runs from (X, Y) to (X2, Y) in the given grey level.
type Op struct {
	Kind  OpKind
	X     float64
	Y     float64
	X2    float64
	Font  Font
	Align Align
	Text  string
	Gray  int
}

type Page struct {
	Ops []Op
}

// Layout is the complete placement of a receipt. It depends only on the record and the
// measurer, so laying out the same record twice gives the same result.
type Layout struct {
	Pages []Page
}

type layoutBuilder struct {
	m     Measurer
	pages []Page
	y     float64
}

// BuildLayout places every element of rec.
func BuildLayout(rec domain.ReceiptRecord, m Measurer) Layout {
	b := &layoutBuilder{m: m, pages: []Page{{}}}

	b.text(marginLeft, 18, titleFont, AlignLeft, title)
	b.text(marginLeft, 24, bodyFont, AlignLeft, subtitle)
	b.rule(28, 220)

	b.y = 36
	b.text(marginLeft, b.y, bodyFont, AlignLeft, "Invoice: "+rec.InvoiceNo)
	b.text(marginLeft, b.y+lineHeight, bodyFont, AlignLeft, "Tanggal: "+orDash(rec.CreatedAt))
	b.y += 16

	b.text(marginLeft, b.y, boldFont, AlignLeft, "Detail Pengiriman")
	b.y += lineHeight
	b.wrapped("Alamat: "+orDash(rec.ShippingAddress), wrapWidth)
	if rec.ShippingService != "" {
		b.wrapped("Jasa Kirim: "+rec.ShippingService, wrapWidth)
	}
	if rec.PaymentMethod != "" {
		b.wrapped("Metode Bayar: "+rec.PaymentMethod, wrapWidth)
	}
	if rec.BuyerNote != "" {
		b.wrapped("Catatan: "+rec.BuyerNote, wrapWidth)
	}

	b.y += 4
	// the divider, the column header and the first row stay on one page
	if b.y+10+2*lineHeight+minRowHeight > pageBottom {
		b.newPage()
	}
	b.rule(b.y, 230)
	b.y += 10
	b.tableHeader()

	for _, it := range rec.Items {
		b.row(it)
	}

	b.y += 4
	if b.y+totalsHeight > pageBottom {
		b.newPage()
	}
	b.rule(b.y, 230)
	b.y += 8
	b.text(totalsLabelX, b.y, bodyFont, AlignLeft, "Subtotal")
	b.text(marginRight, b.y, bodyFont, AlignRight, Rupiah(rec.Subtotal))
	b.y += lineHeight
	b.text(totalsLabelX, b.y, bodyFont, AlignLeft, "Ongkir")
	b.text(marginRight, b.y, bodyFont, AlignRight, Rupiah(rec.ShippingFee))
	b.y += lineHeight
	b.text(totalsLabelX, b.y, boldFont, AlignLeft, "Total")
	b.text(marginRight, b.y, boldFont, AlignRight, Rupiah(rec.Total))

	b.y += 14
	b.text(marginLeft, b.y, footerFont, AlignLeft, thanks)

	return Layout{Pages: b.pages}
}

func (b *layoutBuilder) tableHeader() {
	b.text(marginLeft, b.y, boldFont, AlignLeft, "Item")
	b.text(colQty, b.y, boldFont, AlignLeft, "Qty")
	b.text(colPrice, b.y, boldFont, AlignLeft, "Harga")
	b.text(marginRight, b.y, boldFont, AlignRight, "Total")
	b.y += lineHeight
	b.rule(b.y, 240)
	b.y += lineHeight
}

// row draws one item line. A row that does not fit the rest of the page moves to the next one
// under a repeated header. A name too tall for a whole page is split across pages instead, with
// the quantity and prices on its first line.
func (b *layoutBuilder) row(it domain.ReceiptItem) {
	name := Wrap(b.m, bodyFont, it.Name, nameWrapWidth)
	height := max(float64(len(name))*lineHeight, minRowHeight)
	underHeader := pageBottom - pageTop - 2*lineHeight
	if b.y+height > pageBottom && (height <= underHeader || b.y+lineHeight > pageBottom) {
		b.newPage()
		b.tableHeader()
	}

	top, page := b.y, len(b.pages)
	b.text(colQtyValue, b.y, bodyFont, AlignLeft, strconv.FormatInt(it.Quantity, 10))
	b.text(colPrice, b.y, bodyFont, AlignLeft, Rupiah(it.UnitPrice))
	b.text(marginRight, b.y, bodyFont, AlignRight, Rupiah(it.LineTotal))
	for _, l := range name {
		if b.y+lineHeight > pageBottom {
			b.newPage()
			b.tableHeader()
		}
		b.text(marginLeft, b.y, bodyFont, AlignLeft, l)
		b.y += lineHeight
	}
	if len(b.pages) == page {
		b.y = top + height
	}
}

// wrapped draws s wrapped to width and moves the cursor past every produced line, starting a
// new page when the next line would cross the bottom margin.
func (b *layoutBuilder) wrapped(s string, width float64) {
	for _, l := range Wrap(b.m, bodyFont, s, width) {
		if b.y+lineHeight > pageBottom {
			b.newPage()
		}
		b.text(marginLeft, b.y, bodyFont, AlignLeft, l)
		b.y += lineHeight
	}
}

func (b *layoutBuilder) newPage() {
	b.pages = append(b.pages, Page{})
	b.y = pageTop
}

func (b *layoutBuilder) text(x, y float64, f Font, a Align, s string) {
	b.add(Op{Kind: OpText, X: x, Y: y, Font: f, Align: a, Text: s})
}

func (b *layoutBuilder) rule(y float64, gray int) {
	b.add(Op{Kind: OpRule, X: marginLeft, Y: y, X2: marginRight, Gray: gray})
}

func (b *layoutBuilder) add(op Op) {
	p := &b.pages[len(b.pages)-1]
	p.Ops = append(p.Ops, op)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
