package receipt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/raniamart/storefront/internal/domain"
)

const (
	textWidth     = 48
	textNameWidth = 20
	textRowFormat = "%-21s%4s%11s%12s"
	textSumFormat = "%36s%12s"
)

// renderText lays rec out in fixed 48-column plain text, for terminals and printers.
func renderText(rec domain.ReceiptRecord) []byte {
	var b strings.Builder
	rule := strings.Repeat("-", textWidth)
	cols := columns{}

	writeLine := func(s string) {
		b.WriteString(strings.TrimRight(s, " "))
		b.WriteByte('\n')
	}
	wrapped := func(s string) {
		for _, l := range Wrap(cols, Font{}, s, textWidth) {
			writeLine(l)
		}
	}

	writeLine(title)
	writeLine(subtitle)
	writeLine(rule)
	writeLine("Invoice: " + rec.InvoiceNo)
	writeLine("Tanggal: " + orDash(rec.CreatedAt))
	writeLine("")
	writeLine("Detail Pengiriman")
	wrapped("Alamat: " + orDash(rec.ShippingAddress))
	if rec.ShippingService != "" {
		wrapped("Jasa Kirim: " + rec.ShippingService)
	}
	if rec.PaymentMethod != "" {
		wrapped("Metode Bayar: " + rec.PaymentMethod)
	}
	if rec.BuyerNote != "" {
		wrapped("Catatan: " + rec.BuyerNote)
	}

	writeLine(rule)
	writeLine(fmt.Sprintf(textRowFormat, "Item", "Qty", "Harga", "Total"))
	writeLine(rule)
	for _, it := range rec.Items {
		name := Wrap(cols, Font{}, it.Name, textNameWidth)
		writeLine(fmt.Sprintf(textRowFormat, name[0], strconv.FormatInt(it.Quantity, 10), Rupiah(it.UnitPrice), Rupiah(it.LineTotal)))
		for _, l := range name[1:] {
			writeLine(l)
		}
	}
	writeLine(rule)
	writeLine(fmt.Sprintf(textSumFormat, "Subtotal", Rupiah(rec.Subtotal)))
	writeLine(fmt.Sprintf(textSumFormat, "Ongkir", Rupiah(rec.ShippingFee)))
	writeLine(fmt.Sprintf(textSumFormat, "Total", Rupiah(rec.Total)))
	writeLine("")
	writeLine(thanks)

	return []byte(b.String())
}
