package receipt

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var idr = message.NewPrinter(language.Indonesian)

// Rupiah formats n with Indonesian digit grouping, e.g. "Rp 125.000".
func Rupiah(n int64) string {
	return "Rp " + idr.Sprintf("%d", n)
}
