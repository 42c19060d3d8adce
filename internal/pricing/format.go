package pricing

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var vnd = message.NewPrinter(language.Vietnamese)

// formatVND groups digits the way Vietnamese prices are written (200.000).
func formatVND(n int64) string {
	return vnd.Sprintf("%d", n)
}
