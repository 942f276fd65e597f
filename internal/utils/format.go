package utils

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatCredits renders a credit amount with the grouping separators of tag,
// e.g. 12500 -> "12,500" for English.
func FormatCredits(tag language.Tag, n int64) string {
	return message.NewPrinter(tag).Sprintf("%d", n)
}

// FormatPercent renders a ratio in [0,1] as a percentage with one decimal,
// e.g. 0.125 -> "12.5%".
func FormatPercent(tag language.Tag, ratio float64) string {
	return message.NewPrinter(tag).Sprintf("%.1f%%", ratio*100)
}
