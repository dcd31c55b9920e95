package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RoundMoney rounds to paise so fare sums do not drift.
func RoundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// Round1 keeps one decimal for distances and durations in responses.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// FormatRupee renders an amount as "Rs 1,250.50" (whole amounts drop the decimals).
func FormatRupee(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	amount = RoundMoney(amount)
	whole := int64(amount)
	frac := int64(math.Round((amount - float64(whole)) * 100))
	if frac == 0 {
		return fmt.Sprintf("%sRs %s", sign, formatThousand(whole))
	}
	return fmt.Sprintf("%sRs %s.%02d", sign, formatThousand(whole), frac)
}

func formatThousand(n int64) string {
	if n == 0 {
		return "0"
	}
	str := strconv.FormatInt(n, 10)
	var out strings.Builder
	for i, c := range str {
		if i != 0 && (len(str)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	return out.String()
}
