package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatETH formats a wei amount as ether with up to 6 fractional digits.
func FormatETH(wei *big.Int) string {
	return FormatAmount(wei, "ETH", 6)
}

// FormatAmount formats a wei amount in unit (ETH, Ether or GWei). The
// fractional part is cut after digits, trailing zeros are dropped.
func FormatAmount(amount *big.Int, unit string, digits int) string {
	var unitDigits int
	switch unit {
	case "ETH", "Ether":
		unitDigits = 18
	case "GWei":
		unitDigits = 9
	default:
		unit = "Wei"
	}

	trimmedAmount, _ := trimAmount(amount, unitDigits, digits)
	return trimmedAmount + " " + unit
}

func trimAmount(amount *big.Int, unitDigits int, digits int) (trimmedAmount, fullAmount string) {
	trimmedAmount = "0"
	fullAmount = "0"
	if amount == nil {
		return
	}

	sign := ""
	s := amount.String()
	if amount.Sign() < 0 {
		sign = "-"
		s = s[1:]
	}

	preComma := "0"
	postComma := ""
	l := len(s)
	switch {
	case l > unitDigits:
		preComma = s[:l-unitDigits]
		postComma = strings.TrimRight(s[l-unitDigits:], "0")
	case l == unitDigits:
		postComma = strings.TrimRight(s, "0")
	default:
		postComma = strings.TrimRight(fmt.Sprintf("%0*d", unitDigits-l, 0)+s, "0")
	}

	fullAmount = preComma
	if postComma != "" {
		fullAmount += "." + postComma
	}

	if len(postComma) > digits {
		postComma = strings.TrimRight(postComma[:digits], "0")
	}
	trimmedAmount = preComma
	if postComma != "" {
		trimmedAmount += "." + postComma
	}

	return sign + trimmedAmount, sign + fullAmount
}
