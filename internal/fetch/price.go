package fetch

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ParsePrice reads a human-formatted price into minor units (cents).
//
// Both "1.299,90" and "1,299.90" are understood: when both separators occur
// the last one is the decimal point; a lone separator followed by one or two
// digits is a decimal point, otherwise it groups thousands. Currency symbols
// and surrounding text are ignored.
func ParsePrice(s string) (int64, bool) {
	num := priceToken.FindString(s)
	num = strings.TrimRight(num, ".,")
	if num == "" {
		return 0, false
	}

	lastDot := strings.LastIndex(num, ".")
	lastComma := strings.LastIndex(num, ",")

	decimalAt := -1
	switch {
	case lastDot >= 0 && lastComma >= 0:
		decimalAt = max(lastDot, lastComma)
	case lastDot >= 0 || lastComma >= 0:
		sep := byte('.')
		if lastComma >= 0 {
			sep = ','
		}
		idx := max(lastDot, lastComma)
		frac := len(num) - idx - 1
		if strings.Count(num, string(sep)) == 1 && frac >= 1 && frac <= 2 {
			decimalAt = idx
		}
	}

	var intPart, fracPart string
	if decimalAt >= 0 {
		intPart, fracPart = num[:decimalAt], num[decimalAt+1:]
	} else {
		intPart = num
	}
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if intPart == "" {
		intPart = "0"
	}

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, false
	}
	var cents int64
	switch len(fracPart) {
	case 0:
	case 1:
		cents = int64(fracPart[0]-'0') * 10
	default:
		c, err := strconv.ParseInt(fracPart[:2], 10, 64)
		if err != nil {
			return 0, false
		}
		cents = c
	}
	return whole*100 + cents, true
}

// MinorUnits converts a float amount in major units to minor units.
func MinorUnits(v float64) int64 {
	return int64(math.Round(v * 100))
}

var (
	priceToken = regexp.MustCompile(`\d[\d.,]*`)

	// An amount with a currency marker in front: "$19.99", "R$ 1.299,90", "€ 5".
	currencyAmount = regexp.MustCompile(`(?i)(?:R\$|US\$|\$|€|£|usd|eur|brl)\s?(\d[\d.,]*)`)

	// "was $39.99", "list: $39.99", "de R$ 99,90", "msrp $10".
	wasAmount = regexp.MustCompile(`(?i)\b(?:was|list|msrp|reg|de)\b\s*:?\s*(?:R\$|US\$|\$|€|£)\s?(\d[\d.,]*)`)

	// "-40%", "40% off".
	percentOff = regexp.MustCompile(`(?i)(?:-\s?(\d{1,3})\s?%|(\d{1,3})\s?%\s?off)`)
)

// priceHints pulls a price, original price and discount out of free text
// such as an RSS title "RTX 4070 - $549.99 (was $599.99) 8% off".
func priceHints(text string) (price, original int64, pct *int) {
	if m := wasAmount.FindStringSubmatchIndex(text); m != nil {
		if v, ok := ParsePrice(text[m[2]:m[3]]); ok {
			original = v
		}
		// Do not let the "was" amount double as the current price.
		text = text[:m[0]] + text[m[1]:]
	}

	for _, m := range currencyAmount.FindAllStringSubmatch(text, -1) {
		v, ok := ParsePrice(m[1])
		if !ok {
			continue
		}
		switch {
		case price == 0:
			price = v
		case original == 0 && v > price:
			original = v
		}
	}

	if m := percentOff.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 && n <= 100 {
			pct = &n
		}
	}
	return price, original, pct
}
