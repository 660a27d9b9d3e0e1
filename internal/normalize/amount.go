package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/statements/internal/domain"
)

// Strips currency symbols and whitespace (including Unicode variants) before
// numeric parsing.
var symbolReplacer = strings.NewReplacer(
	"£", "", "£", "",
	"$", "",
	"€", "", "€", "",
	"¥", "",
	" ", "", // non-breaking space
	" ", "", "\t", "",
)

// European decimal notation ends in a comma followed by exactly two digits.
var europeanDecimal = regexp.MustCompile(`,\d{2}$`)

var minorUnits = decimal.NewFromInt(100)

// Amount parses a raw amount string into non-negative minor units plus a
// transaction type. Negativity comes from a leading minus or parenthesis
// wrapping and maps to debit; otherwise defaultType is used. Grouping
// punctuation is disambiguated between European ("1.234,56") and US
// ("1,234.56") conventions, and the value is rounded to the nearest minor
// unit.
func Amount(raw string, defaultType domain.TransactionType) (int64, domain.TransactionType, error) {
	s := symbolReplacer.Replace(strings.TrimSpace(raw))

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	if europeanDecimal.MatchString(s) {
		// dot = thousands separator, comma = decimal point
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		// comma = thousands separator, dot = decimal point
		s = strings.ReplaceAll(s, ",", "")
	}

	if s == "" {
		return 0, "", domain.NewParseError("empty amount", raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, "", domain.NewParseError("unparseable amount", raw)
	}

	minor := d.Abs().Mul(minorUnits).Round(0).IntPart()

	txType := defaultType
	if negative {
		txType = domain.TypeDebit
	}
	if txType == "" {
		txType = domain.TypeCredit
	}
	return minor, txType, nil
}
