package identifier

import (
	"regexp"
	"strings"

	"stock-search-service/src/helpers"
)

// -----------------------------------------------------------------------------

// Type classifies how a raw lookup string should be interpreted.
type Type string

const (
	TypeISIN   Type = "isin"
	TypeWKN    Type = "wkn"
	TypeSymbol Type = "symbol"
	TypeName   Type = "name"
)

// -----------------------------------------------------------------------------

var (
	isinPattern   = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)
	wknPattern    = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)
)

// -----------------------------------------------------------------------------

// Identifier is an immutable stock reference. Exactly one field is set for
// identifiers built via FromRaw.
type Identifier struct {
	Symbol string
	ISIN   string
	WKN    string
	Name   string
}

// -----------------------------------------------------------------------------

// DetectType classifies a bare string using format heuristics. It is total:
// anything that matches no identifier format is a free-text name.
func DetectType(raw string) Type {
	trimmed := strings.TrimSpace(raw)
	upper := strings.ToUpper(trimmed)

	if len(upper) == 12 && isinPattern.MatchString(upper) {
		return TypeISIN
	}
	// WKN and symbol heuristics only fire on tokens already written in
	// ticker casing, so "google" stays a name while "GOOGLE" is a WKN.
	if len(trimmed) == 6 && trimmed == upper && wknPattern.MatchString(trimmed) {
		return TypeWKN
	}
	if trimmed == upper && symbolPattern.MatchString(trimmed) {
		return TypeSymbol
	}
	return TypeName
}

// -----------------------------------------------------------------------------

// FromRaw classifies raw and returns an identifier with the matching field
// populated. Symbols, ISINs and WKNs are normalized to upper case.
func FromRaw(raw string) Identifier {
	trimmed := strings.TrimSpace(raw)

	switch DetectType(trimmed) {
	case TypeISIN:
		return Identifier{ISIN: strings.ToUpper(trimmed)}
	case TypeWKN:
		return Identifier{WKN: strings.ToUpper(trimmed)}
	case TypeSymbol:
		return Identifier{Symbol: strings.ToUpper(trimmed)}
	default:
		return Identifier{Name: trimmed}
	}
}

// -----------------------------------------------------------------------------

// Validate checks the format invariants of every populated field.
func (id Identifier) Validate() error {
	if id.IsEmpty() {
		return helpers.NewValidationError("identifier", "at least one of symbol, isin, wkn or name must be set")
	}

	if id.ISIN != "" {
		if !isinPattern.MatchString(id.ISIN) {
			return helpers.NewValidationError("isin", "must be 2 letters, 9 alphanumerics and a check digit")
		}
		if !isinChecksumValid(id.ISIN) {
			return helpers.NewValidationError("isin", "check digit mismatch")
		}
	}
	if id.WKN != "" && !wknPattern.MatchString(id.WKN) {
		return helpers.NewValidationError("wkn", "must be exactly 6 alphanumeric characters")
	}
	if id.Symbol != "" && !symbolPattern.MatchString(id.Symbol) {
		return helpers.NewValidationError("symbol", "must be at most 10 uppercase alphanumeric, '.' or '-' characters")
	}
	return nil
}

// -----------------------------------------------------------------------------

// IsEmpty reports whether no field is populated.
func (id Identifier) IsEmpty() bool {
	return id.Symbol == "" && id.ISIN == "" && id.WKN == "" && id.Name == ""
}

// -----------------------------------------------------------------------------

// String returns the first populated field, preferring the most specific.
func (id Identifier) String() string {
	switch {
	case id.Symbol != "":
		return id.Symbol
	case id.ISIN != "":
		return id.ISIN
	case id.WKN != "":
		return id.WKN
	default:
		return id.Name
	}
}

// -----------------------------------------------------------------------------

// isinChecksumValid implements the ISIN check digit algorithm: letters expand
// to two-digit numbers (A=10 .. Z=35), then Luhn over the resulting digits.
func isinChecksumValid(isin string) bool {
	digits := make([]int, 0, len(isin)*2)
	for _, ch := range isin {
		switch {
		case ch >= '0' && ch <= '9':
			digits = append(digits, int(ch-'0'))
		case ch >= 'A' && ch <= 'Z':
			v := int(ch-'A') + 10
			digits = append(digits, v/10, v%10)
		default:
			return false
		}
	}

	sum := 0
	double := false // rightmost digit is the check digit, never doubled
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
