package schema

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// nonWord matches a run of characters that are not letters, digits, or
// underscore. Letters and digits are Unicode-aware so that accented headers
// survive normalization intact.
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// NormalizeName turns a raw header into a column name: the input is trimmed,
// lower-cased and NFC normalized, then every run of non-word characters
// becomes a single underscore.
//
//	"Customer ID"        -> "customer_id"
//	"order--approved at" -> "order_approved_at"
//	"price (BRL)"        -> "price_brl_"
//
// The function is deterministic and idempotent.
func NormalizeName(s string) string {
	s = strings.TrimSpace(s)
	s = norm.NFC.String(strings.ToLower(norm.NFC.String(s)))
	return nonWord.ReplaceAllString(s, "_")
}

// IsNormalized reports whether s is already in normalized form.
func IsNormalized(s string) bool { return s != "" && NormalizeName(s) == s }
