// Package sanitize masks PII in bank payloads before they are persisted.
package sanitize

import (
	"strings"
	"unicode"
)

var documentKeywords = []string{
	"cpf", "cnpj", "document", "documento",
	"payer", "pagador", "drawer", "sacado",
	"beneficiary", "beneficiario", "control", "controle",
	"root", "raiz", "branch", "filial",
}

var nameQualifiers = []string{
	"pagador", "sacado", "beneficiario", "avalista", "razao",
	"payer", "drawer", "beneficiary",
}

var phoneKeywords = []string{"telefone", "celular", "fone", "phone"}

var paymentLineKeywords = []string{"linha_digitavel", "codigo_barras"}

// Sanitize returns a copy of payload with classified values masked.
// Values it cannot classify pass through unchanged; it never fails.
func Sanitize(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = sanitizeValue(key, value)
	}
	return out
}

func sanitizeValue(key string, value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return Sanitize(typed)
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			// Objects inside arrays are sanitized; scalars keep the
			// classification of the array's own key.
			items[i] = sanitizeValue(key, item)
		}
		return items
	case string:
		return maskString(normalizeKey(key), typed)
	default:
		return value
	}
}

func maskString(key, value string) string {
	switch {
	case matchesAny(key, paymentLineKeywords):
		return maskDigits(value, 4, 4, 5)
	case strings.Contains(key, "email"):
		return maskEmail(value)
	case matchesAny(key, phoneKeywords):
		return maskDigits(value, 2, 2, 4)
	case isNameKey(key):
		return maskName(value)
	case matchesAny(key, documentKeywords):
		return maskDigits(value, 3, 3, 4)
	default:
		return value
	}
}

// MaskName masks a person's name the same way payload sanitization does.
func MaskName(value string) string {
	return maskName(value)
}

// MaskDocument masks a CPF or CNPJ, keeping the first and last three
// digits.
func MaskDocument(value string) string {
	return maskDigits(value, 3, 3, 4)
}

func isNameKey(key string) bool {
	if key == "nome" {
		return true
	}
	if !strings.Contains(key, "nome") {
		return false
	}
	return matchesAny(key, nameQualifiers)
}

func matchesAny(key string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// normalizeKey lowercases a key and converts camelCase to snake_case so
// "linhaDigitavel" and "linha_digitavel" classify the same way.
func normalizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// maskDigits keeps the first and last N digits of value and replaces the
// rest with stars. Values with fullMaskMax digits or fewer are fully masked.
func maskDigits(value string, keepFirst, keepLast, fullMaskMax int) string {
	runes := []rune(value)
	digits := make([]int, 0, len(runes))
	for i, r := range runes {
		if r >= '0' && r <= '9' {
			digits = append(digits, i)
		}
	}
	if len(digits) == 0 {
		return value
	}
	if len(digits) <= fullMaskMax {
		for _, pos := range digits {
			runes[pos] = '*'
		}
		return string(runes)
	}
	for n, pos := range digits {
		if n < keepFirst || n >= len(digits)-keepLast {
			continue
		}
		runes[pos] = '*'
	}
	return string(runes)
}

func maskName(value string) string {
	runes := []rune(value)
	if len(runes) <= 2 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}

func maskEmail(value string) string {
	at := strings.Index(value, "@")
	if at <= 0 {
		return maskName(value)
	}
	local := value[:at]
	domain := value[at:]
	return maskName(local) + domain
}
