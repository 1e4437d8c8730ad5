package masking

import "strings"

const maskToken = "****"

// sensitiveKeys are metadata keys whose values are personal data.
var sensitiveKeys = map[string]struct{}{
	"vat_number":       {},
	"buyer_vat_number": {},
	"email":            {},
	"buyer_email":      {},
	"api_key":          {},
}

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskVATNumber keeps the country prefix and the last three characters: DE****789.
func MaskVATNumber(value string) string {
	trimmed := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(value), " ", ""))
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 5 {
		return maskToken
	}
	return trimmed[:2] + maskToken + trimmed[len(trimmed)-3:]
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 {
		return MaskSecret(trimmed)
	}
	return trimmed[:1] + maskToken + trimmed[at:]
}

// MaskJSON returns a copy of input with sensitive values masked. Nested maps
// and slices are walked; other keys pass through untouched.
func MaskJSON(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		masked[trimmedKey] = maskValue(trimmedKey, value)
	}
	if len(masked) == 0 {
		return nil
	}
	return masked
}

func maskValue(key string, value any) any {
	switch cast := value.(type) {
	case string:
		if _, ok := sensitiveKeys[strings.ToLower(key)]; !ok {
			return cast
		}
		switch {
		case strings.Contains(key, "vat"):
			return MaskVATNumber(cast)
		case strings.Contains(key, "email"):
			return MaskEmail(cast)
		default:
			return MaskSecret(cast)
		}
	case map[string]any:
		return MaskJSON(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue(key, item))
		}
		return out
	default:
		return value
	}
}
