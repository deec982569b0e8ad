package masking

import "strings"

const maskToken = "****"

// MaskSecret redacts a value such as a payment reference, keeping its
// prefix and last four characters.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}

	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskFields returns a copy of metadata with the named keys masked.
func MaskFields(metadata map[string]any, keys ...string) map[string]any {
	if len(metadata) == 0 {
		return nil
	}
	sensitive := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		sensitive[key] = struct{}{}
	}

	masked := make(map[string]any, len(metadata))
	for key, value := range metadata {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if _, ok := sensitive[trimmedKey]; ok {
			if s, isString := value.(string); isString {
				value = MaskSecret(s)
			}
		}
		masked[trimmedKey] = value
	}
	return masked
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}
