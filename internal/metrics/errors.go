package metrics

import (
	"strings"
	"unicode"
)

var friendlyClasses = map[string]string{
	"timeout":    "Operation timed out",
	"network":    "Network error",
	"conversion": "Query conversion failed",
	"canceled":   "Operation canceled",
	"other":      "Other error",
}

// FriendlyErrorClass returns a human-friendly label for an error class as
// recorded in query_error.<class> counters.
func FriendlyErrorClass(class string) string {
	cleaned := strings.TrimSpace(class)
	if cleaned == "" {
		return "Unknown error"
	}
	if alias, ok := friendlyClasses[cleaned]; ok {
		return alias
	}
	if name, ok := strings.CutPrefix(cleaned, "command:"); ok {
		if name == "" {
			return "Command error"
		}
		return "Command error (" + humanizeCodeName(name) + ")"
	}
	return humanizeCodeName(cleaned)
}

// humanizeCodeName splits server code names such as "MaxTimeMSExpired" or
// "Unauthorized" into words.
func humanizeCodeName(name string) string {
	var words []string
	var current []rune
	runes := []rune(name)

	flush := func() {
		if len(current) == 0 {
			return
		}
		words = append(words, string(current))
		current = current[:0]
	}

	for i, r := range runes {
		if r == '_' || r == '-' || r == ' ' {
			flush()
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower)) {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()

	return strings.Join(words, " ")
}
