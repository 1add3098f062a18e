package output

import (
	"strings"
	"time"
	"unicode/utf8"
)

const maxCellRunes = 80

func displayAuthor(author string) string {
	if strings.TrimSpace(author) == "" {
		return "Anonymous"
	}
	return author
}

// publishedLabel shortens RFC3339 timestamps to a date; anything else is shown as-is.
func publishedLabel(value string) string {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC().Format("2006-01-02")
	}
	return value
}

// cellText flattens newlines and truncates long text for table cells.
func cellText(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if utf8.RuneCountInString(value) <= maxCellRunes {
		return value
	}
	runes := []rune(value)
	return string(runes[:maxCellRunes-1]) + "…"
}
