package format

import (
	"fmt"
	"strings"
	"time"
)

// Progress formats a review position as "3 / 10".
// A cursor at or past total is shown as total.
func Progress(cursor, total int) string {
	if cursor > total {
		cursor = total
	}
	return fmt.Sprintf("%d / %d", cursor, total)
}

// Percent formats done/total as a whole percentage. Zero total is 100%.
func Percent(done, total int) string {
	if total <= 0 {
		return "100%"
	}
	return fmt.Sprintf("%d%%", done*100/total)
}

// FmtDuration formats a duration as "Xm Ys" or "Ys".
func FmtDuration(d time.Duration) string {
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// Truncate shortens s to maxLen runes, appending "..." if truncated.
// Newlines are folded to spaces so a cell stays on one line.
func Truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}
