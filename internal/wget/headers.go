package wget

import (
	"fmt"
	"net/mail"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// parseContentLength converts a Content-Length header value to a byte count,
// or (0, false) if absent or non-numeric.
func parseContentLength(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parseContentRange parses "bytes A-B/T" and returns T, or (0, false) if
// absent, malformed, or T is "*" (unknown).
func parseContentRange(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	idx := strings.LastIndex(value, "/")
	if idx < 0 {
		return 0, false
	}
	total := strings.TrimSpace(value[idx+1:])
	if total == "*" || total == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parseHTTPDate parses RFC 1123, RFC 850, or asctime timestamps (the formats
// HTTP dates appear in), treating naive (zoneless) times as UTC, and returns
// the epoch-second value.
func parseHTTPDate(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	layouts := []string{
		time.RFC1123,
		time.RFC1123Z,
		"Monday, 02-Jan-06 15:04:05 MST", // RFC 850
		"Mon Jan _2 15:04:05 2006",       // asctime
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return float64(t.UTC().Unix()), true
		}
	}
	// net/mail understands a superset of RFC 5322 dates some servers send.
	if t, err := mail.ParseDate(value); err == nil {
		return float64(t.UTC().Unix()), true
	}
	return 0, false
}

// filenameFromContentDisposition extracts a basename from a Content-Disposition
// header, preferring filename* (RFC 5987 encoding''value) over filename.
func filenameFromContentDisposition(value string) string {
	if value == "" {
		return ""
	}
	segments := strings.Split(value, ";")
	params := map[string]string{}
	for _, seg := range segments[1:] {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		kv := strings.SplitN(seg, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])
		val = strings.Trim(val, `"`)
		params[key] = val
	}
	if starred, ok := params["filename*"]; ok {
		if idx := strings.Index(starred, "''"); idx >= 0 {
			encoded := starred[idx+2:]
			if decoded, err := url.QueryUnescape(encoded); err == nil {
				return path.Base(decoded)
			}
			return path.Base(encoded)
		}
		if decoded, err := url.QueryUnescape(starred); err == nil {
			return path.Base(decoded)
		}
		return path.Base(starred)
	}
	if plain, ok := params["filename"]; ok {
		return path.Base(plain)
	}
	return ""
}

// parseSize parses a decimal number with an optional K/KB/M/MB/G/GB suffix
// (case-insensitive, binary multipliers). Bare digits are bytes.
func parseSize(value string) (int64, error) {
	text := strings.TrimSpace(value)
	if text == "" {
		return 0, ErrInvalidSize
	}

	isAllDigits := true
	for _, r := range text {
		if r < '0' || r > '9' {
			isAllDigits = false
			break
		}
	}
	if isAllDigits {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidSize, value)
		}
		return n, nil
	}

	var numberRunes, unitRunes []rune
	for _, r := range text {
		switch {
		case (r >= '0' && r <= '9') || r == '.':
			numberRunes = append(numberRunes, r)
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			unitRunes = append(unitRunes, r)
		case r == ' ' || r == '_':
			continue
		default:
			return 0, fmt.Errorf("%w: %s", ErrInvalidSize, value)
		}
	}
	if len(numberRunes) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidSize, value)
	}

	number, err := strconv.ParseFloat(string(numberRunes), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidSize, value)
	}

	unit := strings.ToLower(string(unitRunes))
	if strings.HasSuffix(unit, "b") && unit != "kb" && unit != "mb" && unit != "gb" {
		unit = strings.TrimSuffix(unit, "b")
	}

	const (
		kib = 1024
		mib = kib * 1024
		gib = mib * 1024
	)
	multipliers := map[string]int64{
		"k": kib, "kb": kib,
		"m": mib, "mb": mib,
		"g": gib, "gb": gib,
	}
	mult, ok := multipliers[unit]
	if !ok {
		return 0, fmt.Errorf("%w: unit %q in %q", ErrInvalidSize, unit, value)
	}
	return int64(number * float64(mult)), nil
}

// formatSize renders a byte count with a single binary unit suffix, matching
// the original tool's human-readable progress formatting.
func formatSize(n int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(n)
	for i, unit := range units {
		if size < 1024.0 || i == len(units)-1 {
			return fmt.Sprintf("%.2f%s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.2fTB", size)
}

// formatETA renders a duration in seconds as hh:mm:ss (or mm:ss when under an hour).
func formatETA(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
