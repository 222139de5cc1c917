package source

import (
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v2"
)

// normalizeCol lowercases a header and folds spaces and hyphens to
// underscores. "Order Date" → "order_date", "Rep-Tier" → "rep_tier".
func normalizeCol(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"2006/01/02",
}

// parseDate parses an order date as a calendar day in UTC. Spreadsheet
// serial numbers are accepted. The zero time is returned when s cannot be
// parsed.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return day(t)
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		return day(xlsx.TimeFromExcelTime(serial, false))
	}
	return time.Time{}
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseAmount parses a currency amount such as "$1,250.00" or "(300)".
// NaN is returned when s is empty or not a number.
func parseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return nan
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nan
	}
	if neg {
		v = -v
	}
	return v
}

// parseMargin parses a margin fraction ("0.32") or percentage ("32%").
// Missing margins are zero.
func parseMargin(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	pct := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0
	}
	if pct {
		v /= 100
	}
	return v
}
