package report

import (
	"fmt"
	"math"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	notAvailable     = "N/A"
	insufficientN    = "N/A (insufficient n)"
	emptyPlaceholder = "-"
)

// formatFloat renders a nullable statistic with four significant digits.
func formatFloat(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return notAvailable
	}
	return strconv.FormatFloat(*v, 'g', 4, 64)
}

func formatInline(s string) string {
	if s == "" {
		return emptyPlaceholder
	}
	return "`" + s + "`"
}

func formatCount(v any) string {
	if v == nil {
		return emptyPlaceholder
	}
	return fmt.Sprint(v)
}

// markdownTable renders rows with go-pretty's Markdown writer.
func markdownTable(header table.Row, rows []table.Row) string {
	t := table.NewWriter()
	t.AppendHeader(header)
	t.AppendRows(rows)
	return t.RenderMarkdown()
}

func stringValue(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// stringList accepts both in-memory []string and decoded []any values.
func stringList(m map[string]any, key string) []string {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			out = append(out, fmt.Sprint(x))
		}
		return out
	}
	return nil
}
