package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/RezaEskandarii/cronfire/types"
)

// toCSV renders rows with a header made of every key in first-seen order.
// Missing keys produce empty cells.
func toCSV(rows []*types.Row) string {
	var header []string
	seen := map[string]bool{}
	for _, row := range rows {
		for _, k := range row.Keys() {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, csvLine(header))
	for _, row := range rows {
		cells := make([]string, len(header))
		for i, k := range header {
			if v, ok := row.Get(k); ok {
				cells[i] = csvValue(v)
			}
		}
		lines = append(lines, csvLine(cells))
	}
	return strings.Join(lines, "\n")
}

func csvLine(cells []string) string {
	quoted := make([]string, len(cells))
	for i, c := range cells {
		quoted[i] = csvEscape(c)
	}
	return strings.Join(quoted, ",")
}

func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func csvValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case json.Number, bool, int, int32, int64, float32, float64:
		return fmt.Sprint(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
