package coordinator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nbcore/notebookcore/internal/domain"
)

const textPreviewLimit = 500

// tableMimeType is produced by cmd/kernel's SQL cell execution
// (cmd/kernel/sql.go's runSQLCell); it is the only "tabular" mime type
// this implementation emits.
const tableMimeType = "application/vnd.notebook.table+json"

// Preview implements lightweight output preview rules for the
// first output of a cell, by mime family:
// - image/*: "[<kind> chart]", has_image=true
// - the tabular bundle: "[<rows>x<cols> table]" plus column names
// - anything else (treated as text): first 500 characters, ellipsis
// if truncated
//
// Errors are excluded entirely: a cell's Error field is surfaced as-is by callers,
// never routed through this function.
func Preview(o domain.Output) (preview, outputType string, hasImage bool) {
	switch {
	case   strings.HasPrefix(o.MimeType, "image/"):
		kind := "chart"
		if v, ok := o.Metadata["kind"].(string); ok && v != "" {
			kind = v
		}
		return fmt.Sprintf("[%s chart]", kind), "image", true

	case o.MimeType == tableMimeType:
		rows := metadataInt(o.Metadata, "rows")
		cols := metadataInt(o.Metadata, "columns")
		columnNames := tableColumnNames(o.Data)
		preview := fmt.Sprintf("[%dx%d table]", rows, cols)
		if len(columnNames) > 0 {
			preview += " " + strings.Join(columnNames, ", ")
		}
		return preview, "dataframe", false

	default:
		text := o.Data
		if runes := []rune(text); len(runes) > textPreviewLimit {
			return string(runes[:textPreviewLimit]) + "...", "text", false
		}
		return text, "text", false
	}
}

// metadataInt reads an integer out of an event Metadata map regardless
// of whether it arrived as a native int (same-process construction) or
// a float64 (the shape encoding/json produces for any bare number).
func metadataInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// tableColumnNames best-effort decodes the {"columns": [...], "rows":
// [...]} payload cmd/kernel's SQL execution path produces.
func tableColumnNames(data string) []string {
	var decoded struct {
		Columns []string `json:"columns"`
	}
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		return nil
	}
	return decoded.Columns
}
