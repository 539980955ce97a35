package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/nbcore/notebookcore/internal/kernelwire"
)

// dbHandle wraps the configured SQL execution target. pgdriver is reused
// here as a plain database/sql driver (sql.OpenDB + pgdriver.NewConnector),
// the same dependency the storage layer uses for its own Postgres access
//.
type dbHandle struct {
	db *sql.DB
}

func openDB(connString string) (*dbHandle, error) {
	connector := pgdriver.NewConnector(pgdriver.WithDSN(connString))
	db := sql.OpenDB(connector)
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &dbHandle{db: db}, nil
}

func (h *dbHandle) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteSQLPlaceholders textually replaces {name} with the
// string-coerced value of the matching global, skipping any match that
// falls inside a single- or double-quoted string literal. Per this
// is an explicit non-goal to do properly: no escaping is applied, SQL
// injection safety is the cell author's responsibility.
func substituteSQLPlaceholders(code string, values map[string]string) string {
	var out strings.Builder
	var inString byte
	runes := []rune(code)
	segmentStart := 0

	flush := func(end int) {
		segment := string(runes[segmentStart:end])
		out.WriteString(placeholderPattern.ReplaceAllStringFunc(segment, func(match string) string {
			name := match[1 : len(match)-1]
			if v, ok := values[name]; ok {
				return v
			}
			return match
		}))
	}

	for i, c := range runes {
		switch {
		case inString == 0 && (c == '\'' || c == '"'):
			flush(i)
			out.WriteRune(c)
			inString = byte(c)
			segmentStart = i + 1
		case inString != 0 && byte(c) == inString:
			out.WriteString(string(runes[segmentStart:i]))
			out.WriteRune(c)
			inString = 0
			segmentStart = i + 1
		}
	}
	if inString == 0 {
		flush(len(runes))
	}
	return out.String()
}

// runSQLCell substitutes placeholders, executes the resulting statement
// against the configured external DB, and returns a tabular MIME bundle.
func (k *kernel) runSQLCell(code string) (stdout string, outputs []kernelwire.WireOutput, errText string) {
	if k.dbConn == nil {
		return "", nil, "no database configured: call set_db_config first"
	}

	values := make(map[string]string, len(k.globals))
	for name, obj := range k.globals {
		values[name] = fmt.Sprintf("%v", obj)
	}
	query := substituteSQLPlaceholders(code, values)

	rows, err := k.dbConn.db.QueryContext(context.Background(), query)
	if err != nil {
		return "", nil, err.Error()
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", nil, err.Error()
	}

	var table [][]any
	for rows.Next() {
		scanDest := make([]any, len(columns))
		scanPtrs := make([]any, len(columns))
		for i := range scanDest {
			scanPtrs[i] = &scanDest[i]
		}
		if err := rows.Scan(scanPtrs...); err != nil {
			return "", nil, err.Error()
		}
		table = append(table, scanDest)
	}
	if err := rows.Err(); err != nil {
		return "", nil, err.Error()
	}

	payload, err := json.Marshal(map[string]any{"columns": columns, "rows": table})
	if err != nil {
		return "", nil, err.Error()
	}

	return "", []kernelwire.WireOutput{{
		MimeType: "application/vnd.notebook.table+json",
		Data: string(payload),
		Metadata: map[string]any{"rows": len(table), "columns": len(columns)},
	}}, ""
}
