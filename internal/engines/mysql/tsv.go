package mysql

import (
	"strings"

	"DBAdminDO/internal/models"
)

type row []any

func (r row) str(i int) string {
	if i >= len(r) {
		return ""
	}
	s, _ := r[i].(string)
	return s
}

// resultSet is one batch-mode result: a header and rows where SQL NULL is nil
type resultSet struct {
	columns []string
	rows    []row
}

// parseTSV parses `mysql -B` output. Batch mode escapes tab, newline, NUL and
// backslash inside values and prints NULL for SQL NULL.
func parseTSV(out string) *resultSet {
	rs := &resultSet{}
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" && rs.columns == nil {
			continue
		}
		fields := strings.Split(line, "\t")
		if rs.columns == nil {
			rs.columns = fields
			continue
		}
		r := make(row, len(fields))
		for i, f := range fields {
			if f == "NULL" {
				r[i] = nil
				continue
			}
			r[i] = unescape(f)
		}
		rs.rows = append(rs.rows, r)
	}
	return rs
}

var unescaper = strings.NewReplacer(`\\`, `\`, `\t`, "\t", `\n`, "\n", `\0`, "\x00")

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return unescaper.Replace(s)
}

// pairs reads a two-column Variable_name/Value result into a map
func (rs *resultSet) pairs() map[string]string {
	m := make(map[string]string, len(rs.rows))
	for _, r := range rs.rows {
		m[r.str(0)] = r.str(1)
	}
	return m
}

// maps returns each row keyed by column name
func (rs *resultSet) maps() []map[string]any {
	out := make([]map[string]any, 0, len(rs.rows))
	for _, r := range rs.rows {
		m := make(map[string]any, len(rs.columns))
		for i, c := range rs.columns {
			if i < len(r) {
				m[c] = r[i]
			}
		}
		out = append(out, m)
	}
	return out
}

func (rs *resultSet) result() *models.QueryResult {
	qr := &models.QueryResult{Columns: rs.columns, Rows: make([][]any, 0, len(rs.rows))}
	if qr.Columns == nil {
		qr.Columns = []string{}
	}
	for _, r := range rs.rows {
		qr.Rows = append(qr.Rows, []any(r))
	}
	qr.RowCount = len(qr.Rows)
	return qr
}
