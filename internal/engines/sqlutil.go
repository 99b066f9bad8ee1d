package engines

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"
	"DBAdminDO/internal/validation"
)

// QuoteString renders s as a standard SQL string literal
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteStringBackslash renders s as a string literal for engines that treat
// backslash as an escape character (MySQL, MariaDB, ClickHouse)
func QuoteStringBackslash(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	return "'" + s + "'"
}

// Literal renders a JSON-decoded value as a SQL literal using quote for strings
func Literal(v any, quote func(string) string) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		if _, err := val.Float64(); err == nil {
			return val.String()
		}
		return quote(val.String())
	case string:
		return quote(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return quote(fmt.Sprint(val))
		}
		return quote(string(data))
	}
}

// SortedKeys returns the keys of m in lexical order so generated statements are stable
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ColumnIndex maps column names to their descriptors
func ColumnIndex(columns []models.ColumnDescriptor) map[string]models.ColumnDescriptor {
	idx := make(map[string]models.ColumnDescriptor, len(columns))
	for _, c := range columns {
		idx[c.Name] = c
	}
	return idx
}

// ResolveOrderBy returns orderBy when it names a known column, otherwise the
// first primary key column, otherwise the first column
func ResolveOrderBy(columns []models.ColumnDescriptor, orderBy string) string {
	if orderBy != "" {
		if _, ok := ColumnIndex(columns)[orderBy]; ok {
			return orderBy
		}
	}
	for _, c := range columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	if len(columns) > 0 {
		return columns[0].Name
	}
	return ""
}

// PrimaryKeyColumns lists the primary key columns in table order
func PrimaryKeyColumns(columns []models.ColumnDescriptor) []string {
	var pk []string
	for _, c := range columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// CheckPrimaryKey requires primaryKey to name exactly the table's primary key columns
func CheckPrimaryKey(columns []models.ColumnDescriptor, primaryKey map[string]any) error {
	expected := PrimaryKeyColumns(columns)
	if len(expected) == 0 {
		return apperrors.Invalid("table has no primary key; rows cannot be addressed")
	}
	if len(primaryKey) == 0 {
		return apperrors.Invalid("primary key is required")
	}

	want := make(map[string]bool, len(expected))
	for _, name := range expected {
		want[name] = true
		if _, ok := primaryKey[name]; !ok {
			return apperrors.Invalid("primary key column %q is missing", name)
		}
	}
	for name := range primaryKey {
		if !want[name] {
			return apperrors.Invalid("column %q is not part of the primary key", name)
		}
	}
	return nil
}

// CheckDataColumns requires every key of data to be a known, well-formed column
func CheckDataColumns(columns []models.ColumnDescriptor, data map[string]any) error {
	if len(data) == 0 {
		return apperrors.Invalid("no column values provided")
	}
	idx := ColumnIndex(columns)
	for name := range data {
		if !validation.IsValidColumnName(name) {
			return apperrors.Invalid("invalid column name %q", name)
		}
		if _, ok := idx[name]; !ok {
			return apperrors.Invalid("unknown column %q", name)
		}
	}
	return nil
}

// CheckFilters requires every filter to target a known column
func CheckFilters(columns []models.ColumnDescriptor, filters map[string]string) error {
	if len(filters) == 0 {
		return nil
	}
	idx := ColumnIndex(columns)
	for name := range filters {
		if _, ok := idx[name]; !ok || !validation.IsValidColumnName(name) {
			return apperrors.Invalid("cannot filter on unknown column %q", name)
		}
	}
	return nil
}

// TextColumns returns the columns whose type satisfies isText
func TextColumns(columns []models.ColumnDescriptor, isText func(string) bool) []string {
	var out []string
	for _, c := range columns {
		if isText(strings.ToLower(c.Type)) {
			out = append(out, c.Name)
		}
	}
	return out
}

// LikePattern escapes LIKE wildcards in sanitized search text and wraps it in %
func LikePattern(search string) string {
	r := strings.NewReplacer("%", `\%`, "_", `\_`)
	return "%" + r.Replace(search) + "%"
}
