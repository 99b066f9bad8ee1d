package engines

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoOutput is returned when a command that should print a document printed nothing
var ErrNoOutput = errors.New("command returned no output")

// DecodeJSON decodes the JSON document that closes out into v. Tools that
// spread one document over several lines (psql json_agg, pretty printers) and
// tools that print notices ahead of it are both handled: the shortest trailing
// run of lines that forms exactly one document wins. Numbers are kept as
// json.Number so large integers survive the trip back into generated statements.
func DecodeJSON(out string, v any) error {
	lines := Lines(out)
	if len(lines) == 0 {
		return ErrNoOutput
	}

	var firstErr error
	for i := len(lines) - 1; i >= 0; i-- {
		doc := strings.Join(lines[i:], "\n")
		if err := singleDocument(doc); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		dec := json.NewDecoder(strings.NewReader(doc))
		dec.UseNumber()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("failed to decode command output: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed to decode command output: %w", firstErr)
}

// singleDocument fails unless doc holds exactly one JSON value
func singleDocument(doc string) error {
	dec := json.NewDecoder(strings.NewReader(doc))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingOutput
	}
	return nil
}

var errTrailingOutput = errors.New("unexpected data after JSON document")

// Int64 converts a decoded JSON value into an int64 pointer, nil when it is not numeric
func Int64(v any) *int64 {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return &i
		}
		if f, err := n.Float64(); err == nil {
			i := int64(f)
			return &i
		}
	case float64:
		i := int64(n)
		return &i
	case int64:
		return &n
	case int:
		i := int64(n)
		return &i
	case int32:
		i := int64(n)
		return &i
	case string:
		return Int64Ptr(n)
	}
	return nil
}

// ParseKeyValues reads `key<sep>value` lines into a map, skipping anything else
func ParseKeyValues(out, sep string) map[string]string {
	values := make(map[string]string)
	for _, line := range Lines(out) {
		k, v, ok := strings.Cut(line, sep)
		if !ok {
			continue
		}
		values[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return values
}

// Truncate shortens s to max runes
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
