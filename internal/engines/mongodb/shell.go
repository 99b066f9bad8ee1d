package mongodb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"DBAdminDO/internal/engines"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// prelude and epilogue wrap every script. Arguments arrive as Extended JSON in
// MONGO_ARGS and the script leaves its result in r, so no caller value is ever
// spliced into script text.
const (
	prelude  = "const a = EJSON.parse(process.env.MONGO_ARGS || '{}');\n"
	epilogue = "\nprint(EJSON.stringify({r: r}, {relaxed: true}));\n"
)

// launcher starts mongosh inside the container with everything taken from the environment
const (
	launcherAuth   = `exec mongosh --quiet --norc -u "$MONGO_USER" -p "$MONGO_PASSWORD" --authenticationDatabase admin "$MONGO_DB" --eval "$MONGO_SCRIPT"`
	launcherNoAuth = `exec mongosh --quiet --norc "$MONGO_DB" --eval "$MONGO_SCRIPT"`
)

// encodeArgs renders args as relaxed Extended JSON for EJSON.parse
func encodeArgs(args bson.M) (string, error) {
	if args == nil {
		return "{}", nil
	}
	data, err := bson.MarshalExtJSON(args, false, false)
	if err != nil {
		return "", fmt.Errorf("failed to encode script arguments: %w", err)
	}
	return string(data), nil
}

// decodeResult extracts r from the last line printed by a script
func decodeResult(out string) (any, error) {
	lines := engines.Lines(out)
	if len(lines) == 0 {
		return nil, engines.ErrNoOutput
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON([]byte(lines[len(lines)-1]), false, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode mongosh output: %w", err)
	}
	return normalize(doc["r"]), nil
}

// normalize converts decoded BSON values into plain JSON-friendly Go values
func normalize(v any) any {
	switch val := v.(type) {
	case bson.M:
		m := make(map[string]any, len(val))
		for k, x := range val {
			m[k] = normalize(x)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, x := range val {
			m[k] = normalize(x)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(val))
		for _, e := range val {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = normalize(x)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = normalize(x)
		}
		return out
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339Nano)
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return val.String()
	case primitive.Binary:
		return fmt.Sprintf("Binary(%d bytes)", len(val.Data))
	case primitive.Regex:
		return "/" + val.Pattern + "/" + val.Options
	case int32:
		return int64(val)
	default:
		return val
	}
}

// asMap returns v as a map or nil
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// asSlice returns v as a slice or nil
func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// documentValue converts a caller-supplied JSON value for storage, turning
// 24-character hex strings under _id into ObjectIds
func documentValue(field string, v any) any {
	if field == "_id" {
		if s, ok := v.(string); ok {
			if oid, err := primitive.ObjectIDFromHex(s); err == nil {
				return oid
			}
		}
	}
	return v
}

// filterCandidates returns the values a text filter may match: the string
// itself plus its numeric, boolean or ObjectId reading
func filterCandidates(field, value string) bson.A {
	candidates := bson.A{value}
	if field == "_id" {
		if oid, err := primitive.ObjectIDFromHex(value); err == nil {
			candidates = append(candidates, oid)
		}
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		candidates = append(candidates, n, float64(n))
	} else if f, err := strconv.ParseFloat(value, 64); err == nil {
		candidates = append(candidates, f)
	}
	switch strings.ToLower(value) {
	case "true":
		candidates = append(candidates, true)
	case "false":
		candidates = append(candidates, false)
	}
	return candidates
}

// orderedKeys returns the keys of each document in first-seen order, _id first
func orderedKeys(docs []any) []string {
	seen := map[string]bool{}
	var keys []string
	for _, d := range docs {
		m := asMap(d)
		names := make([]string, 0, len(m))
		for k := range m {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	if seen["_id"] {
		out := []string{"_id"}
		for _, k := range keys {
			if k != "_id" {
				out = append(out, k)
			}
		}
		return out
	}
	return keys
}
