// Package redis administers Redis, KeyDB and Dragonfly containers through
// redis-cli (keydb-cli for KeyDB).
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"
	"DBAdminDO/internal/pkg/logger"
	"DBAdminDO/internal/transport"

	"github.com/kballard/go-shellquote"
)

// DefaultKeyLimit caps key listings when the caller gives no limit
const DefaultKeyLimit = 500

// maxCollectionItems bounds how many members of a list, set or hash are returned
const maxCollectionItems = 100

var protectedUsers = []string{"default"}

var persistenceSettings = []string{
	"save", "appendonly", "appendfsync", "maxmemory", "maxmemory-policy", "dir", "dbfilename",
}

var (
	_ engines.Service           = (*Service)(nil)
	_ engines.KeyValueStore     = (*Service)(nil)
	_ engines.QueryExecutor     = (*Service)(nil)
	_ engines.UserManager       = (*Service)(nil)
	_ engines.ConnectionManager = (*Service)(nil)
	_ engines.SettingsReader    = (*Service)(nil)
)

// Service implements the Redis engine family
type Service struct {
	runner transport.Transport
	flavor models.EngineType
}

// New creates a service for flavor (redis, keydb or dragonfly)
func New(runner transport.Transport, flavor models.EngineType) *Service {
	return &Service{runner: runner, flavor: flavor}
}

// Family implements engines.Service
func (s *Service) Family() string {
	return string(s.flavor)
}

// ProtectedUsers implements engines.UserManager
func (s *Service) ProtectedUsers() []string {
	return protectedUsers
}

func (s *Service) client() string {
	if s.flavor == models.EngineKeyDB {
		return "keydb-cli"
	}
	return "redis-cli"
}

// cliArgs returns the client invocation up to the command words
func (s *Service) cliArgs(db *models.DatabaseHandle) ([]string, map[string]string) {
	argv := []string{s.client()}
	if db.Credentials.AdminUser != "" && db.Credentials.AdminUser != "default" {
		argv = append(argv, "--user", db.Credentials.AdminUser)
	}
	if n, err := strconv.Atoi(db.Credentials.Database); err == nil && n > 0 {
		argv = append(argv, "-n", strconv.Itoa(n))
	}

	env := map[string]string{}
	if db.Credentials.AdminPassword != "" {
		env["REDISCLI_AUTH"] = db.Credentials.AdminPassword
	}
	return argv, env
}

// cli runs one command and returns its raw output
func (s *Service) cli(ctx context.Context, server *models.Server, db *models.DatabaseHandle, words ...string) (string, error) {
	argv, env := s.cliArgs(db)
	argv = append(argv, words...)
	out, err := s.runner.Run(ctx, server, []string{engines.Exec(db.ContainerName(), env, argv...)})
	if err != nil {
		return "", err
	}
	if msg, ok := replyError(out); ok {
		return "", fmt.Errorf("%s", msg)
	}
	return out, nil
}

// batch feeds several commands to one client process on stdin and returns one
// output line per reply
func (s *Service) batch(ctx context.Context, server *models.Server, db *models.DatabaseHandle, commands [][]string) ([]string, error) {
	var script strings.Builder
	for _, words := range commands {
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = quoteArg(w)
		}
		script.WriteString(strings.Join(quoted, " "))
		script.WriteByte('\n')
	}

	argv, env := s.cliArgs(db)
	cmd := engines.Pipe(
		engines.Quote("printf", "%s", script.String()),
		engines.ExecStdin(db.ContainerName(), env, argv...),
	)

	out, err := s.runner.Run(ctx, server, []string{cmd})
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(out, "\n"), "\n"), nil
}

// quoteArg quotes a word for the client's own line parser
func quoteArg(w string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range []byte(w) {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteByte(r)
		case r < 0x20 || r >= 0x7f:
			fmt.Fprintf(&b, "\\x%02x", r)
		default:
			b.WriteByte(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// replyError detects an error reply, which the client prints on stdout
func replyError(out string) (string, bool) {
	trimmed := strings.TrimSpace(out)
	for _, prefix := range []string{"ERR ", "WRONGTYPE ", "NOAUTH ", "NOPERM ", "(error) "} {
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimPrefix(trimmed, "(error) "), true
		}
	}
	return "", false
}

// ParseInfo splits INFO output into sections of key/value pairs
func ParseInfo(out string) map[string]map[string]string {
	sections := make(map[string]map[string]string)
	current := "default"
	for _, line := range engines.Lines(out) {
		if strings.HasPrefix(line, "#") {
			current = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "#")))
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if sections[current] == nil {
			sections[current] = make(map[string]string)
		}
		sections[current][k] = v
	}
	return sections
}

// CollectMetrics implements engines.Service
func (s *Service) CollectMetrics(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (*models.MetricsSample, error) {
	sample, statsErr := engines.ContainerSample(ctx, s.runner, server, db.ContainerName())

	out, err := s.cli(ctx, server, db, "INFO")
	if err != nil {
		if statsErr != nil {
			return nil, err
		}
		logger.Warn("INFO unavailable",
			logger.Database(db.UUID, s.Family()),
			logger.Err(err))
		return sample, nil
	}

	info := ParseInfo(out)
	sample.Connections = engines.Int64Ptr(info["clients"]["connected_clients"])
	for _, key := range []string{"used_memory", "used_memory_peak", "maxmemory"} {
		if v := engines.Int64Ptr(info["memory"][key]); v != nil {
			sample.SetExtra(key, *v)
		}
	}
	if v, ok := info["memory"]["used_memory_human"]; ok {
		sample.SetExtra("used_memory_human", v)
	}
	if v := engines.Int64Ptr(info["stats"]["instantaneous_ops_per_sec"]); v != nil {
		sample.SetExtra("ops_per_sec", *v)
	}
	if v := engines.Int64Ptr(info["server"]["uptime_in_seconds"]); v != nil {
		sample.SetExtra("uptime_seconds", *v)
	}
	if v, ok := info["server"]["redis_version"]; ok {
		sample.SetExtra("version", v)
	}

	hits, misses := engines.Int64Ptr(info["stats"]["keyspace_hits"]), engines.Int64Ptr(info["stats"]["keyspace_misses"])
	if hits != nil && misses != nil && *hits+*misses > 0 {
		ratio := 100 * float64(*hits) / float64(*hits+*misses)
		sample.SetExtra("hit_ratio", float64(int64(ratio*100))/100)
	}

	keyspace := make(map[string]string)
	for db, stats := range info["keyspace"] {
		keyspace[db] = stats
	}
	if len(keyspace) > 0 {
		sample.SetExtra("keyspace", keyspace)
	}
	return sample, nil
}

// ListKeys implements engines.KeyValueStore
func (s *Service) ListKeys(ctx context.Context, server *models.Server, db *models.DatabaseHandle, pattern string, limit int) ([]models.KeyInfo, error) {
	if limit <= 0 || limit > DefaultKeyLimit {
		limit = DefaultKeyLimit
	}
	if pattern == "" {
		pattern = "*"
	}

	argv, env := s.cliArgs(db)
	argv = append(argv, "--scan", "--pattern", pattern, "--count", "100")
	cmd := engines.Pipe(
		engines.Exec(db.ContainerName(), env, argv...),
		engines.Quote("head", "-n", strconv.Itoa(limit)),
	)
	out, err := s.runner.Run(ctx, server, []string{cmd})
	if err != nil {
		return nil, err
	}

	names := engines.Lines(out)
	keys := make([]models.KeyInfo, 0, len(names))
	if len(names) == 0 {
		return keys, nil
	}

	commands := make([][]string, 0, 2*len(names))
	for _, name := range names {
		commands = append(commands, []string{"TYPE", name}, []string{"TTL", name})
	}
	replies, err := s.batch(ctx, server, db, commands)
	if err != nil {
		// Key names alone are still useful
		logger.Warn("Key details unavailable",
			logger.Database(db.UUID, s.Family()),
			logger.Err(err))
		replies = nil
	}

	for i, name := range names {
		k := models.KeyInfo{Key: name, TTL: -1}
		if 2*i+1 < len(replies) {
			k.Type = strings.TrimSpace(replies[2*i])
			if ttl := engines.Int64Ptr(replies[2*i+1]); ttl != nil {
				k.TTL = *ttl
			}
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// GetKey implements engines.KeyValueStore
func (s *Service) GetKey(ctx context.Context, server *models.Server, db *models.DatabaseHandle, key string) (*models.KeyInfo, error) {
	replies, err := s.batch(ctx, server, db, [][]string{{"TYPE", key}, {"TTL", key}})
	if err != nil {
		return nil, err
	}
	if len(replies) < 2 {
		return nil, engines.ErrNoOutput
	}

	info := &models.KeyInfo{Key: key, Type: strings.TrimSpace(replies[0]), TTL: -1}
	if ttl := engines.Int64Ptr(replies[1]); ttl != nil {
		info.TTL = *ttl
	}
	if info.Type == "none" || info.Type == "" {
		return nil, fmt.Errorf("key %q: %w", key, apperrors.ErrNotFound)
	}

	last := strconv.Itoa(maxCollectionItems - 1)
	var words []string
	switch info.Type {
	case "string":
		words = []string{"GET", key}
	case "list":
		words = []string{"LRANGE", key, "0", last}
	case "set":
		words = []string{"SRANDMEMBER", key, strconv.Itoa(maxCollectionItems)}
	case "zset":
		words = []string{"ZRANGE", key, "0", last, "WITHSCORES"}
	case "hash":
		words = []string{"HGETALL", key}
	case "stream":
		words = []string{"XRANGE", key, "-", "+", "COUNT", strconv.Itoa(maxCollectionItems)}
	default:
		return info, nil
	}

	out, err := s.cli(ctx, server, db, words...)
	if err != nil {
		return nil, err
	}
	info.Value = shapeValue(info.Type, out)
	return info, nil
}

// shapeValue converts raw reply lines into a JSON-friendly value for the type
func shapeValue(typ, out string) any {
	if typ == "string" {
		return strings.TrimSuffix(out, "\n")
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		lines = nil
	}

	switch typ {
	case "hash":
		m := make(map[string]string, len(lines)/2)
		for i := 0; i+1 < len(lines); i += 2 {
			m[lines[i]] = lines[i+1]
		}
		return m
	case "zset":
		members := make([]map[string]any, 0, len(lines)/2)
		for i := 0; i+1 < len(lines); i += 2 {
			score, err := strconv.ParseFloat(lines[i+1], 64)
			if err != nil {
				members = append(members, map[string]any{"member": lines[i], "score": lines[i+1]})
				continue
			}
			members = append(members, map[string]any{"member": lines[i], "score": score})
		}
		return members
	default:
		if lines == nil {
			return []string{}
		}
		return lines
	}
}

// SetKey implements engines.KeyValueStore
func (s *Service) SetKey(ctx context.Context, server *models.Server, db *models.DatabaseHandle, key, value string, ttlSeconds int64) error {
	words := []string{"SET", key, value}
	if ttlSeconds > 0 {
		words = append(words, "EX", strconv.FormatInt(ttlSeconds, 10))
	}
	out, err := s.cli(ctx, server, db, words...)
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) != "OK" {
		return fmt.Errorf("unexpected reply %q", strings.TrimSpace(out))
	}
	return nil
}

// DeleteKey implements engines.KeyValueStore
func (s *Service) DeleteKey(ctx context.Context, server *models.Server, db *models.DatabaseHandle, key string) (bool, error) {
	out, err := s.cli(ctx, server, db, "DEL", key)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "1", nil
}

// MemoryInfo implements engines.KeyValueStore
func (s *Service) MemoryInfo(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (map[string]any, error) {
	out, err := s.cli(ctx, server, db, "INFO", "memory")
	if err != nil {
		return nil, err
	}
	memory := make(map[string]any)
	for k, v := range ParseInfo(out)["memory"] {
		if n := engines.Int64Ptr(v); n != nil {
			memory[k] = *n
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			memory[k] = f
			continue
		}
		memory[k] = v
	}
	return memory, nil
}

// Flush implements engines.KeyValueStore
func (s *Service) Flush(ctx context.Context, server *models.Server, db *models.DatabaseHandle, scope engines.FlushScope) error {
	command := "FLUSHDB"
	if scope == engines.FlushAll {
		command = "FLUSHALL"
	}
	_, err := s.cli(ctx, server, db, command)
	return err
}

// GetSettings implements engines.SettingsReader with the persistence configuration
func (s *Service) GetSettings(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (map[string]any, error) {
	settings := make(map[string]any)
	for _, name := range persistenceSettings {
		out, err := s.cli(ctx, server, db, "CONFIG", "GET", name)
		if err != nil {
			return nil, err
		}
		lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
		if len(lines) >= 2 {
			settings[lines[0]] = lines[1]
		}
	}

	out, err := s.cli(ctx, server, db, "INFO", "persistence")
	if err != nil {
		return nil, err
	}
	persistence := make(map[string]string)
	for k, v := range ParseInfo(out)["persistence"] {
		persistence[k] = v
	}
	settings["persistence"] = persistence
	return settings, nil
}

// ExecuteQuery implements engines.QueryExecutor. The text is split into words
// the way a shell would and sent as a single command.
func (s *Service) ExecuteQuery(ctx context.Context, server *models.Server, db *models.DatabaseHandle, query string) (*models.QueryResult, error) {
	words, err := shellquote.Split(query)
	if err != nil || len(words) == 0 {
		return nil, apperrors.Invalid("could not parse command: %s", strings.TrimSpace(query))
	}

	out, err := s.cli(ctx, server, db, words...)
	if err != nil {
		return nil, err
	}

	result := &models.QueryResult{Columns: []string{"result"}, Rows: [][]any{}}
	if strings.TrimSpace(out) != "" {
		for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
			result.Rows = append(result.Rows, []any{line})
		}
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

// ListUsers implements engines.UserManager
func (s *Service) ListUsers(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.UserDescriptor, error) {
	out, err := s.cli(ctx, server, db, "ACL", "LIST")
	if err != nil {
		return nil, err
	}

	var users []models.UserDescriptor
	for _, line := range engines.Lines(out) {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "user" {
			continue
		}
		var attrs []string
		for _, f := range fields[2:] {
			if f == "on" || f == "off" || strings.HasPrefix(f, "+") || strings.HasPrefix(f, "~") || strings.HasPrefix(f, "&") {
				attrs = append(attrs, f)
			}
		}
		users = append(users, models.UserDescriptor{
			Name:       fields[1],
			Attributes: attrs,
			Protected:  engines.IsProtected(s, fields[1]),
		})
	}
	return users, nil
}

// CreateUser implements engines.UserManager
func (s *Service) CreateUser(ctx context.Context, server *models.Server, db *models.DatabaseHandle, username, password string) error {
	_, err := s.cli(ctx, server, db, "ACL", "SETUSER", username, "on", ">"+password, "~*", "&*", "+@all")
	return err
}

// DeleteUser implements engines.UserManager
func (s *Service) DeleteUser(ctx context.Context, server *models.Server, db *models.DatabaseHandle, username string) error {
	if engines.IsProtected(s, username) {
		return engines.ProtectedError(username)
	}
	out, err := s.cli(ctx, server, db, "ACL", "DELUSER", username)
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) == "0" {
		return fmt.Errorf("user %q does not exist", username)
	}
	return nil
}

// GetActiveConnections implements engines.ConnectionManager
func (s *Service) GetActiveConnections(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.Connection, error) {
	out, err := s.cli(ctx, server, db, "CLIENT", "LIST")
	if err != nil {
		return nil, err
	}

	var conns []models.Connection
	for _, line := range engines.Lines(out) {
		fields := make(map[string]string)
		for _, pair := range strings.Fields(line) {
			if k, v, ok := strings.Cut(pair, "="); ok {
				fields[k] = v
			}
		}
		if fields["id"] == "" {
			continue
		}
		conns = append(conns, models.Connection{
			ID:       fields["id"],
			User:     fields["user"],
			Database: fields["db"],
			Client:   fields["addr"],
			State:    "idle " + fields["idle"] + "s",
			Query:    fields["cmd"],
			Duration: fields["age"] + "s",
		})
	}
	return conns, nil
}

// KillConnection implements engines.ConnectionManager
func (s *Service) KillConnection(ctx context.Context, server *models.Server, db *models.DatabaseHandle, id string) error {
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return engines.InvalidConnectionID(id)
	}
	out, err := s.cli(ctx, server, db, "CLIENT", "KILL", "ID", id)
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) == "0" {
		return fmt.Errorf("client %s not found", id)
	}
	return nil
}
