// Package logparser turns raw container log output into structured entries.
package logparser

import (
	"bufio"
	"iter"
	"regexp"
	"strings"
	"time"

	"DBAdminDO/internal/models"
)

// MaxEntries is how many of the most recent entries a caller keeps
const MaxEntries = 100

var (
	// <timestamp> ... LEVEL: message   (postgres, redis, clickhouse, generic)
	levelTokenRe = regexp.MustCompile(`(?i)^(\S+)\s+(?:.*?\s)??(LOG|WARNING|ERROR|FATAL|PANIC|INFO|DEBUG|NOTICE)(?::\s*|\s+)(.*)$`)
	// <timestamp> ... [Note] message   (mysql, mariadb)
	bracketLevelRe = regexp.MustCompile(`^(\S+)\s+.*?\[(Note|Warning|Error|System)\]\s*(.*)$`)
)

// Parser parses log text. Now supplies the timestamp for unstructured lines.
type Parser struct {
	Now func() time.Time
}

// New returns a parser that stamps unstructured lines with the current time
func New() *Parser {
	return &Parser{Now: time.Now}
}

// Parse yields one entry per non-blank line of raw, in order
func (p *Parser) Parse(raw string) iter.Seq[models.LogEntry] {
	return func(yield func(models.LogEntry) bool) {
		scanner := bufio.NewScanner(strings.NewReader(raw))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !yield(p.ParseLine(line)) {
				return
			}
		}
	}
}

// ParseLine parses a single log line
func (p *Parser) ParseLine(line string) models.LogEntry {
	line = strings.TrimRight(line, "\r")

	if m := levelTokenRe.FindStringSubmatch(line); m != nil {
		return models.LogEntry{
			Timestamp: m[1],
			Level:     normalizeLevel(m[2]),
			Message:   strings.TrimSpace(m[3]),
		}
	}

	if m := bracketLevelRe.FindStringSubmatch(line); m != nil {
		return models.LogEntry{
			Timestamp: m[1],
			Level:     normalizeLevel(m[2]),
			Message:   strings.TrimSpace(m[3]),
		}
	}

	return models.LogEntry{
		Timestamp: p.now().Format(time.RFC3339),
		Level:     models.LevelInfo,
		Message:   line,
	}
}

// Tail parses raw and keeps only the most recent max entries
func (p *Parser) Tail(raw string, max int) []models.LogEntry {
	if max <= 0 {
		max = MaxEntries
	}
	entries := make([]models.LogEntry, 0, max)
	for entry := range p.Parse(raw) {
		entries = append(entries, entry)
		if len(entries) > max {
			entries = entries[1:]
		}
	}
	return entries
}

func (p *Parser) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// normalizeLevel maps engine level tokens into the LogEntry level set
func normalizeLevel(token string) string {
	switch level := strings.ToUpper(token); level {
	case "LOG", "NOTE", "SYSTEM":
		return models.LevelInfo
	default:
		return level
	}
}
