package validation

import (
	"regexp"
	"strings"

	"DBAdminDO/internal/pkg/apperrors"

	"github.com/kballard/go-shellquote"
)

// DefaultMaxQueryLength caps ad-hoc query text
const DefaultMaxQueryLength = 10000

// blockedStatements is deliberately conservative: a false positive is preferred
// over letting a destructive statement through.
var blockedStatements = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(DROP\s+DATABASE|DROP\s+USER|DROP\s+ROLE|TRUNCATE\s+ALL)`),
	regexp.MustCompile(`(?is);.*(DROP|TRUNCATE)`),
	// mongosh
	regexp.MustCompile(`(?i)\.\s*(dropDatabase|dropUser|dropAllUsers|dropRole|dropAllRoles)\s*\(`),
	regexp.MustCompile(`(?i)\[\s*['"\x60]\s*(dropDatabase|dropUser|dropAllUsers|dropRole|dropAllRoles)\s*['"\x60]\s*\]`),
	// redis-cli
	regexp.MustCompile(`(?i)^\s*(FLUSHALL|FLUSHDB|SHUTDOWN|DEBUG|CONFIG\s+SET|ACL\s+DELUSER|REPLICAOF|SLAVEOF)\b`),
}

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`(?m)(--|#)[^\n]*$`)
	commentMarks = regexp.MustCompile(`/\*!?[0-9]*|\*/`)
)

// queryForms returns every reading of query the blocklist is matched against:
// the text as written, with comments removed, with only the comment markers
// removed (MySQL runs /*! ... */ bodies), and each of those split into words
// and rejoined the way redis-cli sees them.
func queryForms(query string) []string {
	texts := []string{
		query,
		lineComment.ReplaceAllString(blockComment.ReplaceAllString(query, " "), " "),
		commentMarks.ReplaceAllString(query, " "),
	}
	forms := append([]string(nil), texts...)
	for _, text := range texts {
		if words, err := shellquote.Split(text); err == nil && len(words) > 0 {
			forms = append(forms, strings.Join(words, " "))
		}
	}
	return forms
}

// IsBlockedQuery reports whether any reading of query matches the
// destructive-statement blocklist
func IsBlockedQuery(query string) bool {
	for _, form := range queryForms(query) {
		for _, re := range blockedStatements {
			if re.MatchString(form) {
				return true
			}
		}
	}
	return false
}

// ValidateQuery checks ad-hoc query text before it is dispatched to an engine
func ValidateQuery(query string, maxLength int) error {
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	if strings.TrimSpace(query) == "" {
		return apperrors.Invalid("query is required")
	}
	if len(query) > maxLength {
		return apperrors.Invalid("query exceeds maximum length of %d characters", maxLength)
	}
	if IsBlockedQuery(query) {
		return apperrors.Invalid("query contains a blocked destructive statement")
	}
	return nil
}
