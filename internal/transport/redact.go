package transport

import (
	"regexp"
	"strings"

	"github.com/kballard/go-shellquote"
)

const redacted = "***"

var (
	secretAssignment = regexp.MustCompile(`^([A-Z_]*(?:PASSWORD|PWD|AUTH|SECRET|TOKEN)[A-Z_]*)=.*$`)
	sqlPassword      = regexp.MustCompile(`(?i)\b(PASSWORD|BY)(\s+)'(?:[^'\\]|\\.|'')*'`)
	scriptPassword   = regexp.MustCompile(`("pwd"\s*:\s*)"(?:[^"\\]|\\.)*"`)
)

// Redact returns command with credentials masked so it can be logged: secret
// environment assignments, SQL password literals, mongosh pwd arguments and
// redis ACL passwords.
func Redact(command string) string {
	words, err := shellquote.Split(command)
	if err != nil {
		return "<unparseable command>"
	}

	setuser := false
	for i, w := range words {
		switch {
		case secretAssignment.MatchString(w):
			w = secretAssignment.ReplaceAllString(w, "${1}="+redacted)
		case setuser && strings.HasPrefix(w, ">"):
			w = ">" + redacted
		default:
			w = sqlPassword.ReplaceAllString(w, "${1}${2}'"+redacted+"'")
			w = scriptPassword.ReplaceAllString(w, `${1}"`+redacted+`"`)
		}
		if strings.EqualFold(w, "SETUSER") {
			setuser = true
		}
		words[i] = w
	}
	return strings.Join(words, " ")
}

// RedactAll applies Redact to every command line
func RedactAll(commands []string) []string {
	out := make([]string, len(commands))
	for i, c := range commands {
		out[i] = Redact(c)
	}
	return out
}
