// Package transporttest provides a scripted transport for tests.
package transporttest

import (
	"context"
	"strings"
	"sync"

	"DBAdminDO/internal/models"
)

// Reply is returned when a command line contains Match. When Handler is set it
// computes the answer from the matching command line instead.
type Reply struct {
	Match   string
	Output  string
	Err     error
	Handler func(command string) (string, error)
}

// Fake records every command it is asked to run and answers from a script.
// The first Reply whose Match is contained in any of the command lines wins;
// unmatched calls return empty output.
type Fake struct {
	mu       sync.Mutex
	replies  []Reply
	commands []string
}

// New returns a Fake answering with replies in order of precedence
func New(replies ...Reply) *Fake {
	return &Fake{replies: replies}
}

// On appends a reply and returns the fake for chaining
func (f *Fake) On(match, output string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, Reply{Match: match, Output: output})
	return f
}

// Fail appends a failing reply
func (f *Fake) Fail(match string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, Reply{Match: match, Err: err})
	return f
}

// Handle appends a reply computed from the matching command line, which lets a
// test keep state between commands
func (f *Fake) Handle(match string, handler func(command string) (string, error)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, Reply{Match: match, Handler: handler})
	return f
}

// Run implements transport.Transport
func (f *Fake) Run(_ context.Context, _ *models.Server, commands []string) (string, error) {
	reply, command, ok := f.match(commands)
	if !ok {
		return "", nil
	}
	if reply.Handler != nil {
		return reply.Handler(command)
	}
	return reply.Output, reply.Err
}

func (f *Fake) match(commands []string) (Reply, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commands = append(f.commands, commands...)
	for _, r := range f.replies {
		for _, c := range commands {
			if strings.Contains(c, r.Match) {
				return r, c, true
			}
		}
	}
	return Reply{}, "", false
}

// Commands returns every command line run so far
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// Last returns the most recent command line, or ""
func (f *Fake) Last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commands) == 0 {
		return ""
	}
	return f.commands[len(f.commands)-1]
}

// Ran reports whether any command line contained substr
func (f *Fake) Ran(substr string) bool {
	for _, c := range f.Commands() {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}
