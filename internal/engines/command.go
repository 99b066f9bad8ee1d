package engines

import (
	"context"
	"sort"
	"strings"

	"DBAdminDO/internal/models"
	"DBAdminDO/internal/transport"

	"github.com/kballard/go-shellquote"
)

// Exec builds a `docker exec` command line that runs argv inside container.
// Every word is shell-quoted. env values are assigned in front of the docker
// client and forwarded by name with -e, so credentials never appear in the
// argv of any process on the host. SQL text in argv is still visible there.
func Exec(container string, env map[string]string, argv ...string) string {
	return execLine(false, container, env, argv)
}

// ExecStdin is Exec with stdin attached so a script can be piped in
func ExecStdin(container string, env map[string]string, argv ...string) string {
	return execLine(true, container, env, argv)
}

func execLine(stdin bool, container string, env map[string]string, argv []string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	assignments := make([]string, 0, len(keys))
	words := []string{"docker", "exec"}
	if stdin {
		words = append(words, "-i")
	}
	for _, k := range keys {
		assignments = append(assignments, k+"="+shellquote.Join(env[k]))
		words = append(words, "-e", k)
	}
	words = append(words, container)
	words = append(words, argv...)

	line := shellquote.Join(words...)
	if len(assignments) > 0 {
		line = strings.Join(assignments, " ") + " " + line
	}
	return line
}

// Pipe joins already-quoted command lines with a shell pipe
func Pipe(commands ...string) string {
	return strings.Join(commands, " | ")
}

// Quote shell-quotes a list of words into one command line
func Quote(words ...string) string {
	return shellquote.Join(words...)
}

// Run executes command lines through the transport
func Run(ctx context.Context, runner transport.Transport, server *models.Server, commands ...string) (string, error) {
	return runner.Run(ctx, server, commands)
}

// Lines splits output into trimmed non-empty lines
func Lines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
