// Package commands routes prefixed text messages to command handlers.
package commands

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/haasonsaas/botkit/internal/handlers"
)

// Route is a matched command and the arguments after its name.
type Route struct {
	Command handlers.Command
	// Name is the name or alias the message used.
	Name string
	Args []string
}

type entry struct {
	cmd   handlers.Command
	names map[string]struct{}
}

// Router matches message text against commands in registration order.
// The first command whose prefix and name match wins.
type Router struct {
	mu      sync.RWMutex
	entries []entry
	owners  map[string]string // "prefix+name" -> first handler
	logger  *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		owners: make(map[string]string),
		logger: logger.With("component", "commands"),
	}
}

// Register appends commands. Names and aliases are lower-cased; a name
// already claimed under the same prefix stays with the earlier command.
func (r *Router) Register(cmds ...handlers.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cmd := range cmds {
		name := strings.ToLower(strings.TrimSpace(cmd.Command))
		if name == "" {
			return fmt.Errorf("command name is required (%s)", cmd.Name())
		}
		if cmd.Handler == nil {
			return fmt.Errorf("command %q handler is required", name)
		}
		cmd.Command = name
		if cmd.Prefix == "" {
			cmd.Prefix = handlers.DefaultPrefix
		}

		e := entry{cmd: cmd, names: map[string]struct{}{name: {}}}
		for _, alias := range cmd.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias != "" {
				e.names[alias] = struct{}{}
			}
		}
		for n := range e.names {
			key := cmd.Prefix + n
			if owner, exists := r.owners[key]; exists {
				r.logger.Warn("command name shadowed by earlier registration",
					"name", n,
					"prefix", cmd.Prefix,
					"handler", cmd.Name(),
					"owner", owner)
				continue
			}
			r.owners[key] = cmd.Name()
		}
		r.entries = append(r.entries, e)

		r.logger.Debug("registered command",
			"name", name,
			"aliases", cmd.Aliases,
			"prefix", cmd.Prefix,
			"handler", cmd.Name())
	}
	return nil
}

// Route finds the command for text.
func (r *Router) Route(text string) (Route, bool) {
	content := strings.TrimSpace(text)
	if content == "" {
		return Route{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if !strings.HasPrefix(content, e.cmd.Prefix) {
			continue
		}
		parts := strings.Fields(content[len(e.cmd.Prefix):])
		if len(parts) == 0 {
			continue
		}
		name := strings.ToLower(parts[0])
		if _, ok := e.names[name]; !ok {
			continue
		}
		return Route{Command: e.cmd, Name: name, Args: parts[1:]}, true
	}
	return Route{}, false
}

// List returns the registered commands in registration order.
func (r *Router) List() []handlers.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]handlers.Command, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.cmd
	}
	return out
}

// Len returns the number of registered commands.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
