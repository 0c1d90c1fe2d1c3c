// Package resolver maps registry origins to execution descriptors.
//
// Resolve is the only gate between a registry entry and process execution, so
// it runs on every hydration rather than once at registration time: origins can
// change between resolutions.
package resolver

import (
	"sort"
	"strings"

	"github.com/dusk-indust/jitcap/internal/capability"
)

// Recognized origin prefixes. Anything else is treated as a bare path.
const (
	SchemeStdio   = "mcp+stdio://"
	SchemeGeneric = "mcp://"
)

// allowed is the closed set of launchers an origin may name.
var allowed = map[string]struct{}{
	"npx":     {},
	"node":    {},
	"python":  {},
	"python3": {},
	"uvx":     {},
	"uv":      {},
	"echo":    {},
	"docker":  {},
	"deno":    {},
	"bun":     {},
}

// Allowed returns the allowlist in sorted order.
func Allowed() []string {
	out := make([]string, 0, len(allowed))
	for cmd := range allowed {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// IsAllowed reports whether cmd is in the allowlist.
func IsAllowed(cmd string) bool {
	_, ok := allowed[cmd]
	return ok
}

// Resolve parses uri into a Descriptor. The first path segment after the
// scheme is the command; remaining segments are positional arguments in order.
func Resolve(uri string) (capability.Descriptor, error) {
	path := stripScheme(uri)
	parts := strings.Split(path, "/")

	command := parts[0]
	if command == "" {
		return capability.Descriptor{}, capability.ErrMalformedURI
	}
	if !IsAllowed(command) {
		return capability.Descriptor{}, &capability.DisallowedCommandError{
			Command: command,
			Allowed: Allowed(),
		}
	}

	args := make([]string, 0, len(parts)-1)
	args = append(args, parts[1:]...)
	return capability.Descriptor{Command: command, Args: args}, nil
}

func stripScheme(uri string) string {
	for _, scheme := range []string{SchemeStdio, SchemeGeneric} {
		if rest, ok := strings.CutPrefix(uri, scheme); ok {
			return rest
		}
	}
	return uri
}
