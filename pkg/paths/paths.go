// Package paths resolves the executable entry point of a tool server from its
// registry descriptor.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/servers"
)

const (
	// DefaultRoot is the build output directory.
	DefaultRoot = "dist"
	// DefaultSubdir holds one directory per server below DefaultRoot.
	DefaultSubdir = "servers"
)

// ExecutableExt is appended to a server's base name.
var ExecutableExt = func() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}()

// ServerPathError reports a configuration or deployment problem with a
// server's executable location.
type ServerPathError struct {
	Server  string
	Message string
}

func (e *ServerPathError) Error() string { return e.Message }

// Resolver computes executable paths. The zero value uses DefaultRoot and
// DefaultSubdir.
type Resolver struct {
	Root   string
	Subdir string
}

// Resolve returns the validated executable path for desc. Directory and base
// name may only contain ASCII letters, digits and hyphens; anything else is
// rejected before the filesystem is consulted.
func (r Resolver) Resolve(desc servers.ServerDescriptor) (string, error) {
	dir, base := desc.Location.Directory, desc.Location.BaseName
	if dir == "" || base == "" {
		return "", &ServerPathError{
			Server:  desc.Name,
			Message: fmt.Sprintf("Invalid server configuration for %s: missing directory or path", desc.Name),
		}
	}
	if Sanitize(dir) != dir || Sanitize(base) != base {
		return "", &ServerPathError{
			Server:  desc.Name,
			Message: fmt.Sprintf("Invalid characters in server path for %s", desc.Name),
		}
	}

	full := filepath.Join(r.root(), r.subdir(), dir, base+ExecutableExt)
	if _, err := os.Stat(full); err != nil {
		return "", &ServerPathError{
			Server:  desc.Name,
			Message: fmt.Sprintf("Server file not found for %s: %s", desc.Name, full),
		}
	}
	return full, nil
}

func (r Resolver) root() string {
	if r.Root == "" {
		return DefaultRoot
	}
	return r.Root
}

func (r Resolver) subdir() string {
	if r.Subdir == "" {
		return DefaultSubdir
	}
	return r.Subdir
}

// Sanitize drops every byte that is not an ASCII letter, digit or hyphen.
func Sanitize(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			out = append(out, c)
		}
	}
	return string(out)
}
