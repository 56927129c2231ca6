// Package servers holds the declarative registry of MCP tool servers the
// gateway launches: each server's identity, where its executable lives, and
// the tools it claims to support. The table is read-only once built; callers
// receive copies and iterate it in declaration order.
package servers

import (
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Transport identifies how the gateway talks to a tool server.
type Transport string

// TransportStdio launches the server as a subprocess and speaks MCP over its
// standard streams. It is the only supported transport.
const TransportStdio Transport = "stdio"

// Well-known registry keys used by the gateway routes.
const (
	CalcServerKey = "calcServer"
	BotServerKey  = "botServer"
)

// ToolDescriptor declares a single tool advertised by a server.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Location names the executable entry point of a server relative to the
// build output tree.
type Location struct {
	// Directory is the per-server directory name, e.g. "calc-server".
	Directory string
	// BaseName is the executable file name without extension, e.g. "calculation".
	BaseName string
}

// ServerDescriptor describes one tool server.
type ServerDescriptor struct {
	Key       string
	Name      string
	Version   string
	Port      int
	Transport Transport
	Location  Location
	Tools     []ToolDescriptor
}

// ToolNames returns the declared tool names in order.
func (d ServerDescriptor) ToolNames() []string {
	names := make([]string, 0, len(d.Tools))
	for _, t := range d.Tools {
		names = append(names, t.Name)
	}
	return names
}

// Tool returns the declared tool with the given name.
func (d ServerDescriptor) Tool(name string) (ToolDescriptor, bool) {
	for _, t := range d.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDescriptor{}, false
}

// Validate checks the descriptor fields that do not depend on the filesystem.
// Executable location checks belong to the paths package.
func (d ServerDescriptor) Validate() error {
	var errs []error
	if d.Key == "" {
		errs = append(errs, errors.New("key is required"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if d.Transport != TransportStdio {
		errs = append(errs, fmt.Errorf("unsupported transport %q", d.Transport))
	}
	seen := make(map[string]struct{}, len(d.Tools))
	for i, t := range d.Tools {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("tool %d: name is required", i))
			continue
		}
		if _, dup := seen[t.Name]; dup {
			errs = append(errs, fmt.Errorf("tool %q declared more than once", t.Name))
		}
		seen[t.Name] = struct{}{}
	}
	if len(errs) > 0 {
		return fmt.Errorf("servers: invalid descriptor %q: %w", d.Key, errors.Join(errs...))
	}
	return nil
}

// Registry is an ordered, read-only set of server descriptors.
type Registry struct {
	descriptors []ServerDescriptor
	index       map[string]int
}

// NewRegistry builds a Registry from descriptors, preserving their order.
// Keys must be unique and every descriptor must validate.
func NewRegistry(descriptors ...ServerDescriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make([]ServerDescriptor, 0, len(descriptors)),
		index:       make(map[string]int, len(descriptors)),
	}
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.index[d.Key]; dup {
			return nil, fmt.Errorf("servers: duplicate server key %q", d.Key)
		}
		r.index[d.Key] = len(r.descriptors)
		r.descriptors = append(r.descriptors, d)
	}
	return r, nil
}

// Descriptors returns a copy of the descriptors in declaration order.
func (r *Registry) Descriptors() []ServerDescriptor {
	return append([]ServerDescriptor(nil), r.descriptors...)
}

// Keys returns the server keys in declaration order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		keys = append(keys, d.Key)
	}
	return keys
}

// Get returns the descriptor registered under key.
func (r *Registry) Get(key string) (ServerDescriptor, bool) {
	i, ok := r.index[key]
	if !ok {
		return ServerDescriptor{}, false
	}
	return r.descriptors[i], true
}

// Len reports the number of registered servers.
func (r *Registry) Len() int { return len(r.descriptors) }

// Default returns the built-in registry: the calculator server followed by
// the chat bot server.
func Default() *Registry {
	r, err := NewRegistry(CalcServer(), BotServer())
	if err != nil {
		panic(err)
	}
	return r
}

// CalcServer describes the calculation server and its "add" tool.
func CalcServer() ServerDescriptor {
	return ServerDescriptor{
		Key:       CalcServerKey,
		Name:      "calculation-server",
		Version:   "1.0.0",
		Port:      3001,
		Transport: TransportStdio,
		Location:  Location{Directory: "calc-server", BaseName: "calculation"},
		Tools: []ToolDescriptor{{
			Name:        "add",
			Description: "Adds two numbers together",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"a": {Type: "number"},
					"b": {Type: "number"},
				},
				Required: []string{"a", "b"},
			},
		}},
	}
}

// BotServer describes the chat server and its "chat" tool.
func BotServer() ServerDescriptor {
	return ServerDescriptor{
		Key:       BotServerKey,
		Name:      "bot-server",
		Version:   "1.0.0",
		Port:      3002,
		Transport: TransportStdio,
		Location:  Location{Directory: "bot-server", BaseName: "bot"},
		Tools: []ToolDescriptor{{
			Name:        "chat",
			Description: "Chat with Llama 3.2",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"prompt": {Type: "string"},
				},
				Required: []string{"prompt"},
			},
		}},
	}
}
