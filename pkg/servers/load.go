package servers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/jsonschema-go/jsonschema"
	"gopkg.in/yaml.v3"
)

// fileRegistry is the on-disk YAML layout of a registry file.
type fileRegistry struct {
	Servers []fileServer `yaml:"servers"`
}

type fileServer struct {
	Key       string     `yaml:"key"`
	Name      string     `yaml:"name"`
	Version   string     `yaml:"version"`
	Port      int        `yaml:"port"`
	Transport string     `yaml:"transport"`
	Server    fileLoc    `yaml:"server"`
	Tools     []fileTool `yaml:"tools"`
}

type fileLoc struct {
	Directory string `yaml:"directory"`
	Path      string `yaml:"path"`
}

type fileTool struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	InputSchema map[string]any `yaml:"inputSchema"`
}

// LoadFile reads a YAML registry file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("servers: read registry %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("servers: %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a YAML registry document. Servers keep the order in which
// they appear in the document.
func Parse(data []byte) (*Registry, error) {
	var doc fileRegistry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if len(doc.Servers) == 0 {
		return nil, fmt.Errorf("registry declares no servers")
	}
	descriptors := make([]ServerDescriptor, 0, len(doc.Servers))
	for _, fs := range doc.Servers {
		d := ServerDescriptor{
			Key:       fs.Key,
			Name:      fs.Name,
			Version:   fs.Version,
			Port:      fs.Port,
			Transport: Transport(fs.Transport),
			Location:  Location{Directory: fs.Server.Directory, BaseName: fs.Server.Path},
		}
		if d.Transport == "" {
			d.Transport = TransportStdio
		}
		for _, ft := range fs.Tools {
			schema, err := toSchema(ft.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("server %q tool %q: %w", fs.Key, ft.Name, err)
			}
			d.Tools = append(d.Tools, ToolDescriptor{
				Name:        ft.Name,
				Description: ft.Description,
				InputSchema: schema,
			})
		}
		descriptors = append(descriptors, d)
	}
	return NewRegistry(descriptors...)
}

// toSchema converts a generic YAML mapping into a JSON schema by routing it
// through its JSON encoding. A missing schema becomes an empty object schema.
func toSchema(raw map[string]any) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	return &schema, nil
}

// RegistryEnv names the environment variable the gateway sets for the tool
// servers it launches when a registry file is in use.
const RegistryEnv = "MCP_REGISTRY"

// DescriptorFor returns the descriptor registered under key, read from the
// registry file at path or from Default() when path is empty.
func DescriptorFor(path, key string) (ServerDescriptor, error) {
	r := Default()
	if path != "" {
		var err error
		if r, err = LoadFile(path); err != nil {
			return ServerDescriptor{}, err
		}
	}
	d, ok := r.Get(key)
	if !ok {
		return ServerDescriptor{}, fmt.Errorf("servers: no server %q in registry", key)
	}
	return d, nil
}
