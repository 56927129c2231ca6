package servers

import "github.com/google/jsonschema-go/jsonschema"

// ToolCapability is the advertised shape of one tool.
type ToolCapability struct {
	Description string
	InputSchema *jsonschema.Schema
}

// CapabilitySet maps tool names to their advertised capability.
type CapabilitySet map[string]ToolCapability

// Capabilities folds a tool list into a CapabilitySet. Every tool produces an
// entry; when a name repeats, the later declaration wins.
func Capabilities(tools []ToolDescriptor) CapabilitySet {
	set := make(CapabilitySet, len(tools))
	for _, t := range tools {
		set[t.Name] = ToolCapability{
			Description: t.Description,
			InputSchema: t.InputSchema,
		}
	}
	return set
}

// Missing returns the names in set that are absent from advertised, in no
// particular order.
func (s CapabilitySet) Missing(advertised []string) []string {
	have := make(map[string]struct{}, len(advertised))
	for _, name := range advertised {
		have[name] = struct{}{}
	}
	var missing []string
	for name := range s {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
