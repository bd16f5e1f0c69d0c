package schema

// Model is a client-side data-model declaration.
type Model struct {
	Name       string      `msgpack:"name"`
	Properties []*Property `msgpack:"properties"`
	PrimaryKey string      `msgpack:"primary_key"`
	// ForeignKeys maps a property name to the name of the referenced model.
	ForeignKeys map[string]string `msgpack:"foreign_keys"`
}

// Property is a model property.
type Property struct {
	Name     string `msgpack:"name"`
	Type     string `msgpack:"type"`
	Optional bool   `msgpack:"optional"`
}

// Property returns the property with the given name.
func (m *Model) Property(name string) (*Property, bool) {
	for _, p := range m.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}
