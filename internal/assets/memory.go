package assets

// MapBundle is an in-memory Bundle keyed by template name.
type MapBundle map[string][]byte

// Load returns a copy of the named template.
func (m MapBundle) Load(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, &TemplateMissingError{Name: name}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Snapshot reads every static and generated template from b into a MapBundle.
// Useful for starting from the embedded set and overriding a few entries.
func Snapshot(b Bundle) (MapBundle, error) {
	names := append(StaticNames(), GeneratedNames()...)
	out := make(MapBundle, len(names))
	for _, name := range names {
		data, err := b.Load(name)
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

var _ Bundle = MapBundle(nil)
