package llm

// CallTable maps tool call identifiers to tool names for providers whose
// wire formats omit call identifiers. Adapters that synthesize identifiers
// record them here on the way out and consult the table when pairing
// results back up on the way in.
type CallTable struct {
	names []string
	ids   []string
	byID  map[string]string
}

// NewCallTable returns an empty call table.
func NewCallTable() *CallTable {
	return &CallTable{byID: make(map[string]string)}
}

// Record registers a call identifier and the tool name it invoked.
// Recording order is the positional order used by Resolve.
func (t *CallTable) Record(id, name string) {
	t.ids = append(t.ids, id)
	t.names = append(t.names, name)
	t.byID[id] = name
}

// Name returns the tool name recorded for the given call identifier.
func (t *CallTable) Name(id string) (string, bool) {
	name, ok := t.byID[id]
	return name, ok
}

// Resolve returns the identifier and name of the i-th recorded call.
// Providers that pair results to calls purely by position use this to
// recover identifiers during deserialization.
func (t *CallTable) Resolve(i int) (id, name string, ok bool) {
	if i < 0 || i >= len(t.ids) {
		return "", "", false
	}
	return t.ids[i], t.names[i], true
}

// Len reports the number of recorded calls.
func (t *CallTable) Len() int {
	return len(t.ids)
}
