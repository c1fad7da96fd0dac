package llm

import "testing"

func TestCallTableRecordAndName(t *testing.T) {
	table := NewCallTable()
	table.Record("call_1", "get_weather")
	table.Record("call_2", "get_time")

	name, ok := table.Name("call_1")
	if !ok || name != "get_weather" {
		t.Errorf("Expected get_weather for call_1, got %q (ok=%v)", name, ok)
	}
	if _, ok := table.Name("call_9"); ok {
		t.Error("Expected miss for unrecorded id")
	}
	if table.Len() != 2 {
		t.Errorf("Expected 2 recorded calls, got %d", table.Len())
	}
}

func TestCallTableResolvePositional(t *testing.T) {
	table := NewCallTable()
	table.Record("call_1", "get_weather")
	table.Record("call_2", "get_time")

	id, name, ok := table.Resolve(1)
	if !ok || id != "call_2" || name != "get_time" {
		t.Errorf("Expected call_2/get_time at position 1, got %s/%s (ok=%v)", id, name, ok)
	}

	if _, _, ok := table.Resolve(2); ok {
		t.Error("Expected out-of-range resolve to fail")
	}
	if _, _, ok := table.Resolve(-1); ok {
		t.Error("Expected negative resolve to fail")
	}
}
