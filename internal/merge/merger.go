// Package merge implements the cumulative-document data merger (spec
// component C1): deep-merging successive step payloads into one document
// with array-preferring conflict resolution, so the decision engine
// always sees a coherent world view.
//
// Import Path: github.com/redbadger/journey-dynamics/internal/merge
package merge

import (
	"fmt"
	"strconv"
	"strings"
)

// HistoryEntry records one merge operation for audit/replay-debugging
// purposes (_examples/original_source/src/utils/data_merger.rs,
// capture_history).
type HistoryEntry struct {
	Step string
	Data any
}

// Merger accumulates step payloads into a single cumulative document.
// The zero value is not usable; construct with New.
type Merger struct {
	data    map[string]any
	history []HistoryEntry
}

// New returns a Merger whose document starts as the empty object.
func New() *Merger {
	return &Merger{data: map[string]any{}}
}

// Merge deep-merges data into the cumulative document under step, and
// records the operation in history.
//
// If data is itself an object, its top-level keys are merged directly
// into the document's root (the step name is not nested in); this is
// the richer/production shape (a step submits a structured form).
// Otherwise data replaces (or sets) the value stored at the step's own
// top-level key — the shape used when a step submits one scalar field
// (spec.md scenario 2: step "first_name", data "Joe").
func (m *Merger) Merge(step string, data any) {
	patch := wrapPatch(step, data)
	m.data = mergeObjects(m.data, patch)
	m.history = append(m.history, HistoryEntry{Step: step, Data: data})
}

// wrapPatch turns a (step, data) capture into a merge-patch document.
func wrapPatch(step string, data any) map[string]any {
	if obj, ok := data.(map[string]any); ok {
		return obj
	}
	return map[string]any{step: data}
}

// mergeObjects merges patch's keys into target, recursing per mergeValue.
func mergeObjects(target, patch map[string]any) map[string]any {
	result := make(map[string]any, len(target)+len(patch))
	for k, v := range target {
		result[k] = v
	}
	for k, v := range patch {
		if existing, ok := result[k]; ok {
			result[k] = mergeValue(existing, v)
		} else {
			result[k] = deepCopy(v)
		}
	}
	return result
}

// mergeValue resolves a conflicting key present on both sides of a merge.
//
//   - both sides objects: merge recursively.
//   - one side an array, the other an object: the array wins, regardless
//     of which side (target or patch) holds it. This is the spec's
//     deliberate deviation from RFC-7386 merge-patch (where patch always
//     wins): later steps submit richer array-shaped data that must
//     replace earlier scalar/object placeholders.
//   - anything else (including patch == nil, which sets the value to
//     null rather than deleting the key): patch replaces target.
func mergeValue(target, patch any) any {
	targetObj, targetIsObj := target.(map[string]any)
	patchObj, patchIsObj := patch.(map[string]any)
	if targetIsObj && patchIsObj {
		return mergeObjects(targetObj, patchObj)
	}

	_, targetIsArr := target.([]any)
	_, patchIsArr := patch.([]any)
	if targetIsArr && patchIsObj {
		return deepCopy(target)
	}
	if patchIsArr && targetIsObj {
		return deepCopy(patch)
	}

	return deepCopy(patch)
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopy(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	default:
		return v
	}
}

// Data returns the current cumulative document. The caller must not
// mutate the returned value; use Clone to obtain an isolated copy.
func (m *Merger) Data() map[string]any {
	return m.data
}

// Clone returns an independent copy of the merger, safe to mutate (e.g.
// to build the decision engine's prospective post-merge view) without
// affecting the committed aggregate state.
func (m *Merger) Clone() *Merger {
	history := make([]HistoryEntry, len(m.history))
	copy(history, m.history)
	return &Merger{
		data:    deepCopy(m.data).(map[string]any),
		history: history,
	}
}

// History returns the ordered list of merge operations applied so far.
func (m *Merger) History() []HistoryEntry {
	out := make([]HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}

// OperationCount returns the number of merge operations applied.
func (m *Merger) OperationCount() int {
	return len(m.history)
}

// TopLevelKeys returns the document's top-level keys.
func (m *Merger) TopLevelKeys() []string {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// HasField reports whether path resolves to a value in the document.
func (m *Merger) HasField(path string) bool {
	_, ok := m.GetField(path)
	return ok
}

// GetField resolves a dotted path with optional numeric bracket indices
// (e.g. "a.b.c", "items[0]", "passengers.details[1].name") against the
// cumulative document.
func (m *Merger) GetField(path string) (any, bool) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	var current any = m.data
	for _, p := range parts {
		if p.index != nil {
			arr, ok := current.([]any)
			if !ok || *p.index < 0 || *p.index >= len(arr) {
				return nil, false
			}
			current = arr[*p.index]
			continue
		}
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := obj[p.key]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}

// Flatten returns every field path in the document (objects, arrays, and
// leaves alike) mapped to its value, using the same dotted/bracket
// notation GetField accepts.
func (m *Merger) Flatten() map[string]any {
	result := make(map[string]any)
	flattenInto("", m.data, result)
	return result
}

func flattenInto(prefix string, value any, result map[string]any) {
	switch t := value.(type) {
	case map[string]any:
		for k, v := range t {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			result[p] = v
			flattenInto(p, v, result)
		}
	case []any:
		for i, v := range t {
			p := fmt.Sprintf("%s[%d]", prefix, i)
			result[p] = v
			flattenInto(p, v, result)
		}
	}
}

type pathSegment struct {
	key   string
	index *int
}

// splitPath parses "a.b[0].c" into [{key:"a"} {key:"b"} {index:0} {key:"c"}].
func splitPath(path string) ([]pathSegment, error) {
	var segments []pathSegment
	for _, dotPart := range strings.Split(path, ".") {
		if dotPart == "" {
			continue
		}
		key := dotPart
		var indices []int
		for {
			open := strings.IndexByte(key, '[')
			if open == -1 {
				break
			}
			close := strings.IndexByte(key[open:], ']')
			if close == -1 {
				return nil, fmt.Errorf("malformed path segment %q", dotPart)
			}
			close += open
			idx, err := strconv.Atoi(key[open+1 : close])
			if err != nil {
				return nil, fmt.Errorf("malformed index in %q: %w", dotPart, err)
			}
			indices = append(indices, idx)
			key = key[:open] + key[close+1:]
		}
		if key != "" {
			segments = append(segments, pathSegment{key: key})
		}
		for _, idx := range indices {
			i := idx
			segments = append(segments, pathSegment{index: &i})
		}
	}
	return segments, nil
}
