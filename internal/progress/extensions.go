package progress

import (
	"encoding/json"
	"fmt"
)

// Extensions carries JSON members that are not part of the fixed schema so
// newer clients and servers can add fields without older ones dropping them
type Extensions map[string]json.RawMessage

func (e Extensions) clone() Extensions {
	if e == nil {
		return nil
	}
	out := make(Extensions, len(e))
	for k, v := range e {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Get decodes the extension named key into v. It reports false when the key
// is absent.
func (e Extensions) Get(key string, v any) (bool, error) {
	raw, ok := e[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decoding extension %q: %w", key, err)
	}
	return true, nil
}

// Set encodes v under key, allocating the map when needed
func (e *Extensions) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding extension %q: %w", key, err)
	}
	if *e == nil {
		*e = make(Extensions)
	}
	(*e)[key] = raw
	return nil
}

var (
	missionFields = fieldSet("missionId", "status", "txHash", "explorerUrl", "notes", "startedAt", "completedAt", "submissions")
	userFields    = fieldSet("userId", "missions", "lastUpdated")
)

func fieldSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// MarshalJSON writes the fixed fields followed by any extensions
func (m MissionProgress) MarshalJSON() ([]byte, error) {
	type plain MissionProgress
	return marshalWithExtensions(plain(m), m.Extensions, missionFields)
}

// UnmarshalJSON reads the fixed fields and keeps the rest as extensions
func (m *MissionProgress) UnmarshalJSON(data []byte) error {
	type plain MissionProgress
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	ext, err := extractExtensions(data, missionFields)
	if err != nil {
		return err
	}
	*m = MissionProgress(p)
	m.Extensions = ext
	return nil
}

// MarshalJSON writes the fixed fields followed by any extensions
func (p UserProgress) MarshalJSON() ([]byte, error) {
	type plain UserProgress
	if p.Missions == nil {
		p.Missions = map[string]MissionProgress{}
	}
	return marshalWithExtensions(plain(p), p.Extensions, userFields)
}

// UnmarshalJSON reads the fixed fields and keeps the rest as extensions
func (p *UserProgress) UnmarshalJSON(data []byte) error {
	type plain UserProgress
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	ext, err := extractExtensions(data, userFields)
	if err != nil {
		return err
	}
	*p = UserProgress(v)
	p.Extensions = ext
	return nil
}

func marshalWithExtensions(v any, ext Extensions, known map[string]struct{}) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(ext) == 0 {
		return base, nil
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, raw := range ext {
		if _, isKnown := known[k]; isKnown {
			continue
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}

func extractExtensions(data []byte, known map[string]struct{}) (Extensions, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	var ext Extensions
	for k, raw := range fields {
		if _, isKnown := known[k]; isKnown {
			continue
		}
		if ext == nil {
			ext = make(Extensions)
		}
		ext[k] = raw
	}
	return ext, nil
}
