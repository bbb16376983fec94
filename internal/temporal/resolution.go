package temporal

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Resolution is the tag, or ordered list of tags, a capability declares.
// It decodes from either a single string or a list in JSON and YAML.
type Resolution []Tag

func Single(t Tag) Resolution { return Resolution{t} }

func (r Resolution) Validate() error {
	for _, t := range r {
		if !t.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownTag, t)
		}
	}
	return nil
}

// ParseResolution reads a comma separated tag list such as "6h,day1".
func ParseResolution(s string) (Resolution, error) {
	var r Resolution
	for _, part := range strings.Split(s, ",") {
		t, err := ParseTag(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		r = append(r, t)
	}
	return r, nil
}

func (r Resolution) String() string {
	parts := make([]string, len(r))
	for i, t := range r {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

// Coarsest returns the coarsest regular tag in r.
func (r Resolution) Coarsest() (Tag, bool) {
	best, found := 0, false
	for _, t := range r {
		i, ok := regularIndex[t]
		if !ok {
			continue
		}
		if !found || i < best {
			best, found = i, true
		}
	}
	if !found {
		return "", false
	}
	return granularities[best].tag, true
}

// Irregular returns the first irregular tag in r.
func (r Resolution) Irregular() (Tag, bool) {
	for _, t := range r {
		if t.Irregular() {
			return t, true
		}
	}
	return "", false
}

func (r Resolution) MarshalJSON() ([]byte, error) {
	if len(r) == 1 {
		return json.Marshal(string(r[0]))
	}
	return json.Marshal([]Tag(r))
}

func (r *Resolution) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*r = Resolution{Tag(single)}
		return nil
	}
	var list []Tag
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("resolution must be a tag or a list of tags: %w", err)
	}
	*r = list
	return nil
}

func (r Resolution) MarshalYAML() (interface{}, error) {
	if len(r) == 1 {
		return string(r[0]), nil
	}
	return []Tag(r), nil
}

func (r *Resolution) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*r = Resolution{Tag(node.Value)}
		return nil
	case yaml.SequenceNode:
		var list []Tag
		if err := node.Decode(&list); err != nil {
			return err
		}
		*r = list
		return nil
	}
	return fmt.Errorf("line %d: resolution must be a tag or a list of tags", node.Line)
}
