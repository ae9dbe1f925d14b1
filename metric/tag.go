package metric

import (
	"fmt"
	"strings"

	"github.com/relaymetrics/metricagg/merrors"
)

// Tag is a single (name, value?) pair attached to a metric identity. Value
// is absent (zero Value, HasValue false) for a bare tag like "mark".
type Tag struct {
	Name     string
	Value    string
	HasValue bool
}

const forbiddenChars = ":,;"

// NewTag validates and constructs a Tag from already-split name/value
// strings. Names and values are trimmed; neither may contain ':' ',' ';'.
func NewTag(name string, value string, hasValue bool) (Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tag{}, fmt.Errorf("%w: tag name must not be empty", merrors.ErrConfiguration)
	}
	if strings.ContainsAny(name, forbiddenChars) {
		return Tag{}, fmt.Errorf("%w: tag name %q contains a forbidden character", merrors.ErrConfiguration, name)
	}
	if hasValue {
		value = strings.TrimSpace(value)
		if strings.ContainsAny(value, forbiddenChars) {
			return Tag{}, fmt.Errorf("%w: tag value %q contains a forbidden character", merrors.ErrConfiguration, value)
		}
	} else {
		value = ""
	}
	return Tag{Name: name, Value: value, HasValue: hasValue}, nil
}

// ParseTag parses a single tag in "name" or "name:value" form.
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, ":"); idx >= 0 {
		return NewTag(s[:idx], s[idx+1:], true)
	}
	return NewTag(s, "", false)
}

// ParseMany parses a comma-separated tag list. Empty segments (from
// doubled commas, leading/trailing commas, or whitespace-only segments)
// are ignored rather than rejected.
func ParseMany(s string) ([]Tag, error) {
	parts := strings.Split(s, ",")
	tags := make([]Tag, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		tag, err := ParseTag(p)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// Canonical returns the tag's canonical string form: "name" or
// "name:value".
func (t Tag) Canonical() string {
	if !t.HasValue {
		return t.Name
	}
	return t.Name + ":" + t.Value
}
