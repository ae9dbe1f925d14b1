package metric

import (
	"fmt"
	"sort"
	"strings"

	"github.com/relaymetrics/metricagg/merrors"
)

// Identity is a value-typed, hashable, totally-ordered metric identity:
// a name plus a sorted set of tags. Equality, ordering, and String() all
// defer to the canonical string, built once at construction so repeated
// lookups and comparisons never re-derive it.
type Identity struct {
	name      string
	tags      []Tag
	canonical string
}

// NewIdentity builds an Identity from a name and an unordered tag set. Tags
// are copied and sorted by name so two identities built from the same
// (name, tag-set) — regardless of input order — compare equal.
func NewIdentity(name string, tags []Tag) (Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Identity{}, fmt.Errorf("%w: metric name must not be empty", merrors.ErrConfiguration)
	}
	if strings.ContainsAny(name, forbiddenChars) {
		return Identity{}, fmt.Errorf("%w: metric name %q contains a forbidden character", merrors.ErrConfiguration, name)
	}

	sorted := make([]Tag, len(tags))
	copy(sorted, tags)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString(name)
	if len(sorted) > 0 {
		b.WriteByte(';')
		for i, t := range sorted {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(t.Canonical())
		}
	}
	return Identity{name: name, tags: sorted, canonical: b.String()}, nil
}

// Name returns the metric's name.
func (id Identity) Name() string { return id.name }

// Tags returns the identity's sorted tag set. Callers must not mutate the
// returned slice.
func (id Identity) Tags() []Tag { return id.tags }

// String returns the canonical form: "name[;tag1[:v1],tag2[:v2],...]".
func (id Identity) String() string { return id.canonical }

// Equal reports whether two identities share the same canonical form.
func (id Identity) Equal(other Identity) bool { return id.canonical == other.canonical }

// Less gives Identity a total order over its canonical string, useful for
// deterministic iteration in tests and snapshots.
func (id Identity) Less(other Identity) bool { return id.canonical < other.canonical }
