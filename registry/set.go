package registry

import "github.com/relaymetrics/metricagg/metric"

// set is an immutable, copy-on-write snapshot of the live metrics:
// registration and removal are orders of magnitude rarer than lookup, so
// reads pay only a pointer load. order preserves registration order for
// deterministic iteration; byCanonical indexes the same *Metric values by
// canonical identity string.
type set struct {
	order       []*Metric
	byCanonical map[string]*Metric
}

func emptySet() *set {
	return &set{byCanonical: map[string]*Metric{}}
}

func (s *set) get(identity metric.Identity) (*Metric, bool) {
	m, ok := s.byCanonical[identity.String()]
	return m, ok
}

// withAdded returns a new set with m registered under identity. The caller
// guarantees identity is not already present.
func (s *set) withAdded(identity metric.Identity, m *Metric) *set {
	order := make([]*Metric, len(s.order), len(s.order)+1)
	copy(order, s.order)
	order = append(order, m)

	byCanonical := make(map[string]*Metric, len(s.byCanonical)+1)
	for k, v := range s.byCanonical {
		byCanonical[k] = v
	}
	byCanonical[identity.String()] = m
	return &set{order: order, byCanonical: byCanonical}
}

// withRemoved returns a new set with identity absent. Returns s unchanged
// (same pointer) if identity was never present.
func (s *set) withRemoved(identity metric.Identity) *set {
	key := identity.String()
	if _, ok := s.byCanonical[key]; !ok {
		return s
	}

	byCanonical := make(map[string]*Metric, len(s.byCanonical))
	for k, v := range s.byCanonical {
		if k != key {
			byCanonical[k] = v
		}
	}
	order := make([]*Metric, 0, len(s.order))
	for _, m := range s.order {
		if m.Identity().String() != key {
			order = append(order, m)
		}
	}
	return &set{order: order, byCanonical: byCanonical}
}

func (s *set) all() []*Metric { return s.order }

func (s *set) byName(name string) []*Metric {
	var out []*Metric
	for _, m := range s.order {
		if m.Identity().Name() == name {
			out = append(out, m)
		}
	}
	return out
}

func (s *set) count() int { return len(s.order) }
