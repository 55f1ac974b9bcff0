package sample

import "sort"

// Registry deduplicates samples by identity and owns the set of in-archive
// names used for collision avoidance.
type Registry struct {
	samples map[Identity]*Ref
	names   map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		samples: make(map[Identity]*Ref),
		names:   make(map[string]struct{}),
	}
}

// InsertOrFind registers ref under its identity. When the identity is
// already present the existing sample is returned with inserted == false
// and the incoming ref is discarded.
func (r *Registry) InsertOrFind(ref *Ref) (*Ref, bool) {
	if existing, ok := r.samples[ref.Identity]; ok {
		return existing, false
	}
	r.samples[ref.Identity] = ref
	return ref, true
}

// Len reports the number of unique samples registered.
func (r *Registry) Len() int { return len(r.samples) }

// Samples returns the registered samples in identity order. Index rows and
// sink dispatch both iterate this order, which keeps them co-ordered.
func (r *Registry) Samples() []*Ref {
	out := make([]*Ref, 0, len(r.samples))
	for _, ref := range r.samples {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity.less(out[j].Identity)
	})
	return out
}

// AllocateName finds the first unused name produced by format, trying
// disambiguation indexes 0, 1, 2, ... in turn, reserves it and returns it.
// Index zero is the unsuffixed form.
func (r *Registry) AllocateName(format func(idx uint32) string) string {
	for idx := uint32(0); ; idx++ {
		name := format(idx)
		if _, taken := r.names[name]; !taken {
			r.names[name] = struct{}{}
			return name
		}
	}
}

// HasName reports whether an in-archive name is already reserved.
func (r *Registry) HasName(name string) bool {
	_, ok := r.names[name]
	return ok
}
