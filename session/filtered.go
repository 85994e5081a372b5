package session

import "sort"

// FilteredPrompts records prompt texts the service has rejected. The
// set only grows; a rejection is assumed to hold for the rest of the
// session, so resending the text would just re-trigger it. Only a
// context reset clears the set.
type FilteredPrompts struct {
	set map[string]struct{}
}

func NewFilteredPrompts() *FilteredPrompts {
	return &FilteredPrompts{set: make(map[string]struct{})}
}

func (f *FilteredPrompts) Add(text string) {
	f.set[text] = struct{}{}
}

func (f *FilteredPrompts) Contains(text string) bool {
	_, ok := f.set[text]
	return ok
}

// Texts returns the rejected texts sorted for stable output.
func (f *FilteredPrompts) Texts() []string {
	out := make([]string, 0, len(f.set))
	for text := range f.set {
		out = append(out, text)
	}
	sort.Strings(out)
	return out
}

func (f *FilteredPrompts) Clear() {
	f.set = make(map[string]struct{})
}

func (f *FilteredPrompts) Len() int { return len(f.set) }
