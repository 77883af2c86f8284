package nostr

// Filter is a predicate over events. Fields are independent and combine
// with AND; an omitted (nil/zero) field is unconstrained.
type Filter struct {
	IDs     []string `json:"ids,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Kinds   []int    `json:"kinds,omitempty"`
	Events  []string `json:"#e,omitempty"`
	Pubkeys []string `json:"#p,omitempty"`
	Since   *int64   `json:"since,omitempty"`
	Until   *int64   `json:"until,omitempty"`
}

// Empty reports whether the filter has no predicates at all, the case
// the query planner substitutes with "hidden != true".
func (f *Filter) Empty() bool {
	return len(f.IDs) == 0 && len(f.Authors) == 0 && len(f.Kinds) == 0 &&
		len(f.Events) == 0 && len(f.Pubkeys) == 0 && f.Since == nil && f.Until == nil
}

// Matches reports whether e satisfies every present field of f. It is used
// for live fan-out matching; historical results are produced by the SQL
// query planner instead, and the two must agree on every field's
// semantics, including exact (not prefix) id matching.
func (f *Filter) Matches(e *Event) bool {
	if len(f.IDs) > 0 && !contains(f.IDs, e.ID) {
		return false
	}
	if len(f.Authors) > 0 && !contains(f.Authors, e.Pubkey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, e.Kind) {
		return false
	}
	if f.Since != nil && e.CreatedAt <= *f.Since {
		return false
	}
	if f.Until != nil && e.CreatedAt >= *f.Until {
		return false
	}
	if len(f.Events) > 0 || len(f.Pubkeys) > 0 {
		eventRefs, pubkeyRefs := e.TagRefs()
		if len(f.Events) > 0 && !intersects(f.Events, eventRefs) {
			return false
		}
		if len(f.Pubkeys) > 0 && !intersects(f.Pubkeys, pubkeyRefs) {
			return false
		}
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}
