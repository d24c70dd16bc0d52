package ruleset

// Ruleset is the Compiled Ruleset (C3): a pre-sorted, immutable rule list
// plus its scope-bucket index. Once published, RulesSorted is never
// mutated — a hot swap replaces the whole value via the registry's atomic
// pointer, never edits this one in place.
type Ruleset struct {
	RulesetKey     string
	Version        int
	RulesetID      string
	EvaluationType string
	RulesSorted    []Rule

	buckets *bucketIndex
}

// New constructs a Ruleset from an already-compiled, already-sorted rule
// list (see SortRules). Construction allocates the lazy scope-bucket
// index; it starts empty and fills on first lookup per tuple.
func New(rulesetKey string, version int, rulesetID, evaluationType string, rulesSorted []Rule) *Ruleset {
	return &Ruleset{
		RulesetKey:     rulesetKey,
		Version:        version,
		RulesetID:      rulesetID,
		EvaluationType: evaluationType,
		RulesSorted:    rulesSorted,
		buckets:        newBucketIndex(),
	}
}

// Eligible returns the comparator-ordered slice of rules whose scope
// constraints are satisfied by the given scope-key tuple, using and
// populating the bounded LRU bucket index.
func (r *Ruleset) Eligible(network, bin, mcc, logo string) []Rule {
	key := bucketKey(network, bin, mcc, logo)
	if cached, ok := r.buckets.get(key); ok {
		return cached
	}
	computed := eligible(r.RulesSorted, network, bin, mcc, logo)
	r.buckets.put(key, computed)
	return computed
}
