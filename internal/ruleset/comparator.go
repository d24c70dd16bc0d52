package ruleset

import "sort"

// Less implements the rules_sorted comparator:
//  1. scope specificity descending (GLOBAL, specificity 0, sorts last);
//     ties broken by the fixed dimension order (network, bin, mcc, logo) —
//     a rule constrained on an earlier-ordered dimension ranks first;
//  2. priority descending within equal specificity;
//  3. APPROVE before non-APPROVE when priority also ties.
func Less(a, b Rule) bool {
	sa, sb := a.Scope.Specificity(), b.Scope.Specificity()
	if sa != sb {
		return sa > sb
	}
	ma, mb := a.Scope.constrainedMask(), b.Scope.constrainedMask()
	if ma != mb {
		return ma > mb
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Action != b.Action {
		return a.Action == ActionApprove
	}
	return false
}

// SortRules sorts rules in place per the comparator. The sort is stable so
// rules that are fully tied (same specificity, mask, priority, action)
// retain artifact order.
func SortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return Less(rules[i], rules[j])
	})
}
