package ruleset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func set(vals ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

func TestLessOrdersGlobalLast(t *testing.T) {
	global := Rule{RuleID: "global", Scope: Scope{}}
	scoped := Rule{RuleID: "scoped", Scope: Scope{MCC: set("7995")}}
	require.True(t, Less(scoped, global))
	require.False(t, Less(global, scoped))
}

func TestLessBreaksSpecificityTiesByDimensionOrder(t *testing.T) {
	network := Rule{RuleID: "network", Scope: Scope{Network: set("VISA")}}
	mcc := Rule{RuleID: "mcc", Scope: Scope{MCC: set("7995")}}
	require.True(t, Less(network, mcc))
}

func TestLessOrdersPriorityDescendingWithinSameSpecificity(t *testing.T) {
	hi := Rule{RuleID: "hi", Priority: 100, Scope: Scope{MCC: set("7995")}}
	lo := Rule{RuleID: "lo", Priority: 10, Scope: Scope{MCC: set("7995")}}
	require.True(t, Less(hi, lo))
	require.False(t, Less(lo, hi))
}

func TestLessPrefersApproveOnFullTie(t *testing.T) {
	approve := Rule{RuleID: "a", Priority: 5, Action: ActionApprove}
	decline := Rule{RuleID: "d", Priority: 5, Action: ActionDecline}
	require.True(t, Less(approve, decline))
	require.False(t, Less(decline, approve))
}

func TestSortRulesIsStableAndComparatorOrdered(t *testing.T) {
	rules := []Rule{
		{RuleID: "global-low", Priority: 1},
		{RuleID: "mcc-rule", Priority: 50, Scope: Scope{MCC: set("7995")}},
		{RuleID: "global-high", Priority: 99},
		{RuleID: "network-rule", Priority: 50, Scope: Scope{Network: set("VISA")}},
	}
	SortRules(rules)

	order := make([]string, len(rules))
	for i, r := range rules {
		order[i] = r.RuleID
	}
	require.Equal(t, []string{"network-rule", "mcc-rule", "global-high", "global-low"}, order)
}

func TestScopeMatches(t *testing.T) {
	s := Scope{Network: set("VISA", "MASTERCARD"), MCC: set("7995")}
	require.True(t, s.Matches("VISA", "", "7995", ""))
	require.False(t, s.Matches("AMEX", "", "7995", ""))
	require.False(t, s.Matches("VISA", "", "5411", ""))
}

func TestRulesetEligibleFiltersByScope(t *testing.T) {
	rules := []Rule{
		{RuleID: "global", Action: ActionDecline},
		{RuleID: "visa-only", Scope: Scope{Network: set("VISA")}, Action: ActionDecline},
	}
	SortRules(rules)
	rs := New("CARD_AUTH", 1, "rs-1", "first_match", rules)

	got := rs.Eligible("VISA", "", "", "")
	require.Len(t, got, 2)

	got2 := rs.Eligible("AMEX", "", "", "")
	require.Len(t, got2, 1)
	require.Equal(t, "global", got2[0].RuleID)
}

func TestRulesetEligibleCachesByTuple(t *testing.T) {
	rules := []Rule{{RuleID: "global"}}
	rs := New("CARD_AUTH", 1, "rs-1", "first_match", rules)

	first := rs.Eligible("VISA", "411111", "5411", "")
	second := rs.Eligible("VISA", "411111", "5411", "")
	require.Equal(t, first, second)
}
