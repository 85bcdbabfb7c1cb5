package domain

import "testing"

func TestAcceptRelationRejectsGeneralProvisions(t *testing.T) {
	rules := RelationRules{}
	for article := 1; article <= 20; article++ {
		if rules.AcceptRelation("盗窃", article) {
			t.Fatalf("expected article %d rejected as general provision", article)
		}
	}
	if !rules.AcceptRelation("盗窃", 21) {
		t.Fatalf("expected article 21 accepted without whitelist")
	}
}

func TestAcceptRelationRange(t *testing.T) {
	rules := RelationRules{}
	if rules.AcceptRelation("盗窃", 452) {
		t.Fatalf("expected article above 451 rejected")
	}
	if rules.AcceptRelation("盗窃", 0) {
		t.Fatalf("expected article 0 rejected")
	}
	if !rules.AcceptRelation("盗窃", 451) {
		t.Fatalf("expected article 451 accepted")
	}
}

func TestAcceptRelationBlacklist(t *testing.T) {
	rules := RelationRules{Blacklist: []int{300}}
	if rules.AcceptRelation("某罪", 300) {
		t.Fatalf("expected blacklisted article rejected")
	}
	if !rules.AcceptRelation("某罪", 301) {
		t.Fatalf("expected non-blacklisted article accepted")
	}
}

func TestAcceptRelationWhitelistTolerance(t *testing.T) {
	rules := RelationRules{Whitelist: map[string][]int{"盗窃": {264}}}
	for _, article := range []int{259, 264, 269} {
		if !rules.AcceptRelation("盗窃罪", article) {
			t.Fatalf("expected article %d within ±5 of 264 accepted", article)
		}
	}
	for _, article := range []int{258, 270, 100} {
		if rules.AcceptRelation("盗窃", article) {
			t.Fatalf("expected article %d outside tolerance rejected", article)
		}
	}
}
