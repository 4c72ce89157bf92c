package skillmap

import "testing"

func TestParams_Known(t *testing.T) {
	p := Params("math.algebra")
	if p.PL0 != 0.20 || p.PT != 0.08 {
		t.Fatalf("unexpected params for math.algebra: %+v", p)
	}
}

func TestParams_UnknownFallsBackToDefault(t *testing.T) {
	got := Params("underwater.basket-weaving")
	if got != DefaultParams() {
		t.Fatalf("Params(unknown) = %+v, want default %+v", got, DefaultParams())
	}
	if HasParams("underwater.basket-weaving") {
		t.Fatal("HasParams should be false for unknown skill")
	}
	if HasParams(DefaultSkillID) {
		t.Fatal("the default set is not a dedicated skill")
	}
}

func TestParams_AllValidAndInterior(t *testing.T) {
	for id, p := range params {
		if !p.Valid() {
			t.Errorf("%s: params out of range: %+v", id, p)
		}
		// pL0 strictly inside (0,1) keeps BKT denominators non-zero.
		if p.PL0 <= 0 || p.PL0 >= 1 {
			t.Errorf("%s: pL0 must be interior, got %v", id, p.PL0)
		}
	}
}

func TestSkillsForGame(t *testing.T) {
	got := SkillsForGame("math-quest")
	want := []string{"math.arithmetic", "math.algebra"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	// Mutating the result must not touch the table.
	got[0] = "mutated"
	if SkillsForGame("math-quest")[0] != "math.arithmetic" {
		t.Fatal("SkillsForGame leaked its backing slice")
	}
}

func TestSkillsForGame_Unknown(t *testing.T) {
	if got := SkillsForGame("nope"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if _, err := GetGame("nope"); err == nil {
		t.Fatal("expected error for unknown game")
	}
}

func TestGameSkillsHaveParams(t *testing.T) {
	for _, s := range AllSkills() {
		if !HasParams(s) {
			t.Errorf("skill %s used by a game has no dedicated params", s)
		}
	}
}

func TestAllGames_Sorted(t *testing.T) {
	all := AllGames()
	for i := 1; i < len(all); i++ {
		if all[i-1].ID > all[i].ID {
			t.Fatalf("games not sorted: %s > %s", all[i-1].ID, all[i].ID)
		}
	}
}
