package bkt

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/skilltune/internal/skillmap"
)

var scenarioParams = skillmap.SkillParams{PL0: 0.30, PT: 0.09, PS: 0.10, PG: 0.20}

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

func TestUpdate_CorrectScenario(t *testing.T) {
	s := New("stu-1", "math.arithmetic", scenarioParams, fixedNow())

	got := Update(s, true, fixedNow())

	// pCorrect = 0.9*0.3 + 0.2*0.7 = 0.41; adjusted = 0.27/0.41
	adjusted := 0.27 / 0.41
	want := adjusted + (1-adjusted)*0.09
	assert.InDelta(t, want, got.PKnown, 1e-12)
	assert.InDelta(t, 0.6892, got.PKnown, 1e-4)

	require.Len(t, got.Observations, 1)
	obs := got.Observations[0]
	assert.True(t, obs.Correct)
	assert.Equal(t, 0.30, obs.PKnownBefore)
	assert.Equal(t, got.PKnown, obs.PKnownAfter)
	assert.True(t, obs.Timestamp.Equal(fixedNow()))
}

func TestUpdate_IncorrectScenario(t *testing.T) {
	s := New("stu-1", "math.arithmetic", scenarioParams, fixedNow())

	got := Update(s, false, fixedNow())

	adjusted := 0.03 / 0.59
	want := adjusted + (1-adjusted)*0.09
	assert.InDelta(t, want, got.PKnown, 1e-12)
	assert.InDelta(t, 0.1362, got.PKnown, 1e-4)
	require.Len(t, got.Observations, 1)
	assert.False(t, got.Observations[0].Correct)
}

func TestUpdate_DoesNotMutateInput(t *testing.T) {
	s := New("stu-1", "math.algebra", scenarioParams, fixedNow())
	s = Update(s, true, fixedNow())
	before := s.Clone()

	_ = Update(s, false, fixedNow().Add(time.Minute))

	assert.Equal(t, before.PKnown, s.PKnown)
	assert.Len(t, s.Observations, 1)
	assert.True(t, s.LastUpdated.Equal(before.LastUpdated))
}

func TestUpdate_ObservationsAppendInOrder(t *testing.T) {
	s := New("stu-1", "math.algebra", scenarioParams, fixedNow())
	answers := []bool{true, false, true, true}
	for i, a := range answers {
		s = Update(s, a, fixedNow().Add(time.Duration(i)*time.Second))
	}

	require.Len(t, s.Observations, len(answers))
	for i, a := range answers {
		assert.Equal(t, a, s.Observations[i].Correct)
		if i > 0 {
			assert.Equal(t, s.Observations[i-1].PKnownAfter, s.Observations[i].PKnownBefore)
		}
	}
	assert.Equal(t, 3, s.Correct())
}

func TestUpdate_BoundsAndLearningNeverDecreases(t *testing.T) {
	grid := []float64{0, 0.01, 0.1, 0.25, 0.5, 0.75, 0.9, 0.99, 1}
	for _, pKnown := range grid {
		for _, pT := range grid {
			for _, pS := range grid {
				for _, pG := range grid {
					for _, correct := range []bool{true, false} {
						s := KnowledgeState{
							StudentID: "s", SkillID: "k", PKnown: pKnown,
							Params: skillmap.SkillParams{PL0: pKnown, PT: pT, PS: pS, PG: pG},
						}
						got := Update(s, correct, fixedNow())
						adjusted := Posterior(pKnown, pS, pG, correct)

						if math.IsNaN(got.PKnown) || got.PKnown < 0 || got.PKnown > 1 {
							t.Fatalf("pKnown out of range: %v (prior=%v pT=%v pS=%v pG=%v correct=%v)",
								got.PKnown, pKnown, pT, pS, pG, correct)
						}
						if got.PKnown < adjusted-1e-12 {
							t.Fatalf("learning transition decreased mastery: %v < %v", got.PKnown, adjusted)
						}
					}
				}
			}
		}
	}
}

func TestPosterior_ZeroEvidenceKeepsPrior(t *testing.T) {
	// pKnown=1 with pS=1 makes a correct answer impossible.
	assert.Equal(t, 1.0, Posterior(1, 1, 0, true))
	// pKnown=0 with pG=1 makes an incorrect answer impossible.
	assert.Equal(t, 0.0, Posterior(0, 0, 1, false))
}

func TestReplay(t *testing.T) {
	s := New("stu", "k", scenarioParams, fixedNow())
	got := Replay(s, []bool{true, true, true}, fixedNow())
	assert.Len(t, got.Observations, 3)
	assert.Greater(t, got.PKnown, s.PKnown)
}

func TestKnowledgeState_JSONRoundTrip(t *testing.T) {
	s := New("stu-42", "reading.vocab", scenarioParams, fixedNow())
	s = Replay(s, []bool{true, false, true}, fixedNow())

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var back KnowledgeState
	require.NoError(t, json.Unmarshal(raw, &back))

	assert.Equal(t, s.StudentID, back.StudentID)
	assert.Equal(t, s.SkillID, back.SkillID)
	assert.Equal(t, s.PKnown, back.PKnown)
	assert.Equal(t, s.Params, back.Params)
	assert.True(t, s.LastUpdated.Equal(back.LastUpdated))
	require.Len(t, back.Observations, len(s.Observations))
	for i := range s.Observations {
		assert.Equal(t, s.Observations[i].Correct, back.Observations[i].Correct)
		assert.Equal(t, s.Observations[i].PKnownBefore, back.Observations[i].PKnownBefore)
		assert.Equal(t, s.Observations[i].PKnownAfter, back.Observations[i].PKnownAfter)
		assert.True(t, s.Observations[i].Timestamp.Equal(back.Observations[i].Timestamp))
	}
}

func TestKnowledgeState_JSONFieldNames(t *testing.T) {
	s := New("stu", "k", scenarioParams, fixedNow())
	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, key := range []string{"studentId", "skillId", "pKnown", "params", "observations", "lastUpdated"} {
		assert.Contains(t, m, key)
	}
	params := m["params"].(map[string]any)
	for _, key := range []string{"pL0", "pT", "pS", "pG"} {
		assert.Contains(t, params, key)
	}
}

func TestClone_IsDeep(t *testing.T) {
	s := Update(New("s", "k", scenarioParams, fixedNow()), true, fixedNow())
	c := s.Clone()
	c.Observations[0].Correct = false
	assert.True(t, s.Observations[0].Correct)
}

func TestNewerThan(t *testing.T) {
	a := New("s", "k", scenarioParams, fixedNow())
	b := New("s", "k", scenarioParams, fixedNow().Add(time.Second))
	assert.True(t, b.NewerThan(a))
	assert.False(t, a.NewerThan(b))
	assert.False(t, a.NewerThan(a))
}

func TestValid(t *testing.T) {
	s := New("s", "k", scenarioParams, fixedNow())
	assert.True(t, s.Valid())
	s.PKnown = 1.5
	assert.False(t, s.Valid())
	assert.False(t, KnowledgeState{}.Valid())
}
