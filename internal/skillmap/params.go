package skillmap

// DefaultSkillID names the parameter set used for skills that have no
// entry of their own.
const DefaultSkillID = "default"

// SkillParams holds the four Bayesian Knowledge Tracing probabilities for a
// skill. Values are copied into every knowledge state that uses them, so
// retuning the table never rewrites history.
type SkillParams struct {
	PL0 float64 `json:"pL0"` // prior probability the skill is already known
	PT  float64 `json:"pT"`  // probability of learning between observations
	PS  float64 `json:"pS"`  // slip: wrong answer despite mastery
	PG  float64 `json:"pG"`  // guess: right answer without mastery
}

// Valid reports whether every probability lies in [0, 1].
func (p SkillParams) Valid() bool {
	for _, v := range []float64{p.PL0, p.PT, p.PS, p.PG} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

var params = map[string]SkillParams{
	DefaultSkillID:      {PL0: 0.30, PT: 0.09, PS: 0.10, PG: 0.20},
	"math.arithmetic":   {PL0: 0.40, PT: 0.12, PS: 0.08, PG: 0.25},
	"math.algebra":      {PL0: 0.20, PT: 0.08, PS: 0.10, PG: 0.15},
	"math.geometry":     {PL0: 0.25, PT: 0.10, PS: 0.10, PG: 0.20},
	"math.fractions":    {PL0: 0.20, PT: 0.09, PS: 0.12, PG: 0.20},
	"reading.phonics":   {PL0: 0.35, PT: 0.11, PS: 0.08, PG: 0.25},
	"reading.vocab":     {PL0: 0.30, PT: 0.10, PS: 0.10, PG: 0.25},
	"reading.fluency":   {PL0: 0.25, PT: 0.08, PS: 0.12, PG: 0.20},
	"logic.patterns":    {PL0: 0.25, PT: 0.10, PS: 0.10, PG: 0.30},
	"logic.sequencing":  {PL0: 0.20, PT: 0.09, PS: 0.10, PG: 0.25},
	"memory.recall":     {PL0: 0.30, PT: 0.12, PS: 0.15, PG: 0.20},
	"science.reasoning": {PL0: 0.20, PT: 0.08, PS: 0.10, PG: 0.20},
}

// Params returns the parameters for skillID, falling back to the default
// set for unknown skills.
func Params(skillID string) SkillParams {
	if p, ok := params[skillID]; ok {
		return p
	}
	return params[DefaultSkillID]
}

// DefaultParams returns the fallback parameter set.
func DefaultParams() SkillParams {
	return params[DefaultSkillID]
}

// HasParams reports whether skillID has a dedicated parameter set.
func HasParams(skillID string) bool {
	_, ok := params[skillID]
	return ok && skillID != DefaultSkillID
}
