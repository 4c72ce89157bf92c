package practice

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Question is one drill prompt with an integer answer.
type Question struct {
	SkillID string
	Prompt  string
	Answer  int
}

type questionFunc func(r *rand.Rand, d float64) Question

var generators = map[string]questionFunc{
	"math.arithmetic":  arithmetic,
	"math.algebra":     algebra,
	"math.fractions":   fractions,
	"math.geometry":    geometry,
	"logic.patterns":   sequence,
	"logic.sequencing": sequence,
}

// Supported returns the skills of a game the drill can ask about.
func Supported(skills []string) []string {
	var out []string
	for _, s := range skills {
		if _, ok := generators[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Generator produces questions scaled by difficulty.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator with a fixed seed. Equal seeds produce
// equal question streams.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x5eed))}
}

// Next returns a question for skillID at difficulty d. Unknown skills get
// arithmetic.
func (g *Generator) Next(skillID string, d float64) Question {
	fn, ok := generators[skillID]
	if !ok {
		fn = arithmetic
	}
	q := fn(g.rng, d)
	q.SkillID = skillID
	return q
}

// scale maps difficulty onto [lo, hi].
func scale(d float64, lo, hi int) int {
	d = math.Max(0, math.Min(1, d))
	return lo + int(math.Round(d*float64(hi-lo)))
}

// between returns a uniform integer in [lo, hi].
func between(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

func arithmetic(r *rand.Rand, d float64) Question {
	if d >= 0.6 {
		limit := scale(d, 2, 12)
		a, b := between(r, 2, limit), between(r, 2, limit)
		return Question{Prompt: fmt.Sprintf("%d × %d = ?", a, b), Answer: a * b}
	}
	limit := scale(d, 5, 100)
	a, b := between(r, 1, limit), between(r, 1, limit)
	if d >= 0.3 && r.IntN(2) == 0 {
		if a < b {
			a, b = b, a
		}
		return Question{Prompt: fmt.Sprintf("%d - %d = ?", a, b), Answer: a - b}
	}
	return Question{Prompt: fmt.Sprintf("%d + %d = ?", a, b), Answer: a + b}
}

func algebra(r *rand.Rand, d float64) Question {
	limit := scale(d, 5, 50)
	x, a := between(r, 0, limit), between(r, 1, limit)
	if d >= 0.5 {
		k := between(r, 2, scale(d, 2, 9))
		return Question{Prompt: fmt.Sprintf("%dx + %d = %d, x = ?", k, a, k*x+a), Answer: x}
	}
	return Question{Prompt: fmt.Sprintf("x + %d = %d, x = ?", a, x+a), Answer: x}
}

func fractions(r *rand.Rand, d float64) Question {
	den := between(r, 2, scale(d, 2, 10))
	num := 1
	if d >= 0.5 {
		num = between(r, 1, den-1)
	}
	whole := den * between(r, 1, scale(d, 3, 12))
	return Question{Prompt: fmt.Sprintf("%d/%d of %d = ?", num, den, whole), Answer: whole / den * num}
}

func geometry(r *rand.Rand, d float64) Question {
	limit := scale(d, 3, 20)
	w, h := between(r, 1, limit), between(r, 1, limit)
	if d >= 0.5 {
		return Question{Prompt: fmt.Sprintf("Area of a %d by %d rectangle = ?", w, h), Answer: w * h}
	}
	return Question{Prompt: fmt.Sprintf("Perimeter of a %d by %d rectangle = ?", w, h), Answer: 2 * (w + h)}
}

func sequence(r *rand.Rand, d float64) Question {
	start := between(r, 0, scale(d, 5, 30))
	step := between(r, 1, scale(d, 2, 12))
	if d >= 0.7 && r.IntN(2) == 0 {
		step = -step
		start += 4 * -step
	}
	terms := make([]any, 4)
	for i := range terms {
		terms[i] = start + i*step
	}
	return Question{Prompt: fmt.Sprintf("%d, %d, %d, %d, ?", terms...), Answer: start + 4*step}
}
