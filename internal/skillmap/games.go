package skillmap

import (
	"fmt"
	"sort"
)

// Game describes a learning game and the skills it exercises, in the order
// they are weighted when deriving a session difficulty.
type Game struct {
	ID     string
	Name   string
	Skills []string
}

var games = []Game{
	{ID: "math-quest", Name: "Math Quest", Skills: []string{"math.arithmetic", "math.algebra"}},
	{ID: "shape-builder", Name: "Shape Builder", Skills: []string{"math.geometry"}},
	{ID: "pizza-party", Name: "Pizza Party", Skills: []string{"math.fractions", "math.arithmetic"}},
	{ID: "word-explorer", Name: "Word Explorer", Skills: []string{"reading.vocab", "reading.phonics"}},
	{ID: "story-sprint", Name: "Story Sprint", Skills: []string{"reading.fluency", "reading.vocab"}},
	{ID: "pattern-path", Name: "Pattern Path", Skills: []string{"logic.patterns", "logic.sequencing"}},
	{ID: "memory-match", Name: "Memory Match", Skills: []string{"memory.recall"}},
	{ID: "lab-detective", Name: "Lab Detective", Skills: []string{"science.reasoning", "logic.patterns"}},
}

var gamesByID = func() map[string]*Game {
	m := make(map[string]*Game, len(games))
	for i := range games {
		m[games[i].ID] = &games[i]
	}
	return m
}()

// SkillsForGame returns a copy of the ordered skill list for gameID, or nil
// when the game is not in the table.
func SkillsForGame(gameID string) []string {
	g, ok := gamesByID[gameID]
	if !ok {
		return nil
	}
	out := make([]string, len(g.Skills))
	copy(out, g.Skills)
	return out
}

// GetGame returns the game with the given ID.
func GetGame(gameID string) (Game, error) {
	g, ok := gamesByID[gameID]
	if !ok {
		return Game{}, fmt.Errorf("unknown game: %q", gameID)
	}
	out := *g
	out.Skills = SkillsForGame(gameID)
	return out, nil
}

// AllGames returns every game sorted by ID.
func AllGames() []Game {
	out := make([]Game, 0, len(games))
	for _, g := range games {
		g.Skills = SkillsForGame(g.ID)
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllSkills returns the distinct skill IDs referenced by the game table,
// sorted.
func AllSkills() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range games {
		for _, s := range g.Skills {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}
