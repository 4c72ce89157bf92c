// Package practice is a terminal drill that exercises the difficulty
// service the way a game would: it opens a session, tunes difficulty after
// every answer and reports the finished interaction.
package practice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/skilltune/internal/adaptive"
	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/difficulty"
	"github.com/abhisek/skilltune/internal/performance"
	"github.com/abhisek/skilltune/internal/skillmap"
	"github.com/abhisek/skilltune/internal/ui/components"
	"github.com/abhisek/skilltune/internal/ui/layout"
	"github.com/abhisek/skilltune/internal/ui/theme"
)

// ErrUnsupportedGame is returned for games without numeric skills.
var ErrUnsupportedGame = errors.New("game has no skills the drill can practice")

// DefaultQuestions is the drill length when Config.Questions is zero.
const DefaultQuestions = 10

// Config selects who practices what.
type Config struct {
	StudentID string
	GameID    string
	Questions int
	Seed      uint64
}

type phase int

const (
	phaseLoading phase = iota
	phaseAsking
	phaseFeedback
	phaseFinishing
	phaseDone
)

type startedMsg struct {
	start adaptive.SessionStart
	tuner *difficulty.SessionTuner
}

type answeredMsg struct {
	state bkt.KnowledgeState
	tuned difficulty.TunerResult
}

type changedMsg performance.DifficultyChange

type finishedMsg struct {
	result adaptive.InteractionResult
	err    error
}

// Summary is what a finished drill reports.
type Summary struct {
	Asked         int
	Correct       int
	Start         adaptive.SessionStart
	NewDifficulty float64
	SkillStates   []bkt.KnowledgeState
	Err           error
}

// Model is the bubbletea model of one drill.
type Model struct {
	ctx  context.Context
	svc  adaptive.DifficultyService
	cfg  Config
	game skillmap.Game

	skills []string
	gen    *Generator
	input  components.AnswerInput

	changes     <-chan performance.DifficultyChange
	unsubscribe func()

	tuner      *difficulty.SessionTuner
	start      adaptive.SessionStart
	difficulty float64
	pKnown     map[string]float64

	phase       phase
	q           Question
	asked       int
	correct     int
	lastCorrect bool
	message     string
	notice      string
	began       time.Time
	summary     Summary

	width, height int
}

// New prepares a drill for cfg. It fails for unknown games and games with
// no practicable skills.
func New(ctx context.Context, svc adaptive.DifficultyService, cfg Config) (*Model, error) {
	game, err := skillmap.GetGame(cfg.GameID)
	if err != nil {
		return nil, err
	}
	skills := Supported(game.Skills)
	if len(skills) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGame, cfg.GameID)
	}
	if cfg.Questions <= 0 {
		cfg.Questions = DefaultQuestions
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	changes, unsubscribe := svc.SubscribeDifficulty(cfg.StudentID)
	return &Model{
		ctx:         ctx,
		svc:         svc,
		cfg:         cfg,
		game:        game,
		skills:      skills,
		gen:         NewGenerator(cfg.Seed),
		input:       components.NewAnswerInput("your answer", 8),
		changes:     changes,
		unsubscribe: unsubscribe,
		pKnown:      map[string]float64{},
	}, nil
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.startCmd(), m.waitForChange(), m.input.Focus())
}

func (m *Model) startCmd() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{
			start: m.svc.StartSession(m.ctx, m.cfg.StudentID, m.cfg.GameID),
			tuner: m.svc.NewSessionTuner(m.ctx, m.cfg.StudentID, m.cfg.GameID),
		}
	}
}

func (m *Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return changedMsg(c)
	}
}

func (m *Model) answerCmd(skillID string, correct bool) tea.Cmd {
	tuner := m.tuner
	return func() tea.Msg {
		return answeredMsg{
			state: m.svc.UpdateKnowledge(m.ctx, m.cfg.StudentID, skillID, correct),
			tuned: tuner.Record(m.ctx, correct),
		}
	}
}

func (m *Model) finishCmd() tea.Cmd {
	in := adaptive.InteractionData{
		StudentID:         m.cfg.StudentID,
		GameID:            m.cfg.GameID,
		Score:             100 * float64(m.correct) / float64(m.asked),
		TimeSpent:         time.Since(m.began).Seconds(),
		CompletedLevel:    m.asked,
		TotalLevels:       m.cfg.Questions,
		Difficulty:        m.difficulty,
		SkillsApplied:     m.skills,
		QuestionsAnswered: m.asked,
		CorrectAnswers:    m.correct,
		KnowledgeRecorded: true,
	}
	return func() tea.Msg {
		res, err := m.svc.RecordInteraction(m.ctx, in)
		return finishedMsg{result: res, err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case startedMsg:
		m.start = msg.start
		m.tuner = msg.tuner
		m.difficulty = msg.tuner.Difficulty()
		m.summary.Start = msg.start
		for _, s := range msg.start.Skills {
			m.pKnown[s.SkillID] = s.PKnown
		}
		m.began = time.Now()
		m.nextQuestion()
		return m, nil

	case answeredMsg:
		m.pKnown[msg.state.SkillID] = msg.state.PKnown
		m.difficulty = msg.tuned.Difficulty
		if msg.tuned.Message != "" {
			m.message = msg.tuned.Message
		}
		return m, nil

	case changedMsg:
		if msg.Key.GameID == m.cfg.GameID {
			m.notice = fmt.Sprintf("Difficulty %.2f → %.2f", msg.Previous, msg.Difficulty)
		}
		return m, m.waitForChange()

	case finishedMsg:
		m.phase = phaseDone
		m.summary.Err = msg.err
		m.summary.NewDifficulty = msg.result.NewDifficulty
		m.summary.SkillStates = msg.result.SkillStates
		m.close()
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	if m.phase == phaseAsking {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.close()
		return m, tea.Quit
	}

	switch m.phase {
	case phaseAsking:
		switch key {
		case "esc":
			return m.finish()
		case "enter":
			v, err := m.input.Int()
			if err != nil {
				return m, nil
			}
			m.asked++
			m.lastCorrect = v == m.q.Answer
			if m.lastCorrect {
				m.correct++
			}
			m.message = ""
			m.phase = phaseFeedback
			return m, m.answerCmd(m.q.SkillID, m.lastCorrect)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case phaseFeedback:
		if key == "esc" || m.asked >= m.cfg.Questions {
			return m.finish()
		}
		m.nextQuestion()
		return m, nil

	case phaseDone:
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) finish() (tea.Model, tea.Cmd) {
	m.summary.Asked = m.asked
	m.summary.Correct = m.correct
	if m.asked == 0 {
		m.phase = phaseDone
		m.close()
		return m, tea.Quit
	}
	m.phase = phaseFinishing
	return m, m.finishCmd()
}

func (m *Model) nextQuestion() {
	skill := m.skills[m.asked%len(m.skills)]
	m.q = m.gen.Next(skill, m.difficulty)
	m.input.Reset()
	m.phase = phaseAsking
}

func (m *Model) close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Summary returns the drill outcome so far.
func (m *Model) Summary() Summary {
	return m.summary
}

func (m *Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	if m.width == 0 || m.height == 0 {
		return v
	}
	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}
	v.SetContent(m.render())
	return v
}

func (m *Model) render() string {
	header := layout.RenderHeader(m.game.Name, fmt.Sprintf("%d/%d", m.asked, m.cfg.Questions), m.width)
	footer := layout.RenderFooter(m.hints(), m.width)
	return layout.RenderFrame(header, m.body(components.ContentWidth(m.width)), footer, m.width, m.height)
}

func (m *Model) hints() []layout.KeyHint {
	switch m.phase {
	case phaseAsking:
		return []layout.KeyHint{{Key: "Enter", Description: "Submit"}, {Key: "Esc", Description: "Finish"}}
	case phaseFeedback:
		return []layout.KeyHint{{Key: "any key", Description: "Continue"}, {Key: "Esc", Description: "Finish"}}
	case phaseDone:
		return []layout.KeyHint{{Key: "any key", Description: "Quit"}}
	}
	return []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
}

func (m *Model) body(cw int) string {
	var b strings.Builder
	switch m.phase {
	case phaseLoading:
		b.WriteString(theme.Hint.Render("Loading your progress..."))

	case phaseAsking, phaseFeedback:
		b.WriteString(components.DifficultyMeter(m.difficulty, cw).View() + "\n\n")
		b.WriteString(theme.Title.Render(m.q.Prompt) + "\n\n")
		if m.phase == phaseAsking {
			b.WriteString(m.input.View())
		} else if m.lastCorrect {
			b.WriteString(theme.Correct.Render("Correct!"))
		} else {
			b.WriteString(theme.Incorrect.Render("The answer was " + strconv.Itoa(m.q.Answer)))
		}
		if m.message != "" {
			b.WriteString("\n\n" + theme.Encouragement.Render(m.message))
		}
		if m.notice != "" {
			b.WriteString("\n" + theme.Hint.Render(m.notice))
		}
		b.WriteString("\n\n" + m.skillMeters(cw))

	case phaseFinishing:
		b.WriteString(theme.Hint.Render("Saving your session..."))

	case phaseDone:
		b.WriteString(theme.Title.Render(fmt.Sprintf("%d of %d correct", m.summary.Correct, m.summary.Asked)) + "\n\n")
		if m.summary.Err != nil {
			b.WriteString(theme.Incorrect.Render(m.summary.Err.Error()))
		} else if m.summary.Asked > 0 {
			b.WriteString(components.DifficultyMeter(m.summary.NewDifficulty, cw).View() + "\n\n")
			for _, s := range m.summary.SkillStates {
				b.WriteString(components.NewMeter(s.SkillID, s.PKnown, cw).View() + "\n")
			}
		}
	}
	return components.Card(lipgloss.NewStyle().Width(cw).Render(b.String()), cw)
}

func (m *Model) skillMeters(cw int) string {
	lines := make([]string, 0, len(m.skills))
	for _, s := range m.skills {
		lines = append(lines, components.NewMeter(s, m.pKnown[s], cw).View())
	}
	return strings.Join(lines, "\n")
}

// Run plays a drill in the terminal and returns its summary.
func Run(ctx context.Context, svc adaptive.DifficultyService, cfg Config) (Summary, error) {
	m, err := New(ctx, svc, cfg)
	if err != nil {
		return Summary{}, err
	}
	defer m.close()

	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		return Summary{}, err
	}
	return final.(*Model).Summary(), nil
}
