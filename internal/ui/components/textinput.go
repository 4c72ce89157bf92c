package components

import (
	"strconv"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
)

// AnswerInput is a focused text input that only accepts integers.
type AnswerInput struct {
	Model textinput.Model
}

// NewAnswerInput creates a focused input limited to maxLen characters.
func NewAnswerInput(placeholder string, maxLen int) AnswerInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "> "
	if maxLen > 0 {
		ti.CharLimit = maxLen
	}
	ti.Focus()
	return AnswerInput{Model: ti}
}

// Focus returns the cursor blink command.
func (a *AnswerInput) Focus() tea.Cmd {
	return a.Model.Focus()
}

// Update drops printable keys other than digits and a leading minus.
func (a AnswerInput) Update(msg tea.Msg) (AnswerInput, tea.Cmd) {
	if k, ok := msg.(tea.KeyPressMsg); ok && len(k.Text) == 1 {
		c := k.Text[0]
		digit := c >= '0' && c <= '9'
		minus := c == '-' && a.Model.Position() == 0 && !strings.HasPrefix(a.Model.Value(), "-")
		if !digit && !minus {
			return a, nil
		}
	}
	var cmd tea.Cmd
	a.Model, cmd = a.Model.Update(msg)
	return a, cmd
}

// View renders the input.
func (a AnswerInput) View() string {
	return a.Model.View()
}

// Value returns the raw text.
func (a AnswerInput) Value() string {
	return a.Model.Value()
}

// Int parses the text as an integer.
func (a AnswerInput) Int() (int, error) {
	return strconv.Atoi(strings.TrimSpace(a.Model.Value()))
}

// Reset clears the text.
func (a *AnswerInput) Reset() {
	a.Model.Reset()
}
