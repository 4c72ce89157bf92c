// Package coach writes the short encouragement shown when a student misses
// two answers in a row. Messages come from a fixed rotation, or from a
// language model with the rotation as fallback.
package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/skilltune/internal/difficulty"
	"github.com/abhisek/skilltune/internal/llm"
	"github.com/abhisek/skilltune/internal/logging"
	"github.com/abhisek/skilltune/internal/store"
)

// StaticName selects the built-in messages.
const StaticName = "static"

// maxMessageLen bounds generated messages.
const maxMessageLen = 160

var staticMessages = []string{
	"Mistakes help your brain grow. Let's try %s a little easier!",
	"You're doing great. %s takes practice, keep going!",
	"Almost! Take a breath and try the next %s one.",
	"Every expert started here. Let's keep playing %s!",
}

// Static rotates through a fixed set of messages.
type Static struct {
	next atomic.Uint64
}

var _ difficulty.Encourager = (*Static)(nil)

func (s *Static) Encourage(_ context.Context, topic string) string {
	if topic == "" {
		topic = "this"
	}
	i := s.next.Add(1) - 1
	return fmt.Sprintf(staticMessages[i%uint64(len(staticMessages))], topic)
}

// messageSchema is the shape requested from the model.
var messageSchema = &llm.Schema{
	Name:        "encouragement",
	Description: "A one-sentence encouragement for a child",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":      "string",
				"minLength": 1,
				"maxLength": maxMessageLen,
			},
		},
		"required":             []any{"message"},
		"additionalProperties": false,
	},
}

const systemPrompt = `You encourage children aged 6 to 12 who are playing a learning game.
Write one short, warm sentence. Mention the game by name. Never mention scores, failure or difficulty levels.`

// Generated asks a language model for each message and falls back to the
// static rotation on any error or timeout.
type Generated struct {
	provider llm.Provider
	fallback *Static
	timeout  time.Duration
	log      logrus.FieldLogger
}

var _ difficulty.Encourager = (*Generated)(nil)

// NewGenerated wraps provider. A zero timeout means 5 seconds.
func NewGenerated(provider llm.Provider, timeout time.Duration, log logrus.FieldLogger) *Generated {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Generated{provider: provider, fallback: &Static{}, timeout: timeout, log: log}
}

func (g *Generated) Encourage(ctx context.Context, topic string) string {
	ctx, cancel := context.WithTimeout(llm.WithPurpose(ctx, "encouragement"), g.timeout)
	defer cancel()

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      "The student just missed two questions in " + topic + ".",
		Schema:      messageSchema,
		MaxTokens:   120,
		Temperature: 0.8,
	})
	if err != nil {
		g.log.WithError(err).WithField("topic", topic).Debug("using a built-in encouragement")
		return g.fallback.Encourage(ctx, topic)
	}

	var out struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil || strings.TrimSpace(out.Message) == "" {
		return g.fallback.Encourage(ctx, topic)
	}
	return strings.TrimSpace(out.Message)
}

// New returns the encourager named by name: StaticName, or an LLM provider
// understood by llm.NewProvider configured from SKILLTUNE_LLM_* variables.
// Provider setup problems are logged and fall back to static messages.
func New(ctx context.Context, name string, repo store.EventRepo, log logrus.FieldLogger) difficulty.Encourager {
	if log == nil {
		log = logging.Discard()
	}
	if name == "" || name == StaticName {
		return &Static{}
	}
	cfg, err := llm.ConfigFromEnv(name)
	if err == nil {
		var p llm.Provider
		p, err = llm.NewProvider(ctx, cfg, repo, log.WithField("component", "llm"))
		if err == nil {
			log.WithFields(logrus.Fields{"provider": cfg.Provider, "model": p.ModelID()}).Info("llm coach enabled")
			return NewGenerated(p, cfg.Timeout, log)
		}
	}
	log.WithError(err).Warn("llm coach unavailable; using built-in messages")
	return &Static{}
}
