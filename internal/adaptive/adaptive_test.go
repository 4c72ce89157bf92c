package adaptive

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/skilltune/internal/config"
	"github.com/abhisek/skilltune/internal/difficulty"
	"github.com/abhisek/skilltune/internal/knowledge"
	"github.com/abhisek/skilltune/internal/logging"
	"github.com/abhisek/skilltune/internal/performance"
	"github.com/abhisek/skilltune/internal/remote/remotetest"
	"github.com/abhisek/skilltune/internal/store"
)

type stubEncourager struct {
	mu     sync.Mutex
	topics []string
}

func (s *stubEncourager) Encourage(_ context.Context, topic string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
	return "Keep going with " + topic + "!"
}

func testConfig(mode, apiURL string) config.Config {
	return config.Config{
		Mode:          mode,
		APIBaseURL:    apiURL,
		RemoteTimeout: time.Second,
		Policy:        "step",
		Sync: config.SyncConfig{
			MaxAttempts: 1,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
			Multiplier:  2,
		},
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "skilltune.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newService(t *testing.T, cfg config.Config, deps Deps) DifficultyService {
	t.Helper()
	svc, err := New(context.Background(), cfg, deps)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func newRemoteService(t *testing.T, deps Deps) (DifficultyService, *remotetest.Server) {
	t.Helper()
	srv := remotetest.NewServer()
	t.Cleanup(srv.Close)
	return newService(t, testConfig(config.ModeRemote, srv.APIURL()), deps), srv
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(config.ModeLocal, "")
	cfg.Policy = "aggressive"
	_, err := New(ctx, cfg, Deps{})
	assert.ErrorContains(t, err, "policy")

	cfg = testConfig("hybrid", "")
	_, err = New(ctx, cfg, Deps{})
	assert.ErrorContains(t, err, "unknown mode")

	cfg = testConfig(config.ModeRemote, "not a url")
	_, err = New(ctx, cfg, Deps{})
	assert.Error(t, err)
}

func TestLocal_NewStudentStartsAtDefault(t *testing.T) {
	svc := newService(t, testConfig(config.ModeLocal, ""), Deps{})
	ctx := context.Background()

	assert.Equal(t, config.ModeLocal, svc.Mode())
	assert.Equal(t, 0.5, svc.GetAdaptiveDifficulty(ctx, "s1", "math-quest"))

	st := svc.GetKnowledgeState(ctx, "s1", "math.algebra")
	assert.Equal(t, 0.2, st.PKnown)
	assert.Empty(t, st.Observations)
}

func TestLocal_RecordInteraction(t *testing.T) {
	svc := newService(t, testConfig(config.ModeLocal, ""), Deps{})
	ctx := context.Background()

	res, err := svc.RecordInteraction(ctx, InteractionData{
		StudentID:         "s1",
		GameID:            "math-quest",
		Score:             95,
		TimeSpent:         120,
		Difficulty:        0.5,
		QuestionsAnswered: 10,
		CorrectAnswers:    9,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.55, res.NewDifficulty, 1e-9)
	require.Len(t, res.SkillStates, 2)
	for _, st := range res.SkillStates {
		assert.Len(t, st.Observations, 10)
		assert.Equal(t, 9, st.Correct())
	}
	assert.Equal(t, "math.arithmetic", res.SkillStates[0].SkillID)

	rec := svc.PerformanceRecord(ctx, "s1", "math-quest")
	require.Len(t, rec.Interactions, 1)
	assert.InDelta(t, 0.95, rec.Interactions[0].Score, 1e-9)
	assert.InDelta(t, 0.55, svc.GetAdaptiveDifficulty(ctx, "s1", "math-quest"), 1e-9)
}

func TestLocal_RecordInteractionExplicitSkills(t *testing.T) {
	svc := newService(t, testConfig(config.ModeLocal, ""), Deps{})
	ctx := context.Background()

	res, err := svc.RecordInteraction(ctx, InteractionData{
		StudentID: "s1", GameID: "custom-game", Score: 20,
		SkillsApplied: []string{"math.algebra"},
	})
	require.NoError(t, err)
	require.Len(t, res.SkillStates, 1)
	st := res.SkillStates[0]
	require.Len(t, st.Observations, 1)
	assert.False(t, st.Observations[0].Correct)
	assert.InDelta(t, 0.45, res.NewDifficulty, 1e-9)
}

func TestLocal_RecordInteractionKnowledgeAlreadyRecorded(t *testing.T) {
	svc := newService(t, testConfig(config.ModeLocal, ""), Deps{})
	ctx := context.Background()

	svc.UpdateKnowledge(ctx, "s1", "math.algebra", true)
	res, err := svc.RecordInteraction(ctx, InteractionData{
		StudentID: "s1", GameID: "math-quest", Score: 100,
		QuestionsAnswered: 1, CorrectAnswers: 1, KnowledgeRecorded: true,
	})
	require.NoError(t, err)
	require.Len(t, res.SkillStates, 2)
	assert.Empty(t, res.SkillStates[0].Observations)
	assert.Len(t, res.SkillStates[1].Observations, 1)
	assert.InDelta(t, 0.632, res.SkillStates[1].PKnown, 0.001)
	assert.Len(t, svc.PerformanceRecord(ctx, "s1", "math-quest").Interactions, 1)
}

func TestLocal_RecordInteractionRejectsMissingGame(t *testing.T) {
	svc := newService(t, testConfig(config.ModeLocal, ""), Deps{})
	_, err := svc.RecordInteraction(context.Background(), InteractionData{StudentID: "s1", GameID: "  "})
	assert.ErrorIs(t, err, ErrInvalidInteraction)
}

func TestLocal_StartSessionSwitchesToAdaptive(t *testing.T) {
	svc := newService(t, testConfig(config.ModeLocal, ""), Deps{})
	ctx := context.Background()

	start := svc.StartSession(ctx, "s1", "math-quest")
	assert.Equal(t, SourceMastery, start.Source)
	// arithmetic prior 0.4 maps to 0.52, algebra prior 0.2 maps to 0.36.
	assert.InDelta(t, 0.44, start.Difficulty, 1e-9)
	assert.Len(t, start.Skills, 2)

	for range 3 {
		_, err := svc.RecordInteraction(ctx, InteractionData{StudentID: "s1", GameID: "math-quest", Score: 90})
		require.NoError(t, err)
	}
	start = svc.StartSession(ctx, "s1", "math-quest")
	assert.Equal(t, SourceAdaptive, start.Source)
	assert.Equal(t, 3, start.Interactions)
	assert.InDelta(t, 0.65, start.Difficulty, 1e-9)
}

func TestLocal_SurvivesRestart(t *testing.T) {
	st := openStore(t)
	cfg := testConfig(config.ModeLocal, "")
	ctx := context.Background()

	svc, err := New(ctx, cfg, Deps{Store: st})
	require.NoError(t, err)
	_, err = svc.RecordInteraction(ctx, InteractionData{StudentID: "s1", GameID: "shape-builder", Score: 100, QuestionsAnswered: 2, CorrectAnswers: 2})
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	svc = newService(t, cfg, Deps{Store: st})
	assert.InDelta(t, 0.55, svc.GetAdaptiveDifficulty(ctx, "s1", "shape-builder"), 1e-9)
	assert.Len(t, svc.GetKnowledgeState(ctx, "s1", "math.geometry").Observations, 2)

	_, err = svc.SyncOfflineStates(ctx)
	assert.ErrorIs(t, err, ErrNoRemote)
}

func TestLocal_ResetAllKnowledgeStates(t *testing.T) {
	st := openStore(t)
	svc := newService(t, testConfig(config.ModeLocal, ""), Deps{Store: st})
	ctx := context.Background()

	svc.UpdateKnowledge(ctx, "s1", "math.algebra", true)
	svc.UpdateKnowledge(ctx, "guest-1", "math.algebra", true)
	require.NoError(t, svc.ResetAllKnowledgeStates(ctx))

	assert.Empty(t, svc.GetKnowledgeState(ctx, "s1", "math.algebra").Observations)
	assert.Empty(t, svc.GetKnowledgeState(ctx, "guest-1", "math.algebra").Observations)
}

func TestLocal_UpdateDifficultySettingsClampsAndPublishes(t *testing.T) {
	svc := newService(t, testConfig(config.ModeLocal, ""), Deps{})
	ctx := context.Background()

	ch, cancel := svc.SubscribeDifficulty("s1")
	defer cancel()

	assert.Equal(t, 0.9, svc.UpdateDifficultySettings(ctx, "s1", "memory-match", 2))
	select {
	case c := <-ch:
		assert.Equal(t, "memory-match", c.Key.GameID)
		assert.Equal(t, 0.5, c.Previous)
		assert.Equal(t, 0.9, c.Difficulty)
	case <-time.After(time.Second):
		t.Fatal("no difficulty change published")
	}
}

func TestLocal_SubscribeDifficultyOnlyDeliversOwnChanges(t *testing.T) {
	svc := newService(t, testConfig(config.ModeLocal, ""), Deps{})
	ctx := context.Background()

	ch, cancel := svc.SubscribeDifficulty("alice")
	defer cancel()

	svc.UpdateDifficultySettings(ctx, "bob", "math-quest", 0.8)
	svc.UpdateDifficultySettings(ctx, "alice", "math-quest", 0.3)
	select {
	case c := <-ch:
		assert.Equal(t, "alice", c.Key.StudentID)
		assert.Equal(t, 0.3, c.Difficulty)
	case <-time.After(time.Second):
		t.Fatal("no difficulty change published")
	}
	select {
	case c := <-ch:
		t.Fatalf("unexpected change for %s", c.Key.StudentID)
	case <-time.After(50 * time.Millisecond):
	}
}

type failingReset struct {
	knowledge.Repository
	err error
}

func (f failingReset) Reset(context.Context) error { return f.err }

func TestEngine_ResetReportsErrors(t *testing.T) {
	boom := errors.New("disk full")
	e := newEngine(failingReset{Repository: knowledge.NewEphemeral(), err: boom},
		performance.NewEphemeral(), difficulty.NewController(difficulty.PolicyStep), nil, logging.Discard())
	ctx := context.Background()

	e.UpdateKnowledge(ctx, "guest-1", "math.algebra", true)
	err := e.ResetAllKnowledgeStates(ctx)
	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "reset knowledge states")
	assert.Empty(t, e.GetKnowledgeState(ctx, "guest-1", "math.algebra").Observations)
}

func TestLocal_TunerLowersDifficultyAndEncourages(t *testing.T) {
	enc := &stubEncourager{}
	svc := newService(t, testConfig(config.ModeLocal, ""), Deps{Encourager: enc})
	ctx := context.Background()

	tuner := svc.NewSessionTuner(ctx, "s1", "math-quest")
	assert.InDelta(t, 0.44, tuner.Difficulty(), 1e-9)

	res := tuner.Record(ctx, false)
	assert.False(t, res.Adjusted)
	res = tuner.Record(ctx, false)
	assert.True(t, res.Adjusted)
	assert.InDelta(t, 0.24, res.Difficulty, 1e-9)
	assert.Equal(t, "Keep going with Math Quest!", res.Message)
	assert.InDelta(t, 0.24, svc.GetAdaptiveDifficulty(ctx, "s1", "math-quest"), 1e-9)

	res = tuner.Record(ctx, true)
	assert.False(t, res.Adjusted)
	res = tuner.Record(ctx, true)
	assert.InDelta(t, 0.39, res.Difficulty, 1e-9)
	assert.Empty(t, res.Message)
	assert.Equal(t, []string{"Math Quest"}, enc.topics)
}

func TestRemote_RecordInteractionReportsToServer(t *testing.T) {
	svc, srv := newRemoteService(t, Deps{Store: openStore(t)})
	ctx := context.Background()
	assert.Equal(t, config.ModeRemote, svc.Mode())

	res, err := svc.RecordInteraction(ctx, InteractionData{
		StudentID: "s1", GameID: "math-quest", Score: 95, Difficulty: 0.5,
		QuestionsAnswered: 3, CorrectAnswers: 3,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.55, res.NewDifficulty, 1e-9)

	require.Len(t, srv.Interactions(), 1)
	rec, ok := srv.Record("s1", "math-quest")
	require.True(t, ok)
	assert.InDelta(t, 0.55, rec.CurrentDifficulty, 1e-9)

	// Two skills, three answers each, pushed by the sync loop as whole
	// states rather than one observation at a time.
	assert.Empty(t, srv.Observations())
	require.Eventually(t, func() bool {
		algebra, ok := srv.State("s1", "math.algebra")
		return ok && len(algebra.Observations) == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemote_LongInteractionDoesNotWritePerAnswer(t *testing.T) {
	svc, srv := newRemoteService(t, Deps{Store: openStore(t)})
	ctx := context.Background()

	_, err := svc.RecordInteraction(ctx, InteractionData{
		StudentID: "s1", GameID: "math-quest", Score: 60, Difficulty: 0.5,
		QuestionsAnswered: 500, CorrectAnswers: 300,
	})
	require.NoError(t, err)

	// Per skill at most the initial write and one sync push.
	assert.LessOrEqual(t, srv.Hits(remotetest.RouteSaveKnowledge), 4)
	assert.Zero(t, srv.Hits(remotetest.RoutePostObservation))

	st := svc.GetKnowledgeState(ctx, "s1", "math.algebra")
	assert.Len(t, st.Observations, maxObservationsPerInteraction)
}

func TestRemote_OutageThenRecoveryKeepsHistory(t *testing.T) {
	st := openStore(t)
	svc, srv := newRemoteService(t, Deps{Store: st})
	ctx := context.Background()

	srv.FailAll(http.StatusServiceUnavailable)
	_, err := svc.RecordInteraction(ctx, InteractionData{StudentID: "s1", GameID: "math-quest", Score: 40, Difficulty: 0.5})
	require.NoError(t, err)

	srv.Recover()
	_, err = svc.RecordInteraction(ctx, InteractionData{StudentID: "s1", GameID: "math-quest", Score: 90, Difficulty: 0.5})
	require.NoError(t, err)

	remoteRec, ok := srv.Record("s1", "math-quest")
	require.True(t, ok)
	assert.Len(t, remoteRec.Interactions, 1, "only the second session reached the server")

	rec := svc.PerformanceRecord(ctx, "s1", "math-quest")
	require.Len(t, rec.Interactions, 2)
	assert.Equal(t, []float64{0.4, 0.9}, rec.Scores())

	durable, ok, err := st.LoadPerformance(ctx, "s1", "math-quest")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, durable.Interactions, 2)
}

func TestRemote_ServerSuggestionWins(t *testing.T) {
	svc, srv := newRemoteService(t, Deps{})
	ctx := context.Background()

	v := 0.8
	srv.SuggestDifficulty(&v)
	res, err := svc.RecordInteraction(ctx, InteractionData{StudentID: "s1", GameID: "pizza-party", Score: 10})
	require.NoError(t, err)
	assert.Equal(t, 0.8, res.NewDifficulty)
	assert.Equal(t, 0.8, svc.GetAdaptiveDifficulty(ctx, "s1", "pizza-party"))

	bad := 7.0
	srv.SuggestDifficulty(&bad)
	res, err = svc.RecordInteraction(ctx, InteractionData{StudentID: "s1", GameID: "pizza-party", Score: 10})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, res.NewDifficulty, 1e-9)
}

func TestRemote_StartSessionUsesServerHistory(t *testing.T) {
	svc, _ := newRemoteService(t, Deps{})
	ctx := context.Background()

	for range 3 {
		_, err := svc.RecordInteraction(ctx, InteractionData{StudentID: "s1", GameID: "word-explorer", Score: 80})
		require.NoError(t, err)
	}
	start := svc.StartSession(ctx, "s1", "word-explorer")
	assert.Equal(t, SourceAdaptive, start.Source)
	assert.Equal(t, 3, start.Interactions)
	assert.InDelta(t, 0.65, start.Difficulty, 1e-9)
}

func TestRemote_GuestsNeverReachServer(t *testing.T) {
	svc, srv := newRemoteService(t, Deps{Store: openStore(t)})
	ctx := context.Background()

	res, err := svc.RecordInteraction(ctx, InteractionData{StudentID: "guest-42", GameID: "math-quest", Score: 95})
	require.NoError(t, err)
	assert.InDelta(t, 0.55, res.NewDifficulty, 1e-9)
	svc.GetKnowledgeState(ctx, "guest-42", "math.algebra")
	svc.UpdateDifficultySettings(ctx, "anonymous", "math-quest", 0.3)
	svc.NewSessionTuner(ctx, "guest-42", "math-quest").Record(ctx, true)

	require.NoError(t, svc.Close())
	assert.Zero(t, srv.TotalHits())
}

func TestRemote_OutageThenSync(t *testing.T) {
	st := openStore(t)
	svc, srv := newRemoteService(t, Deps{Store: st})
	ctx := context.Background()

	srv.FailAll(http.StatusServiceUnavailable)
	res, err := svc.RecordInteraction(ctx, InteractionData{
		StudentID: "s1", GameID: "memory-match", Score: 100,
		QuestionsAnswered: 2, CorrectAnswers: 2,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.55, res.NewDifficulty, 1e-9)
	assert.InDelta(t, 0.55, svc.GetAdaptiveDifficulty(ctx, "s1", "memory-match"), 1e-9)

	n, err := st.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := srv.State("s1", "memory.recall")
	assert.False(t, ok)

	srv.Recover()
	_, err = svc.SyncOfflineStates(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := st.CountUnsynced(ctx)
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
	got, ok := srv.State("s1", "memory.recall")
	require.True(t, ok)
	assert.Len(t, got.Observations, 2)
}

func TestRemote_SyncWithoutStore(t *testing.T) {
	svc, _ := newRemoteService(t, Deps{})
	_, err := svc.SyncOfflineStates(context.Background())
	assert.ErrorIs(t, err, ErrNoRemote)
}

func TestAnswerSequence(t *testing.T) {
	tests := []struct {
		name        string
		in          InteractionData
		score       float64
		wantLen     int
		wantCorrect int
	}{
		{name: "no questions, passing", score: 0.7, wantLen: 1, wantCorrect: 1},
		{name: "no questions, failing", score: 0.69, wantLen: 1, wantCorrect: 0},
		{name: "counts", in: InteractionData{QuestionsAnswered: 5, CorrectAnswers: 3}, wantLen: 5, wantCorrect: 3},
		{name: "correct capped by questions", in: InteractionData{QuestionsAnswered: 2, CorrectAnswers: 9}, wantLen: 2, wantCorrect: 2},
		{name: "negative correct", in: InteractionData{QuestionsAnswered: 2, CorrectAnswers: -1}, wantLen: 2, wantCorrect: 0},
		{name: "scaled to cap", in: InteractionData{QuestionsAnswered: 400, CorrectAnswers: 300}, wantLen: 100, wantCorrect: 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := answerSequence(tt.in, tt.score)
			require.Len(t, got, tt.wantLen)
			correct := 0
			for i, c := range got {
				if c {
					correct++
					assert.Equal(t, correct-1, i, "correct answers come first")
				}
			}
			assert.Equal(t, tt.wantCorrect, correct)
		})
	}
}
