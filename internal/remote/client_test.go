package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/performance"
	"github.com/abhisek/skilltune/internal/remote"
	"github.com/abhisek/skilltune/internal/remote/remotetest"
	"github.com/abhisek/skilltune/internal/skillmap"
)

func newFake(t *testing.T) (*remotetest.Server, *remote.Client) {
	t.Helper()
	srv := remotetest.NewServer()
	t.Cleanup(srv.Close)
	c, err := remote.NewClient(srv.APIURL(), remote.WithTimeout(time.Second))
	require.NoError(t, err)
	return srv, c
}

func newRaw(t *testing.T, h http.HandlerFunc) *remote.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := remote.NewClient(srv.URL)
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/api", "localhost:3000"} {
		_, err := remote.NewClient(u)
		assert.Error(t, err, u)
	}
	_, err := remote.NewClient("http://localhost:3000/api/")
	assert.NoError(t, err)
}

func TestClient_PerformanceRoundTrip(t *testing.T) {
	srv, c := newFake(t)
	ctx := context.Background()

	_, err := c.GetPerformance(ctx, "s1", "math-quest")
	assert.ErrorIs(t, err, remote.ErrNotFound)

	got, err := c.PutDifficulty(ctx, "s1", "math-quest", 0.65)
	require.NoError(t, err)
	assert.Equal(t, 0.65, got)

	rec, err := c.GetPerformance(ctx, "s1", "math-quest")
	require.NoError(t, err)
	assert.Equal(t, 0.65, rec.CurrentDifficulty)
	assert.NotNil(t, rec.Interactions)
	assert.Empty(t, rec.Interactions)
	assert.Equal(t, 1, srv.Hits(remotetest.RoutePutDifficulty))
}

func TestClient_PostInteraction(t *testing.T) {
	srv, c := newFake(t)
	ctx := context.Background()
	in := remote.InteractionPayload{StudentID: "s1", GameID: "math-quest", Score: 80, QuestionsAnswered: 5, CorrectAnswers: 4}

	suggested, err := c.PostInteraction(ctx, in)
	require.NoError(t, err)
	assert.Nil(t, suggested)

	v := 0.8
	srv.SuggestDifficulty(&v)
	suggested, err = c.PostInteraction(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, suggested)
	assert.Equal(t, 0.8, *suggested)

	got := srv.Interactions()
	require.Len(t, got, 2)
	assert.Equal(t, in.CorrectAnswers, got[0].CorrectAnswers)
}

func TestClient_KnowledgeStateRoundTrip(t *testing.T) {
	srv, c := newFake(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := bkt.Update(bkt.New("s1", "math.algebra", skillmap.Params("math.algebra"), now), true, now)

	require.NoError(t, c.SaveKnowledgeState(ctx, st))
	got, err := c.GetKnowledgeState(ctx, "s1", "math.algebra")
	require.NoError(t, err)
	assert.InDelta(t, st.PKnown, got.PKnown, 1e-9)
	assert.True(t, st.LastUpdated.Equal(got.LastUpdated))
	require.Len(t, got.Observations, 1)

	obs, ok := remote.ObservationFromState(st)
	require.True(t, ok)
	require.NoError(t, c.PostObservation(ctx, obs))
	assert.Len(t, srv.Observations(), 1)
}

func TestClient_PathSegmentsAreEscaped(t *testing.T) {
	var path string
	c := newRaw(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		http.NotFound(w, r)
	})
	_, err := c.GetKnowledgeState(context.Background(), "a/b c", "math.algebra")
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.Equal(t, "/knowledge-state/a%2Fb%20c/math.algebra", path)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		notFound   bool
		unavail    bool
		malformed  bool
		statusCode int
	}{
		{name: "not found", status: 404, notFound: true},
		{name: "server error", status: 503, body: "down", unavail: true, statusCode: 503},
		{name: "bad request", status: 400, body: "nope", unavail: true, statusCode: 400},
		{name: "bad json", status: 200, body: "{", malformed: true},
		{name: "missing difficulty", status: 200, body: `{"interactions":[]}`, malformed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newRaw(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.GetPerformance(context.Background(), "s1", "g1")
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, remote.ErrNotFound))
			assert.Equal(t, tt.notFound, errors.Is(err, performance.ErrNotFound))
			assert.Equal(t, tt.unavail || tt.malformed, remote.IsUnavailable(err))

			var ue *remote.ErrUnavailable
			if tt.unavail {
				require.ErrorAs(t, err, &ue)
				assert.Equal(t, tt.statusCode, ue.StatusCode)
			}
			var me *remote.ErrMalformedResponse
			assert.Equal(t, tt.malformed, errors.As(err, &me))
		})
	}
}

func TestClient_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := remote.NewClient(url)
	require.NoError(t, err)
	_, err = c.GetPerformance(context.Background(), "s1", "g1")
	assert.True(t, remote.IsUnavailable(err))
}

func TestClient_TimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := remote.NewClient(srv.URL, remote.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	_, err = c.GetPerformance(context.Background(), "s1", "g1")
	assert.True(t, remote.IsUnavailable(err))
}

func TestClient_PutDifficultyResponseShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    float64
		wantErr bool
	}{
		{name: "newDifficulty", body: `{"success":true,"newDifficulty":0.7}`, want: 0.7},
		{name: "difficulty", body: `{"difficulty":0.3}`, want: 0.3},
		{name: "clamped", body: `{"newDifficulty":1.5}`, want: 0.9},
		{name: "empty body echoes request", body: ``, want: 0.55},
		{name: "success false", body: `{"success":false}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newRaw(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, "/performance/s1/g1/difficulty", r.URL.Path)
				w.Write([]byte(tt.body))
			})
			got, err := c.PutDifficulty(context.Background(), "s1", "g1", 0.55)
			if tt.wantErr {
				assert.True(t, remote.IsUnavailable(err))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestClient_RejectsIncompleteKnowledgeState(t *testing.T) {
	c := newRaw(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"studentId":"other","skillId":"math.algebra","pKnown":0.5,"params":{"pL0":0.2,"pT":0.1,"pS":0.1,"pG":0.2}}`))
	})
	_, err := c.GetKnowledgeState(context.Background(), "s1", "math.algebra")
	var me *remote.ErrMalformedResponse
	assert.ErrorAs(t, err, &me)
}

func TestClient_PerformanceClampsDifficulty(t *testing.T) {
	c := newRaw(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"currentDifficulty":0.01}`))
	})
	rec, err := c.GetPerformance(context.Background(), "s1", "g1")
	require.NoError(t, err)
	assert.Equal(t, 0.1, rec.CurrentDifficulty)
	assert.Equal(t, []performance.Interaction{}, rec.Interactions)
}
