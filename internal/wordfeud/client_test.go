package wordfeud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"wordfeud_cdf/extractor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySessions struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemorySessions() *memorySessions {
	return &memorySessions{data: map[string]string{}}
}

func (m *memorySessions) GetSession(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memorySessions) SetSession(_ context.Context, key, sessionID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = sessionID
	return nil
}

func (m *memorySessions) DeleteSession(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeServer struct {
	t           *testing.T
	validToken  string
	logins      int
	ratedBodies []map[string]any
	ratedGames  string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/wf/user/login/email/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != HashPassword("secret") {
			writeJSON(w, `{"status":"error","content":{"type":"wrong_password"}}`)
			return
		}
		f.logins++
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: f.validToken})
		writeJSON(w, `{"status":"success","content":{"id":7,"username":"alice"}}`)
	})

	mux.HandleFunc("/wf/user/games/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeJSON(w, `{"status":"error","content":{"type":"login_required"}}`)
			return
		}
		writeJSON(w, `{"status":"success","content":{"games":[
			{"id":1,"updated":1000,"result":"won","players":[{"username":"alice","score":300,"is_local":true},{"username":"bob","score":200}]},
			{"id":"2","updated":900,"result":"lost","players":[{"username":"alice","score":100,"is_local":true},{"username":"carol","score":200}]}
		]}}`)
	})

	mux.HandleFunc("/wf/user/games/rated/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeJSON(w, `{"status":"error","content":{"type":"login_required"}}`)
			return
		}
		var body map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.ratedBodies = append(f.ratedBodies, body)
		games := f.ratedGames
		if games == "" {
			games = `[{"id":1,"updated":1000,"rating_after":1500,"rating_delta":20,"players":[{"username":"alice","score":300,"is_local":true},{"username":"bob","score":200}]}]`
		}
		writeJSON(w, `{"status":"success","content":{"games":`+games+`}}`)
	})

	return mux
}

func (f *fakeServer) authorized(r *http.Request) bool {
	cookie, err := r.Cookie("sessionid")
	return err == nil && cookie.Value == f.validToken
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func newTestClient(t *testing.T, srv *httptest.Server, sessions SessionCache) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:    srv.URL + "/wf",
		Email:      "alice@example.com",
		Password:   "secret",
		Timeout:    5 * time.Second,
		RuleSet:    RuleSetEnglish,
		BoardType:  BoardRandom,
		Sessions:   sessions,
		SessionTTL: time.Hour,
	})
}

func TestHashPassword(t *testing.T) {
	// sha1("secretJarJarBinks9")
	assert.Len(t, HashPassword("secret"), 40)
	assert.Equal(t, HashPassword("secret"), HashPassword("secret"))
	assert.NotEqual(t, HashPassword("secret"), HashPassword("Secret"))
}

func TestClient_AllGames(t *testing.T) {
	fake := &fakeServer{t: t, validToken: "s1"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	sessions := newMemorySessions()
	client := newTestClient(t, srv, sessions)

	games, err := client.AllGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "1", games[0].ID.String())
	assert.Equal(t, "2", games[1].ID.String())
	assert.True(t, games[0].IsWon())
	assert.False(t, games[1].IsWon())
	assert.Equal(t, 1, fake.logins)

	cached, ok, _ := sessions.GetSession(context.Background(), "wordfeud:session:alice@example.com")
	assert.True(t, ok, "session should be cached after login")
	assert.Equal(t, "s1", cached)
}

func TestClient_RatedGamesSendsRuleSetAndBoard(t *testing.T) {
	fake := &fakeServer{t: t, validToken: "s1"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv, nil)

	games, err := client.RatedGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 1)
	require.NotNil(t, games[0].RatingAfter)
	assert.Equal(t, 1500, *games[0].RatingAfter)

	require.Len(t, fake.ratedBodies, 1)
	assert.EqualValues(t, 5, fake.ratedBodies[0]["ruleset"])
	assert.EqualValues(t, 1, fake.ratedBodies[0]["board_type"])
}

func TestClient_RatedGamesKeepsRecordsAroundABadOne(t *testing.T) {
	fake := &fakeServer{t: t, validToken: "s1", ratedGames: `[
		{"id":1,"updated":1000,"rating_after":1500,"players":[{"username":"alice","score":300,"is_local":true},{"username":"bob","score":200}]},
		{"id":2,"updated":1100,"rating_after":1510.5,"players":[]},
		{"id":3,"updated":1200,"rating_after":1520,"players":[{"username":"alice","score":300,"is_local":true},{"score":200}]}
	]`}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv, nil)

	games, err := client.RatedGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 3)

	first, err := games[0].ToGameRecord()
	require.NoError(t, err)
	assert.Equal(t, 1500, *first.RatingAfter)

	assert.Equal(t, "2", games[1].ID.String())
	_, err = games[1].ToGameRecord()
	assert.ErrorIs(t, err, models.ErrMalformedRecord)

	third, err := games[2].ToGameRecord()
	require.NoError(t, err, "a nameless opponent is still a rated game")
	assert.Equal(t, 1520, *third.RatingAfter)
}

func TestClient_ExpiredCachedSessionLogsInOnce(t *testing.T) {
	fake := &fakeServer{t: t, validToken: "fresh"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	sessions := newMemorySessions()
	require.NoError(t, sessions.SetSession(context.Background(), "wordfeud:session:alice@example.com", "stale", time.Hour))
	client := newTestClient(t, srv, sessions)

	games, err := client.AllGames(context.Background())
	require.NoError(t, err)
	assert.Len(t, games, 2)
	assert.Equal(t, 1, fake.logins)

	cached, _, _ := sessions.GetSession(context.Background(), "wordfeud:session:alice@example.com")
	assert.Equal(t, "fresh", cached)
}

func TestClient_WrongPassword(t *testing.T) {
	fake := &fakeServer{t: t, validToken: "s1"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL + "/wf", Email: "alice@example.com", Password: "nope"})

	_, err := client.AllGames(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "wrong_password", apiErr.Type)
}

func TestClient_ServerErrorIsSurfacedWithoutRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Email: "alice@example.com", Password: "secret"})

	err := client.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, 1, calls)
}

func TestParseRuleSetAndBoard(t *testing.T) {
	rs, err := ParseRuleSet("RuleSetNorwegian")
	require.NoError(t, err)
	assert.Equal(t, RuleSetNorwegian, rs)

	_, err = ParseRuleSet("RuleSetKlingon")
	assert.Error(t, err)

	bt, err := ParseBoardType("BoardRandom")
	require.NoError(t, err)
	assert.Equal(t, BoardRandom, bt)

	_, err = ParseBoardType("BoardHuge")
	assert.Error(t, err)
}
