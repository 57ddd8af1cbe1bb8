package dify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKeys = Keys{Explore: "k-explore", Options: "k-options", Check: "k-check", Expand: "k-expand"}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Keys: testKeys}, nil)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresKeys(t *testing.T) {
	_, err := New(Config{Keys: Keys{Explore: "x"}}, nil)
	assert.Error(t, err)
}

func TestClient_AskAngle(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat-messages", r.URL.Path)
		assert.Equal(t, "Bearer k-explore", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"answer": "<p>Light is <b>both</b>.</p>"})
	})

	answer, err := c.AskAngle(context.Background(), "physics", "解释模式", "what is light?")
	require.NoError(t, err)
	assert.Equal(t, "Light is both .", answer)
	assert.Equal(t, "what is light?", got.Query)
	assert.Equal(t, "blocking", got.ResponseMode)
	assert.Equal(t, map[string]string{"angle": "physics", "mode": "解释模式"}, got.Inputs)
}

func TestClient_AnswerShapes(t *testing.T) {
	bodies := []string{
		`{"answer":"a"}`,
		`{"message":"a"}`,
		`{"data":{"answer":"a"}}`,
	}
	for _, body := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		answer, err := c.AskAngle(context.Background(), "x", "y", "z")
		require.NoError(t, err, body)
		assert.Equal(t, "a", answer, body)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	})
	_, err := c.AskAngle(context.Background(), "x", "y", "z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestClient_CheckForbidden(t *testing.T) {
	verdict := verdictForbidden
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k-check", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"answer": verdict})
	})

	forbidden, err := c.CheckForbidden(context.Background(), "bad")
	require.NoError(t, err)
	assert.True(t, forbidden)

	verdict = verdictNormal
	forbidden, err = c.CheckForbidden(context.Background(), "fine")
	require.NoError(t, err)
	assert.False(t, forbidden)
}

func TestClient_ExpandAndOptions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer k-expand":
			json.NewEncoder(w).Encode(map[string]string{
				"answer": "```json\n{\"angles\":[\"history\",\"ethics\"],\"styles\":[\"calm\"],\"difficulty\":\"hard\"}\n```",
			})
		case "Bearer k-options":
			json.NewEncoder(w).Encode(map[string]string{"answer": `["basics","uses"]`})
		}
	})

	profile, err := c.Expand(context.Background(), "ai")
	require.NoError(t, err)
	assert.Equal(t, []string{"history", "ethics"}, profile.Angles)
	assert.Equal(t, []string{"calm"}, profile.Styles)
	assert.Equal(t, "hard", profile.Difficulty)

	options, err := c.StartOptions(context.Background(), "ai")
	require.NoError(t, err)
	assert.Equal(t, []string{"basics", "uses"}, options)
}

func TestParseTopicProfile_Defaults(t *testing.T) {
	p, err := ParseTopicProfile("not json")
	assert.Error(t, err)
	assert.Empty(t, p.Angles)
	assert.Equal(t, DefaultDifficulty, p.Difficulty)
	assert.Equal(t, "not json", p.Raw)

	p, err = ParseTopicProfile(`{"angles":"oops","difficulty":""}`)
	require.NoError(t, err)
	assert.Empty(t, p.Angles)
	assert.Equal(t, DefaultDifficulty, p.Difficulty)
}

func TestParseOptions(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseOptions(`["a", " b ", ""]`))
	assert.Equal(t, []string{"a", "b"}, ParseOptions(`{"options":["a","b"]}`))
	assert.Equal(t, []string{"first", "second"}, ParseOptions("1. first\n- second\n"))
	assert.Empty(t, ParseOptions("  "))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "plain", PlainText("  plain "))
	assert.Equal(t, "Title\nbody text", PlainText("<h1>Title</h1><p>body <i>text</i></p><script>x()</script>"))

	long := strings.Repeat("a", maxAnswerLen+10)
	assert.Equal(t, long[:maxAnswerLen]+"...", PlainText(long))

	// a multibyte rune straddling the limit is dropped whole
	wide := PlainText("ab" + strings.Repeat("光", 4000))
	assert.True(t, utf8.ValidString(wide))
	assert.True(t, strings.HasSuffix(wide, "..."))
	assert.Equal(t, 2+3*((maxAnswerLen-2)/3)+3, len(wide))
}

func TestOffline(t *testing.T) {
	var o Offline
	forbidden, err := o.CheckForbidden(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, forbidden)

	p, err := o.Expand(context.Background(), "time")
	require.NoError(t, err)
	assert.Len(t, p.Angles, 5)

	opts, _ := o.StartOptions(context.Background(), "time")
	assert.Equal(t, DefaultOptions, opts)

	answer, err := o.AskAngle(context.Background(), "a", "m", "q")
	require.NoError(t, err)
	assert.Contains(t, answer, "offline answer")
}
