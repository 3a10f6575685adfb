package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type telegramCall struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func notifierFixture(t *testing.T) (*Notifier, *[]telegramCall) {
	t.Helper()

	var calls []telegramCall
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/bottesttoken/"))
		var call telegramCall
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		calls = append(calls, call)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(api.Close)

	l := testLeague()
	n := NewNotifier("testtoken", "42", "https://liga.example", "testsecret", func() *League { return l })
	n.apiBase = api.URL
	return n, &calls
}

func Test_notifierRun(t *testing.T) {
	n, calls := notifierFixture(t)

	// The fixture has one unplayed match, Bob vs Cara on 2025-03-12.
	assert.NoError(t, n.Run(day(2025, 3, 13)))
	assert.Len(t, *calls, 2)

	overdueMsg := (*calls)[0]
	assert.Equal(t, "42", overdueMsg.ChatID)
	assert.Equal(t, "HTML", overdueMsg.ParseMode)
	assert.Contains(t, overdueMsg.Text, "PARTIDOS RETRASADOS")
	assert.Contains(t, overdueMsg.Text, "Bob vs Cara")
	assert.Contains(t, overdueMsg.Text, "https://liga.example/submit?token=")

	todayMsg := (*calls)[1]
	assert.Contains(t, todayMsg.Text, "PARTIDOS DE HOY (2025-03-13)")
	assert.Contains(t, todayMsg.Text, "(no hay)")
}

func Test_notifierRunDueToday(t *testing.T) {
	n, calls := notifierFixture(t)

	assert.NoError(t, n.Run(day(2025, 3, 12)))
	assert.Len(t, *calls, 2)
	assert.Contains(t, (*calls)[0].Text, "(no hay)")
	assert.Contains(t, (*calls)[1].Text, "Bob vs Cara")
}

func Test_notifierLinkRoundTrip(t *testing.T) {
	n, _ := notifierFixture(t)
	_, today := n.league().UnplayedMatches(day(2025, 3, 12))
	assert.Len(t, today, 1)

	line := n.matchLine(&today[0])
	assert.Contains(t, line, `<a href="`)

	start := strings.Index(line, "token=") + len("token=")
	end := strings.Index(line[start:], `"`)
	token := line[start : start+end]

	claims, err := parseSubmitToken(token, "testsecret")
	assert.NoError(t, err)
	assert.Equal(t, "Temporada 5", claims.Season)
	assert.Equal(t, "Bob", claims.Player1)
	assert.Equal(t, "Cara", claims.Player2)
	assert.Equal(t, Div1, claims.Division)
	assert.Equal(t, "2025-03-12", claims.Date)
}

func Test_notifierDisabledWithoutCredentials(t *testing.T) {
	n := NewNotifier("", "", "", "", func() *League { return testLeague() })
	assert.False(t, n.Enabled())
}
