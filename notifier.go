package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const telegramAPIBase = "https://api.telegram.org"

// Notifier posts the daily unplayed-match digest to a Telegram chat. Every
// line links to the signed submission form for that match.
type Notifier struct {
	apiBase string
	token   string
	chatID  string
	siteURL string
	secret  string
	client  *http.Client
	league  func() *League
}

func NewNotifier(token, chatID, siteURL, secret string, league func() *League) *Notifier {
	return &Notifier{
		apiBase: telegramAPIBase,
		token:   token,
		chatID:  chatID,
		siteURL: siteURL,
		secret:  secret,
		client:  &http.Client{Timeout: 20 * time.Second},
		league:  league,
	}
}

func (n *Notifier) Enabled() bool {
	return n.token != "" && n.chatID != ""
}

func (n *Notifier) matchLine(m *MatchRow) string {
	base := m.Date.Format("2006-01-02")
	if m.TimeOfDay != "" {
		base += " " + m.TimeOfDay
	}
	text := fmt.Sprintf("%s - %s - %s vs %s", base, m.Division, m.Player1, m.Player2)

	link, err := buildSubmitURL(n.siteURL, n.secret, m)
	if err != nil || n.siteURL == "" {
		return html.EscapeString(text)
	}
	return fmt.Sprintf(`<a href="%s">%s</a>`, link, html.EscapeString(text))
}

func (n *Notifier) digest(header string, matches []MatchRow) string {
	if len(matches) == 0 {
		return header + "\n(no hay)"
	}
	lines := make([]string, 0, len(matches))
	for i := range matches {
		lines = append(lines, n.matchLine(&matches[i]))
	}
	return header + "\n" + strings.Join(lines, "\n")
}

// Run performs one scan-and-notify pass for the given day.
func (n *Notifier) Run(today time.Time) error {
	overdue, dueToday := n.league().UnplayedMatches(today)

	msg := n.digest("📋 <b>PARTIDOS RETRASADOS</b>:", overdue)
	if err := n.send(msg); err != nil {
		return err
	}

	header := fmt.Sprintf("📅 <b>PARTIDOS DE HOY (%s)</b>:", today.Format("2006-01-02"))
	if err := n.send(n.digest(header, dueToday)); err != nil {
		return err
	}

	log.Info().Int("overdue", len(overdue)).Int("today", len(dueToday)).Msg("Notification pass complete")
	return nil
}

func (n *Notifier) send(text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":                  n.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned %s", resp.Status)
	}
	return nil
}
