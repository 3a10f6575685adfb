package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T, dataDir string) (*Server, *httptest.Server) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&Submission{}))

	s := &Server{
		db:            db,
		dataDir:       dataDir,
		submitSecret:  "testsecret",
		adminToken:    "testadmin",
		submitLimiter: newSubmitLimiter(),
	}
	assert.NoError(t, s.reload())

	r := chi.NewRouter()
	s.routes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return s, ts
}

func fixtureServer(t *testing.T) (*Server, *httptest.Server, string) {
	dir := t.TempDir()
	writeSeasonFixture(t, dir)
	s, ts := newTestServer(t, dir)
	return s, ts, dir
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	assert.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func Test_GETSeasons(t *testing.T) {
	_, ts, _ := fixtureServer(t)

	var body struct {
		Seasons []string `json:"seasons"`
	}
	getJSON(t, ts.URL+"/api/seasons", &body)
	assert.Equal(t, []string{GeneralT, "Temporada 5"}, body.Seasons)
}

func Test_GETStandings(t *testing.T) {
	_, ts, _ := fixtureServer(t)

	var body StandingsResponse
	getJSON(t, ts.URL+"/api/standings?season=Temporada+5", &body)

	assert.Equal(t, "Temporada 5", body.Season)
	// Division defaults to the first one.
	assert.Equal(t, Div1, body.Division)
	assert.Equal(t, []string{Div1, Div2, Div3}, body.Divisions)
	assert.Len(t, body.Rows, 3)
	assert.Equal(t, "Ana", body.Rows[0].Player)
}

func Test_GETStandingsGeneral(t *testing.T) {
	_, ts, _ := fixtureServer(t)

	var body StandingsResponse
	getJSON(t, ts.URL+"/api/standings", &body)
	assert.Equal(t, GeneralT, body.Season)
	assert.NotEmpty(t, body.Rows)
	assert.Equal(t, "Ana", body.Rows[0].Player)
	assert.Equal(t, 34, body.Rows[0].AwardPoints)
}

func Test_GETStandingsUnknownSeason(t *testing.T) {
	_, ts, _ := fixtureServer(t)
	resp, err := http.Get(ts.URL + "/api/standings?season=Temporada+99")
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func Test_GETResults(t *testing.T) {
	_, ts, _ := fixtureServer(t)

	var body struct {
		Season string          `json:"season"`
		Rows   []MatchResponse `json:"rows"`
	}
	getJSON(t, ts.URL+"/api/results?season=Temporada+5", &body)
	assert.Equal(t, "Temporada 5", body.Season)
	assert.Len(t, body.Rows, 3)
	assert.Equal(t, "2–0", body.Rows[0].ResultSets)
	assert.Equal(t, "", body.Rows[2].ResultSets)

	var filtered struct {
		Rows []MatchResponse `json:"rows"`
	}
	getJSON(t, ts.URL+"/api/results?season=Temporada+5&division="+url.QueryEscape(Div2), &filtered)
	assert.Len(t, filtered.Rows, 1)
	assert.Equal(t, "Luis", filtered.Rows[0].Player1)
}

func unplayedSubmitURL(t *testing.T, s *Server, ts *httptest.Server) string {
	t.Helper()
	_, today := s.league().UnplayedMatches(day(2025, 3, 12))
	assert.Len(t, today, 1)
	link, err := buildSubmitURL(ts.URL, s.submitSecret, &today[0])
	assert.NoError(t, err)
	return link
}

func Test_submitFlow(t *testing.T) {
	s, ts, _ := fixtureServer(t)
	link := unplayedSubmitURL(t, s, ts)

	resp, err := http.Get(link)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	u, err := url.Parse(link)
	assert.NoError(t, err)
	token := u.Query().Get("token")

	form := url.Values{
		"token":     {token},
		"s1_j1":     {"11"},
		"s1_j2":     {"7"},
		"s2_j1":     {"11"},
		"s2_j2":     {"9"},
		"submitter": {"Bob"},
	}
	resp, err = http.PostForm(ts.URL+"/submit", form)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var subs []Submission
	assert.NoError(t, s.db.Find(&subs).Error)
	assert.Len(t, subs, 1)
	assert.Equal(t, statusPending, subs[0].Status)
	assert.Equal(t, "Bob", subs[0].Player1)
	assert.Equal(t, "Cara", subs[0].Player2)

	var sets SubmittedSets
	assert.NoError(t, json.Unmarshal(subs[0].Sets, &sets))
	assert.Equal(t, "11", sets[0][0])
	assert.Equal(t, "7", sets[0][1])
}

func Test_submitRejectsTamperedToken(t *testing.T) {
	s, ts, _ := fixtureServer(t)
	link := unplayedSubmitURL(t, s, ts)

	resp, err := http.Get(strings.Replace(link, "token=", "token=x", 1))
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.PostForm(ts.URL+"/submit", url.Values{"token": {"garbage"}})
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func Test_adminRequiresToken(t *testing.T) {
	_, ts, _ := fixtureServer(t)

	resp, err := http.Get(ts.URL + "/admin/review")
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/admin/review?token=wrong")
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/admin/review?token=testadmin")
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func queueSubmission(t *testing.T, s *Server, sets SubmittedSets) *Submission {
	t.Helper()
	setsJSON, err := json.Marshal(sets)
	assert.NoError(t, err)
	sub := &Submission{
		SubmissionID: "test-sub-1",
		MatchID:      "abc123",
		Season:       "Temporada 5",
		Date:         "2025-03-12",
		Division:     Div1,
		Player1:      "Bob",
		Player2:      "Cara",
		Sets:         setsJSON,
		Status:       statusPending,
	}
	assert.NoError(t, s.db.Create(sub).Error)
	return sub
}

func Test_adminApproveWritesWorkbook(t *testing.T) {
	s, ts, dir := fixtureServer(t)
	sub := queueSubmission(t, s, SubmittedSets{{"11", "7"}, {"11", "9"}, {"8", "11"}})

	resp, err := http.Post(ts.URL+"/admin/approve?token=testadmin&id="+sub.SubmissionID, "", nil)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The set cells landed in the workbook row for Bob vs Cara.
	f, err := excelize.OpenFile(filepath.Join(dir, "RESULTADOS T5.xlsx"))
	assert.NoError(t, err)
	defer f.Close()
	sheet := f.GetSheetName(0)
	v, err := f.GetCellValue(sheet, "E2")
	assert.NoError(t, err)
	assert.Equal(t, "11", v)
	v, err = f.GetCellValue(sheet, "F2")
	assert.NoError(t, err)
	assert.Equal(t, "7", v)

	// Submission is marked approved and the league was reloaded: the match
	// now counts.
	var stored Submission
	assert.NoError(t, s.db.Where("submission_id = ?", sub.SubmissionID).First(&stored).Error)
	assert.Equal(t, statusApproved, stored.Status)

	rows := s.league().Standings("Temporada 5", Div1)
	for _, row := range rows {
		if row.Player == "Bob" {
			assert.Equal(t, 2, row.Played)
			assert.Equal(t, 1, row.Wins)
		}
		if row.Player == "Cara" {
			assert.Equal(t, 1, row.Played)
		}
	}
}

func Test_adminApproveUnknownRow(t *testing.T) {
	s, ts, _ := fixtureServer(t)
	sub := queueSubmission(t, s, SubmittedSets{{"11", "7"}})
	sub.Player2 = "Nadie"
	assert.NoError(t, s.db.Save(sub).Error)

	resp, err := http.Post(ts.URL+"/admin/approve?token=testadmin&id="+sub.SubmissionID, "", nil)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func Test_adminReject(t *testing.T) {
	s, ts, _ := fixtureServer(t)
	sub := queueSubmission(t, s, SubmittedSets{})

	resp, err := http.Post(ts.URL+"/admin/reject?token=testadmin&id="+sub.SubmissionID, "", nil)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stored Submission
	assert.NoError(t, s.db.Where("submission_id = ?", sub.SubmissionID).First(&stored).Error)
	assert.Equal(t, statusRejected, stored.Status)

	resp, err = http.Post(ts.URL+"/admin/reject?token=testadmin&id=missing", "", nil)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
