package main

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) GETSeasons(w http.ResponseWriter, r *http.Request) {
	l := s.league()
	seasons := append([]string{GeneralT}, l.Seasons()...)
	writeJSON(w, map[string]any{"seasons": seasons})
}

func (s *Server) GETDivisions(w http.ResponseWriter, r *http.Request) {
	l := s.league()
	season := r.URL.Query().Get("season")
	divisions := l.DivisionsFor(season)
	if divisions == nil {
		http.Error(w, "Season not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"season": season, "divisions": divisions})
}

func (s *Server) GETStandings(w http.ResponseWriter, r *http.Request) {
	l := s.league()
	season := r.URL.Query().Get("season")
	division := r.URL.Query().Get("division")

	seasons := append([]string{GeneralT}, l.Seasons()...)

	// No season, or the pseudo-season, means the all-time general table.
	if season == "" || season == GeneralT {
		writeJSON(w, StandingsResponse{
			Season:  GeneralT,
			Seasons: seasons,
			Rows:    l.GeneralStandings(),
		})
		return
	}

	divisions := l.DivisionsFor(season)
	if divisions == nil {
		http.Error(w, "Season not found", http.StatusNotFound)
		return
	}
	if division == "" && len(divisions) > 0 {
		division = divisions[0]
	}

	writeJSON(w, StandingsResponse{
		Season:    season,
		Division:  division,
		Seasons:   seasons,
		Divisions: divisions,
		Rows:      l.Standings(season, division),
	})
}

func matchToResponse(m *MatchRow) MatchResponse {
	resp := MatchResponse{
		Date:       m.Date.Format("2006-01-02"),
		Time:       m.TimeOfDay,
		Division:   m.Division,
		Player1:    m.Player1,
		Player2:    m.Player2,
		ResultSets: m.ResultSets(),
	}
	for _, p := range m.Sets {
		resp.Sets = append(resp.Sets, [2]*int{p.A, p.B})
	}
	return resp
}

func (s *Server) GETResults(w http.ResponseWriter, r *http.Request) {
	l := s.league()
	season := r.URL.Query().Get("season")
	division := r.URL.Query().Get("division")

	all := l.Seasons()
	if season == "" && len(all) > 0 {
		season = all[0]
	}
	if l.DivisionsFor(season) == nil {
		http.Error(w, "Season not found", http.StatusNotFound)
		return
	}

	matches := l.ResultsFor(season, division)
	rows := make([]MatchResponse, 0, len(matches))
	for i := range matches {
		rows = append(rows, matchToResponse(&matches[i]))
	}
	writeJSON(w, map[string]any{
		"season":  season,
		"seasons": all,
		"rows":    rows,
	})
}
