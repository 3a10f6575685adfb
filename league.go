package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	Div1     = "División 1"
	Div2     = "División 2"
	Div3     = "División 3"
	Div3A    = "División 3 - A"
	Div3B    = "División 3 - B"
	Div4A    = "División 4 - A"
	Div4B    = "División 4 - B"
	DivDesc  = "Desconocida"
	GeneralT = "(General)"
)

// divisionLabels maps the roster table's column count to the division each
// column holds. Columns past the label set are ignored.
func divisionLabels(ncols int) []string {
	switch {
	case ncols >= 5:
		return []string{Div1, Div2, Div3, Div4A, Div4B}
	case ncols == 4:
		return []string{Div1, Div2, Div3A, Div3B}
	default:
		return []string{Div1, Div2, Div3}
	}
}

// divisionTier collapses a division label into its award tier. División 1 and
// División 2 have their own schedules; everything below shares one.
func divisionTier(division string) int {
	switch division {
	case Div1:
		return 1
	case Div2:
		return 2
	default:
		return 3
	}
}

var div1Awards = []int{34, 31, 29, 27}

// awardPoints returns the league points earned by finishing at rank (1-based)
// in the given division. División 1 uses the stepped table and keeps
// descending by one past fourth place with no floor. The lower divisions clamp
// at zero.
func awardPoints(division string, rank int) int {
	switch divisionTier(division) {
	case 1:
		if rank <= len(div1Awards) {
			return div1Awards[rank-1]
		}
		return div1Awards[len(div1Awards)-1] - (rank - len(div1Awards))
	case 2:
		return max(20-(rank-1), 0)
	default:
		return max(10-(rank-1), 0)
	}
}

// SetPair is one set's score. A side is nil when the cell was blank or not
// numeric. Only pairs with both sides present count toward anything.
type SetPair struct {
	A *int
	B *int
}

func (p SetPair) valid() bool { return p.A != nil && p.B != nil }

// MatchRow is one row of a season's results table after normalization.
// Division is the resolved division, not whatever the sheet column said.
type MatchRow struct {
	Season    string
	Date      time.Time
	TimeOfDay string // "HH:MM", only present in the six-column layout
	Division  string
	Player1   string
	Player2   string
	Sets      []SetPair
}

// Played reports whether at least one set has both scores recorded.
func (m *MatchRow) Played() bool {
	for _, p := range m.Sets {
		if p.valid() {
			return true
		}
	}
	return false
}

// SetsWon counts the sets taken by each player. Tied sets count for neither.
func (m *MatchRow) SetsWon() (int, int) {
	var s1, s2 int
	for _, p := range m.Sets {
		if !p.valid() {
			continue
		}
		if *p.A > *p.B {
			s1++
		} else if *p.B > *p.A {
			s2++
		}
	}
	return s1, s2
}

// PointsTotal sums the points of every fully scored set.
func (m *MatchRow) PointsTotal() (int, int) {
	var p1, p2 int
	for _, p := range m.Sets {
		if p.valid() {
			p1 += *p.A
			p2 += *p.B
		}
	}
	return p1, p2
}

// ResultSets renders the "3–1" style summary, or "" for an unplayed match.
func (m *MatchRow) ResultSets() string {
	if !m.Played() {
		return ""
	}
	s1, s2 := m.SetsWon()
	return fmt.Sprintf("%d–%d", s1, s2)
}

// PlayerAgg accumulates one player's statistics within a division. The same
// struct doubles as the cross-season accumulator for the general table, where
// AwardPoints is meaningful.
type PlayerAgg struct {
	Played        int
	Wins          int
	SetsFor       int
	SetsAgainst   int
	PointsFor     int
	PointsAgainst int
	AwardPoints   int
}

// Roster is one season's division membership, read positionally from the
// players table. Division order follows column order, which is also the
// display order.
type Roster struct {
	Divisions []string
	Players   map[string][]string // division -> names in sheet row order
	byName    map[string]string   // folded name -> division
}

func newRoster(ncols int) *Roster {
	r := &Roster{
		Divisions: divisionLabels(ncols),
		Players:   make(map[string][]string),
		byName:    make(map[string]string),
	}
	for _, d := range r.Divisions {
		r.Players[d] = nil
	}
	return r
}

func (r *Roster) add(division, name string) {
	if name == "" {
		return
	}
	key := foldName(name)
	if _, ok := r.byName[key]; !ok {
		r.byName[key] = division
	}
	r.Players[division] = append(r.Players[division], name)
}

// DivisionOf looks a player up by folded name.
func (r *Roster) DivisionOf(name string) (string, bool) {
	d, ok := r.byName[foldName(name)]
	return d, ok
}

// resolveDivision decides which division a match belongs to. Both players in
// the same division wins outright; a disagreement defers to player 1; a
// single hit uses that player's division; no hits means unknown.
func resolveDivision(r *Roster, j1, j2 string) string {
	if r == nil {
		return DivDesc
	}
	d1, ok1 := r.DivisionOf(j1)
	d2, ok2 := r.DivisionOf(j2)
	switch {
	case ok1:
		return d1
	case ok2:
		return d2
	default:
		return DivDesc
	}
}

// aggTable is an insertion-ordered map of player aggregates. Order matters so
// zero-match roster players rank deterministically.
type aggTable struct {
	order   []string
	stats   map[string]*PlayerAgg
	display map[string]string
}

func newAggTable() *aggTable {
	return &aggTable{
		stats:   make(map[string]*PlayerAgg),
		display: make(map[string]string),
	}
}

// get returns the aggregate for name, creating it on first sight. The first
// spelling seen is kept for display; roster seeding runs first, so the roster
// spelling wins over whatever the results sheet used.
func (t *aggTable) get(name string) *PlayerAgg {
	key := foldName(name)
	a, ok := t.stats[key]
	if !ok {
		a = &PlayerAgg{}
		t.stats[key] = a
		t.display[key] = name
		t.order = append(t.order, key)
	}
	return a
}

// aggregateDivision folds a season's matches into per-player aggregates for
// one division. Every roster member is seeded with a zero record first, so
// players with no matches still appear. Off-roster names found in results are
// created on the fly rather than dropped.
func aggregateDivision(matches []MatchRow, division string, rosterPlayers []string) *aggTable {
	agg := newAggTable()
	for _, name := range rosterPlayers {
		agg.get(name)
	}

	for i := range matches {
		m := &matches[i]
		if m.Division != division || !m.Played() {
			continue
		}

		s1, s2 := m.SetsWon()
		p1, p2 := m.PointsTotal()

		if m.Player1 != "" {
			a := agg.get(m.Player1)
			a.Played++
			if s1 > s2 {
				a.Wins++
			}
			a.SetsFor += s1
			a.SetsAgainst += s2
			a.PointsFor += p1
			a.PointsAgainst += p2
		}
		if m.Player2 != "" {
			a := agg.get(m.Player2)
			a.Played++
			if s2 > s1 {
				a.Wins++
			}
			a.SetsFor += s2
			a.SetsAgainst += s1
			a.PointsFor += p2
			a.PointsAgainst += p1
		}
	}
	return agg
}

// PlayerStanding is one row of a ranked table.
type PlayerStanding struct {
	Player        string `json:"player"`
	Played        int    `json:"played"`
	Wins          int    `json:"wins"`
	SetsFor       int    `json:"setsFor"`
	SetsAgainst   int    `json:"setsAgainst"`
	PointsFor     int    `json:"pointsFor"`
	PointsAgainst int    `json:"pointsAgainst"`
	AwardPoints   int    `json:"awardPoints,omitempty"`
}

// rankDivision orders an aggregate table by wins, then set difference, then
// points for, with alphabetical name as the final tie-break.
func rankDivision(agg *aggTable) []PlayerStanding {
	rows := make([]PlayerStanding, 0, len(agg.order))
	for _, key := range agg.order {
		a := agg.stats[key]
		rows = append(rows, PlayerStanding{
			Player:        agg.display[key],
			Played:        a.Played,
			Wins:          a.Wins,
			SetsFor:       a.SetsFor,
			SetsAgainst:   a.SetsAgainst,
			PointsFor:     a.PointsFor,
			PointsAgainst: a.PointsAgainst,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		di := rows[i].SetsFor - rows[i].SetsAgainst
		dj := rows[j].SetsFor - rows[j].SetsAgainst
		if di != dj {
			return di > dj
		}
		if rows[i].PointsFor != rows[j].PointsFor {
			return rows[i].PointsFor > rows[j].PointsFor
		}
		return strings.ToLower(rows[i].Player) < strings.ToLower(rows[j].Player)
	})
	return rows
}

// League holds every loaded season's roster and results. It is immutable
// after construction; reloads build a fresh League and swap the pointer.
type League struct {
	seasons []string
	rosters map[string]*Roster
	results map[string][]MatchRow
}

// NewLeague builds a League from already-parsed tables. Seasons are whatever
// keys appear in rosters, ordered by their embedded number.
func NewLeague(rosters map[string]*Roster, results map[string][]MatchRow) *League {
	seasons := make([]string, 0, len(rosters))
	for s := range rosters {
		seasons = append(seasons, s)
	}
	sort.Slice(seasons, func(i, j int) bool {
		return seasonNumber(seasons[i]) < seasonNumber(seasons[j])
	})
	return &League{seasons: seasons, rosters: rosters, results: results}
}

func seasonNumber(season string) int {
	fields := strings.Fields(season)
	if len(fields) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(fields[len(fields)-1])
	return n
}

// Seasons lists the loaded seasons in chronological order.
func (l *League) Seasons() []string {
	out := make([]string, len(l.seasons))
	copy(out, l.seasons)
	return out
}

// DivisionsFor lists a season's divisions in display order.
func (l *League) DivisionsFor(season string) []string {
	r, ok := l.rosters[season]
	if !ok {
		return nil
	}
	out := make([]string, len(r.Divisions))
	copy(out, r.Divisions)
	return out
}

// ResultsFor returns a season's matches, optionally filtered to one division.
// Pass "" for all divisions.
func (l *League) ResultsFor(season, division string) []MatchRow {
	var out []MatchRow
	for _, m := range l.results[season] {
		if division != "" && m.Division != division {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Standings recomputes the ranked table for one season and division from the
// loaded data. It is a pure function of the tables.
func (l *League) Standings(season, division string) []PlayerStanding {
	r := l.rosters[season]
	var rosterPlayers []string
	if r != nil {
		rosterPlayers = r.Players[division]
	}
	agg := aggregateDivision(l.results[season], division, rosterPlayers)
	return rankDivision(agg)
}

// GeneralStandings builds the all-time table: every season and division is
// ranked, the rank is converted to award points, and everything accumulates
// per player.
func (l *League) GeneralStandings() []PlayerStanding {
	hist := newAggTable()
	for _, season := range l.seasons {
		for _, division := range l.DivisionsFor(season) {
			rows := l.Standings(season, division)
			for pos, row := range rows {
				h := hist.get(row.Player)
				h.Played += row.Played
				h.Wins += row.Wins
				h.SetsFor += row.SetsFor
				h.SetsAgainst += row.SetsAgainst
				h.PointsFor += row.PointsFor
				h.PointsAgainst += row.PointsAgainst
				h.AwardPoints += awardPoints(division, pos+1)
			}
		}
	}

	rows := make([]PlayerStanding, 0, len(hist.order))
	for _, key := range hist.order {
		a := hist.stats[key]
		rows = append(rows, PlayerStanding{
			Player:        hist.display[key],
			Played:        a.Played,
			Wins:          a.Wins,
			SetsFor:       a.SetsFor,
			SetsAgainst:   a.SetsAgainst,
			PointsFor:     a.PointsFor,
			PointsAgainst: a.PointsAgainst,
			AwardPoints:   a.AwardPoints,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AwardPoints != rows[j].AwardPoints {
			return rows[i].AwardPoints > rows[j].AwardPoints
		}
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		di := rows[i].SetsFor - rows[i].SetsAgainst
		dj := rows[j].SetsFor - rows[j].SetsAgainst
		if di != dj {
			return di > dj
		}
		if rows[i].PointsFor != rows[j].PointsFor {
			return rows[i].PointsFor > rows[j].PointsFor
		}
		return strings.ToLower(rows[i].Player) < strings.ToLower(rows[j].Player)
	})
	return rows
}

// UnplayedMatches partitions the current season's unplayed matches relative
// to asOf: overdue (before) and due today (same day). Future matches are not
// reported. Only the latest season has live scheduling relevance.
func (l *League) UnplayedMatches(asOf time.Time) (overdue, dueToday []MatchRow) {
	if len(l.seasons) == 0 {
		return nil, nil
	}
	season := l.seasons[len(l.seasons)-1]
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)

	var pending []MatchRow
	for _, m := range l.results[season] {
		if m.Played() || m.Date.IsZero() {
			continue
		}
		if m.Player1 == "" || m.Player2 == "" {
			continue
		}
		pending = append(pending, m)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].Date.Equal(pending[j].Date) {
			return pending[i].Date.Before(pending[j].Date)
		}
		if pending[i].Division != pending[j].Division {
			return pending[i].Division < pending[j].Division
		}
		if pending[i].Player1 != pending[j].Player1 {
			return pending[i].Player1 < pending[j].Player1
		}
		return pending[i].Player2 < pending[j].Player2
	})

	for _, m := range pending {
		switch {
		case m.Date.Before(day):
			overdue = append(overdue, m)
		case m.Date.Equal(day):
			dueToday = append(dueToday, m)
		}
	}
	return overdue, dueToday
}
