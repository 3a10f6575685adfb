package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nameFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldName builds the lookup key for a player name: trimmed, lower-cased and
// with diacritics stripped, so "José " and "jose" hit the same roster entry.
func foldName(name string) string {
	folded, _, err := transform.String(nameFolder, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// cleanName trims a cell and drops the usual spreadsheet artifacts.
func cleanName(cell string) string {
	s := strings.TrimSpace(cell)
	switch strings.ToLower(s) {
	case "nan", "none":
		return ""
	}
	return s
}

// excelEpoch is the serial-number day zero. Excel pretends 1900 was a leap
// year, so the working epoch is 1899-12-30, not 1900-01-01.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
}

// coerceDate turns a results cell into a calendar date. Serial numbers,
// ISO strings and the usual d/m/y variants are all accepted; anything else
// returns false and the caller skips the row.
func coerceDate(cell string) (time.Time, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
		if f < 1 {
			return time.Time{}, false
		}
		d := excelEpoch.AddDate(0, 0, int(f))
		return d, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// coercePoints parses a set-score cell. Valid means it converts to a real
// number; blanks and text are simply absent.
func coercePoints(cell string) *int {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}
	n := int(f)
	return &n
}

// looksLikeTime reports whether a cell holds a time of day: either a
// colon-delimited hh:mm string or a serial day fraction.
func looksLikeTime(cell string) bool {
	s := strings.TrimSpace(cell)
	if s == "" {
		return false
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) >= 2 && isDigits(parts[0]) && isDigits(parts[1]) {
			return true
		}
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f < 1 {
		return true
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// coerceTime renders a time cell as "HH:MM", or "" when it is not one.
func coerceTime(cell string) string {
	s := strings.TrimSpace(cell)
	if s == "" {
		return ""
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) >= 2 && isDigits(parts[0]) && isDigits(parts[1]) {
			h, _ := strconv.Atoi(parts[0])
			m, _ := strconv.Atoi(parts[1])
			return fmt.Sprintf("%02d:%02d", h, m)
		}
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f < 1 {
		total := int(math.Round(f * 24 * 60))
		return fmt.Sprintf("%02d:%02d", total/60, total%60)
	}
	return ""
}

// tableLayout is the column map for a results table, chosen once per season.
type tableLayout struct {
	dateCol int
	timeCol int // -1 in the legacy layout
	divCol  int
	j1Col   int
	j2Col   int
	setsCol int
}

var (
	legacyLayout  = tableLayout{dateCol: 0, timeCol: -1, divCol: 1, j1Col: 2, j2Col: 3, setsCol: 4}
	shiftedLayout = tableLayout{dateCol: 0, timeCol: 1, divCol: 2, j1Col: 3, j2Col: 4, setsCol: 5}
)

// layoutSniffRows bounds how far sniffLayout looks before settling on the
// legacy layout.
const layoutSniffRows = 15

// sniffLayout inspects the second column of a small prefix of rows. A
// time-like value anywhere in the prefix means the newer layout with a time
// column shifted in; first match wins.
func sniffLayout(rows [][]string) tableLayout {
	limit := min(len(rows), layoutSniffRows)
	for i := 0; i < limit; i++ {
		if len(rows[i]) > 1 && looksLikeTime(rows[i][1]) {
			return shiftedLayout
		}
	}
	return legacyLayout
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// normalizeRow turns one raw results row into a MatchRow. Rows without a
// parseable date or without any player name are rejected. The division here
// is only the sheet's hint; the caller resolves the real one from the roster.
func normalizeRow(row []string, lay tableLayout) (MatchRow, bool) {
	date, ok := coerceDate(cellAt(row, lay.dateCol))
	if !ok {
		return MatchRow{}, false
	}
	j1 := cleanName(cellAt(row, lay.j1Col))
	j2 := cleanName(cellAt(row, lay.j2Col))
	if j1 == "" && j2 == "" {
		return MatchRow{}, false
	}

	m := MatchRow{
		Date:     date,
		Division: cleanName(cellAt(row, lay.divCol)),
		Player1:  j1,
		Player2:  j2,
	}
	if lay.timeCol >= 0 {
		m.TimeOfDay = coerceTime(cellAt(row, lay.timeCol))
	}
	for k := 0; k < 5; k++ {
		a := coercePoints(cellAt(row, lay.setsCol+2*k))
		b := coercePoints(cellAt(row, lay.setsCol+2*k+1))
		// A half-scored set carries no points at all.
		if a == nil || b == nil {
			a, b = nil, nil
		}
		m.Sets = append(m.Sets, SetPair{A: a, B: b})
	}
	return m, true
}

var seasonFileRe = regexp.MustCompile(`T(\d+)\.xlsx$`)

func resultsPath(dataDir string, n int) string {
	return filepath.Join(dataDir, fmt.Sprintf("RESULTADOS T%d.xlsx", n))
}

func rosterPath(dataDir string, n int) string {
	return filepath.Join(dataDir, fmt.Sprintf("JUGADORES T%d.xlsx", n))
}

// discoverSeasons scans the data directory for RESULTADOS/JUGADORES pairs.
// A season is only usable with both files present.
func discoverSeasons(dataDir string) ([]int, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, err
	}
	rosters := make(map[int]bool)
	results := make(map[int]bool)
	for _, e := range entries {
		name := e.Name()
		match := seasonFileRe.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(name, "JUGADORES T"):
			rosters[n] = true
		case strings.HasPrefix(name, "RESULTADOS T"):
			results[n] = true
		}
	}

	var nums []int
	for n := range rosters {
		if results[n] {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums, nil
}

func readSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	// Raw values: a date-typed cell surfaces as its serial number instead of
	// the sheet's display format, and a time cell as a day fraction.
	return f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
}

// loadRoster reads a season's players table. Column position decides the
// division; cell order within a column is preserved.
func loadRoster(path string) (*Roster, error) {
	rows, err := readSheet(path)
	if err != nil {
		return nil, err
	}
	ncols := 0
	for _, row := range rows {
		ncols = max(ncols, len(row))
	}
	roster := newRoster(ncols)
	labels := roster.Divisions
	for _, row := range rows {
		for i, label := range labels {
			if i < len(row) {
				roster.add(label, cleanName(row[i]))
			}
		}
	}
	return roster, nil
}

// loadResults reads a season's results table, sniffing the layout once and
// resolving each row's division against the roster.
func loadResults(path, season string, roster *Roster) ([]MatchRow, error) {
	rows, err := readSheet(path)
	if err != nil {
		return nil, err
	}
	lay := sniffLayout(rows)

	var matches []MatchRow
	for _, row := range rows {
		m, ok := normalizeRow(row, lay)
		if !ok {
			continue
		}
		m.Season = season
		m.Division = resolveDivision(roster, m.Player1, m.Player2)
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].Date.Equal(matches[j].Date) {
			return matches[i].Date.Before(matches[j].Date)
		}
		if matches[i].Division != matches[j].Division {
			return matches[i].Division < matches[j].Division
		}
		if matches[i].Player1 != matches[j].Player1 {
			return matches[i].Player1 < matches[j].Player1
		}
		return matches[i].Player2 < matches[j].Player2
	})
	return matches, nil
}

// LoadLeague reads every discoverable season from the data directory. A
// season that fails to load is dropped entirely rather than loaded halfway.
func LoadLeague(dataDir string) (*League, error) {
	nums, err := discoverSeasons(dataDir)
	if err != nil {
		return nil, err
	}

	rosters := make(map[string]*Roster)
	results := make(map[string][]MatchRow)
	for _, n := range nums {
		season := fmt.Sprintf("Temporada %d", n)
		roster, err := loadRoster(rosterPath(dataDir, n))
		if err != nil {
			log.Warn().Err(err).Str("season", season).Msg("Skipping season, roster unreadable")
			continue
		}
		matches, err := loadResults(resultsPath(dataDir, n), season, roster)
		if err != nil {
			log.Warn().Err(err).Str("season", season).Msg("Skipping season, results unreadable")
			continue
		}
		rosters[season] = roster
		results[season] = matches
	}
	return NewLeague(rosters, results), nil
}
