package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"text/tabwriter"
)

// Standalone helper: fetch a division standings JSON from the server (or a
// file) and print the table together with the league points each current
// rank would earn at season end.

type standingRow struct {
	Player        string `json:"player"`
	Played        int    `json:"played"`
	Wins          int    `json:"wins"`
	SetsFor       int    `json:"setsFor"`
	SetsAgainst   int    `json:"setsAgainst"`
	PointsFor     int    `json:"pointsFor"`
	PointsAgainst int    `json:"pointsAgainst"`
}

type standingsDoc struct {
	Season   string        `json:"season"`
	Division string        `json:"division"`
	Rows     []standingRow `json:"rows"`
}

var (
	urlFlag  = flag.String("url", "", "standings endpoint, e.g. http://localhost:8080/api/standings?season=Temporada+6")
	fileFlag = flag.String("file", "", "standings JSON file (alternative to -url)")
)

var div1Awards = []int{34, 31, 29, 27}

// awardPoints mirrors the server's schedule: stepped table for División 1
// descending past fourth place, clamped countdowns below.
func awardPoints(division string, rank int) int {
	switch division {
	case "División 1":
		if rank <= len(div1Awards) {
			return div1Awards[rank-1]
		}
		return div1Awards[len(div1Awards)-1] - (rank - len(div1Awards))
	case "División 2":
		return max(20-(rank-1), 0)
	default:
		return max(10-(rank-1), 0)
	}
}

func load() (*standingsDoc, error) {
	var doc standingsDoc
	switch {
	case *fileFlag != "":
		data, err := os.ReadFile(*fileFlag)
		if err != nil {
			return nil, err
		}
		return &doc, json.Unmarshal(data, &doc)
	case *urlFlag != "":
		resp, err := http.Get(*urlFlag)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("server returned %s", resp.Status)
		}
		return &doc, json.NewDecoder(resp.Body).Decode(&doc)
	default:
		return nil, fmt.Errorf("one of -url or -file is required")
	}
}

func main() {
	flag.Parse()

	doc, err := load()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s — %s\n\n", doc.Season, doc.Division)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tJugador\tPJ\tV\tSets\tPuntos\tLiga")
	for i, row := range doc.Rows {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%+d\t%d\t%d\n",
			i+1, row.Player, row.Played, row.Wins,
			row.SetsFor-row.SetsAgainst, row.PointsFor,
			awardPoints(doc.Division, i+1))
	}
	w.Flush()
}
