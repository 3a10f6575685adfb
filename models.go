package main

import (
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmittedSets is the raw form payload for the five sets, kept verbatim as
// entered until an admin approves it into the workbook.
type SubmittedSets [5][2]string

// Submission is a pending match result waiting for admin review. Sets holds
// the JSON-encoded SubmittedSets.
type Submission struct {
	gorm.Model
	SubmissionID string         `gorm:"uniqueIndex" json:"id"`
	MatchID      string         `gorm:"index" json:"matchId"`
	Season       string         `json:"season"`
	Date         string         `json:"date"`
	Division     string         `json:"division"`
	Player1      string         `json:"player1"`
	Player2      string         `json:"player2"`
	Sets         datatypes.JSON `gorm:"type:json" json:"sets"`
	Submitter    string         `json:"submitter"`
	Status       string         `gorm:"index" json:"status"`
}

const (
	statusPending  = "pending"
	statusApproved = "approved"
	statusRejected = "rejected"
)

// LinkClaims is the signed payload of a submission link. It pins the link to
// one concrete match.
type LinkClaims struct {
	MatchID  string `json:"mid"`
	Season   string `json:"season"`
	Date     string `json:"date"`
	Division string `json:"division"`
	Player1  string `json:"j1"`
	Player2  string `json:"j2"`
	jwt.RegisteredClaims
}

// MatchResponse is one results row as served over the API.
type MatchResponse struct {
	Date       string    `json:"date"`
	Time       string    `json:"time,omitempty"`
	Division   string    `json:"division"`
	Player1    string    `json:"player1"`
	Player2    string    `json:"player2"`
	ResultSets string    `json:"resultSets"`
	Sets       [][2]*int `json:"sets"`
}

// StandingsResponse wraps a ranked table with the navigation context the
// frontend needs.
type StandingsResponse struct {
	Season    string           `json:"season"`
	Division  string           `json:"division,omitempty"`
	Seasons   []string         `json:"seasons"`
	Divisions []string         `json:"divisions"`
	Rows      []PlayerStanding `json:"rows"`
}
