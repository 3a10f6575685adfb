package main

import (
	"crypto/sha1"
	"crypto/subtle"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// matchID derives a short stable identifier for a scheduled match from its
// identity tuple. It survives reloads as long as the row itself is unchanged.
func matchID(season, date, division, j1, j2, secret string) string {
	src := strings.Join([]string{season, date, division, j1, j2, secret}, "|")
	sum := sha1.Sum([]byte(src))
	return fmt.Sprintf("%x", sum)[:16]
}

// signSubmitToken issues the signed token embedded in a submission link. The
// links intentionally never expire; a match stays submittable until scored.
func signSubmitToken(claims *LinkClaims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// parseSubmitToken validates a submission link token and returns its claims.
func parseSubmitToken(tokenStr, secret string) (*LinkClaims, error) {
	claims := &LinkClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// buildSubmitURL renders the full submission link for a match.
func buildSubmitURL(baseURL, secret string, m *MatchRow) (string, error) {
	date := m.Date.Format("2006-01-02")
	claims := &LinkClaims{
		MatchID:  matchID(m.Season, date, m.Division, m.Player1, m.Player2, secret),
		Season:   m.Season,
		Date:     date,
		Division: m.Division,
		Player1:  m.Player1,
		Player2:  m.Player2,
	}
	tokenStr, err := signSubmitToken(claims, secret)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/submit?token=%s", strings.TrimRight(baseURL, "/"), url.QueryEscape(tokenStr)), nil
}

// checkAdminToken compares the presented token in constant time.
func checkAdminToken(presented, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// seasonResultsFile maps a season label back to its results workbook name.
func seasonResultsFile(season string) (string, error) {
	n := seasonNumber(season)
	if n <= 0 {
		return "", fmt.Errorf("invalid season %q", season)
	}
	return "RESULTADOS T" + strconv.Itoa(n) + ".xlsx", nil
}
