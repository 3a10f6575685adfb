package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var submitFormTmpl = template.Must(template.New("submit").Parse(`<!DOCTYPE html>
<html lang="es">
<head><meta charset="utf-8"><title>Enviar resultado</title></head>
<body>
<h1>{{.Player1}} vs {{.Player2}}</h1>
<p>{{.Season}} — {{.Division}} — {{.Date}}</p>
<form method="post" action="/submit">
  <input type="hidden" name="token" value="{{.Token}}">
  <table>
    <tr><th></th><th>{{.Player1}}</th><th>{{.Player2}}</th></tr>
    {{range .SetNums}}
    <tr>
      <td>Set {{.}}</td>
      <td><input name="s{{.}}_j1" size="3" inputmode="numeric"></td>
      <td><input name="s{{.}}_j2" size="3" inputmode="numeric"></td>
    </tr>
    {{end}}
  </table>
  <p><label>Enviado por: <input name="submitter"></label></p>
  <button type="submit">Enviar</button>
</form>
</body>
</html>`))

var submitDoneTmpl = template.Must(template.New("done").Parse(`<!DOCTYPE html>
<html lang="es">
<head><meta charset="utf-8"><title>Resultado enviado</title></head>
<body>
<h1>¡Gracias!</h1>
<p>El resultado de {{.Player1}} vs {{.Player2}} queda pendiente de revisión.</p>
</body>
</html>`))

type submitFormContext struct {
	*LinkClaims
	Token   string
	SetNums []int
}

func (s *Server) GETSubmitForm(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	claims, err := parseSubmitToken(tokenStr, s.submitSecret)
	if err != nil {
		http.Error(w, "Enlace inválido o manipulado", http.StatusBadRequest)
		return
	}
	submitFormTmpl.Execute(w, submitFormContext{
		LinkClaims: claims,
		Token:      tokenStr,
		SetNums:    []int{1, 2, 3, 4, 5},
	})
}

func (s *Server) POSTSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	claims, err := parseSubmitToken(r.PostFormValue("token"), s.submitSecret)
	if err != nil {
		http.Error(w, "Enlace inválido o manipulado", http.StatusBadRequest)
		return
	}

	lctx, err := s.submitLimiter.Get(r.Context(), s.submitLimiter.GetIPKey(r))
	if err != nil {
		http.Error(w, "Rate limiter error", http.StatusInternalServerError)
		return
	}
	if lctx.Reached {
		http.Error(w, "Too many submissions", http.StatusTooManyRequests)
		return
	}

	var sets SubmittedSets
	for i := 0; i < 5; i++ {
		sets[i][0] = strings.TrimSpace(r.PostFormValue(fmt.Sprintf("s%d_j1", i+1)))
		sets[i][1] = strings.TrimSpace(r.PostFormValue(fmt.Sprintf("s%d_j2", i+1)))
	}
	setsJSON, err := json.Marshal(sets)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	sub := &Submission{
		SubmissionID: uuid.NewString(),
		MatchID:      claims.MatchID,
		Season:       claims.Season,
		Date:         claims.Date,
		Division:     claims.Division,
		Player1:      claims.Player1,
		Player2:      claims.Player2,
		Sets:         datatypes.JSON(setsJSON),
		Submitter:    strings.TrimSpace(r.PostFormValue("submitter")),
		Status:       statusPending,
	}
	if err := s.db.Create(sub).Error; err != nil {
		http.Error(w, "Could not store submission", http.StatusInternalServerError)
		return
	}

	log.Info().Str("match", claims.MatchID).Str("season", claims.Season).Msg("Submission queued")
	submitDoneTmpl.Execute(w, claims)
}

// adminOnly gates a handler behind the static admin token, taken from the
// query string or the X-Admin-Token header.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = r.Header.Get("X-Admin-Token")
		}
		if !checkAdminToken(token, s.adminToken) {
			http.Error(w, "Token inválido", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (s *Server) GETAdminReview(w http.ResponseWriter, r *http.Request) {
	var pending []Submission
	if err := s.db.Where("status = ?", statusPending).Order("created_at").Find(&pending).Error; err != nil {
		http.Error(w, "Failed to load submissions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"pending": pending})
}

func (s *Server) POSTAdminReject(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	result := s.db.Model(&Submission{}).
		Where("submission_id = ? AND status = ?", id, statusPending).
		Update("status", statusRejected)
	if result.Error != nil {
		http.Error(w, "Failed to update submission", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Submission not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) POSTAdminApprove(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	var sub Submission
	err := s.db.Where("submission_id = ? AND status = ?", id, statusPending).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Submission not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load submission", http.StatusInternalServerError)
		return
	}

	if err := applySubmission(s.dataDir, &sub); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Approve failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.db.Model(&sub).Update("status", statusApproved).Error; err != nil {
		http.Error(w, "Failed to update submission", http.StatusInternalServerError)
		return
	}

	if err := s.reload(); err != nil {
		http.Error(w, "Approved but reload failed", http.StatusInternalServerError)
		return
	}
	log.Info().Str("id", id).Str("match", sub.MatchID).Msg("Submission approved")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) POSTAdminReload(w http.ResponseWriter, r *http.Request) {
	if err := s.reload(); err != nil {
		http.Error(w, "Reload failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// applySubmission writes an approved result into the season's workbook. The
// target row is matched on date and both player names; the ten set cells are
// overwritten in place, last writer wins.
func applySubmission(dataDir string, sub *Submission) error {
	var sets SubmittedSets
	if err := json.Unmarshal(sub.Sets, &sets); err != nil {
		return fmt.Errorf("malformed set payload: %w", err)
	}
	wantDate, ok := coerceDate(sub.Date)
	if !ok {
		return fmt.Errorf("invalid date %q", sub.Date)
	}

	fileName, err := seasonResultsFile(sub.Season)
	if err != nil {
		return err
	}
	path := filepath.Join(dataDir, fileName)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", fileName, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return err
	}
	lay := sniffLayout(rows)

	target := 0
	for i, row := range rows {
		j1 := cleanName(cellAt(row, lay.j1Col))
		j2 := cleanName(cellAt(row, lay.j2Col))
		if j1 == "" && j2 == "" {
			continue
		}
		date, ok := coerceDate(cellAt(row, lay.dateCol))
		if !ok || !date.Equal(wantDate) {
			continue
		}
		if foldName(j1) != foldName(sub.Player1) || foldName(j2) != foldName(sub.Player2) {
			continue
		}
		target = i + 1
		break
	}
	if target == 0 {
		return fmt.Errorf("no match row for %s vs %s on %s", sub.Player1, sub.Player2, sub.Date)
	}

	for k := 0; k < 5; k++ {
		for side := 0; side < 2; side++ {
			axis, err := excelize.CoordinatesToCellName(lay.setsCol+2*k+side+1, target)
			if err != nil {
				return err
			}
			v := strings.TrimSpace(sets[k][side])
			if v == "" {
				err = f.SetCellValue(sheet, axis, nil)
			} else if n := coercePoints(v); n != nil {
				err = f.SetCellValue(sheet, axis, *n)
			} else {
				err = f.SetCellValue(sheet, axis, v)
			}
			if err != nil {
				return err
			}
		}
	}
	return f.Save()
}
