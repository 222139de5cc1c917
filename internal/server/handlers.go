package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/account-strategy/internal/config"
	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/playbook"
	"github.com/sells-group/account-strategy/internal/report"
)

var errRefreshInProgress = errors.New("refresh already in progress")

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if r := s.current.Load(); r != nil {
		body["as_of"] = r.AsOf.Format(config.DateLayout)
		body["accounts"] = len(r.Accounts)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if s.refreshFn == nil {
		writeError(w, http.StatusNotImplemented, "refresh not configured")
		return
	}
	rep, err := s.Refresh(r.Context())
	if errors.Is(err, errRefreshInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		zap.L().Error("server: refresh failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep.Summary)
}

func (s *Server) getReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.current.Load())
}

func (s *Server) getSummary(w http.ResponseWriter, _ *http.Request) {
	rep := s.current.Load()
	writeJSON(w, http.StatusOK, map[string]any{
		"as_of":   rep.AsOf.Format(config.DateLayout),
		"summary": rep.Summary,
		"skipped": rep.Skipped,
	})
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, ok := s.current.Load().Find(id)
	if !ok {
		writeError(w, http.StatusNotFound, "account "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) getCalls(w http.ResponseWriter, _ *http.Request) {
	calls := s.current.Load().Shortlist
	if calls == nil {
		calls = []model.CallTarget{}
	}
	writeJSON(w, http.StatusOK, calls)
}

func (s *Server) getCoverage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report.CoverageMap(s.current.Load()))
}

type phaseView struct {
	Phase    model.Phase           `json:"phase"`
	Playbook *playbook.Playbook    `json:"playbook,omitempty"`
	Accounts []model.AccountResult `json:"accounts"`
}

func (s *Server) getPhase(w http.ResponseWriter, r *http.Request) {
	p := phaseFrom(r)
	view := phaseView{
		Phase:    p,
		Accounts: report.PhaseAccounts(s.current.Load(), p),
	}
	if view.Accounts == nil {
		view.Accounts = []model.AccountResult{}
	}
	if pb, ok := s.catalog.Get(p); ok {
		view.Playbook = &pb
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) exportPhase(w http.ResponseWriter, r *http.Request) {
	p := phaseFrom(r)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="phase-%s.csv"`, p))
	if err := report.WritePhaseCSV(w, s.current.Load(), p); err != nil {
		zap.L().Warn("server: export phase", zap.String("phase", string(p)), zap.Error(err))
	}
}

func (s *Server) getPlaybook(w http.ResponseWriter, r *http.Request) {
	p := phaseFrom(r)
	pb, ok := s.catalog.Get(p)
	if !ok {
		writeError(w, http.StatusNotFound, "no playbook for phase "+string(p))
		return
	}
	writeJSON(w, http.StatusOK, pb)
}
