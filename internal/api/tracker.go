package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tutu-network/studytrack/internal/domain"
)

// ─── Tracker API ────────────────────────────────────────────────────────────
//
// GET  /api/state         ledger {completed, prizes}
// GET  /api/files         artifacts {available, done}
// GET  /api/reconcile     ledger/filesystem divergence
// GET  /api/last_action   most recent mutation, or null
// POST /api/complete      {unit} → {ok, moved} | {ok:false, reason}
// POST /api/undo          {unit} → {ok, moved_back} | {ok:false}
// POST /api/add_prize     {prize} → {ok:true}
// POST /api/remove_prize  {ok:true}
// POST /api/reset         {ok:true}

const maxBodyBytes = 1 << 20

type unitRequest struct {
	Unit string `json:"unit"`
}

type prizeRequest struct {
	Prize domain.Prize `json:"prize"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// handleState returns the ledger.
// GET /api/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	l, err := s.tracker.State()
	if err != nil {
		s.writeTrackerError(w, "state", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleFiles lists artifacts on disk.
// GET /api/files
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	a, err := s.tracker.ListArtifacts()
	if err != nil {
		s.writeTrackerError(w, "files", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// GET /api/reconcile
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := s.tracker.Reconcile()
	if err != nil {
		s.writeTrackerError(w, "reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GET /api/last_action
func (s *Server) handleLastAction(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.LastAction())
}

// handleComplete marks a unit as done.
// POST /api/complete
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.tracker.Complete(req.Unit)
	if err != nil {
		s.writeTrackerError(w, "complete", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleUndo reopens a completed unit.
// POST /api/undo
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.tracker.Undo(req.Unit)
	if err != nil {
		s.writeTrackerError(w, "undo", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/add_prize
func (s *Server) handleAddPrize(w http.ResponseWriter, r *http.Request) {
	var req prizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.tracker.AddPrize(req.Prize); err != nil {
		s.writeTrackerError(w, "add_prize", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// POST /api/remove_prize
func (s *Server) handleRemovePrize(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.RemovePrize(); err != nil {
		s.writeTrackerError(w, "remove_prize", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// POST /api/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Reset(); err != nil {
		s.writeTrackerError(w, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// decodeBody reads a JSON object into v. An empty body counts as {}.
// On failure it writes a 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return true
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeTypedError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeTypedError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: trailing data")
		return false
	}
	return true
}

func (s *Server) writeTrackerError(w http.ResponseWriter, op string, err error) {
	s.log.WithError(err).WithField("op", op).Error("request failed")
	if errors.Is(err, domain.ErrCorruptState) {
		writeTypedError(w, http.StatusInternalServerError, "corrupt_state", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
