package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/meeting-analyzer/internal/pipeline"
	"github.com/jonathan/meeting-analyzer/internal/server/middleware"
	"github.com/jonathan/meeting-analyzer/internal/types"
)

// maxBodyBytes bounds request bodies; transcripts of long calls stay well below it.
const maxBodyBytes = 4 << 20

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// decodeBody reads a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &ErrValidation{Message: "invalid JSON body: " + err.Error()}
	}
	return nil
}

// handleAnalyze scores a transcript without joining a meeting.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req types.AnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, types.AnalyzeResponse{Error: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, types.AnalyzeResponse{Error: "transcript is required"})
		return
	}

	s.logger.Info("analysis request received", "length", len([]rune(req.Transcript)))

	sc, err := s.analyzer.Analyze(r.Context(), req.Transcript)
	if err != nil {
		s.logger.Error("analysis failed", "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, types.AnalyzeResponse{Error: err.Error()})
		return
	}

	s.jsonResponse(w, http.StatusOK, types.AnalyzeResponse{Success: true, Report: sc})
}

// handleJoin runs one meeting synchronously.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req types.MeetingRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, types.JoinError{Error: err.Error()})
		return
	}
	s.logger.Info("join requested", "lead_id", req.LeadID, "caller", caller(r))

	res, err := s.pipeline.Run(r.Context(), req, nil)
	if err != nil {
		s.jsonResponse(w, HTTPStatus(err), types.JoinError{Error: err.Error()})
		return
	}

	if !res.Success {
		s.jsonResponse(w, http.StatusInternalServerError, types.JoinError{
			Error: res.Error,
			Stage: res.FailedStage,
			RunID: res.RunID,
		})
		return
	}

	s.jsonResponse(w, http.StatusOK, types.NewJoinResponse(res))
}

// handleJoinStream runs one meeting and streams its progress as Server-Sent Events.
func (s *Server) handleJoinStream(w http.ResponseWriter, r *http.Request) {
	var req types.MeetingRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, types.JoinError{Error: err.Error()})
		return
	}

	// Reject before switching to SSE so the caller still gets a plain status code.
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, types.JoinError{Error: err.Error()})
		return
	}

	s.logger.Info("streamed join requested", "lead_id", req.LeadID, "caller", caller(r))

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	stopKeepAlive := sse.KeepAlive(s.sseKeepAlive)
	res, err := s.pipeline.Run(r.Context(), req, func(ev pipeline.ProgressEvent) {
		if werr := sse.WriteEvent(EventProgress, ev); werr != nil {
			s.logger.Debug("progress event not delivered", "error", werr)
		}
	})
	stopKeepAlive()
	if err != nil {
		sse.WriteError(types.JoinError{Error: err.Error()})
		sse.WriteComplete("", types.RunStatusFailed)
		return
	}

	if res.Success {
		sse.WriteEvent(EventResult, types.NewJoinResponse(res)) //nolint:errcheck
	} else {
		sse.WriteError(types.JoinError{Error: res.Error, Stage: res.FailedStage, RunID: res.RunID})
	}
	sse.WriteComplete(res.RunID, res.Status())
}

// handleGetRun returns a stored run with its transcript and scorecard.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, http.StatusNotFound, (&ErrNotFound{Resource: "run history"}).Error())
		return
	}

	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run ID format")
		return
	}

	detail, err := s.runs.GetRunDetail(r.Context(), runID)
	if err != nil {
		s.logger.Error("failed to load run", "run_id", runID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "database error")
		return
	}
	if detail == nil {
		nf := &ErrNotFound{Resource: "run", ID: runID.String()}
		s.errorResponse(w, HTTPStatus(nf), nf.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, detail)
}

// caller names the authenticated client, or "anonymous" when auth is off.
func caller(r *http.Request) string {
	subject, err := middleware.GetSubject(r)
	if err != nil {
		return "anonymous"
	}
	return subject
}
