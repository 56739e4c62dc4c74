package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/export"
	"github.com/docveil/docveil/internal/pipeline"
	"github.com/docveil/docveil/internal/rules"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// detectRequest is the body of POST /v1/detect and /v1/redact. DocumentID ties
// repeated requests to one supersession session; omit it for one-shot calls.
type detectRequest struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id,omitempty"`
}

type detectResponse struct {
	Entities   []entity.Entity `json:"entities"`
	Degraded   bool            `json:"degraded"`
	Generation uint64          `json:"generation,omitempty"`
	DurationMS float64         `json:"duration_ms"`
	CacheHit   bool            `json:"cache_hit"`
}

type redactResponse struct {
	detectResponse
	Redacted string `json:"redacted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody reads a JSON request body, enforcing the configured size cap.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if s.config.Server.MaxRequestSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxRequestSize)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		}
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).String(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":      "docveil",
		"detection": s.config.Detection.Enabled,
		"websocket": s.wsHub != nil && s.config.WebSocket.Enabled,
		"export":    s.exporter != nil && s.config.Export.Enabled,
	}
	if s.recognizer != nil {
		info["recognizer"] = map[string]interface{}{
			"model": s.config.Recognizer.ModelName,
			"state": s.recognizer.State().String(),
		}
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := s.detect(r, req)
	if err != nil {
		s.handleDetectError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDetectResponse(result))
}

func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := s.detect(r, req)
	if err != nil {
		s.handleDetectError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, redactResponse{
		detectResponse: toDetectResponse(result),
		Redacted:       export.RedactText(req.Text, result.Entities),
	})
}

// detect routes the request through the document's session so a newer request
// for the same document supersedes an older in-flight one.
func (s *Server) detect(r *http.Request, req detectRequest) (*pipeline.Result, error) {
	return s.session(req.DocumentID).Detect(r.Context(), req.Text)
}

func (s *Server) handleDetectError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrSuperseded) {
		s.writeError(w, http.StatusConflict, "superseded by a newer request for this document")
		return
	}
	s.logger.Error("Detection failed", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "detection failed")
}

func toDetectResponse(result *pipeline.Result) detectResponse {
	entities := result.Entities
	if entities == nil {
		entities = []entity.Entity{}
	}
	return detectResponse{
		Entities:   entities,
		Degraded:   result.Degraded,
		Generation: result.Generation,
		DurationMS: float64(result.Duration.Microseconds()) / 1000,
		CacheHit:   result.CacheHit,
	}
}

func (s *Server) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	if s.recognizer == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"state": "disabled"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"state": s.recognizer.State().String(),
		"model": s.config.Recognizer.ModelName,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sessions := len(s.sessions)
	s.mu.Unlock()

	stats := map[string]interface{}{
		"uptime":   time.Since(s.startTime).String(),
		"sessions": sessions,
	}
	if s.wsHub != nil {
		stats["websocket"] = s.wsHub.GetStats()
	}
	if s.recognizer != nil {
		stats["recognizer_state"] = s.recognizer.State().String()
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	ruleSet, err := s.rulesStore.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list rules", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}
	if ruleSet == nil {
		ruleSet = []rules.Rule{}
	}
	s.writeJSON(w, http.StatusOK, ruleSet)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule rules.Rule
	if !s.decodeBody(w, r, &rule) {
		return
	}

	if err := s.rulesStore.Create(r.Context(), &rule); err != nil {
		if rule.Validate() != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("Failed to create rule", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}
	s.writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ruleID(w, r)
	if !ok {
		return
	}

	rule, err := s.rulesStore.Get(r.Context(), id)
	if err != nil {
		s.handleRuleError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ruleID(w, r)
	if !ok {
		return
	}

	var rule rules.Rule
	if !s.decodeBody(w, r, &rule) {
		return
	}
	rule.ID = id

	if err := s.rulesStore.Update(r.Context(), &rule); err != nil {
		if rule.Validate() != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.handleRuleError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ruleID(w, r)
	if !ok {
		return
	}

	if err := s.rulesStore.Delete(r.Context(), id); err != nil {
		s.handleRuleError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ruleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleRuleError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, rules.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("rule %d not found", id))
		return
	}
	s.logger.Error("Rules store error", zap.Int64("rule_id", id), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "rules store error")
}

// exportRequest is the body of POST /v1/export.
type exportRequest struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" || req.DocumentID == "" {
		s.writeError(w, http.StatusBadRequest, "text and document_id are required")
		return
	}

	result, err := s.detect(r, detectRequest{Text: req.Text, DocumentID: req.DocumentID})
	if err != nil {
		s.handleDetectError(w, err)
		return
	}

	name := fmt.Sprintf("%s-%d.parquet", req.DocumentID, time.Now().Unix())
	path := filepath.Join(s.config.Export.OutputDir, name)
	if err := s.exporter.WriteParquet(path, req.DocumentID, result.Entities); err != nil {
		s.logger.Error("Annotation export failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":    path,
		"records": len(result.Entities),
	})
}
