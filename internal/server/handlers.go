package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/weaveai/weave/internal/enquiry"
	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/internal/qualify"
	"github.com/weaveai/weave/internal/storage"
)

// maxBodyBytes bounds request bodies, including document uploads.
const maxBodyBytes = 8 << 20

func (s *Server) handleEnquiry(w http.ResponseWriter, r *http.Request) {
	var req enquiry.Request
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "message or question is required")
		return
	}
	s.logger.Debug("enquiry request", zap.String("channel", string(req.Channel)), zap.String("prospect", req.Prospect.Name))
	out := s.svc.Enquiries.HandleEnquiry(r.Context(), req)
	s.respondJSON(w, http.StatusOK, out)
}

type answerRequest struct {
	Query string `json:"query"`
	Safe  bool   `json:"safe"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Safe {
		s.respondJSON(w, http.StatusOK, s.svc.Answers.GenerateSafeAnswer(r.Context(), req.Query))
		return
	}
	s.respondJSON(w, http.StatusOK, s.svc.Answers.AnswerWithRetrieval(r.Context(), req.Query))
}

type qualifyRequest struct {
	Data models.EnquiryData `json:"data"`
}

type qualifyResponse struct {
	Verdict   models.Verdict `json:"verdict"`
	RuleIndex int            `json:"rule_index"`
	Rule      string         `json:"rule,omitempty"`
	Reason    string         `json:"reason"`
}

func (s *Server) handleQualify(w http.ResponseWriter, r *http.Request) {
	var req qualifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	d := qualify.Evaluate(req.Data, s.svc.Rules.Rules())
	resp := qualifyResponse{Verdict: d.Verdict, RuleIndex: d.RuleIndex, Reason: d.Reason()}
	if d.Rule != nil {
		resp.Rule = d.Rule.String()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.Store.ListApprovedDocuments(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

type createDocumentRequest struct {
	Name       string `json:"name"`
	Content    string `json:"content"`
	ApprovedBy string `json:"approved_by"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.ApprovedBy == "" {
		s.respondError(w, http.StatusBadRequest, "name and approved_by are required")
		return
	}
	s.logger.Debug("create document request", zap.String("name", req.Name), zap.String("approved_by", req.ApprovedBy))
	docs, err := s.svc.Ingest.ReplaceText(r.Context(), req.Name, req.Content, req.ApprovedBy)
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"documents": docs})
}

func (s *Server) handleArchiveDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("archive document request", zap.String("id", id))
	if err := s.svc.Ingest.ArchiveDocument(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(models.StatusArchived)})
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if !storage.ValidHash(hash) {
		s.respondError(w, http.StatusBadRequest, "invalid content hash")
		return
	}
	data, err := s.svc.Store.GetContent(r.Context(), hash)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.svc.Audit == nil {
		s.respondError(w, http.StatusNotImplemented, "audit backend is not readable")
		return
	}
	id := chi.URLParam(r, "enquiryID")
	entries, err := s.svc.Audit.Entries(r.Context(), id)
	if err != nil {
		s.logger.Error("read audit failed", zap.String("enquiry_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(entries) == 0 {
		s.respondError(w, http.StatusNotFound, "no audit entries for enquiry")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("store request failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
