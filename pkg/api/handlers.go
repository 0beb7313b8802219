// pkg/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/tenderops/tender-ingress/pkg/intake"
	"github.com/tenderops/tender-ingress/pkg/model"
	"github.com/tenderops/tender-ingress/pkg/pipeline"
	"github.com/tenderops/tender-ingress/pkg/search"
)

const maxUploadBytes = 32 << 20 // 32 MiB

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Tender Ingress API",
		"version": "1.0.0",
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("Store ping failed", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestResponse struct {
	Status          string `json:"status"`
	RecordsIngested int    `json:"records_ingested"`
	RecordsCleaned  int    `json:"records_cleaned"`
	RecordsSkipped  int    `json:"records_skipped"`
	Message         string `json:"message"`
}

// handleIngest accepts a CSV upload as multipart form field "file" and runs
// the full pipeline over it.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart form upload")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing form file \"file\"")
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	records, err := intake.Decode(payload)
	if err != nil {
		s.logger.Warn("Rejected upload", zap.Error(err))
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.pipeline.Ingest(r.Context(), records)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoRecords) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		stage, _ := pipeline.StageOf(err)
		s.logger.Error("Ingestion failed",
			zap.Stringer("stage", stage),
			zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	s.writeJSON(w, http.StatusOK, ingestResponse{
		Status:          "success",
		RecordsIngested: result.RawCount,
		RecordsCleaned:  result.CleanedCount,
		RecordsSkipped:  result.Skipped,
		Message:         "Data ingested and processed successfully",
	})
}

func (s *Server) handleListTenders(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > s.cfg.MaxListLimit {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	tenders, err := s.store.ListCleaned(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list tenders", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list tenders")
		return
	}
	if tenders == nil {
		tenders = []model.CleanedTender{}
	}

	s.writeJSON(w, http.StatusOK, tenders)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Query   string            `json:"query"`
	Results []model.SearchHit `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	hits, err := s.searcher.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) || errors.Is(err, search.ErrInvalidLimit) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("Search failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if hits == nil {
		hits = []model.SearchHit{}
	}

	s.writeJSON(w, http.StatusOK, searchResponse{
		Query:   req.Query,
		Results: hits,
	})
}

type dataQualityResponse struct {
	TotalChecks int                     `json:"total_checks"`
	Logs        []model.QualityLogEntry `json:"logs"`
}

func (s *Server) handleDataQuality(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.QualityLog(r.Context())
	if err != nil {
		s.logger.Error("Failed to load quality log", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load quality log")
		return
	}
	if entries == nil {
		entries = []model.QualityLogEntry{}
	}

	s.writeJSON(w, http.StatusOK, dataQualityResponse{
		TotalChecks: len(entries),
		Logs:        entries,
	})
}

func (s *Server) handlePipelineHealth(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.store.Health(r.Context())
	if err != nil {
		s.logger.Error("Failed to load health snapshot", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load health snapshot")
		return
	}

	if snapshot == nil {
		s.writeJSON(w, http.StatusOK, model.HealthSnapshot{
			Status: model.StatusNotInitialized,
			Errors: model.Payload{},
		})
		return
	}

	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if _, err := s.pipeline.Validate(r.Context()); err != nil {
		s.logger.Error("Validation failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "validation failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Validation completed",
	})
}
