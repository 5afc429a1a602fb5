package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/infra/logging"
	"coldmail-copywriter/internal/infra/metrics"
	"coldmail-copywriter/internal/infra/redis"
	"coldmail-copywriter/internal/usecase"
)

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	// multipart framing needs some headroom over the file itself
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, s.log, fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidArgument))
		return
	}
	defer file.Close()

	res, err := s.files.Upload(r.Context(), hdr.Filename, file)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, fileResponse{
		ID:           res.File.ID,
		OriginalName: res.File.OriginalName,
		Headers:      res.File.Headers,
		Columns:      res.File.Columns,
		TotalRows:    res.File.TotalRows,
		Preview:      res.Preview,
	})
}

func (s *Server) sampleFile(w http.ResponseWriter, _ *http.Request) {
	b, err := s.files.SampleCSV()
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sample-prospects.csv"`)
	_, _ = w.Write(b)
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.files.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, fileResponse{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		Headers:      f.Headers,
		Columns:      f.Columns,
		TotalRows:    f.TotalRows,
	})
}

type startJobRequest struct {
	FileID   string             `json:"fileId"`
	Settings *model.JobSettings `json:"settings"`
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.log, fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument))
		return
	}
	if req.FileID == "" {
		writeError(w, s.log, fmt.Errorf("%w: fileId is required", domain.ErrInvalidArgument))
		return
	}
	if req.Settings == nil {
		writeError(w, s.log, fmt.Errorf("%w: settings are required", domain.ErrInvalidArgument))
		return
	}

	res, err := s.jobs.Start(r.Context(), req.FileID, *req.Settings)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	status := http.StatusCreated
	if res.Reused {
		status = http.StatusOK
	}
	writeJSON(w, status, struct {
		Job    jobResponse `json:"job"`
		Reused bool        `json:"reused"`
	}{toJobResponse(res.Job), res.Reused})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := s.jobs.List(r.Context(), limit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	items := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j))
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pauseJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.Pause(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j))
}

func (s *Server) resumeJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j))
}

func (s *Server) jobRows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	rows, err := s.jobs.Rows(r.Context(), chi.URLParam(r, "id"), offset, limit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	items := make([]rowResponse, 0, len(rows))
	for _, p := range rows {
		items = append(items, toRowResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "offset": offset})
}

func (s *Server) downloadJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// fail before headers go out for unknown jobs
	if _, err := s.jobs.Get(r.Context(), id); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="job-%s.csv"`, id))
	if err := s.export.WriteCSV(r.Context(), id, w); err != nil {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("job_id", id).Msg("export failed mid-stream")
	}
}

func (s *Server) generateSingle(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil {
		ok, err := s.limiter.Allow(r.Context(), redis.SingleCopyKey(clientID(r)), s.opts.SingleLimit, s.opts.SingleWindow)
		if err != nil {
			l := logging.With(r.Context(), s.log)
			l.Warn().Err(err).Msg("rate limiter unavailable; allowing request")
		} else if !ok {
			metrics.IncRateLimitTriggered()
			writeError(w, s.log, domain.ErrRateLimited)
			return
		}
	}

	var req usecase.SingleRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, s.log, fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument))
		return
	}
	res, err := s.single.Generate(r.Context(), req)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// clientID keys the rate limiter: token subject when present, else the remote IP.
func clientID(r *http.Request) string {
	if c := claimsFrom(r.Context()); c != nil && c.Subject != "" {
		return "sub:" + c.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
