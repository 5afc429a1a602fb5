package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/usecase"
)

type errorBody struct {
	Error     string           `json:"error"`
	RowErrors []model.RowIssue `json:"rowErrors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps use case errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		se *domain.ScrapeError
		ce *domain.CompletionError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrMissingColumns):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrMissingActivityContext), errors.As(err, &se):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEmptyCompletion), errors.As(err, &ce):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, log *zerolog.Logger, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		body.Error = "internal error"
	}
	var se *domain.ScrapeError
	if errors.As(err, &se) {
		body.Error = "Not able to read the content for personalization. Please paste activity context instead."
	}
	var rv *usecase.RowValidationError
	if errors.As(err, &rv) {
		body.RowErrors = rv.Issues
	}
	writeJSON(w, status, body)
}

type jobResponse struct {
	ID            string             `json:"id"`
	FileID        string             `json:"fileId"`
	Status        model.JobStatus    `json:"status"`
	TotalRows     int                `json:"totalRows"`
	ProcessedRows int                `json:"processedRows"`
	ErrorCount    int                `json:"errorCount"`
	Settings      *model.JobSettings `json:"settings,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	StartedAt     *time.Time         `json:"startedAt,omitempty"`
	FinishedAt    *time.Time         `json:"finishedAt,omitempty"`
}

func toJobResponse(j *model.Job) jobResponse {
	return jobResponse{
		ID:            j.ID,
		FileID:        j.FileID,
		Status:        j.Status,
		TotalRows:     j.TotalRows,
		ProcessedRows: j.ProcessedRows,
		ErrorCount:    j.ErrorCount,
		Settings:      j.Settings,
		CreatedAt:     j.CreatedAt,
		StartedAt:     j.StartedAt,
		FinishedAt:    j.FinishedAt,
	}
}

type rowResponse struct {
	ID        string               `json:"id"`
	RowIndex  int                  `json:"rowIndex"`
	Status    model.ProspectStatus `json:"status"`
	Error     string               `json:"error,omitempty"`
	FirstName string               `json:"firstName"`
	LastName  string               `json:"lastName"`
	Company   string               `json:"company"`
	Website   string               `json:"website,omitempty"`
	Subject   string               `json:"subject,omitempty"`
	EmailBody string               `json:"emailBody,omitempty"`
	FollowUps []model.Email        `json:"followUps,omitempty"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func toRowResponse(p *model.Prospect) rowResponse {
	return rowResponse{
		ID:        p.ID,
		RowIndex:  p.RowIndex,
		Status:    p.Status,
		Error:     p.Error,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Company:   p.Company,
		Website:   p.Website,
		Subject:   p.Subject,
		EmailBody: p.EmailBody,
		FollowUps: p.FollowUps,
		UpdatedAt: p.UpdatedAt,
	}
}

type fileResponse struct {
	ID           string              `json:"id"`
	OriginalName string              `json:"originalName"`
	Headers      []string            `json:"headers"`
	Columns      model.ColumnMap     `json:"columns"`
	TotalRows    int                 `json:"totalRows"`
	Preview      []map[string]string `json:"preview,omitempty"`
}
