// File: internal/usecase/export_uc.go
package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/copywriter"
	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/domain/ports/repository"
	"coldmail-copywriter/internal/infra/logging"
)

// Compile-time check
var _ ExportUseCase = (*exportUC)(nil)

const initialParagraphCols = 4

type ExportUseCase interface {
	// WriteCSV writes the original upload columns followed by the generated copy, one line per row.
	WriteCSV(ctx context.Context, jobID string, w io.Writer) error
}

type exportUC struct {
	files     repository.FileRepository
	jobs      repository.JobRepository
	prospects repository.ProspectRepository
	log       *zerolog.Logger
}

func NewExportUseCase(files repository.FileRepository, jobs repository.JobRepository, prospects repository.ProspectRepository, logger *zerolog.Logger) *exportUC {
	compLog := logger.With().Str("component", "ExportUC").Logger()
	return &exportUC{files: files, jobs: jobs, prospects: prospects, log: &compLog}
}

func (u *exportUC) WriteCSV(ctx context.Context, jobID string, w io.Writer) error {
	defer logging.TraceDuration(u.log, "ExportUC.WriteCSV")()

	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return err
	}
	file, err := u.files.FindByID(ctx, repository.NoTX, job.FileID)
	if err != nil {
		return fmt.Errorf("file %s: %w", job.FileID, err)
	}
	rows, err := u.prospects.ListByJob(ctx, repository.NoTX, jobID, 0, 0)
	if err != nil {
		return err
	}

	followUps := 0
	if job.Settings != nil {
		followUps = clampFollowUps(job.Settings.FollowUpCount)
	}
	fields := exportFields(file.Headers, followUps)

	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(fields); err != nil {
		return err
	}
	for _, p := range rows {
		values := exportValues(p, followUps)
		rec := make([]string, len(fields))
		for i, f := range fields {
			if v, ok := values[f]; ok {
				rec[i] = v
			} else {
				rec[i] = p.OriginalRow[f]
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func clampFollowUps(n int) int {
	switch {
	case n < 0:
		return 0
	case n > model.MaxFollowUps:
		return model.MaxFollowUps
	}
	return n
}

// followUpParagraphCols is how many paragraph columns follow-up i gets.
func followUpParagraphCols(i, total int) int {
	switch {
	case i == 1 || i == 2:
		return 3
	case i == 3 && total >= 4:
		return 3
	default:
		return 2
	}
}

func exportFields(headers []string, followUps int) []string {
	extra := []string{"first_copy_subject", "first_copy"}
	for p := 1; p <= initialParagraphCols; p++ {
		extra = append(extra, fmt.Sprintf("first_copy_p%d", p))
	}
	for i := 1; i <= followUps; i++ {
		extra = append(extra, fmt.Sprintf("followup_%d_subject", i), fmt.Sprintf("followup_%d_email_body", i))
		for p := 1; p <= followUpParagraphCols(i, followUps); p++ {
			extra = append(extra, fmt.Sprintf("followup_%d_email_body_p%d", i, p))
		}
	}

	seen := make(map[string]bool, len(headers)+len(extra))
	out := make([]string, 0, len(headers)+len(extra))
	for _, h := range append(append([]string{}, headers...), extra...) {
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}

func exportValues(p *model.Prospect, followUps int) map[string]string {
	v := map[string]string{}
	failed := p.Status == model.ProspectStatusFailed

	subject := strings.TrimSpace(p.Subject)
	if subject == "" && failed {
		subject = model.ContextUnavailableSubject
	}
	v["first_copy_subject"] = subject

	full := fullEmail(p)
	v["first_copy"] = full
	parts := copywriter.MergeParagraphs(full, initialParagraphCols)
	for i := 1; i <= initialParagraphCols; i++ {
		v[fmt.Sprintf("first_copy_p%d", i)] = at(parts, i-1)
	}

	for i := 1; i <= followUps; i++ {
		var fu model.Email
		if i-1 < len(p.FollowUps) {
			fu = p.FollowUps[i-1]
		}
		body := strings.TrimSpace(fu.Body)
		v[fmt.Sprintf("followup_%d_subject", i)] = strings.TrimSpace(fu.Subject)
		v[fmt.Sprintf("followup_%d_email_body", i)] = copywriter.NormalizeLineBreaks(body)
		maxP := followUpParagraphCols(i, followUps)
		fuParts := copywriter.MergeParagraphs(body, maxP)
		for j := 1; j <= maxP; j++ {
			v[fmt.Sprintf("followup_%d_email_body_p%d", i, j)] = at(fuParts, j-1)
		}
	}
	return v
}

// fullEmail is the stored body, or the row error for failed rows.
func fullEmail(p *model.Prospect) string {
	body := strings.TrimSpace(p.EmailBody)
	errText := strings.TrimSpace(p.Error)
	if (p.Status == model.ProspectStatusFailed || body == "") && errText != "" {
		return errText
	}
	return copywriter.NormalizeLineBreaks(body)
}

func at(ss []string, i int) string {
	if i < len(ss) {
		return ss[i]
	}
	return ""
}
