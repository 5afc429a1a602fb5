package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/usecase"
)

var (
	jobFile     string
	jobSettings string
	jobWait     bool
	jobPoll     time.Duration
	jobOut      string

	exportJobID string
	exportOut   string
)

var startJobCmd = &cobra.Command{
	Use:   "start-job",
	Short: "Upload a prospect file and generate copy for every row",
	Long: `Upload a CSV prospect list and start a generation job for it.

The settings file is the JSON body the API accepts as "settings":
  {"valueProp": "...", "callToAction": "...", "tone": "Friendly",
   "length": "Medium", "followUpCount": 2}

With --wait (the default) rows run in this process and the command returns
once the job completes. --out then writes the finished CSV.

Examples:
  coldmail start-job --file leads.csv --settings settings.json --out copy.csv
  coldmail start-job --file leads.csv --settings settings.json --wait=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var settings model.JobSettings
		if err := readJSON(jobSettings, &settings); err != nil {
			return err
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()
		a.workers.Start(ctx)
		defer a.workers.Stop()
		defer a.jobs.Close()

		f, err := os.Open(jobFile)
		if err != nil {
			return err
		}
		up, err := a.files.Upload(ctx, filepath.Base(jobFile), f)
		f.Close()
		if err != nil {
			var rv *usecase.RowValidationError
			if errors.As(err, &rv) {
				for _, issue := range rv.Issues {
					fmt.Fprintf(cmd.ErrOrStderr(), "row %d: missing %v\n", issue.RowIndex, issue.MissingRequired)
				}
			}
			return err
		}

		res, err := a.jobs.Start(ctx, up.File.ID, settings)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.Reused {
			fmt.Fprintf(out, "reusing job %s for file %s\n", res.Job.ID, up.File.ID)
		} else {
			fmt.Fprintf(out, "started job %s: %d rows\n", res.Job.ID, res.Job.TotalRows)
		}
		if !jobWait {
			return nil
		}

		job, err := waitForJob(cmd, a.jobs, res.Job.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "job %s %s: %d/%d rows, %d errors\n",
			job.ID, job.Status, job.ProcessedRows, job.TotalRows, job.ErrorCount)
		if jobOut == "" {
			return nil
		}
		return exportTo(cmd, a.export, job.ID, jobOut)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the generated copy of a job as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()
		return exportTo(cmd, a.export, exportJobID, exportOut)
	},
}

func init() {
	startJobCmd.Flags().StringVar(&jobFile, "file", "", "CSV prospect list")
	startJobCmd.Flags().StringVar(&jobSettings, "settings", "", "JSON file with the job settings")
	startJobCmd.Flags().BoolVar(&jobWait, "wait", true, "process rows here and wait for the job to finish")
	startJobCmd.Flags().DurationVar(&jobPoll, "poll", 2*time.Second, "progress poll interval")
	startJobCmd.Flags().StringVar(&jobOut, "out", "", "write the finished CSV here (- for stdout)")
	_ = startJobCmd.MarkFlagRequired("file")
	_ = startJobCmd.MarkFlagRequired("settings")

	exportCmd.Flags().StringVar(&exportJobID, "job", "", "job ID")
	exportCmd.Flags().StringVar(&exportOut, "out", "-", "output file (- for stdout)")
	_ = exportCmd.MarkFlagRequired("job")

	rootCmd.AddCommand(startJobCmd, exportCmd)
}

func waitForJob(cmd *cobra.Command, jobs usecase.JobUseCase, id string) (*model.Job, error) {
	ctx := cmd.Context()
	t := time.NewTicker(jobPoll)
	defer t.Stop()
	last := -1
	for {
		job, err := jobs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Done() {
			return job, nil
		}
		if job.ProcessedRows != last {
			last = job.ProcessedRows
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d/%d rows\n", job.Status, job.ProcessedRows, job.TotalRows)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func exportTo(cmd *cobra.Command, export usecase.ExportUseCase, jobID, path string) error {
	var w io.Writer = cmd.OutOrStdout()
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := export.WriteCSV(cmd.Context(), jobID, w); err != nil {
		return fmt.Errorf("export job %s: %w", jobID, err)
	}
	if path != "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	}
	return nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
