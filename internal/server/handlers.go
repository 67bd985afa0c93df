package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nao1215/magicscraper/internal/config"
	"github.com/nao1215/magicscraper/internal/input"
	"github.com/nao1215/magicscraper/internal/model"
	"github.com/nao1215/magicscraper/internal/report"
)

type fieldOption struct {
	Name    string
	Checked bool
}

type indexPage struct {
	Settings Settings
	Refresh  int
	Options  []fieldOption
	Custom   string
	Error    string
	Jobs     []JobStatus
}

type jobPage struct {
	Settings  Settings
	Job       JobStatus
	Running   bool
	Refresh   int
	Preview   []string
	MoreURLs  int
	Headers   []string
	Rows      [][]string
	FillRates []model.FieldFillRate
	Summary   *report.Summary
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.renderIndex(w, http.StatusOK, s.settings.Fields, "", "")
}

func (s *Server) renderIndex(w http.ResponseWriter, status int, selected []string, custom, errMsg string) {
	options := make([]fieldOption, 0, len(s.settings.Fields))
	for _, f := range s.settings.Fields {
		options = append(options, fieldOption{Name: f, Checked: slices.Contains(selected, f)})
	}

	jobs := s.store.List()
	statuses := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		statuses = append(statuses, j.Status())
	}

	s.render(w, status, "index.html", indexPage{
		Settings: s.settings,
		Options:  options,
		Custom:   custom,
		Error:    errMsg,
		Jobs:     statuses,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		status := http.StatusBadRequest
		if isUploadTooLarge(err) {
			status = http.StatusRequestEntityTooLarge
		}
		s.renderIndex(w, status, s.settings.Fields, "", "Could not read the upload: "+err.Error())
		return
	}

	custom := strings.TrimSpace(r.FormValue("custom_fields"))
	fields := selectedFields(r.MultipartForm.Value["fields"], custom)

	fail := func(err error) {
		s.renderIndex(w, http.StatusBadRequest, fields, custom, capitalize(err.Error()))
	}

	if err := config.ValidateFields(fields); err != nil {
		fail(err)
		return
	}
	if s.preflight != nil {
		if err := s.preflight(); err != nil {
			fail(err)
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		fail(ErrNoFile)
		return
	}
	defer file.Close()

	urls, err := input.ReadURLs(file)
	if err != nil {
		fail(err)
		return
	}

	job := newJob(filepath.Base(header.Filename), urls, fields, s.settings.Model, s.settings.PricePerMillion)
	s.startJob(job)

	http.Redirect(w, r, "/jobs/"+job.ID, http.StatusSeeOther)
}

// selectedFields returns the checked fields followed by the comma-separated
// custom ones, without duplicates.
func selectedFields(checked []string, custom string) []string {
	fields := make([]string, 0, len(checked))
	add := func(f string) {
		f = strings.TrimSpace(f)
		if f != "" && !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	for _, f := range checked {
		add(f)
	}
	for _, f := range strings.Split(custom, ",") {
		add(strings.ToLower(f))
	}
	return fields
}

func (s *Server) job(w http.ResponseWriter, r *http.Request) (*Job, bool) {
	j, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
	}
	return j, ok
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.job(w, r)
	if !ok {
		return
	}

	status := j.Status()
	page := jobPage{
		Settings: s.settings,
		Job:      status,
		Running:  status.State == JobRunning,
		Preview:  input.Preview(j.URLs, previewRows),
	}
	if page.Running {
		page.Refresh = RefreshSeconds
	}
	page.MoreURLs = len(j.URLs) - len(page.Preview)

	if batch := j.Batch(); batch != nil {
		page.Headers = report.Header(batch.Fields)
		page.Rows = report.Rows(batch)
		page.FillRates = batch.FillRates()
		page.Summary = report.NewSummary(batch)
	}

	s.render(w, http.StatusOK, "job.html", page)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	j, ok := s.job(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(j.Status()); err != nil {
		s.logger.Warn("failed to write job status", "job", j.ID, "error", err)
	}
}

func (s *Server) handleResultsCSV(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, "text/csv; charset=utf-8", report.DownloadName, func(buf *bytes.Buffer, batch *model.Batch) error {
		_, err := report.NewCSVWriter(buf).Write(batch)
		return err
	})
}

func (s *Server) handleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, "text/markdown; charset=utf-8", "", func(buf *bytes.Buffer, batch *model.Batch) error {
		_, err := report.NewMarkdownWriter(buf).Write(batch)
		return err
	})
}

// download writes a finished job's batch. An empty name serves it inline.
func (s *Server) download(w http.ResponseWriter, r *http.Request, contentType, name string, write func(*bytes.Buffer, *model.Batch) error) {
	j, ok := s.job(w, r)
	if !ok {
		return
	}

	batch := j.Batch()
	if batch == nil {
		if j.Running() {
			http.Error(w, ErrJobNotFinished.Error(), http.StatusConflict)
			return
		}
		batch = &model.Batch{Fields: j.Fields}
	}

	var buf bytes.Buffer
	if err := write(&buf, batch); err != nil {
		s.logger.Error("failed to render download", "job", j.ID, "error", err)
		http.Error(w, "failed to render results", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if name != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.job(w, r)
	if !ok {
		return
	}
	j.Cancel()
	s.logger.Info("job cancelled by user", "job", j.ID)
	http.Redirect(w, r, "/jobs/"+j.ID, http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// isUploadTooLarge reports whether err comes from the upload size limit.
func isUploadTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
