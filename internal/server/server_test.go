package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/magicscraper/internal/config"
	"github.com/nao1215/magicscraper/internal/metrics"
	"github.com/nao1215/magicscraper/internal/model"
	"github.com/nao1215/magicscraper/internal/pipeline"
)

var testSettings = Settings{
	Model:           "qwen-qwq-32b",
	PricePerMillion: 0.39,
	Fields:          []string{"phone_number", "email"},
}

// instantRunner fills every field with a value derived from the URL.
func instantRunner(_ context.Context, urls, fields []string, onEvent func(pipeline.Event)) (*model.Batch, error) {
	batch := &model.Batch{Fields: fields}
	for i, u := range urls {
		onEvent(pipeline.Event{Kind: pipeline.EventStarted, Index: i, Total: len(urls), URL: u, Processed: i})
		r := model.NewResult(u, fields)
		for _, f := range fields {
			r.Record[f] = f + "@" + u
		}
		r.TokensUsed = 100
		r.Visited = []string{u}
		r.Finish()
		batch.Results = append(batch.Results, r)
		onEvent(pipeline.Event{Kind: pipeline.EventCompleted, Index: i, Total: len(urls), URL: u, Result: r, Processed: i + 1, TotalTokens: 100 * (i + 1)})
	}
	return batch, nil
}

// blockingRunner waits for cancellation.
func blockingRunner(ctx context.Context, urls, fields []string, onEvent func(pipeline.Event)) (*model.Batch, error) {
	onEvent(pipeline.Event{Kind: pipeline.EventStarted, Total: len(urls), URL: urls[0]})
	<-ctx.Done()
	return &model.Batch{Fields: fields}, ctx.Err()
}

func newTestServer(t *testing.T, runner Runner, opts ...Option) (*Server, *httptest.Server, *http.Client) {
	t.Helper()

	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	s, err := New(runner, testSettings, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return s, srv, client
}

func uploadBody(t *testing.T, csvData string, fields []string, custom string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if csvData != "" {
		fw, err := mw.CreateFormFile("file", "companies.csv")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(fw, csvData); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range fields {
		if err := mw.WriteField("fields", f); err != nil {
			t.Fatal(err)
		}
	}
	if custom != "" {
		if err := mw.WriteField("custom_fields", custom); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func postJob(t *testing.T, client *http.Client, base, csvData string, fields []string, custom string) *http.Response {
	t.Helper()

	body, contentType := uploadBody(t, csvData, fields, custom)
	resp, err := client.Post(base+"/jobs", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func get(t *testing.T, client *http.Client, u string) (*http.Response, string) {
	t.Helper()

	resp, err := client.Get(u)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return resp, string(body)
}

func jobIDFrom(t *testing.T, resp *http.Response) string {
	t.Helper()

	if resp.StatusCode != http.StatusSeeOther {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 303, got %d: %s", resp.StatusCode, body)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/jobs/") {
		t.Fatalf("unexpected redirect %q", loc)
	}
	return strings.TrimPrefix(loc, "/jobs/")
}

func waitJob(t *testing.T, s *Server, id string) *Job {
	t.Helper()

	j, ok := s.Store().Get(id)
	if !ok {
		t.Fatalf("job %s not stored", id)
	}
	select {
	case <-j.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
	return j
}

// TestIndex tests the upload form.
func TestIndex(t *testing.T) {
	t.Parallel()

	_, srv, client := newTestServer(t, instantRunner)

	resp, body := get(t, client, srv.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	for _, want := range []string{
		"qwen-qwq-32b",
		"$0.3900 per 1M tokens",
		`value="phone_number" checked`,
		"Phone Number",
		`enctype="multipart/form-data"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
	if strings.Contains(body, "http-equiv") {
		t.Error("expected no auto refresh on the form")
	}
}

// TestCreateJob tests a complete job through the browser routes.
func TestCreateJob(t *testing.T) {
	t.Parallel()

	s, srv, client := newTestServer(t, instantRunner)

	resp := postJob(t, client, srv.URL, "name,url\nAcme,acme.it\nBar,https://bar.it\n", []string{"phone_number", "email"}, "")
	resp.Body.Close()
	id := jobIDFrom(t, resp)
	j := waitJob(t, s, id)

	if !reflect.DeepEqual(j.URLs, []string{"acme.it", "https://bar.it"}) {
		t.Errorf("unexpected urls %v", j.URLs)
	}

	t.Run("status", func(t *testing.T) {
		t.Parallel()

		resp, body := get(t, client, srv.URL+"/jobs/"+id+"/status")
		if resp.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
		}
		var status JobStatus
		if err := json.Unmarshal([]byte(body), &status); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if status.State != JobDone || status.Processed != 2 || status.Percent != 100 || status.TotalTokens != 200 {
			t.Errorf("unexpected status %+v", status)
		}
		if status.FileName != "companies.csv" {
			t.Errorf("unexpected file name %q", status.FileName)
		}
	})

	t.Run("page", func(t *testing.T) {
		t.Parallel()

		_, body := get(t, client, srv.URL+"/jobs/"+id)
		for _, want := range []string{
			"Scraping complete.",
			"Processed 2 of 2 URLs",
			"acme.it",
			"Fill rates",
			"100.0%",
			"/jobs/" + id + "/results.csv",
			"Original Url",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("expected page to contain %q", want)
			}
		}
		if strings.Contains(body, "http-equiv") {
			t.Error("expected no refresh on a finished job")
		}
	})

	t.Run("csv download", func(t *testing.T) {
		t.Parallel()

		resp, body := get(t, client, srv.URL+"/jobs/"+id+"/results.csv")
		if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="company_info.csv"` {
			t.Errorf("unexpected disposition %q", got)
		}
		want := "original_url,phone_number,email\n" +
			"acme.it,phone_number@acme.it,email@acme.it\n" +
			"https://bar.it,phone_number@https://bar.it,email@https://bar.it\n"
		if body != want {
			t.Errorf("expected\n%s\ngot\n%s", want, body)
		}
	})

	t.Run("markdown report", func(t *testing.T) {
		t.Parallel()

		resp, body := get(t, client, srv.URL+"/jobs/"+id+"/report.md")
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/markdown") {
			t.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
		}
		if !strings.Contains(body, "# Company Info Report") || !strings.Contains(body, "qwen-qwq-32b") {
			t.Errorf("unexpected report\n%s", body)
		}
	})

	t.Run("listed on the form", func(t *testing.T) {
		t.Parallel()

		_, body := get(t, client, srv.URL+"/")
		if !strings.Contains(body, "/jobs/"+id) {
			t.Error("expected job link on the form")
		}
	})
}

// TestCreateJobErrors tests rejected uploads.
func TestCreateJobErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		csv       string
		fields    []string
		custom    string
		preflight func() error
		want      string
	}{
		{
			name:      "missing api key",
			csv:       "url\nacme.it\n",
			fields:    []string{"email"},
			preflight: func() error { return config.ErrMissingAPIKey },
			want:      "Missing API key",
		},
		{
			name: "no fields",
			csv:  "url\nacme.it\n",
			want: "No fields selected",
		},
		{
			name:   "invalid custom field",
			csv:    "url\nacme.it\n",
			fields: []string{"email"},
			custom: "VAT number!",
			want:   "Invalid field name",
		},
		{
			name:   "no url column",
			csv:    "name\nAcme\n",
			fields: []string{"email"},
			want:   "url",
		},
		{
			name:   "no file",
			fields: []string{"email"},
			want:   "No file uploaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var opts []Option
			if tt.preflight != nil {
				opts = append(opts, WithPreflight(tt.preflight))
			}
			s, srv, client := newTestServer(t, instantRunner, opts...)

			resp := postJob(t, client, srv.URL, tt.csv, tt.fields, tt.custom)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
			if !strings.Contains(string(body), tt.want) {
				t.Errorf("expected %q in page, got\n%s", tt.want, body)
			}
			if len(s.Store().List()) != 0 {
				t.Error("expected no job")
			}
		})
	}
}

// TestCancelJob tests stopping a running job.
func TestCancelJob(t *testing.T) {
	t.Parallel()

	s, srv, client := newTestServer(t, blockingRunner)

	resp := postJob(t, client, srv.URL, "url\nacme.it\nbar.it\n", []string{"email"}, "")
	resp.Body.Close()
	id := jobIDFrom(t, resp)

	resp, body := get(t, client, srv.URL+"/jobs/"+id)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `http-equiv="refresh" content="2"`) {
		t.Error("expected auto refresh while running")
	}

	resp, _ = get(t, client, srv.URL+"/jobs/"+id+"/results.csv")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 while running, got %d", resp.StatusCode)
	}

	cancelResp, err := client.Post(srv.URL+"/jobs/"+id+"/cancel", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	cancelResp.Body.Close()
	if cancelResp.StatusCode != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", cancelResp.StatusCode)
	}

	j := waitJob(t, s, id)
	if st := j.Status(); st.State != JobCancelled {
		t.Errorf("expected cancelled, got %+v", st)
	}

	_, body = get(t, client, srv.URL+"/jobs/"+id)
	if !strings.Contains(body, "The job was cancelled.") {
		t.Error("expected cancelled banner")
	}
}

// TestUnknownJob tests routes with an unknown job ID.
func TestUnknownJob(t *testing.T) {
	t.Parallel()

	_, srv, client := newTestServer(t, instantRunner)

	for _, path := range []string{"/jobs/nope", "/jobs/nope/status", "/jobs/nope/results.csv", "/jobs/nope/report.md"} {
		resp, _ := get(t, client, srv.URL+path)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

// TestHealthAndMetrics tests the operational endpoints.
func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	_, srv, client := newTestServer(t, instantRunner, WithMetrics(metrics.New()))

	resp, body := get(t, client, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusOK || body != "ok\n" {
		t.Errorf("unexpected health response %d %q", resp.StatusCode, body)
	}

	_, body = get(t, client, srv.URL+"/metrics")
	if !strings.Contains(body, `magicscraper_http_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Errorf("expected request metric, got\n%s", body)
	}
	if !strings.Contains(body, "magicscraper_jobs_running 0") {
		t.Error("expected jobs gauge")
	}
}

// TestMetricsDisabled tests that /metrics is absent without metrics.
func TestMetricsDisabled(t *testing.T) {
	t.Parallel()

	_, srv, client := newTestServer(t, instantRunner)
	resp, _ := get(t, client, srv.URL+"/metrics")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

// TestSelectedFields tests merging checked and custom fields.
func TestSelectedFields(t *testing.T) {
	t.Parallel()

	got := selectedFields([]string{"email", " phone_number ", "email"}, "VAT_Number, ,email")
	want := []string{"email", "phone_number", "vat_number"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := selectedFields(nil, ""); len(got) != 0 {
		t.Errorf("expected no fields, got %v", got)
	}
}

// TestServe tests serving until the context is cancelled.
func TestServe(t *testing.T) {
	t.Parallel()

	s, err := New(blockingRunner, testSettings, WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
