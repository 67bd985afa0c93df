package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/magicscraper/internal/config"
	"github.com/nao1215/magicscraper/internal/input"
)

// newCompanySite serves a homepage linking to a contact page.
func newCompanySite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Acme</title></head><body>
<h1>Acme S.r.l.</h1><p>We build anvils in Milano.</p>
<a href="/contatti">Contatti</a></body></html>`)
	})
	mux.HandleFunc("/contatti", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><p>Tel. +39 02 1234567</p><p>info@acme.it</p></body></html>`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// newFakeLLM answers with the homepage fields first and the contact fields
// on the second call.
func newFakeLLM(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	replies := []string{
		`{"phone_number":"Not found","email":"Not found","company_overview":"Anvil maker","headquarters_location":"Milano"}`,
		`{"phone_number":"+39 02 1234567","email":"info@acme.it","company_overview":"Not found","headquarters_location":"Not found"}`,
	}
	calls := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer gsk_test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		n := int(calls.Add(1)) - 1
		reply := replies[min(n, len(replies)-1)]
		content, _ := json.Marshal(reply)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"chatcmpl-%d","object":"chat.completion","created":1,"model":"qwen-qwq-32b",`+
			`"choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}],`+
			`"usage":{"prompt_tokens":900,"completion_tokens":100,"total_tokens":1000}}`, n, content)
	}))
	t.Cleanup(server.Close)
	return server, calls
}

func writeInput(t *testing.T, dir string, urls ...string) string {
	t.Helper()

	path := filepath.Join(dir, "companies.csv")
	content := "name,url\n"
	for i, u := range urls {
		content += fmt.Sprintf("company %d,%s\n", i, u)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// TestRunCmd tests a full run against a local site and a fake LLM endpoint.
func TestRunCmd(t *testing.T) {
	t.Run("extracts fields and writes the results table", func(t *testing.T) {
		dir := isolate(t)
		t.Setenv(config.EnvAPIKey, "gsk_test")

		site := newCompanySite(t)
		llmServer, calls := newFakeLLM(t)
		inputPath := writeInput(t, dir, site.URL)
		outputPath := filepath.Join(dir, "out", "company_info.csv")

		out, err := executeRoot(t, "run", inputPath,
			"--no-tui",
			"--base-url", llmServer.URL,
			"-o", outputPath,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, out)
		}

		for _, want := range []string{
			"Loaded 1 URLs",
			"Crawling: " + site.URL + " (1/1)",
			"Processed 1 of 1 URLs (100%) [complete] tokens: 2000",
			"Results written to " + outputPath,
			"SCRAPING COMPLETE",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 LLM calls, got %d", calls.Load())
		}

		f, err := os.Open(outputPath)
		if err != nil {
			t.Fatalf("results file not written: %v", err)
		}
		defer f.Close()
		rows, err := csv.NewReader(f).ReadAll()
		if err != nil {
			t.Fatal(err)
		}
		wantRows := [][]string{
			{"original_url", "phone_number", "email", "company_overview", "headquarters_location"},
			{site.URL, "+39 02 1234567", "info@acme.it", "Anvil maker", "Milano"},
		}
		if fmt.Sprint(rows) != fmt.Sprint(wantRows) {
			t.Errorf("expected rows %v, got %v", wantRows, rows)
		}
	})

	t.Run("markdown report to a file", func(t *testing.T) {
		dir := isolate(t)
		t.Setenv(config.EnvAPIKey, "gsk_test")

		site := newCompanySite(t)
		llmServer, _ := newFakeLLM(t)
		inputPath := writeInput(t, dir, site.URL)
		reportPath := filepath.Join(dir, "report.md")

		out, err := executeRoot(t, "run", inputPath,
			"--no-tui",
			"--base-url", llmServer.URL,
			"-f", "email",
			"--markdown",
			"--report", reportPath,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, out)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("report not written: %v", err)
		}
		if !strings.Contains(string(data), "# Company Info Report") {
			t.Errorf("unexpected report:\n%s", data)
		}
		if _, err := os.Stat(filepath.Join(dir, config.DefaultOutputFile)); err != nil {
			t.Errorf("expected default results file: %v", err)
		}
	})

	t.Run("missing API key", func(t *testing.T) {
		dir := isolate(t)
		inputPath := writeInput(t, dir, "https://example.com")

		_, err := executeRoot(t, "run", inputPath, "--no-tui")
		if !errors.Is(err, config.ErrMissingAPIKey) {
			t.Errorf("expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("input without url column", func(t *testing.T) {
		dir := isolate(t)
		t.Setenv(config.EnvAPIKey, "gsk_test")

		path := filepath.Join(dir, "bad.csv")
		if err := os.WriteFile(path, []byte("name,website\nacme,acme.it\n"), 0600); err != nil {
			t.Fatal(err)
		}

		_, err := executeRoot(t, "run", path, "--no-tui")
		if !errors.Is(err, input.ErrNoURLColumn) {
			t.Errorf("expected ErrNoURLColumn, got %v", err)
		}
	})

	t.Run("conflicting report formats", func(t *testing.T) {
		dir := isolate(t)
		t.Setenv(config.EnvAPIKey, "gsk_test")
		inputPath := writeInput(t, dir, "https://example.com")

		_, err := executeRoot(t, "run", inputPath, "--json", "--markdown")
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("no input file", func(t *testing.T) {
		isolate(t)
		t.Setenv(config.EnvAPIKey, "gsk_test")

		_, err := executeRoot(t, "run")
		if !errors.Is(err, config.ErrNoInput) {
			t.Errorf("expected ErrNoInput, got %v", err)
		}
	})
}
