package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"leadcrm/internal/artifact"
	"leadcrm/internal/audit"
	consenthandler "leadcrm/internal/consent/handler"
	consentservice "leadcrm/internal/consent/service"
	consentstore "leadcrm/internal/consent/store"
	"leadcrm/internal/lifecycle/anonymize"
	"leadcrm/internal/lifecycle/collector"
	"leadcrm/internal/lifecycle/deletion"
	lifecyclehandler "leadcrm/internal/lifecycle/handler"
	lifecycleservice "leadcrm/internal/lifecycle/service"
	lifecyclestore "leadcrm/internal/lifecycle/store"
	"leadcrm/internal/subject/registry"
	subjectstore "leadcrm/internal/subject/store"
)

// syncScheduler executes admitted requests inline so scenarios observe
// terminal states without polling.
type syncScheduler struct {
	target *lifecycleservice.Service
}

func (s *syncScheduler) Enqueue(requestID string) error {
	return s.target.Execute(context.Background(), requestID)
}

// TestContext holds the in-process server and state between test steps.
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte
	RequestID        string

	server   *httptest.Server
	subjects *subjectstore.InMemoryStore
	consents *consentstore.InMemoryStore
	graph    *registry.Registry
}

// NewTestContext creates a test context backed by a fresh in-process server.
func NewTestContext() *TestContext {
	tc := &TestContext{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	tc.Reset()
	return tc
}

// Reset rebuilds the server and all in-memory state for the next scenario.
func (tc *TestContext) Reset() {
	tc.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tc.subjects = subjectstore.New()
	tc.consents = consentstore.New()
	requests := lifecyclestore.New()
	artifacts := artifact.NewMemory()
	audits := audit.NewInMemoryStore()
	auditor := audit.NewPublisher(audits)

	consentSvc := consentservice.NewService(tc.consents, auditor, log)

	tc.graph = registry.New(tc.subjects, tc.consents, log)
	coll := collector.New(tc.graph, audits, log)
	coordinator := deletion.NewCoordinator(
		tc.graph,
		deletion.NewMemoryUnitOfWork(tc.subjects, tc.consents),
		anonymize.NewEngine(),
		30*24*time.Hour,
		log,
	)
	signer := artifact.NewURLSigner("e2e-signing-key", "http://leadcrm.test")

	sched := &syncScheduler{}
	svc := lifecycleservice.NewService(
		requests, coll, coordinator, artifacts, signer, auditor,
		24*time.Hour, log,
		lifecycleservice.WithScheduler(sched),
	)
	sched.target = svc

	r := chi.NewRouter()
	consenthandler.New(consentSvc, log).Register(r)
	lifecyclehandler.New(svc, log).Register(r)

	tc.server = httptest.NewServer(r)
	tc.BaseURL = tc.server.URL
	tc.LastResponse = nil
	tc.LastResponseBody = nil
	tc.RequestID = ""
}

// Close shuts down the in-process server.
func (tc *TestContext) Close() {
	if tc.server != nil {
		tc.server.Close()
		tc.server = nil
	}
}

// POST makes a POST request and stores the response
func (tc *TestContext) POST(path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), "POST", tc.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequestWithContext(context.Background(), "GET", tc.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a field from the JSON response
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}
	return value, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}

	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err == nil {
		if _, ok := data[text]; ok {
			return true
		}
	}
	return false
}
