package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/config"
	"github.com/TECHINNNNNNNN/syntaxvoice/app/llm"
	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"
	"github.com/TECHINNNNNNNN/syntaxvoice/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	testSecret        = "test-secret"
	testIssuer        = "syntaxvoice"
	testWebhookSecret = "whsec_test"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	_, _ = io.Copy(io.Discard, audio)
	return f.text, f.err
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// sliceStream yields fragments and then err (io.EOF when nil). onRecv runs
// before every Recv with the index of the fragment about to be returned.
type sliceStream struct {
	fragments []string
	err       error
	onRecv    func(i int)
	i         int
	closed    bool
}

func (s *sliceStream) Recv() (string, error) {
	if s.onRecv != nil {
		s.onRecv(s.i)
	}
	if s.i < len(s.fragments) {
		f := s.fragments[s.i]
		s.i++
		return f, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

type fakeGenerator struct {
	mu        sync.Mutex
	fragments []string
	startErr  error
	streamErr error
	onRecv    func(i int)
	calls     int
	lastInput []llm.Message
}

func (g *fakeGenerator) Stream(_ context.Context, messages []llm.Message) (llm.FragmentStream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastInput = messages
	if g.startErr != nil {
		return nil, g.startErr
	}
	return &sliceStream{fragments: g.fragments, err: g.streamErr, onRecv: g.onRecv}, nil
}

type fakeBilling struct {
	customerID string
	url        string
	err        error
	created    int
	lastCustID string
}

func (b *fakeBilling) CreateCustomer(context.Context, models.User) (string, error) {
	b.created++
	return b.customerID, nil
}

func (b *fakeBilling) CheckoutURL(_ context.Context, customerID string) (string, error) {
	b.lastCustID = customerID
	return b.url + "/checkout", b.err
}

func (b *fakeBilling) PortalURL(_ context.Context, customerID string) (string, error) {
	b.lastCustID = customerID
	return b.url + "/portal", b.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.UsageEvent
	err    error
}

func (p *fakePublisher) PublishUsage(_ context.Context, ev models.UsageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type harness struct {
	t           *testing.T
	cfg         *config.Config
	store       *memoryStore
	transcriber *fakeTranscriber
	generator   *fakeGenerator
	billing     *fakeBilling
	events      *fakePublisher
	issuer      *auth.Issuer
	router      *gin.Engine
}

func newHarness(t *testing.T, freeLimit int) *harness {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{CORSOrigins: []string{"http://localhost:5173"}},
		Quota:  config.QuotaConfig{FreeMonthlyLimit: freeLimit},
		Stripe: config.StripeConfig{WebhookSecret: testWebhookSecret},
	}
	issuer, err := auth.NewIssuer(testSecret, testIssuer, time.Hour)
	require.NoError(t, err)
	verifier, err := auth.NewVerifier(testSecret, testIssuer)
	require.NoError(t, err)

	h := &harness{
		t:           t,
		cfg:         cfg,
		store:       newMemoryStore(),
		transcriber: &fakeTranscriber{text: "add a login button"},
		generator:   &fakeGenerator{fragments: []string{"<task>", "Add a login ", "button</task>"}},
		billing:     &fakeBilling{customerID: "cus_123", url: "https://stripe.test"},
		events:      &fakePublisher{},
		issuer:      issuer,
	}
	srv := NewServer(cfg, Deps{
		Store:       h.store,
		Transcriber: h.transcriber,
		Generator:   h.generator,
		Billing:     h.billing,
		Events:      h.events,
		Issuer:      issuer,
		Verifier:    verifier,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:         func() time.Time { return testNow },
	})
	h.router = srv.Router()
	return h
}

func (h *harness) token(u models.User) string {
	h.t.Helper()
	token, err := h.issuer.Issue(u.ID, u.Email)
	require.NoError(h.t, err)
	return token
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.router.ServeHTTP(resp, req)
	return resp
}

func (h *harness) doJSON(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return h.do(req)
}

func transcribeRequest(t *testing.T, token, projectID string, withAudio bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if withAudio {
		fw, err := w.CreateFormFile("audio", "note.webm")
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake audio bytes"))
		require.NoError(t, err)
	}
	if projectID != "" {
		require.NoError(t, w.WriteField("projectId", projectID))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/transcribe", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), v), "body: %s", resp.Body.String())
}

var errUpstream = errors.New("upstream unavailable")
