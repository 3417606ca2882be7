package medsenger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"week_notification_agent/internal/domain/messaging"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type capturedRequest struct {
	Path string
	Body map[string]any
}

type fakePlatform struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   map[string]int
}

func (p *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	p.mu.Lock()
	p.requests = append(p.requests, capturedRequest{Path: r.URL.Path, Body: body})
	status := http.StatusOK
	if code, ok := p.status[r.URL.Path]; ok {
		status = code
	}
	p.mu.Unlock()

	w.WriteHeader(status)
	_, _ = w.Write([]byte("ok"))
}

func (p *fakePlatform) captured() []capturedRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]capturedRequest(nil), p.requests...)
}

func TestClient_SendMessageOnly(t *testing.T) {
	platform := &fakePlatform{}
	srv := httptest.NewServer(platform)
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", time.Second, testLogger())
	require.NoError(t, c.Send(context.Background(), 42, "hello", ""))

	reqs := platform.captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, messagePath, reqs[0].Path)
	assert.Equal(t, "secret", reqs[0].Body["api_key"])
	assert.Equal(t, float64(42), reqs[0].Body["contract_id"])
	assert.Equal(t, map[string]any{
		"text":         "hello",
		"only_patient": true,
		"only_doctor":  false,
	}, reqs[0].Body["message"])
}

func TestClient_SendWithInfoMaterials(t *testing.T) {
	platform := &fakePlatform{}
	srv := httptest.NewServer(platform)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, testLogger())
	require.NoError(t, c.Send(context.Background(), 7, "week four", "leaflet-4"))

	reqs := platform.captured()
	require.Len(t, reqs, 2)
	assert.Equal(t, infoMaterialsPath, reqs[1].Path)
	assert.Equal(t, "leaflet-4", reqs[1].Body["materials"])
	assert.Equal(t, float64(7), reqs[1].Body["contract_id"])
}

func TestClient_RejectedMessageFails(t *testing.T) {
	platform := &fakePlatform{status: map[string]int{messagePath: http.StatusBadGateway}}
	srv := httptest.NewServer(platform)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, testLogger())
	err := c.Send(context.Background(), 42, "hello", "leaflet")
	assert.ErrorIs(t, err, messaging.ErrSendFailed)
	assert.Len(t, platform.captured(), 1, "info materials are not sent after a failed message")
}

func TestClient_InfoMaterialsFailureStillDelivers(t *testing.T) {
	platform := &fakePlatform{status: map[string]int{infoMaterialsPath: http.StatusInternalServerError}}
	srv := httptest.NewServer(platform)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, testLogger())
	assert.NoError(t, c.Send(context.Background(), 42, "hello", "leaflet"))
}

func TestClient_UnreachableHostFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, "secret", time.Second, testLogger())
	assert.ErrorIs(t, c.Send(context.Background(), 42, "hello", ""), messaging.ErrSendFailed)
}

func TestClient_ContextCancelStopsSend(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(srv.URL, "secret", time.Minute, testLogger())
	assert.ErrorIs(t, c.Send(ctx, 42, "hello", ""), messaging.ErrSendFailed)
}
