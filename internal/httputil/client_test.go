package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStandardClient_Timeout(t *testing.T) {
	client := NewStandardClient(3 * time.Second)
	if client.Client.Timeout != 3*time.Second {
		t.Errorf("got timeout %v, want 3s", client.Client.Timeout)
	}

	// zero falls back to the default
	client = NewStandardClient(0)
	if client.Client.Timeout != 10*time.Second {
		t.Errorf("got timeout %v, want 10s", client.Client.Timeout)
	}
}

func TestMockHTTPClient_Get(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"result": "success"}`)

	resp, err := mock.Get("http://example.com/api")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"result": "success"}` {
		t.Errorf("got body %q", string(body))
	}

	if mock.RequestCount() != 1 {
		t.Errorf("got %d requests, want 1", mock.RequestCount())
	}
}

func TestMockHTTPClient_Post(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusCreated, `{"id": 123}`)

	resp, err := mock.Post("http://example.com/api", "application/json", strings.NewReader(`{"name": "test"}`))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	req := mock.Request(0)
	if req == nil {
		t.Fatal("expected request to be recorded")
	}
	if req.Method != http.MethodPost {
		t.Errorf("got method %s, want POST", req.Method)
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("got Content-Type %q", req.Header.Get("Content-Type"))
	}
	if string(mock.RequestBody(0)) != `{"name": "test"}` {
		t.Errorf("got recorded body %q", mock.RequestBody(0))
	}
}

func TestMockHTTPClient_MultipleResponses(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "first")
	mock.AddResponse(http.StatusAccepted, "second")

	resp1, _ := mock.Get("http://example.com/1")
	body1, _ := io.ReadAll(resp1.Body)
	resp1.Body.Close()
	if string(body1) != "first" {
		t.Errorf("first response: got %q", string(body1))
	}

	resp2, _ := mock.Get("http://example.com/2")
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()
	if string(body2) != "second" {
		t.Errorf("second response: got %q", string(body2))
	}

	// queue exhausted, default empty 200
	resp3, _ := mock.Get("http://example.com/3")
	resp3.Body.Close()
	if resp3.StatusCode != http.StatusOK {
		t.Errorf("third response: got status %d, want %d", resp3.StatusCode, http.StatusOK)
	}
}

func TestMockHTTPClient_AddErrorResponse(t *testing.T) {
	mock := NewMockHTTPClient()
	expectedErr := errors.New("connection refused")
	mock.AddErrorResponse(expectedErr)

	if _, err := mock.Get("http://example.com/api"); err != expectedErr {
		t.Errorf("got error %v, want %v", err, expectedErr)
	}
}

func TestMockHTTPClient_DefaultError(t *testing.T) {
	mock := NewMockHTTPClient()
	expectedErr := errors.New("network error")
	mock.DefaultError = expectedErr

	if _, err := mock.Get("http://example.com/api"); err != expectedErr {
		t.Errorf("got error %v, want %v", err, expectedErr)
	}
}

func TestMockHTTPClient_DoFunc(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusTeapot,
			Body:       io.NopCloser(strings.NewReader("custom")),
			Request:    req,
		}, nil
	}

	resp, _ := mock.Get("http://example.com/api")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusTeapot)
	}
}

func TestMockHTTPClient_Reset(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "test")
	mock.DefaultError = errors.New("error")
	mock.Get("http://example.com/api")
	mock.Reset()

	if mock.RequestCount() != 0 {
		t.Error("Reset should clear requests")
	}
	if mock.Request(0) != nil {
		t.Error("Reset should clear recorded requests")
	}
	if mock.DefaultError != nil {
		t.Error("Reset should clear DefaultError")
	}
}

func TestDoJSON_RoundTrip(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddJSONResponse(map[string]int{"total_steps": 420})

	in := map[string]string{"device_id": "kaku-1"}
	var out struct {
		TotalSteps int `json:"total_steps"`
	}
	err := DoJSON(context.Background(), mock, http.MethodPost, "http://backend/api/pet/state", in, &out)
	if err != nil {
		t.Fatalf("DoJSON failed: %v", err)
	}
	if out.TotalSteps != 420 {
		t.Errorf("got %d, want 420", out.TotalSteps)
	}

	req := mock.Request(0)
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("got Content-Type %q", req.Header.Get("Content-Type"))
	}
	if string(mock.RequestBody(0)) != `{"device_id":"kaku-1"}` {
		t.Errorf("got body %q", mock.RequestBody(0))
	}
}

func TestDoJSON_NilInOut(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusNoContent, "")

	if err := DoJSON(context.Background(), mock, http.MethodGet, "http://backend/healthz", nil, nil); err != nil {
		t.Fatalf("DoJSON failed: %v", err)
	}
	if got := mock.Request(0).Header.Get("Content-Type"); got != "" {
		t.Errorf("nil body should not set Content-Type, got %q", got)
	}
}

func TestDoJSON_ErrorStatus(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusBadGateway, "upstream down")

	err := DoJSON(context.Background(), mock, http.MethodGet, "http://backend/api/pet/state", nil, nil)
	if err == nil {
		t.Fatal("expected an error for a 502")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "upstream down") {
		t.Errorf("error should carry status and body snippet: %v", err)
	}
}

func TestDoJSON_TransportError(t *testing.T) {
	mock := NewMockHTTPClient()
	wantErr := errors.New("connection reset")
	mock.AddErrorResponse(wantErr)

	err := DoJSON(context.Background(), mock, http.MethodGet, "http://backend/api/pet/state", nil, nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("got %v, want %v", err, wantErr)
	}
}

func TestDoJSON_BadResponseBody(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "not json")

	var out map[string]string
	if err := DoJSON(context.Background(), mock, http.MethodGet, "http://backend/api/pet/state", nil, &out); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestStandardClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("accepted"))
	}))
	defer server.Close()

	client := NewStandardClient(time.Second)
	req, err := http.NewRequest(http.MethodPut, server.URL+"/resource", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "accepted" {
		t.Errorf("got body %q, want 'accepted'", string(body))
	}
}

func TestStandardClient_GetAndPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"status": "ok"}`))
		case http.MethodPost:
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected json Content-Type, got %s", ct)
			}
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer server.Close()

	client := NewStandardClient(time.Second)

	resp, err := client.Get(server.URL + "/api/data")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != `{"status": "ok"}` {
		t.Errorf("got body %q", string(body))
	}

	resp, err = client.Post(server.URL+"/api/create", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusCreated)
	}
}
