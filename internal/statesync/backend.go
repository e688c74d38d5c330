// Package statesync mirrors pet state with the companion backend. An
// adapter loop pushes snapshots and pulls server-issued care actions on
// its own cadence, fully decoupled from sampling and rendering; the pet
// machine's lock is never held across a network call. The same loop
// resolves gesture-armed feed attempts, optionally consulting a remote
// frame classifier.
package statesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jaspreeeet/kaku/internal/httputil"
	"github.com/jaspreeeet/kaku/internal/pet"
)

// RemoteState is the authoritative care record the backend returns. Care
// actions issued from the web dashboard land here and are replayed into
// the machine during reconciliation.
type RemoteState struct {
	Care      pet.CareStamps `json:"care"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Backend is the sync boundary to the companion service.
type Backend interface {
	PushStateSnapshot(ctx context.Context, snap pet.Snapshot) error
	PullAuthoritativeState(ctx context.Context) (RemoteState, error)
}

// Classifier decides whether a captured frame shows food. The device
// treats it as a black box; when none is configured, gestures alone are
// sufficient evidence to feed.
type Classifier interface {
	ClassifyFrame(ctx context.Context, frame []byte) (bool, error)
}

// HTTPBackend talks JSON to the companion service.
type HTTPBackend struct {
	base     string
	deviceID string
	client   httputil.HTTPClient
}

// NewHTTPBackend returns a backend rooted at base, for example
// "http://homelab:5000".
func NewHTTPBackend(base, deviceID string, client httputil.HTTPClient) *HTTPBackend {
	if client == nil {
		client = httputil.NewStandardClient(10 * time.Second)
	}
	return &HTTPBackend{base: base, deviceID: deviceID, client: client}
}

type pushRequest struct {
	DeviceID string       `json:"device_id"`
	State    pet.Snapshot `json:"state"`
}

// PushStateSnapshot uploads the current snapshot.
func (b *HTTPBackend) PushStateSnapshot(ctx context.Context, snap pet.Snapshot) error {
	u := b.base + "/api/pet/state"
	return httputil.DoJSON(ctx, b.client, http.MethodPost, u, pushRequest{DeviceID: b.deviceID, State: snap}, nil)
}

// PullAuthoritativeState fetches the server-side care record.
func (b *HTTPBackend) PullAuthoritativeState(ctx context.Context) (RemoteState, error) {
	u := fmt.Sprintf("%s/api/pet/care?device_id=%s", b.base, url.QueryEscape(b.deviceID))
	var out RemoteState
	if err := httputil.DoJSON(ctx, b.client, http.MethodGet, u, nil, &out); err != nil {
		return RemoteState{}, err
	}
	return out, nil
}

// HTTPClassifier posts raw luma frames to the backend's classifier
// endpoint.
type HTTPClassifier struct {
	base   string
	client httputil.HTTPClient
}

// NewHTTPClassifier returns a classifier rooted at base.
func NewHTTPClassifier(base string, client httputil.HTTPClient) *HTTPClassifier {
	if client == nil {
		client = httputil.NewStandardClient(10 * time.Second)
	}
	return &HTTPClassifier{base: base, client: client}
}

type classifyResponse struct {
	IsFood bool `json:"is_food"`
}

// ClassifyFrame uploads one frame and returns the backend's verdict.
func (c *HTTPClassifier) ClassifyFrame(ctx context.Context, frame []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/classify-frame", bytes.NewReader(frame))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("classify-frame: status %d", resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return false, fmt.Errorf("decode classifier response: %w", err)
	}
	return out.IsFood, nil
}
