// Package leaseagent holds the client side of the edit-lease protocol: a
// thin HTTP API client plus an agent that keeps a lease alive for the
// duration of an editing session.
package leaseagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotOwned indicates the server no longer considers us the lease holder.
var ErrNotOwned = errors.New("lease not owned")

// LockInfo mirrors the server's lock status payload.
type LockInfo struct {
	Locked          bool       `json:"locked"`
	Department      string     `json:"department"`
	OwnerUserName   string     `json:"ownerUserName,omitempty"`
	OwnerType       string     `json:"ownerType,omitempty"`
	ClientHost      string     `json:"clientHost,omitempty"`
	LockedAt        *time.Time `json:"lockedAt,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	LastHeartbeatAt *time.Time `json:"lastHeartbeatAt,omitempty"`
}

// ConflictError reports that another user holds the lease.
type ConflictError struct {
	Current LockInfo
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("department %q locked by %s", e.Current.Department, e.Current.OwnerUserName)
}

// APIError is any non-conflict error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to the lock endpoints on behalf of one user session.
type Client struct {
	baseURL    string
	userName   string
	userToken  string
	clientHost string
	httpClient *http.Client
}

// NewClient creates an API client. baseURL is the server root, without the
// /api prefix.
func NewClient(baseURL, userName, userToken, clientHost string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userName:   userName,
		userToken:  userToken,
		clientHost: clientHost,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Acquire claims the department lease. A live lease held by someone else
// yields a *ConflictError with the holder's snapshot.
func (c *Client) Acquire(ctx context.Context, department string) (*LockInfo, error) {
	body := map[string]string{
		"userName":   c.userName,
		"clientHost": c.clientHost,
	}
	resp, err := c.post(ctx, "/api/lock/"+department+"/acquire", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var info LockInfo
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return nil, fmt.Errorf("decoding lock response: %w", err)
		}
		return &info, nil
	case http.StatusLocked:
		var current LockInfo
		if err := json.NewDecoder(resp.Body).Decode(&current); err != nil {
			return nil, fmt.Errorf("decoding conflict response: %w", err)
		}
		return nil, &ConflictError{Current: current}
	default:
		return nil, apiError(resp)
	}
}

// Heartbeat renews the lease. ErrNotOwned means the lease was lost and the
// caller must stop assuming ownership.
func (c *Client) Heartbeat(ctx context.Context, department string) error {
	resp, err := c.post(ctx, "/api/lock/"+department+"/heartbeat",
		map[string]string{"userName": c.userName})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusConflict:
		return ErrNotOwned
	default:
		return apiError(resp)
	}
}

// Release drops the lease. Best-effort by protocol design; a failed release
// only delays reclamation until the lease expires.
func (c *Client) Release(ctx context.Context, department string) error {
	resp, err := c.post(ctx, "/api/lock/"+department+"/release",
		map[string]string{"userName": c.userName})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return apiError(resp)
	}
	return nil
}

// Status fetches the department's current lock state.
func (c *Client) Status(ctx context.Context, department string) (*LockInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/lock/"+department+"/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var info LockInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding status response: %w", err)
	}
	return &info, nil
}

// SaveResult carries the metadata returned by an accepted save.
type SaveResult struct {
	OK   bool            `json:"ok"`
	Meta json.RawMessage `json:"meta"`
}

// Save submits projects with the revision the caller last observed.
func (c *Client) Save(ctx context.Context, department string, projects json.RawMessage, expectedRevision int64) (*SaveResult, error) {
	body := map[string]any{
		"userName":         c.userName,
		"projects":         projects,
		"expectedRevision": expectedRevision,
	}
	resp, err := c.post(ctx, "/api/projects/"+department, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var result SaveResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding save response: %w", err)
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Token", c.userToken)
	return c.httpClient.Do(req)
}

func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       body.Error.Code,
		Message:    body.Error.Message,
	}
}
