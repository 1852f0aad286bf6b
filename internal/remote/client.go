// Package remote is the HTTP client for the note service API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/dinosync/internal/models"
)

// SuccessCode is the envelope code of a successful call.
const SuccessCode = "000000"

const (
	notesPath      = "/openapi/v5/notes"
	createNotePath = "/api/openapi/createNote"
	updateNotePath = "/api/openapi/updateNote"
)

// Client talks to the note service.
type Client struct {
	baseURL   string
	aiBaseURL string
	token     string
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client. baseURL serves note fetches; aiBaseURL serves
// note creation and updates.
func New(baseURL, aiBaseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		aiBaseURL: strings.TrimRight(aiBaseURL, "/"),
		token:     token,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common response wrapper.
type envelope struct {
	Code *json.RawMessage `json:"code"`
	Msg  string           `json:"msg"`
	Data json.RawMessage  `json:"data"`
}

type fetchRequest struct {
	Template     string `json:"template"`
	NoteID       int    `json:"noteId"`
	LastSyncTime string `json:"lastSyncTime"`
}

// FetchNotes returns every day bucket with notes changed after lastSyncTime.
func (c *Client) FetchNotes(ctx context.Context, template, lastSyncTime string) ([]models.DayBucket, error) {
	data, err := c.call(ctx, c.baseURL, notesPath, fetchRequest{
		Template:     template,
		NoteID:       0,
		LastSyncTime: lastSyncTime,
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return []models.DayBucket{}, nil
	}
	var buckets []models.DayBucket
	if err := json.Unmarshal(data, &buckets); err != nil {
		return nil, &MalformedResponseError{Endpoint: notesPath, Reason: "data is not a list of day buckets"}
	}
	return buckets, nil
}

// NoteInput is the payload of CreateNote and UpdateNote.
type NoteInput struct {
	Title   string
	Content string
	Tags    []string
}

type createRequest struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Title   string   `json:"title"`
}

type updateRequest struct {
	NoteID    string   `json:"noteId"`
	ContentMD string   `json:"contentMd"`
	Tags      []string `json:"tags"`
	Title     string   `json:"title"`
}

// CreateNote creates a remote note and returns its id.
func (c *Client) CreateNote(ctx context.Context, in NoteInput) (string, error) {
	data, err := c.call(ctx, c.aiBaseURL, createNotePath, createRequest{
		Content: in.Content,
		Tags:    nonNil(in.Tags),
		Title:   in.Title,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		NoteID json.RawMessage `json:"noteId"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &MalformedResponseError{Endpoint: createNotePath, Reason: "data is not an object"}
	}
	id := scalarString(out.NoteID)
	if id == "" {
		return "", &MalformedResponseError{Endpoint: createNotePath, Reason: "missing noteId"}
	}
	return id, nil
}

// UpdateNote replaces the content, tags and title of a remote note.
func (c *Client) UpdateNote(ctx context.Context, noteID string, in NoteInput) error {
	_, err := c.call(ctx, c.aiBaseURL, updateNotePath, updateRequest{
		NoteID:    noteID,
		ContentMD: in.Content,
		Tags:      nonNil(in.Tags),
		Title:     in.Title,
	})
	return err
}

// call posts body as JSON and returns the envelope data on success.
func (c *Client) call(ctx context.Context, base, endpoint string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("remote: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Endpoint: endpoint, Status: resp.StatusCode, Body: truncate(string(raw), bodyEchoLimit)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &MalformedResponseError{Endpoint: endpoint, Reason: "body is not a JSON object"}
	}
	if env.Code == nil {
		return nil, &MalformedResponseError{Endpoint: endpoint, Reason: "missing code"}
	}
	if code := scalarString(*env.Code); code != SuccessCode {
		return nil, &LogicError{Endpoint: endpoint, Code: code, Msg: env.Msg}
	}
	return env.Data, nil
}

// scalarString renders a JSON string or number as text.
func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
