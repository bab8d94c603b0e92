package coverage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/config"
)

// HTTPUploader posts the report as multipart form data to a coverage service.
type HTTPUploader struct {
	Endpoint string
	Service  string
	TokenEnv string
	JobIDEnv string
	Client   *http.Client
	lookup   func(string) string
}

// NewHTTPUploader creates an uploader from the coverage configuration.
func NewHTTPUploader(cov config.CoverageConfig, client *http.Client) *HTTPUploader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPUploader{
		Endpoint: cov.Endpoint,
		Service:  cov.Service,
		TokenEnv: cov.TokenEnv,
		JobIDEnv: cov.JobIDEnv,
		Client:   client,
		lookup:   os.Getenv,
	}
}

func (u *HTTPUploader) Kind() config.UploaderKind { return config.UploaderHTTP }

// jobPayload is the JSON document sent in the json_file part.
type jobPayload struct {
	RepoToken    string    `json:"repo_token,omitempty"`
	ServiceName  string    `json:"service_name"`
	ServiceJobID string    `json:"service_job_id,omitempty"`
	Flag         string    `json:"flag_name,omitempty"`
	RunAt        time.Time `json:"run_at"`
	Git          *gitInfo  `json:"git,omitempty"`
}

type gitInfo struct {
	Head struct {
		ID          string `json:"id"`
		AuthorName  string `json:"author_name,omitempty"`
		AuthorEmail string `json:"author_email,omitempty"`
		Message     string `json:"message,omitempty"`
	} `json:"head"`
	Branch string `json:"branch,omitempty"`
}

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("coverage service responded %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying may help.
func (e *HTTPStatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func (u *HTTPUploader) Upload(ctx context.Context, req Request) (string, error) {
	data, err := os.ReadFile(req.File)
	if err != nil {
		return "", fmt.Errorf("read coverage report: %w", err)
	}

	payload := jobPayload{
		ServiceName: u.Service,
		Flag:        req.EntryID,
		RunAt:       time.Now().UTC(),
	}
	if u.TokenEnv != "" {
		payload.RepoToken = u.lookup(u.TokenEnv)
	}
	payload.ServiceJobID = req.RunID
	if u.JobIDEnv != "" {
		if id := u.lookup(u.JobIDEnv); id != "" {
			payload.ServiceJobID = id
		}
	}
	if !req.Revision.Empty() {
		g := &gitInfo{Branch: req.Revision.Branch}
		g.Head.ID = req.Revision.Commit
		g.Head.AuthorName = req.Revision.Author
		g.Head.AuthorEmail = req.Revision.Email
		g.Head.Message = req.Revision.Message
		payload.Git = g
	}
	meta, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal coverage metadata: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("json_file", "job.json")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(meta); err != nil {
		return "", err
	}
	part, err = mw.CreateFormFile("file", filepath.Base(req.File))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build coverage request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("post coverage report: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if json.Unmarshal(respBody, &parsed) == nil && parsed.URL != "" {
		return parsed.URL, nil
	}
	return u.Endpoint, nil
}
