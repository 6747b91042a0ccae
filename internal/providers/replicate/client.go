package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"creatorhub/internal/domain"
	"creatorhub/internal/infra"
)

// ErrMissingAPIToken indicates that the client was configured without credentials.
var ErrMissingAPIToken = fmt.Errorf("replicate: api token is required: %w", domain.ErrProviderUnavailable)

// Options configures the Replicate prediction client.
type Options struct {
	APIToken      string
	BaseURL       string
	HTTPClient    *http.Client
	Logger        *infra.Logger
	Limiter       *rate.Limiter
	SubmitTimeout time.Duration
	RunTimeout    time.Duration
	StatusTimeout time.Duration
	// WaitSeconds is sent as `Prefer: wait=N` on synchronous runs.
	WaitSeconds int
}

// Client performs HTTP calls to the Replicate predictions API.
type Client struct {
	apiToken      string
	baseURL       string
	httpClient    *http.Client
	logger        *infra.Logger
	limiter       *rate.Limiter
	submitTimeout time.Duration
	runTimeout    time.Duration
	statusTimeout time.Duration
	waitSeconds   int
}

// Prediction mirrors the provider's prediction object.
type Prediction struct {
	ID        string           `json:"id"`
	Model     string           `json:"model"`
	Version   string           `json:"version"`
	Status    domain.JobStatus `json:"status"`
	Output    domain.Output    `json:"output"`
	Error     json.RawMessage  `json:"error"`
	CreatedAt time.Time        `json:"created_at"`
}

// ErrorMessage returns the provider error as text, or "" when absent.
func (p *Prediction) ErrorMessage() string {
	raw := strings.TrimSpace(string(p.Error))
	if raw == "" || raw == "null" {
		return ""
	}
	var msg string
	if err := json.Unmarshal(p.Error, &msg); err == nil {
		return msg
	}
	return raw
}

type createRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

type problemResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("replicate: invalid base url: %w", err)
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	submitTimeout := opts.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	runTimeout := opts.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 60 * time.Second
	}
	statusTimeout := opts.StatusTimeout
	if statusTimeout <= 0 {
		statusTimeout = 5 * time.Second
	}
	waitSeconds := opts.WaitSeconds
	if waitSeconds <= 0 || waitSeconds > 60 {
		waitSeconds = 60
	}
	return &Client{
		apiToken:      strings.TrimSpace(opts.APIToken),
		baseURL:       baseURL,
		httpClient:    httpClient,
		logger:        logger,
		limiter:       opts.Limiter,
		submitTimeout: submitTimeout,
		runTimeout:    runTimeout,
		statusTimeout: statusTimeout,
		waitSeconds:   waitSeconds,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiToken != ""
}

// Run starts a prediction on an official model and waits for it to finish
// within the provider's synchronous window. The returned prediction may still
// be processing if the window elapsed first.
func (c *Client) Run(ctx context.Context, model string, input map[string]any) (*Prediction, error) {
	owner, name, err := splitRef(model)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/models/%s/%s/predictions", c.baseURL, url.PathEscape(owner), url.PathEscape(name))
	headers := map[string]string{"Prefer": "wait=" + strconv.Itoa(c.waitSeconds)}
	return c.create(ctx, "run "+model, endpoint, createRequest{Input: input}, headers, c.runTimeout)
}

// CreateDeploymentPrediction submits to a named deployment ("owner/name").
func (c *Client) CreateDeploymentPrediction(ctx context.Context, deployment string, input map[string]any) (*Prediction, error) {
	owner, name, err := splitRef(deployment)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/deployments/%s/%s/predictions", c.baseURL, url.PathEscape(owner), url.PathEscape(name))
	return c.create(ctx, "deployment "+deployment, endpoint, createRequest{Input: input}, nil, c.submitTimeout)
}

// CreatePrediction submits to a specific model version.
func (c *Client) CreatePrediction(ctx context.Context, version string, input map[string]any) (*Prediction, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, domain.InvalidInput("replicate: model version is required")
	}
	// "owner/name:version" is accepted; the API only wants the version id.
	if idx := strings.LastIndex(version, ":"); idx >= 0 {
		version = version[idx+1:]
	}
	endpoint := c.baseURL + "/predictions"
	return c.create(ctx, "version "+shortVersion(version), endpoint, createRequest{Version: version, Input: input}, nil, c.submitTimeout)
}

// GetPrediction fetches the current state of a prediction.
func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.InvalidInput("prediction id is required")
	}
	if !c.HasCredentials() {
		return nil, ErrMissingAPIToken
	}
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	op := "replicate: get prediction"
	if err := c.wait(ctx); err != nil {
		return nil, &domain.ProviderError{Op: op, Message: err.Error(), Kind: domain.ErrProviderFailure, Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	var pred Prediction
	if err := c.do(req, op, false, &pred); err != nil {
		return nil, err
	}
	return &pred, nil
}

func (c *Client) create(ctx context.Context, op, endpoint string, payload createRequest, headers map[string]string, timeout time.Duration) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIToken
	}
	if payload.Input == nil {
		payload.Input = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	op = "replicate: " + op
	if err := c.wait(ctx); err != nil {
		return nil, &domain.ProviderError{Op: op, Message: err.Error(), Kind: domain.ErrProviderSubmission, Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	var pred Prediction
	if err := c.do(req, op, true, &pred); err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("op", op).
		Str("prediction_id", pred.ID).
		Str("status", string(pred.Status)).
		Dur("took", time.Since(start)).
		Msg("replicate: prediction created")
	return &pred, nil
}

func (c *Client) do(req *http.Request, op string, submit bool, out *Prediction) error {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ProviderError{Op: op, Message: err.Error(), Kind: transportKind(submit), Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &domain.ProviderError{Op: op, Message: "read response: " + err.Error(), Kind: transportKind(submit), Cause: err}
	}

	if resp.StatusCode >= 300 {
		return statusError(op, resp.StatusCode, raw, submit)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.ProviderError{Op: op, StatusCode: resp.StatusCode, Message: "decode response: " + err.Error(), Kind: transportKind(submit), Cause: err}
	}
	if strings.TrimSpace(out.ID) == "" {
		return &domain.ProviderError{Op: op, StatusCode: resp.StatusCode, Message: "response missing prediction id", Kind: transportKind(submit)}
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// statusError maps an HTTP failure to the error taxonomy. Credentials
// problems are never a submission error so fallback stops on them.
func statusError(op string, status int, raw []byte, submit bool) error {
	msg := strings.TrimSpace(string(raw))
	var problem problemResponse
	if err := json.Unmarshal(raw, &problem); err == nil {
		switch {
		case problem.Detail != "":
			msg = problem.Detail
		case problem.Title != "":
			msg = problem.Title
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	perr := &domain.ProviderError{Op: op, StatusCode: status, Message: msg}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		perr.Kind = domain.ErrProviderUnavailable
	case submit:
		perr.Kind = domain.ErrProviderSubmission
	case status == http.StatusNotFound:
		perr.Kind = domain.ErrNotFound
	default:
		perr.Kind = domain.ErrProviderFailure
	}
	return perr
}

func transportKind(submit bool) error {
	if submit {
		return domain.ErrProviderSubmission
	}
	return domain.ErrProviderFailure
}

func splitRef(ref string) (string, string, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(ref), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", domain.InvalidInput(fmt.Sprintf("replicate: invalid reference %q, expected owner/name", ref))
	}
	return owner, name, nil
}

func shortVersion(version string) string {
	if len(version) > 12 {
		return version[:12]
	}
	return version
}
