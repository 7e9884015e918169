package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/jira-auditor/domain"
	"github.com/fastygo/jira-auditor/internal/config"
	"github.com/fastygo/jira-auditor/repository"
)

const (
	pathMyself     = "/rest/api/2/myself"
	pathUserSearch = "/rest/api/2/user/search"
	pathUser       = "/rest/api/2/user"
)

// Client talks to the Jira user-management REST API.
type Client struct {
	http       *fasthttp.Client
	baseURL    string
	creds      Credentials
	timeout    time.Duration
	maxResults int
	logger     *zap.Logger

	// accountIDs holds listed users that have no username (Jira Cloud).
	// Per-user calls address them with accountId instead of username.
	mu         sync.RWMutex
	accountIDs map[string]struct{}
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying fasthttp client.
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a client for cfg. The returned client holds pooled
// connections until Close is called.
func NewClient(cfg config.JiraConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, domain.NewError(domain.ErrCodeConfiguration, "missing required configuration: JIRA_URL")
	}
	creds, err := CredentialsFrom(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 1000
	}

	c := &Client{
		http: &fasthttp.Client{
			Name:                "jira-auditor",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		creds:      creds,
		timeout:    timeout,
		maxResults: maxResults,
		logger:     logger.With(zap.String("component", "jira"), zap.String("auth", string(creds.Scheme()))),
		accountIDs: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases pooled connections.
func (c *Client) Close() error {
	if c == nil || c.http == nil {
		return nil
	}
	c.http.CloseIdleConnections()
	return nil
}

// Authenticate verifies the configured credentials against the current-user endpoint.
func (c *Client) Authenticate(ctx context.Context) error {
	var me userPayload
	if err := c.getJSON(ctx, "authenticate", pathMyself, nil, &me); err != nil {
		return err
	}
	c.logger.Info("authenticated to jira", zap.String("as", me.username()))
	return nil
}

// ListUsers returns every user the search endpoint exposes in a single page.
func (c *Client) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	query := map[string]string{
		"username":        ".",
		"maxResults":      strconv.Itoa(c.maxResults),
		"includeActive":   "true",
		"includeInactive": "false",
	}
	var payload []userPayload
	if err := c.getJSON(ctx, "list users", pathUserSearch, query, &payload); err != nil {
		return nil, err
	}
	if len(payload) >= c.maxResults {
		c.logger.Warn("user listing reached maxResults, later users are not audited",
			zap.Int("max_results", c.maxResults))
	}

	users := make([]domain.UserAccount, 0, len(payload))
	c.mu.Lock()
	for _, p := range payload {
		user := p.toAccount()
		if user.Username == "" {
			continue
		}
		if p.Name == "" {
			c.accountIDs[p.AccountID] = struct{}{}
		}
		users = append(users, user)
	}
	c.mu.Unlock()
	return users, nil
}

// GetUser fetches one user with its last login time. A present but
// unparseable timestamp is reported as ErrInvalidTimestamp.
func (c *Client) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	query := c.userQuery(username)
	query["expand"] = "applicationRoles"
	var payload userPayload
	if err := c.getJSON(ctx, "get user "+username, pathUser, query, &payload); err != nil {
		return nil, err
	}

	user := payload.toAccount()
	if raw := strings.TrimSpace(payload.LastLoginTime); raw != "" {
		ts, err := ParseLoginTime(raw)
		if err != nil {
			return &user, err
		}
		user.LastLoginTime = &ts
	}
	return &user, nil
}

// DeactivateUser marks the user inactive.
func (c *Client) DeactivateUser(ctx context.Context, username string) error {
	body, err := json.Marshal(map[string]bool{"active": false})
	if err != nil {
		return err
	}
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	c.prepare(req, fasthttp.MethodPut, pathUser, c.userQuery(username))
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	op := "deactivate user " + username
	if err := c.do(ctx, op, req, resp); err != nil {
		return err
	}
	return checkStatus(op, resp)
}

// userQuery addresses one user by username, or by accountId for accounts
// that were listed without a username.
func (c *Client) userQuery(id string) map[string]string {
	c.mu.RLock()
	_, cloud := c.accountIDs[id]
	c.mu.RUnlock()
	if cloud {
		return map[string]string{"accountId": id}
	}
	return map[string]string{"username": id}
}

func (c *Client) getJSON(ctx context.Context, op, path string, query map[string]string, out any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	c.prepare(req, fasthttp.MethodGet, path, query)
	if err := c.do(ctx, op, req, resp); err != nil {
		return err
	}
	if err := checkStatus(op, resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return domain.WrapError(domain.ErrCodeRemoteService, op+": decode response", err)
	}
	return nil
}

func (c *Client) prepare(req *fasthttp.Request, method, path string, query map[string]string) {
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	args := req.URI().QueryArgs()
	for k, v := range query {
		args.Set(k, v)
	}
	c.creds.Apply(req)
}

func (c *Client) do(ctx context.Context, op string, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	err := c.doCancelable(ctx, req, resp, deadline)
	c.logger.Debug("jira request",
		zap.String("op", op),
		zap.ByteString("method", req.Header.Method()),
		zap.ByteString("path", req.URI().Path()),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("took", time.Since(start)),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return domain.WrapError(domain.ErrCodeRemoteService, op, err)
	}
	return nil
}

// doCancelable runs the request on private copies so a cancelled ctx can
// return at once. The abandoned call finishes by its deadline and releases
// its copies.
func (c *Client) doCancelable(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error {
	call := fasthttp.AcquireRequest()
	out := fasthttp.AcquireResponse()
	req.CopyTo(call)
	release := func() {
		fasthttp.ReleaseRequest(call)
		fasthttp.ReleaseResponse(out)
	}

	done := make(chan error, 1)
	go func() { done <- c.http.DoDeadline(call, out, deadline) }()

	select {
	case err := <-done:
		out.CopyTo(resp)
		release()
		return err
	case <-ctx.Done():
		go func() {
			<-done
			release()
		}()
		return ctx.Err()
	}
}

type errorPayload struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

func checkStatus(op string, resp *fasthttp.Response) error {
	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return nil
	}
	switch status {
	case fasthttp.StatusUnauthorized, fasthttp.StatusForbidden:
		return fmt.Errorf("%s: status %d: %w", op, status, domain.ErrUnauthorized)
	case fasthttp.StatusNotFound:
		return fmt.Errorf("%s: %w", op, domain.ErrUserNotFound)
	}
	return domain.WrapError(domain.ErrCodeRemoteService, op,
		fmt.Errorf("unexpected status %d: %s", status, remoteMessage(resp.Body())))
}

func remoteMessage(body []byte) string {
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		parts := append([]string(nil), payload.ErrorMessages...)
		for field, msg := range payload.Errors {
			parts = append(parts, field+": "+msg)
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	const limit = 200
	if len(body) > limit {
		body = body[:limit]
	}
	return strings.TrimSpace(string(body))
}

type userPayload struct {
	Name          string `json:"name"`
	Key           string `json:"key"`
	AccountID     string `json:"accountId"`
	DisplayName   string `json:"displayName"`
	EmailAddress  string `json:"emailAddress"`
	Active        bool   `json:"active"`
	LastLoginTime string `json:"lastLoginTime"`
}

func (p userPayload) username() string {
	if p.Name != "" {
		return p.Name
	}
	return p.AccountID
}

func (p userPayload) toAccount() domain.UserAccount {
	key := p.Key
	if key == "" {
		key = p.AccountID
	}
	return domain.UserAccount{
		Username:    p.username(),
		Key:         key,
		DisplayName: p.DisplayName,
		Email:       p.EmailAddress,
		Active:      p.Active,
	}
}

var _ repository.UserDirectory = (*Client)(nil)
