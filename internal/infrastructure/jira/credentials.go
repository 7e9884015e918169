package jira

import (
	"encoding/base64"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/jira-auditor/internal/config"
)

// Credentials authorise outgoing requests.
type Credentials interface {
	Apply(req *fasthttp.Request)
	Scheme() config.AuthScheme
}

// BasicAuth authenticates with an account email and API token.
type BasicAuth struct {
	Email    string
	APIToken string
}

func (b BasicAuth) Apply(req *fasthttp.Request) {
	raw := b.Email + ":" + b.APIToken
	req.Header.Set(fasthttp.HeaderAuthorization, "Basic "+base64.StdEncoding.EncodeToString([]byte(raw)))
}

func (BasicAuth) Scheme() config.AuthScheme { return config.AuthBasic }

// BearerToken authenticates with a personal access token.
type BearerToken struct {
	Token string
}

func (b BearerToken) Apply(req *fasthttp.Request) {
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+b.Token)
}

func (BearerToken) Scheme() config.AuthScheme { return config.AuthBearer }

// CredentialsFrom selects the scheme configured in cfg.
func CredentialsFrom(cfg config.JiraConfig) (Credentials, error) {
	scheme, err := cfg.Scheme()
	if err != nil {
		return nil, err
	}
	if scheme == config.AuthBearer {
		return BearerToken{Token: cfg.PersonalAccessToken}, nil
	}
	return BasicAuth{Email: cfg.Email, APIToken: cfg.APIToken}, nil
}
