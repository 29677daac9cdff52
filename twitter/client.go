package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/replydash/replydash/internal/helpers"
)

const (
	DefaultAuthorizeEndpoint = "https://x.com/i/oauth2/authorize"
	DefaultTokenEndpoint     = "https://api.x.com/2/oauth2/token"
	DefaultAPIBase           = "https://api.x.com"
)

// DefaultScope covers reading tracked posts, the connected profile, and
// keeping a refresh token so digest runs can call the API later.
const DefaultScope = "tweet.read users.read offline.access"

type Client struct {
	h                 *http.Client
	clientId          string
	clientSecret      string
	redirectUri       string
	authorizeEndpoint string
	tokenEndpoint     string
	apiBase           string
}

type ClientArgs struct {
	H            *http.Client
	ClientId     string
	ClientSecret string
	RedirectUri  string

	// Endpoint overrides, used by tests. Empty means the public X endpoints.
	AuthorizeEndpoint string
	TokenEndpoint     string
	APIBase           string
}

func NewClient(args ClientArgs) (*Client, error) {
	if args.ClientId == "" {
		return nil, fmt.Errorf("no client id provided")
	}

	if args.ClientSecret == "" {
		return nil, fmt.Errorf("no client secret provided")
	}

	if args.RedirectUri == "" {
		return nil, fmt.Errorf("no redirect uri provided")
	}

	if args.H == nil {
		args.H = &http.Client{
			Timeout: 10 * time.Second,
		}
	}

	if args.AuthorizeEndpoint == "" {
		args.AuthorizeEndpoint = DefaultAuthorizeEndpoint
	}

	if args.TokenEndpoint == "" {
		args.TokenEndpoint = DefaultTokenEndpoint
	}

	if args.APIBase == "" {
		args.APIBase = DefaultAPIBase
	}

	return &Client{
		h:                 args.H,
		clientId:          args.ClientId,
		clientSecret:      args.ClientSecret,
		redirectUri:       args.RedirectUri,
		authorizeEndpoint: args.AuthorizeEndpoint,
		tokenEndpoint:     args.TokenEndpoint,
		apiBase:           args.APIBase,
	}, nil
}

// NewAuthRequest generates a fresh state token and pkce verifier pair for a
// single authorization attempt. The caller must hold on to both until the
// callback comes in: state is re-checked there and the verifier is sent with
// the code exchange.
func NewAuthRequest() (*AuthRequest, error) {
	state, err := helpers.GenerateToken(16)
	if err != nil {
		return nil, fmt.Errorf("could not generate state token: %w", err)
	}

	pkceVerifier, err := helpers.GenerateToken(48)
	if err != nil {
		return nil, fmt.Errorf("could not generate pkce verifier: %w", err)
	}

	return &AuthRequest{
		State:        state,
		PkceVerifier: pkceVerifier,
	}, nil
}

// AuthorizationURL builds the consent screen url for an auth request. The
// redirect uri baked into the client must exactly match the one registered
// with the provider or the consent screen rejects the request.
func (c *Client) AuthorizationURL(req *AuthRequest, scope string) (string, error) {
	if req == nil {
		return "", fmt.Errorf("nil auth request provided")
	}

	u, err := url.Parse(c.authorizeEndpoint)
	if err != nil {
		return "", fmt.Errorf("could not parse authorize endpoint: %w", err)
	}

	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {c.clientId},
		"redirect_uri":          {c.redirectUri},
		"scope":                 {scope},
		"state":                 {req.State},
		"code_challenge":        {helpers.GenerateCodeChallenge(req.PkceVerifier)},
		"code_challenge_method": {"S256"},
	}

	u.RawQuery = params.Encode()

	return u.String(), nil
}

// ExchangeCode swaps an authorization code for tokens. The token endpoint is
// never retried: a failure surfaces to the caller and the user restarts the
// flow by logging in again.
func (c *Client) ExchangeCode(ctx context.Context, code, pkceVerifier string) (*TokenResponse, error) {
	params := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.redirectUri},
		"code_verifier": {pkceVerifier},
	}

	return c.tokenRequest(ctx, params)
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	params := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	return c.tokenRequest(ctx, params)
}

func (c *Client) tokenRequest(ctx context.Context, params url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenEndpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientId, c.clientSecret)

	resp, err := c.h.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not get response from token endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 && resp.StatusCode != 201 {
		var respMap map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&respMap); err != nil {
			return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
		}

		return nil, fmt.Errorf("token endpoint returned status %d: %v", resp.StatusCode, respMap["error"])
	}

	var tokenResponse TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return nil, fmt.Errorf("could not unmarshal token response: %w", err)
	}

	if tokenResponse.AccessToken == "" {
		return nil, fmt.Errorf("token response contained no access token")
	}

	return &tokenResponse, nil
}

// FetchProfile loads the authenticated identity from /2/users/me using a
// freshly issued access token.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	u, err := url.Parse(c.apiBase)
	if err != nil {
		return nil, fmt.Errorf("could not parse api base: %w", err)
	}

	u.Path = "/2/users/me"
	u.RawQuery = url.Values{
		"user.fields": {"id,name,username,confirmed_email,profile_image_url,public_metrics"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating profile request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))

	resp, err := c.h.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not get response for profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("received non-200 response from profile endpoint. code was %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read profile body: %w", err)
	}

	var envelope profileEnvelope
	if err := json.Unmarshal(b, &envelope); err != nil {
		return nil, fmt.Errorf("could not unmarshal profile: %w", err)
	}

	if envelope.Data.Id == "" {
		return nil, fmt.Errorf("profile response contained no user id")
	}

	return &envelope.Data, nil
}
