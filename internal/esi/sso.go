package esi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SSO is a client for the EVE SSO: authorization-code exchange, identity
// verification, and refresh-token grants. The portal treats the provider as
// opaque — it only consumes "code → character identity + token pair + scopes"
// and "refresh token → fresh access token".
type SSO struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scope        string
	UserAgent    string
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// TokenResponse is the SSO token endpoint response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// verifyResponse is the SSO identity verification response
type verifyResponse struct {
	CharacterID   int64  `json:"CharacterID"`
	CharacterName string `json:"CharacterName"`
	Scopes        string `json:"Scopes"`
}

// AuthResult is the outcome of a completed authorization-code exchange
type AuthResult struct {
	CharacterID   int64
	CharacterName string
	AccessToken   string
	RefreshToken  string
	Scopes        []string
}

// ErrorResponse is an OAuth error response from the SSO
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// NewSSO creates a new SSO client
func NewSSO(baseURL, clientID, clientSecret, callbackURL, scope, userAgent string, logger *zap.Logger) *SSO {
	return &SSO{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CallbackURL:  callbackURL,
		Scope:        scope,
		UserAgent:    userAgent,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		Logger:       logger,
	}
}

// AuthorizeURL returns the SSO authorization URL users are sent to for login
func (s *SSO) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("redirect_uri", s.CallbackURL)
	q.Set("client_id", s.ClientID)
	if s.Scope != "" {
		q.Set("scope", s.Scope)
	}
	if state != "" {
		q.Set("state", state)
	}
	return fmt.Sprintf("%s/oauth/authorize?%s", s.BaseURL, q.Encode())
}

// Authenticate completes the authorization-code flow: exchanges the code for
// a token pair and verifies the identity behind it.
func (s *SSO) Authenticate(code string) (*AuthResult, int, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)

	tokens, status, err := s.requestToken(data)
	if err != nil || status != http.StatusOK {
		return nil, status, err
	}

	req, err := http.NewRequest(http.MethodGet, s.BaseURL+"/oauth/verify", nil)
	if err != nil {
		s.Logger.Error("Failed to create verify request", zap.Error(err))
		return nil, 0, err
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		s.Logger.Error("Verify request failed", zap.Error(err))
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		s.Logger.Error("Verify request returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(body)))
		return nil, resp.StatusCode, nil
	}

	var verify verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verify); err != nil {
		s.Logger.Error("Failed to parse verify response", zap.Error(err))
		return nil, resp.StatusCode, err
	}

	var scopes []string
	if verify.Scopes != "" {
		scopes = strings.Fields(verify.Scopes)
	}

	return &AuthResult{
		CharacterID:   verify.CharacterID,
		CharacterName: verify.CharacterName,
		AccessToken:   tokens.AccessToken,
		RefreshToken:  tokens.RefreshToken,
		Scopes:        scopes,
	}, resp.StatusCode, nil
}

// Refresh exchanges a stored refresh token for a fresh access token
func (s *SSO) Refresh(refreshToken string) (*TokenResponse, int, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	return s.requestToken(data)
}

// requestToken posts to the SSO token endpoint with client basic auth
func (s *SSO) requestToken(data url.Values) (*TokenResponse, int, error) {
	req, err := http.NewRequest(http.MethodPost, s.BaseURL+"/oauth/token", strings.NewReader(data.Encode()))
	if err != nil {
		s.Logger.Error("Failed to create token request", zap.Error(err))
		return nil, 0, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Authorization", "Basic "+s.basicAuth())

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		s.Logger.Error("Token request failed", zap.Error(err))
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.Logger.Error("Failed to read token response", zap.Error(err))
		return nil, resp.StatusCode, err
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil {
			s.Logger.Error("Token request error",
				zap.String("error", errorResp.Error),
				zap.String("description", errorResp.ErrorDescription))
		} else {
			s.Logger.Error("Token request returned non-success status",
				zap.Int("status", resp.StatusCode),
				zap.String("response", string(body)))
		}
		return nil, resp.StatusCode, nil
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		s.Logger.Error("Failed to parse token response", zap.Error(err))
		return nil, resp.StatusCode, err
	}

	return &tokenResp, resp.StatusCode, nil
}

func (s *SSO) basicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(s.ClientID + ":" + s.ClientSecret))
}
