// Package esi wraps the two external EVE services the portal consumes: the
// ESI game-data API (read-only character/corporation/alliance records and
// scoped membership lists) and the SSO (login and token refresh).
//
// Every fetch returns the upstream HTTP status alongside the result. The
// error is reserved for transport and decode failures; a 404 yields a nil
// result with status 404 so callers branch on "not found" without an error
// in hand, and the sync sweep can report whatever non-2xx status aborted it.
package esi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client is a read-only ESI API client
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// CharacterInfo is the subset of the ESI character record the portal uses
type CharacterInfo struct {
	Name          string `json:"name"`
	CorporationID int64  `json:"corporation_id"`
}

// CorporationInfo is the subset of the ESI corporation record the portal uses
type CorporationInfo struct {
	Name       string `json:"name"`
	Ticker     string `json:"ticker"`
	AllianceID *int64 `json:"alliance_id,omitempty"`
}

// AllianceInfo is the subset of the ESI alliance record the portal uses
type AllianceInfo struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
}

// NewClient creates a new ESI client
func NewClient(baseURL, userAgent string, logger *zap.Logger) *Client {
	return &Client{
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Logger:     logger,
	}
}

// Character fetches a character record by external id
func (c *Client) Character(id int64) (*CharacterInfo, int, error) {
	var info CharacterInfo
	status, err := c.getJSON(fmt.Sprintf("/characters/%d/", id), "", &info)
	if err != nil || status != http.StatusOK {
		return nil, status, err
	}
	return &info, status, nil
}

// Corporation fetches a corporation record by external id
func (c *Client) Corporation(id int64) (*CorporationInfo, int, error) {
	var info CorporationInfo
	status, err := c.getJSON(fmt.Sprintf("/corporations/%d/", id), "", &info)
	if err != nil || status != http.StatusOK {
		return nil, status, err
	}
	return &info, status, nil
}

// Alliance fetches an alliance record by external id
func (c *Client) Alliance(id int64) (*AllianceInfo, int, error) {
	var info AllianceInfo
	status, err := c.getJSON(fmt.Sprintf("/alliances/%d/", id), "", &info)
	if err != nil || status != http.StatusOK {
		return nil, status, err
	}
	return &info, status, nil
}

// AllianceCorporations fetches the corporation-id roster of an alliance
func (c *Client) AllianceCorporations(allianceID int64) ([]int64, int, error) {
	var ids []int64
	status, err := c.getJSON(fmt.Sprintf("/alliances/%d/corporations/", allianceID), "", &ids)
	if err != nil || status != http.StatusOK {
		return nil, status, err
	}
	return ids, status, nil
}

// CorporationMembers fetches the member-character-id list of a corporation.
// The endpoint is scoped; accessToken must carry the corporation membership
// read scope.
func (c *Client) CorporationMembers(corpID int64, accessToken string) ([]int64, int, error) {
	var ids []int64
	status, err := c.getJSON(fmt.Sprintf("/corporations/%d/members/", corpID), accessToken, &ids)
	if err != nil || status != http.StatusOK {
		return nil, status, err
	}
	return ids, status, nil
}

// CorporationLogoURL returns the image-server URL for a corporation logo.
// Logos are served by a separate CDN keyed on external id, never fetched
// through ESI itself.
func (c *Client) CorporationLogoURL(corpID int64) string {
	return fmt.Sprintf("https://images.evetech.net/corporations/%d/logo?size=128", corpID)
}

// AllianceLogoURL returns the image-server URL for an alliance logo
func (c *Client) AllianceLogoURL(allianceID int64) string {
	return fmt.Sprintf("https://images.evetech.net/alliances/%d/logo?size=128", allianceID)
}

// getJSON performs a GET against the ESI base URL and decodes a 200 response
// into out. Any other status is returned to the caller with the body drained.
func (c *Client) getJSON(path, accessToken string, out interface{}) (int, error) {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		c.Logger.Error("Failed to create ESI request", zap.Error(err))
		return 0, err
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	c.Logger.Debug("ESI request", zap.String("path", path))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Error("ESI request failed", zap.String("path", path), zap.Error(err))
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.Logger.Warn("ESI request returned non-success status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(body)))
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.Logger.Error("Failed to parse ESI response", zap.String("path", path), zap.Error(err))
		return resp.StatusCode, err
	}

	return resp.StatusCode, nil
}
