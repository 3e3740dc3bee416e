package connection

import (
	"context"
	"net/http"
	"strings"

	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/httpclient"
)

// publicSystemInfo is the JSON body of the unauthenticated reachability
// probe.
type publicSystemInfo struct {
	ID           string `json:"Id"`
	ServerName   string `json:"ServerName"`
	Version      string `json:"Version"`
	LocalAddress string `json:"LocalAddress"`
}

func (i publicSystemInfo) toServerInfo() domain.ServerInfo {
	return domain.ServerInfo{
		ID:           i.ID,
		Name:         i.ServerName,
		Version:      i.Version,
		LocalAddress: i.LocalAddress,
	}
}

// APIClient is a client for a single media server, bound to one address and
// optionally holding an access token.
type APIClient struct {
	serverID    string
	address     string
	accessToken string
	httpClient  httpclient.Doer
}

// NewAPIClient creates a new APIClient.
func NewAPIClient(serverID, address, accessToken string, httpClient httpclient.Doer) *APIClient {
	return &APIClient{
		serverID:    serverID,
		address:     strings.TrimRight(address, "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

// ServerID returns the ID of the server this client is bound to.
func (c *APIClient) ServerID() string {
	return c.serverID
}

// Address returns the base address this client is bound to.
func (c *APIClient) Address() string {
	return c.address
}

// AccessToken returns the access token, which may be empty.
func (c *APIClient) AccessToken() string {
	return c.accessToken
}

// SetAccessToken replaces the access token.
func (c *APIClient) SetAccessToken(accessToken string) {
	c.accessToken = accessToken
}

// PublicInfo fetches the unauthenticated system info. It is a single-shot
// probe: no retries.
func (c *APIClient) PublicInfo(ctx context.Context) (domain.ServerInfo, error) {
	resp, err := c.httpClient.Probe(ctx, httpclient.Request{
		URL: c.address + "/system/info/public",
	})
	if err != nil {
		return domain.ServerInfo{}, err
	}

	var info publicSystemInfo
	if err := resp.JSON(&info); err != nil {
		return domain.ServerInfo{}, err
	}

	return info.toServerInfo(), nil
}

// Info fetches the authenticated system info, validating the access token as
// a side effect.
func (c *APIClient) Info(ctx context.Context) (domain.ServerInfo, error) {
	resp, err := c.httpClient.Do(ctx, httpclient.Request{
		URL:    c.address + "/system/info",
		Header: c.authHeader(),
	})
	if err != nil {
		return domain.ServerInfo{}, err
	}

	var info publicSystemInfo
	if err := resp.JSON(&info); err != nil {
		return domain.ServerInfo{}, err
	}

	return info.toServerInfo(), nil
}

// Logout invalidates the access token server-side.
func (c *APIClient) Logout(ctx context.Context) error {
	_, err := c.httpClient.Do(ctx, httpclient.Request{
		URL:    c.address + "/sessions/logout",
		Method: http.MethodPost,
		Header: c.authHeader(),
	})
	return err
}

func (c *APIClient) authHeader() http.Header {
	header := http.Header{}
	if c.accessToken != "" {
		header.Set(httpclient.HeaderAuthToken, c.accessToken)
	}
	return header
}
