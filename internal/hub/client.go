package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// apiVersion is the hub service REST API version pinned by this client.
const apiVersion = "2021-04-12"

// defaultRequestTimeout bounds individual hub requests when the caller
// supplies no tighter deadline.
const defaultRequestTimeout = 10 * time.Second

// Device is a device identity in the hub registry.
type Device struct {
	DeviceID       string         `json:"deviceId"`
	Status         string         `json:"status"`
	Authentication Authentication `json:"authentication"`
}

// Authentication carries the identity's credential material.
type Authentication struct {
	Type         string       `json:"type"`
	SymmetricKey SymmetricKey `json:"symmetricKey"`
}

// SymmetricKey holds the dual base64 keys of a SAS identity. The hub
// requires both; callers that only track one secret supply it twice.
type SymmetricKey struct {
	PrimaryKey   string `json:"primaryKey"`
	SecondaryKey string `json:"secondaryKey"`
}

// twin mirrors the subset of the device-twin document this client reads.
type twin struct {
	Properties struct {
		Reported map[string]interface{} `json:"reported"`
	} `json:"properties"`
}

// Client talks to one hub's device registry over REST.
//
// Authentication uses shared-access-signature tokens generated from the
// connection string; tokens are cached and refreshed transparently.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cs         ConnectionString
	endpoint   string
	httpClient *http.Client

	// Cached SAS token, refreshed sasRefreshMargin before expiry.
	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient parses the connection string and builds a registry client.
//
// Parameters:
//   - connectionString: Hub connection string from tenant configuration
//   - timeout: Per-request timeout; zero selects the default
//
// Returns:
//   - *Client: Ready-to-use client
//   - error: If the connection string is invalid
func NewClient(connectionString string, timeout time.Duration) (*Client, error) {
	cs, err := ParseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		cs:         cs,
		endpoint:   "https://" + cs.HostName,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// HostName returns the hub host this client is bound to.
func (c *Client) HostName() string {
	return c.cs.HostName
}

// sasToken returns a valid cached token, minting a fresh one when the
// cached token is absent or close to expiry.
func (c *Client) sasToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > sasRefreshMargin {
		return c.token, nil
	}

	expiry := time.Now().Add(sasTokenTTL)
	token, err := generateSASToken(c.cs, expiry)
	if err != nil {
		return "", err
	}

	c.token = token
	c.tokenExpiry = expiry
	return token, nil
}

// CreateDevice registers a new enabled device identity.
//
// The identity authenticates with symmetric keys; the same secret is
// accepted for both key slots when the caller tracks only one.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - deviceID: Identity to create
//   - primaryKey: Base64 primary symmetric key
//   - secondaryKey: Base64 secondary symmetric key
//
// Returns:
//   - *Device: The identity as stored by the hub
//   - error: ErrDeviceExists if the ID is already registered
func (c *Client) CreateDevice(ctx context.Context, deviceID string, primaryKey string, secondaryKey string) (*Device, error) {
	device := Device{
		DeviceID: deviceID,
		Status:   "enabled",
		Authentication: Authentication{
			Type: "sas",
			SymmetricKey: SymmetricKey{
				PrimaryKey:   primaryKey,
				SecondaryKey: secondaryKey,
			},
		},
	}

	body, err := json.Marshal(device)
	if err != nil {
		return nil, fmt.Errorf("hub: encode device: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, "/devices/"+url.PathEscape(deviceID), body, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var created Device
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return nil, fmt.Errorf("hub: decode create response: %w", err)
		}
		return &created, nil
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", ErrDeviceExists, deviceID)
	default:
		return nil, responseError("create device", resp)
	}
}

// GetDevice fetches a device identity, including its symmetric keys.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	resp, err := c.do(ctx, http.MethodGet, "/devices/"+url.PathEscape(deviceID), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var device Device
		if err := json.NewDecoder(resp.Body).Decode(&device); err != nil {
			return nil, fmt.Errorf("hub: decode device: %w", err)
		}
		return &device, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	default:
		return nil, responseError("get device", resp)
	}
}

// DeleteDevice removes a device identity unconditionally.
//
// Returns ErrDeviceNotFound when the identity is already gone, so the
// caller can decide whether absence is a failure. An unconditional
// If-Match skips the ETag round trip.
func (c *Client) DeleteDevice(ctx context.Context, deviceID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/devices/"+url.PathEscape(deviceID), nil, "*")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	default:
		return responseError("delete device", resp)
	}
}

// GetReportedProperties fetches the reported side of a device twin.
//
// Hub-internal bookkeeping entries ($metadata, $version) are stripped;
// only device-reported values remain. An absent or empty reported
// section yields an empty map.
//
// Returns:
//   - map[string]interface{}: Reported property tree
//   - error: ErrDeviceNotFound if the twin does not exist
func (c *Client) GetReportedProperties(ctx context.Context, deviceID string) (map[string]interface{}, error) {
	resp, err := c.do(ctx, http.MethodGet, "/twins/"+url.PathEscape(deviceID), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var t twin
		if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
			return nil, fmt.Errorf("hub: decode twin: %w", err)
		}

		reported := make(map[string]interface{}, len(t.Properties.Reported))
		for key, value := range t.Properties.Reported {
			if strings.HasPrefix(key, "$") {
				continue
			}
			reported[key] = value
		}
		return reported, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	default:
		return nil, responseError("get twin", resp)
	}
}

// do issues one authenticated request against the hub REST API.
func (c *Client) do(ctx context.Context, method string, path string, body []byte, ifMatch string) (*http.Response, error) {
	token, err := c.sasToken()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path+"?api-version="+apiVersion, reader)
	if err != nil {
		return nil, fmt.Errorf("hub: build request: %w", err)
	}

	req.Header.Set("Authorization", token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ifMatch != "" {
		// Quoted per RFC 7232; the hub rejects bare asterisks.
		req.Header.Set("If-Match", `"`+ifMatch+`"`)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	return resp, nil
}

// responseError summarizes an unexpected hub response, including a
// truncated body excerpt for diagnosis.
func responseError(op string, resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("%w: %s: status %d: %s", ErrRequestFailed, op, resp.StatusCode, strings.TrimSpace(string(excerpt)))
}
