// Package monitorclient is a small HTTP client for cmd/monitor: it talks to
// a running gateway's REST surface (internal/server) over plain
// encoding/json, the same way the gateway's own handlers decode requests
// and encode responses.
package monitorclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is a thin wrapper around http.Client pointed at one gateway base
// URL (e.g. "http://127.0.0.1:8000").
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New constructs a Client with a sane request timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Health mirrors server.HealthResponse.
type Health struct {
	Status              string    `json:"status"`
	ControllerConnected bool      `json:"controller_connected"`
	ParametersCount     int       `json:"parameters_count"`
	LastUpdate          time.Time `json:"last_update,omitempty"`
}

// Parameter mirrors server.ParameterDTO.
type Parameter struct {
	StoredIndex int    `json:"stored_index"`
	Name        string `json:"name"`
	Unit        string `json:"unit,omitempty"`
	Value       any    `json:"value"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Alarm mirrors server.AlarmDTO.
type Alarm struct {
	Code     int     `json:"code"`
	FromDate string  `json:"from_date"`
	ToDate   *string `json:"to_date,omitempty"`
}

// APIError mirrors server.APIError, returned on non-2xx responses.
type APIError struct {
	Status int
	Msg    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: %d: %s", e.Status, e.Msg)
}

// GetHealth fetches GET /health.
func (c *Client) GetHealth() (Health, error) {
	var h Health
	err := c.getJSON("/health", &h)
	return h, err
}

// GetParameters fetches GET /parameters, keyed by stored index (as a
// decimal string).
func (c *Client) GetParameters() (map[string]Parameter, error) {
	var resp struct {
		Parameters map[string]Parameter `json:"parameters"`
		Count      int                  `json:"count"`
	}
	err := c.getJSON("/parameters", &resp)
	return resp.Parameters, err
}

// GetAlarms fetches GET /alarms, newest first.
func (c *Client) GetAlarms() ([]Alarm, error) {
	var resp struct {
		Alarms []Alarm `json:"alarms"`
		Count  int     `json:"count"`
	}
	err := c.getJSON("/alarms", &resp)
	return resp.Alarms, err
}

// WriteParameter sets a parameter by name. It returns the new value the
// gateway reports back (which may differ slightly from the requested value,
// e.g. after round-tripping through the wire codec).
func (c *Client) WriteParameter(name string, value any) (any, error) {
	body, err := json.Marshal(map[string]any{"value": value})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/parameters/"+name, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var apiErr APIError
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		apiErr.Status = res.StatusCode
		return nil, &apiErr
	}

	var resp struct {
		Name     string `json:"name"`
		OldValue any    `json:"old_value"`
		NewValue any    `json:"new_value"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, err
	}
	return resp.NewValue, nil
}

// RefreshParameter forces an on-demand re-read of one parameter, bypassing
// the regular poll cycle.
func (c *Client) RefreshParameter(name string) (Parameter, error) {
	var p Parameter
	res, err := c.HTTP.Post(c.BaseURL+"/parameters/"+name+"/refresh", "application/json", nil)
	if err != nil {
		return p, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var apiErr APIError
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		apiErr.Status = res.StatusCode
		return p, &apiErr
	}
	err = json.NewDecoder(res.Body).Decode(&p)
	return p, err
}

func (c *Client) getJSON(path string, v any) error {
	res, err := c.HTTP.Get(c.BaseURL + path)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var apiErr APIError
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		apiErr.Status = res.StatusCode
		return &apiErr
	}
	return json.NewDecoder(res.Body).Decode(v)
}
