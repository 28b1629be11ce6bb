package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/api"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/authz"
)

type landregClient struct {
	baseURL string
	user    string
	groups  []string
	http    *http.Client
}

func newClient() *landregClient {
	return &landregClient{
		baseURL: strings.TrimRight(viper.GetString("server"), "/"),
		user:    viper.GetString("user"),
		groups:  viper.GetStringSlice("groups"),
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// statusError is returned for responses outside the accepted status codes.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &payload) == nil && payload.Error != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, payload.Error)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// getJSON performs a GET request against the versioned API and decodes the
// response.
func (c *landregClient) getJSON(path string, v any) error {
	return c.do(http.MethodGet, api.BasePath+path, nil, v, http.StatusOK)
}

// postJSON performs a POST request with a JSON body. Any status in accepted
// is decoded into v; 200 is assumed when none is given.
func (c *landregClient) postJSON(path string, body, v any, accepted ...int) error {
	if len(accepted) == 0 {
		accepted = []int{http.StatusOK}
	}
	return c.do(http.MethodPost, api.BasePath+path, body, v, accepted...)
}

// getRoot fetches an unversioned endpoint such as the health probes.
func (c *landregClient) getRoot(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v, http.StatusOK, http.StatusServiceUnavailable)
}

func (c *landregClient) do(method, path string, body, v any, accepted ...int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set(authz.UserHeader, c.user)
	}
	if len(c.groups) > 0 {
		req.Header.Set(authz.GroupHeader, strings.Join(c.groups, ","))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := false
	for _, s := range accepted {
		if resp.StatusCode == s {
			ok = true
			break
		}
	}
	if !ok {
		data, _ := io.ReadAll(resp.Body)
		return &statusError{Status: resp.StatusCode, Body: string(data)}
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode error: %w", err)
	}
	return nil
}
