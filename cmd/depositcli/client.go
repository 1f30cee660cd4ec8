package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/urfave/cli/v2"
)

const requestTimeout = 30 * time.Second

type daemonClient struct {
	server string
	token  string
	http   *http.Client
}

type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("daemon replied with status %d", e.status)
	}
	return fmt.Sprintf("daemon replied with status %d: %s", e.status, e.message)
}

func getDaemonClient(_ *cli.Context) (*daemonClient, func(), error) {
	server, token, err := getServerFromState()
	if err != nil {
		return nil, nil, err
	}

	client := &daemonClient{
		server: server,
		token:  token,
		http:   &http.Client{Timeout: requestTimeout},
	}
	cleanup := func() { client.http.CloseIdleConnections() }

	return client, cleanup, nil
}

func (c *daemonClient) get(
	ctx context.Context, path string, query url.Values, out interface{},
) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *daemonClient) post(
	ctx context.Context, path string, body, out interface{},
) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *daemonClient) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *daemonClient) do(
	ctx context.Context, method, path string, query url.Values,
	body, out interface{},
) error {
	endpoint := c.server + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("unable to connect to depositd: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return &apiError{resp.StatusCode, errResp.Error}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
