package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPGetWithAuth issues an authenticated GET and returns the response body.
// Non-2xx statuses are returned as errors, 4xx permanent, anything else temporary.
func HTTPGetWithAuth(ctx context.Context, url, authName, authPswd string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPGet: %w", err)
	}
	resp, err := doWithAuth(req, authName, authPswd)
	if err != nil {
		return nil, MakeTemporary(fmt.Errorf("HTTPGet: %w", err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, MakeTemporary(fmt.Errorf("HTTPGet.ReadAll: %w", err))
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	err = fmt.Errorf("HTTPGet %s: %s: %s", url, resp.Status, string(body))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, err
	}
	return nil, MakeTemporary(err)
}

// HTTPPostWithAuth issues an authenticated POST with a json body.
// The caller owns the response and its status handling.
func HTTPPostWithAuth(ctx context.Context, url string, body io.Reader, authName, authPswd string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPPost: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")
	return doWithAuth(req, authName, authPswd)
}

func doWithAuth(req *http.Request, authName, authPswd string) (*http.Response, error) {
	if authName != "" {
		req.SetBasicAuth(authName, authPswd)
	}
	client := http.Client{}
	return client.Do(req)
}
