// Package web implements the fetch_url tool.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Cyclone1070/agentcore/internal/config"
	"github.com/Cyclone1070/agentcore/internal/tool"
	"github.com/Cyclone1070/agentcore/internal/tool/fsutil"
)

const FetchURLName = "fetch_url"

// FetchRequest downloads one URL.
type FetchRequest struct {
	URL string `json:"url"`
}

func (r FetchRequest) String() string {
	return r.URL
}

func (r *FetchRequest) Validate() error {
	if r.URL == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q, only http and https are allowed", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	return nil
}

// PermissionKey is the host, so one approval covers a site.
func (r *FetchRequest) PermissionKey() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

// NewFetchTool creates fetch_url. client may be nil to use a client with the
// configured timeout.
func NewFetchTool(client *http.Client, cfg config.ToolsConfig) tool.Tool {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second}
	}
	maxBytes := cfg.MaxFetchBytes

	return tool.NewTyped(tool.Declaration{
		Name:        FetchURLName,
		Description: "Fetch a URL with HTTP GET and return the response body as text.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"url": {Type: tool.TypeString, Description: "http or https URL."},
			},
			Required: []string{"url"},
		},
	}, func(ctx context.Context, req FetchRequest) (tool.Result, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
		if err != nil {
			return tool.Failf("build request: %v", err), nil
		}
		httpReq.Header.Set("User-Agent", "agentcore/0.1")

		resp, err := client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return tool.Result{}, ctx.Err()
			}
			return tool.Failf("fetch %s: %v", req.URL, err), nil
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
		if err != nil {
			return tool.Failf("read body of %s: %v", req.URL, err), nil
		}
		truncated := int64(len(body)) > maxBytes
		if truncated {
			body = body[:maxBytes]
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return tool.Result{
				ErrorDetail: fmt.Sprintf("%s returned %s", req.URL, resp.Status),
				Output:      string(body),
			}, nil
		}
		if fsutil.IsBinaryContent(body) {
			return tool.Failf("%s returned binary content (%s)", req.URL, resp.Header.Get("Content-Type")), nil
		}

		var sb strings.Builder
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			fmt.Fprintf(&sb, "Content-Type: %s\n\n", ct)
		}
		sb.Write(body)
		if truncated {
			fmt.Fprintf(&sb, "\n[body truncated at %d bytes]", maxBytes)
		}
		return tool.OK(sb.String()), nil
	})
}
