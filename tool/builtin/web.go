package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/tool"
)

const (
	fetchUserAgent    = "rig/1.0 (+https://github.com/rajiknows/rig)"
	fetchMaxRedirects = 5
	fetchMaxBody      = 5 << 20
	fetchMaxChars     = 50000
)

func newFetchClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= fetchMaxRedirects {
				return fmt.Errorf("stopped after %d redirects", fetchMaxRedirects)
			}
			return nil
		},
	}
}

func validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing domain in URL")
	}
	return u, nil
}

type fetchResult struct {
	URL       string `json:"url"`
	FinalURL  string `json:"final_url"`
	Status    int    `json:"status"`
	Extractor string `json:"extractor"`
	Truncated bool   `json:"truncated"`
	Text      string `json:"text"`
}

func fetchURLTool(client *http.Client) tool.Tool {
	return tool.Tool{
		Definition: completion.ToolDefinition{
			Name:        FetchURL,
			Description: "Fetch a web page and extract its readable text.",
			Parameters: objectSchema(map[string]interface{}{
				"url":       prop("string", "http or https URL to fetch."),
				"max_chars": prop("integer", "Maximum characters of text to return. Default: 50000."),
			}, "url"),
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := tool.ParseArguments(raw)
			if err != nil {
				return "", err
			}
			rawURL, ok := tool.StringArg(args, "url")
			if !ok || rawURL == "" {
				return "", fmt.Errorf("url is required")
			}
			maxChars, _ := tool.IntArg(args, "max_chars")
			if maxChars <= 0 {
				maxChars = fetchMaxChars
			}
			res, err := fetch(ctx, client, rawURL, maxChars)
			if err != nil {
				return "", err
			}
			out, err := json.Marshal(res)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

func fetch(ctx context.Context, client *http.Client, rawURL string, maxChars int) (*fetchResult, error) {
	parsed, err := validateURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch_url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch_url: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch_url: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBody))
	if err != nil {
		return nil, fmt.Errorf("fetch_url: read body: %w", err)
	}

	res := &fetchResult{URL: rawURL, FinalURL: resp.Request.URL.String(), Status: resp.StatusCode}
	ctype := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(ctype, "application/json"):
		var v interface{}
		if err := json.Unmarshal(body, &v); err == nil {
			pretty, _ := json.MarshalIndent(v, "", "  ")
			res.Text = string(pretty)
		} else {
			res.Text = string(body)
		}
		res.Extractor = "json"
	case strings.Contains(ctype, "text/html") || looksLikeHTML(body):
		article, err := readability.FromReader(bytes.NewReader(body), parsed)
		if err != nil {
			res.Text = string(body)
			res.Extractor = "raw"
			break
		}
		res.Text = strings.TrimSpace(article.TextContent)
		if article.Title != "" {
			res.Text = "# " + article.Title + "\n\n" + res.Text
		}
		res.Extractor = "readability"
	default:
		res.Text = string(body)
		res.Extractor = "raw"
	}

	if len(res.Text) > maxChars {
		res.Text = res.Text[:maxChars]
		res.Truncated = true
	}
	return res, nil
}

func looksLikeHTML(b []byte) bool {
	n := len(b)
	if n > 256 {
		n = 256
	}
	prefix := strings.ToLower(strings.TrimSpace(string(b[:n])))
	return strings.HasPrefix(prefix, "<!doctype") || strings.HasPrefix(prefix, "<html")
}
