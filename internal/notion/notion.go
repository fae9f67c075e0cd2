// Package notion appends notes to, and creates child pages under, a
// single Notion page through the public REST API.
package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/krish/internal/httpkit"
)

// DefaultBaseURL is the Notion API root.
const DefaultBaseURL = "https://api.notion.com/v1"

// maxTextLen is Notion's limit for one rich_text content string.
const maxTextLen = 2000

// Client talks to one parent page.
type Client struct {
	baseURL    string
	token      string
	version    string
	pageID     string
	httpClient *http.Client
}

// Config configures a Client.
type Config struct {
	Token   string
	PageID  string
	Version string // Notion-Version header, e.g. "2022-06-28"
	BaseURL string // defaults to DefaultBaseURL
}

// New creates a Notion client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		version: cfg.Version,
		pageID:  cfg.PageID,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(20*time.Second),
			httpkit.WithRetry(2, time.Second),
		),
	}
}

// PageID returns the parent page.
func (c *Client) PageID() string { return c.pageID }

// PageURL returns a browser link to the parent page.
func (c *Client) PageURL() string {
	return "notion.so/" + strings.ReplaceAll(c.pageID, "-", "")
}

type richText struct {
	Type string   `json:"type"`
	Text textBody `json:"text"`
}

type textBody struct {
	Content string `json:"content"`
}

type paragraphBlock struct {
	Object    string    `json:"object"`
	Type      string    `json:"type"`
	Paragraph paragraph `json:"paragraph"`
}

type paragraph struct {
	RichText []richText `json:"rich_text"`
}

// paragraphs splits content into paragraph blocks, one per non-empty
// line, each chunked to the rich_text length limit.
func paragraphs(content string) []paragraphBlock {
	var blocks []paragraphBlock
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rt []richText
		for _, chunk := range chunk(line, maxTextLen) {
			rt = append(rt, richText{Type: "text", Text: textBody{Content: chunk}})
		}
		blocks = append(blocks, paragraphBlock{Object: "block", Type: "paragraph", Paragraph: paragraph{RichText: rt}})
	}
	return blocks
}

func chunk(s string, n int) []string {
	r := []rune(s)
	var out []string
	for len(r) > n {
		out = append(out, string(r[:n]))
		r = r[n:]
	}
	return append(out, string(r))
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.token)
	h.Set("Notion-Version", c.version)
	return h
}

// Append adds content to the end of the parent page.
func (c *Client) Append(ctx context.Context, content string) error {
	blocks := paragraphs(content)
	if len(blocks) == 0 {
		return errors.New("notion: content is empty")
	}
	body := map[string]any{"children": blocks}
	url := fmt.Sprintf("%s/blocks/%s/children", c.baseURL, c.pageID)
	if err := httpkit.DoJSON(ctx, c.httpClient, http.MethodPatch, url, c.header(), body, nil); err != nil {
		return fmt.Errorf("notion: append: %w", err)
	}
	return nil
}

type pageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreatePage creates a child page of the parent page and returns its URL.
func (c *Client) CreatePage(ctx context.Context, title, content string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", errors.New("notion: title is required")
	}
	body := map[string]any{
		"parent": map[string]string{"page_id": c.pageID},
		"properties": map[string]any{
			"title": map[string]any{
				"title": []richText{{Type: "text", Text: textBody{Content: title}}},
			},
		},
		"children": paragraphs(content),
	}

	var resp pageResponse
	if err := httpkit.DoJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/pages", c.header(), body, &resp); err != nil {
		return "", fmt.Errorf("notion: create page: %w", err)
	}
	return resp.URL, nil
}
