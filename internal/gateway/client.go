// Package gateway предоставляет клиент исходящих сообщений чат-шлюза:
// доставку купленного контента и тексты уведомлений.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client инкапсулирует HTTP-взаимодействие с чат-шлюзом.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент шлюза по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// SendMessage отправляет пользователю текстовое сообщение.
func (c *Client) SendMessage(ctx context.Context, userID int64, text string) error {
	return c.post(ctx, "/api/send/message", map[string]any{
		"user_id": userID,
		"text":    text,
	})
}

// SendContent доставляет пользователю ссылку или файл купленного товара.
func (c *Client) SendContent(ctx context.Context, userID int64, name, contentRef string) error {
	return c.post(ctx, "/api/send/content", map[string]any{
		"user_id":     userID,
		"name":        name,
		"content_ref": contentRef,
	})
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("gateway client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
