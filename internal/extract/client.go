// Package extract предоставляет клиент внешнего сервиса извлечения данных
// товара из свободного текста.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client инкапсулирует HTTP-взаимодействие с сервисом извлечения.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ProductDraft описывает поля товара, извлечённые из текста. Цена передаётся
// строкой и разбирается на нашей стороне, чтобы не терять контроль над форматом.
type ProductDraft struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Stock       int64  `json:"stock"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ContentRef  string `json:"content_ref"`
}

// NewClient создаёт HTTP-клиент сервиса извлечения по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ExtractProduct отправляет свободный текст и возвращает черновик полей товара.
func (c *Client) ExtractProduct(ctx context.Context, text string) (*ProductDraft, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("extract client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var draft ProductDraft
	if err := json.NewDecoder(resp.Body).Decode(&draft); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if draft.Name == "" || draft.Price == "" {
		return nil, fmt.Errorf("extraction returned incomplete product data")
	}

	return &draft, nil
}
