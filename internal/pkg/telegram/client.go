// Package telegram is a thin Bot API client for calls the bot framework
// does not cover, currently Stars invoice links.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const apiBase = "https://api.telegram.org"

// Client calls the Telegram Bot API over HTTP.
type Client struct {
	httpClient *http.Client
	token      string
}

// NewClient creates a Client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		token:      token,
	}
}

// Invoice describes a Telegram Stars invoice. Amount is in stars (XTR).
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Amount      int64
}

type labeledPrice struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

type invoiceRequest struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Payload       string         `json:"payload"`
	ProviderToken string         `json:"provider_token"`
	Currency      string         `json:"currency"`
	Prices        []labeledPrice `json:"prices"`
}

type apiResponse struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

// CreateInvoiceLink creates a payment link for a Stars invoice. Stars
// payments use the XTR currency and an empty provider token.
func (c *Client) CreateInvoiceLink(ctx context.Context, inv Invoice) (string, error) {
	body, err := json.Marshal(invoiceRequest{
		Title:         inv.Title,
		Description:   inv.Description,
		Payload:       inv.Payload,
		ProviderToken: "",
		Currency:      "XTR",
		Prices:        []labeledPrice{{Label: inv.Title, Amount: inv.Amount}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal invoice request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/createInvoiceLink", apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build invoice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call createInvoiceLink: %w", err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("failed to decode createInvoiceLink response: %w", err)
	}
	if !apiResp.Ok {
		return "", fmt.Errorf("createInvoiceLink rejected: %s", apiResp.Description)
	}

	var link string
	if err := json.Unmarshal(apiResp.Result, &link); err != nil {
		return "", fmt.Errorf("failed to decode invoice link: %w", err)
	}
	return link, nil
}
