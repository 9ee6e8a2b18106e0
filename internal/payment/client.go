package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a Stripe-style checkout REST API over HTTPS with a secret
// bearer key and form-encoded request bodies.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates the HTTP checkout client for the given API base URL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCheckoutSession opens a hosted checkout session for one credit
// package line item.
func (c *Client) CreateCheckoutSession(ctx context.Context, input CheckoutInput) (CheckoutSession, error) {
	if c == nil || c.baseURL == "" {
		return CheckoutSession{}, fmt.Errorf("checkout client not configured")
	}

	quantity := input.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", input.SuccessURL)
	form.Set("cancel_url", input.CancelURL)
	form.Set("customer_email", input.CustomerEmail)
	form.Set("client_reference_id", input.PackageID)
	form.Set("line_items[0][price_data][currency]", input.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(input.UnitAmount, 10))
	form.Set("line_items[0][price_data][product_data][name]", fmt.Sprintf("%d credits", input.Credits))
	form.Set("line_items[0][quantity]", strconv.Itoa(quantity))

	var out sessionResponse
	if err := c.post(ctx, "/v1/checkout/sessions", form, &out); err != nil {
		return CheckoutSession{}, err
	}
	if out.ID == "" {
		return CheckoutSession{}, fmt.Errorf("checkout session response missing id")
	}
	return CheckoutSession{ID: out.ID, URL: out.URL}, nil
}

// ExpireCheckoutSession cancels a session so the hosted payment page stops
// accepting the payment.
func (c *Client) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("checkout client not configured")
	}
	return c.post(ctx, "/v1/checkout/sessions/"+url.PathEscape(sessionID)+"/expire", url.Values{}, &sessionResponse{})
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if err := json.NewDecoder(resp.Body).Decode(&ae); err == nil && ae.Error.Message != "" {
			return fmt.Errorf("checkout api: %s (status %d)", ae.Error.Message, resp.StatusCode)
		}
		return fmt.Errorf("checkout api: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
