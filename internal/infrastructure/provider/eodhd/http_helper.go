package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// getJSON is the shared GET helper: rate limit, auth params, status check, decode.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("fmt", "json")
	if c.apiKey != "" {
		params.Set("api_token", c.apiKey)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("eodhd api error: %d %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// jsonDecimal accepts numbers, quoted numbers and null.
type jsonDecimal struct {
	decimal.NullDecimal
}

func (d *jsonDecimal) UnmarshalJSON(b []byte) error {
	if string(b) == "null" || string(b) == `""` {
		d.Valid = false
		d.Decimal = decimal.Zero
		return nil
	}
	if err := d.Decimal.UnmarshalJSON(b); err != nil {
		return err
	}
	d.Valid = true
	return nil
}
