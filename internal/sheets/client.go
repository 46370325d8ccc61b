package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Second

// Client communicates with the spreadsheet web-app endpoint over HTTP.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a Client targeting the given web-app base URL. The token, when
// non-empty, is sent with every request; a timeout <= 0 falls back to the
// default. Timeouts are enforced per call, not on the underlying client.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

// apiRequest is the JSON body for every POST to the web app.
type apiRequest struct {
	Operation string `json:"operation"`
	StoreID   string `json:"storeId"`
	TabName   string `json:"tabName"`
	Data      Row    `json:"data,omitempty"`
	RowIndex  int    `json:"rowIndex"`
	Token     string `json:"token,omitempty"`
}

// apiResponse is the JSON envelope the web app returns. Data carries raw cell
// values, which may be numbers or booleans depending on the sheet formatting.
type apiResponse struct {
	Success bool             `json:"success"`
	Data    []map[string]any `json:"data,omitempty"`
	Error   string           `json:"error,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Read fetches every data row of the given tab.
func (c *Client) Read(ctx context.Context, storeID, tab string) (TabData, error) {
	resp, err := c.call(ctx, apiRequest{Operation: "read", StoreID: storeID, TabName: tab})
	if err != nil {
		return nil, err
	}
	data := make(TabData, len(resp.Data))
	for i, raw := range resp.Data {
		data[i] = normalizeRow(raw)
	}
	return data, nil
}

// Append adds one row to the end of the given tab.
func (c *Client) Append(ctx context.Context, storeID, tab string, row Row) error {
	_, err := c.call(ctx, apiRequest{Operation: "append", StoreID: storeID, TabName: tab, Data: row})
	return err
}

// Update overwrites the row at rowIndex, zero-based over the data rows.
func (c *Client) Update(ctx context.Context, storeID, tab string, rowIndex int, row Row) error {
	_, err := c.call(ctx, apiRequest{Operation: "update", StoreID: storeID, TabName: tab, Data: row, RowIndex: rowIndex})
	return err
}

func (c *Client) call(ctx context.Context, body apiRequest) (*apiResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body.Token = c.token
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/exec", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", body.Operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s/%s: %w", body.Operation, body.StoreID, body.TabName, ErrSourceUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s %s/%s: status %d: %w", body.Operation, body.StoreID, body.TabName, resp.StatusCode, ErrSourceUnavailable)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s %s/%s: status %d: %w", body.Operation, body.StoreID, body.TabName, resp.StatusCode, ErrInvalidData)
	}

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", body.Operation, ErrInvalidData)
	}
	if !env.Success {
		return nil, sourceError(&env, body.TabName)
	}
	return &env, nil
}

// sourceError maps the web app's error codes onto the package sentinels.
func sourceError(env *apiResponse, tab string) error {
	detail := env.Message
	if detail == "" {
		detail = env.Error
	}
	switch env.Error {
	case "tab_not_found":
		return fmt.Errorf("tab %q: %w", tab, ErrTabNotFound)
	case "unavailable", "internal_error":
		return fmt.Errorf("%s: %w", detail, ErrSourceUnavailable)
	default:
		return fmt.Errorf("%s: %w", detail, ErrInvalidData)
	}
}

// normalizeRow flattens raw cell values into strings. Sheets report numeric
// cells as float64 and checkbox cells as bool.
func normalizeRow(raw map[string]any) Row {
	row := make(Row, len(raw))
	for col, val := range raw {
		switch v := val.(type) {
		case string:
			row[col] = v
		case float64:
			row[col] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			row[col] = strconv.FormatBool(v)
		case nil:
			row[col] = ""
		default:
			row[col] = fmt.Sprintf("%v", v)
		}
	}
	return row
}
