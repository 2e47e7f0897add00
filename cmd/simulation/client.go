package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// simulationClient posts terminal reports and polls the dashboard API
type simulationClient struct {
	baseURL   string
	ingestKey string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

var statsOrder = []string{"auth", "ingest", "ingest_batch", "list", "analytics"}

// newSimulationClient creates a client whose requests give up after timeout,
// the way a terminal's WebRequest does.
func newSimulationClient(baseURL, ingestKey string, timeout time.Duration) *simulationClient {
	return &simulationClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		ingestKey: ingestKey,
		client:    &http.Client{Timeout: timeout},
		stats: map[string]*routeStats{
			"auth":         {name: "Authentication"},
			"ingest":       {name: "Ingest"},
			"ingest_batch": {name: "Ingest (batched)"},
			"list":         {name: "List Accounts"},
			"analytics":    {name: "Analytics"},
		},
	}
}

// authenticate exchanges dashboard credentials for a JWT
func (sc *simulationClient) authenticate(apiKey, apiSecret string) error {
	body, _ := json.Marshal(map[string]string{"api_key": apiKey, "api_secret": apiSecret})

	respBody, err := sc.do("auth", http.MethodPost, "/api/auth/token", body)
	if err != nil {
		return err
	}

	var token struct {
		Token string `json:"jwt_token"`
	}
	if err := json.Unmarshal(respBody, &token); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	sc.authToken = token.Token
	return nil
}

// ingest posts one or more reports. Several reports are concatenated into a
// single body without separators.
func (sc *simulationClient) ingest(reports [][]byte) error {
	route := "ingest"
	if len(reports) > 1 {
		route = "ingest_batch"
	}
	_, err := sc.do(route, http.MethodPost, "/api/mt4data", bytes.Join(reports, nil))
	return err
}

func (sc *simulationClient) listAccounts() (int, error) {
	respBody, err := sc.do("list", http.MethodGet, "/api/accounts?sort=equity", nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Accounts []json.RawMessage `json:"accounts"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return 0, err
	}
	return len(out.Accounts), nil
}

func (sc *simulationClient) analytics() error {
	_, err := sc.do("analytics", http.MethodGet, "/api/analytics?window=daily", nil)
	return err
}

func (sc *simulationClient) do(route, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.ingestKey != "" {
		req.Header.Set("X-API-Key", sc.ingestKey)
	}
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}

	start := time.Now()
	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[route].addFailure()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		sc.stats[route].addFailure()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		sc.stats[route].addFailure()
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(respBody))
	}

	sc.stats[route].addDuration(time.Since(start))
	log.Debug().Str("route", route).Str("response", string(respBody)).Msg("response")
	return respBody, nil
}
