package tron

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tron-gateway/internal/retry"
)

// HTTPClient talks to the TronGrid REST API. Failures carry a retry class so
// callers can back off correctly (408/429 rate limit, other 4xx permanent).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPClient(baseURL, apiKey string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// AccountInfo is the TronGrid account view. Balance is in sun.
type AccountInfo struct {
	Address     string `json:"address"`
	Balance     int64  `json:"balance"`
	CreateTime  int64  `json:"create_time"`
	NetUsed     int64  `json:"net_used"`
	NetLimit    int64  `json:"net_limit"`
	EnergyUsed  int64  `json:"energy_used"`
	EnergyLimit int64  `json:"energy_limit"`
}

// TRC20TransferRecord is one entry from the TRC-20 transfer history endpoint.
type TRC20TransferRecord struct {
	TransactionID  string `json:"transaction_id"`
	BlockTimestamp int64  `json:"block_timestamp"`
	From           string `json:"from"`
	To             string `json:"to"`
	Type           string `json:"type"`
	Value          string `json:"value"`
	TokenInfo      struct {
		Symbol   string `json:"symbol"`
		Address  string `json:"address"`
		Decimals int32  `json:"decimals"`
		Name     string `json:"name"`
	} `json:"token_info"`
}

// ConstantCallResult is the response of a read-only contract invocation.
type ConstantCallResult struct {
	Result struct {
		Result  bool   `json:"result"`
		Message string `json:"message"`
	} `json:"result"`
	EnergyUsed     int64    `json:"energy_used"`
	ConstantResult []string `json:"constant_result"`
}

type chainParameter struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

func (c *HTTPClient) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	return c.do(req, out)
}

func (c *HTTPClient) post(ctx context.Context, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to marshal payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Network(fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("trongrid error (status %d): %s", resp.StatusCode, string(body))
		return retry.FromHTTPStatus(resp.StatusCode, err)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Temporary(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// GetAccountInfo returns account state. A never-funded address yields a zero
// AccountInfo, not an error.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	url := fmt.Sprintf("%s/v1/accounts/%s", c.baseURL, address)

	var result struct {
		Success bool          `json:"success"`
		Data    []AccountInfo `json:"data"`
	}
	if err := c.get(ctx, url, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		// Account not yet on chain.
		return &AccountInfo{Address: address}, nil
	}
	return &result.Data[0], nil
}

// GetTokenBalance returns the TRC-20 balance in the token's smallest unit.
func (c *HTTPClient) GetTokenBalance(ctx context.Context, address, contractAddress string) (string, error) {
	url := fmt.Sprintf("%s/v1/accounts/%s/trc20/%s", c.baseURL, address, contractAddress)

	var result struct {
		Success bool   `json:"success"`
		Data    string `json:"data"`
	}
	if err := c.get(ctx, url, &result); err != nil {
		return "", err
	}
	if result.Data == "" {
		return "0", nil
	}
	return result.Data, nil
}

// GetTRC20Transfers returns recent transfer history for the address, scoped
// to one token contract.
func (c *HTTPClient) GetTRC20Transfers(ctx context.Context, address, contractAddress string, limit int) ([]TRC20TransferRecord, error) {
	url := fmt.Sprintf("%s/v1/accounts/%s/transactions/trc20?limit=%d&contract_address=%s",
		c.baseURL, address, limit, contractAddress)

	var result struct {
		Success bool                  `json:"success"`
		Data    []TRC20TransferRecord `json:"data"`
	}
	if err := c.get(ctx, url, &result); err != nil {
		return nil, err
	}

	c.logger.Debug("trc20 transfers retrieved",
		zap.String("address", address),
		zap.Int("count", len(result.Data)))

	return result.Data, nil
}

// TriggerConstantContract runs a read-only contract call, used for energy
// estimation of a prospective transfer.
func (c *HTTPClient) TriggerConstantContract(ctx context.Context, owner, contract, selector, parameter string) (*ConstantCallResult, error) {
	url := fmt.Sprintf("%s/wallet/triggerconstantcontract", c.baseURL)

	payload := map[string]interface{}{
		"owner_address":     owner,
		"contract_address":  contract,
		"function_selector": selector,
		"parameter":         parameter,
		"visible":           true,
	}

	var result ConstantCallResult
	if err := c.post(ctx, url, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetChainParameters returns the current energy and bandwidth prices in sun.
func (c *HTTPClient) GetChainParameters(ctx context.Context) (energyPriceSun, bandwidthPriceSun int64, err error) {
	url := fmt.Sprintf("%s/wallet/getchainparameters", c.baseURL)

	var result struct {
		ChainParameter []chainParameter `json:"chainParameter"`
	}
	if err := c.get(ctx, url, &result); err != nil {
		return 0, 0, err
	}

	for _, p := range result.ChainParameter {
		switch p.Key {
		case "getEnergyFee":
			energyPriceSun = p.Value
		case "getTransactionFee":
			bandwidthPriceSun = p.Value
		}
	}
	if energyPriceSun == 0 {
		return 0, 0, retry.Temporary(fmt.Errorf("chain parameters missing energy price"))
	}
	return energyPriceSun, bandwidthPriceSun, nil
}
