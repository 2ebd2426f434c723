package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// YieldVaultClient talks to the yield executor fronting external ERC-4626
// style sub-vaults.
type YieldVaultClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewYieldVaultClient(baseURL string, timeout time.Duration) *YieldVaultClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &YieldVaultClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type vaultAssetResponse struct {
	Asset string `json:"asset"`
}

type vaultAmountRequest struct {
	Amount string `json:"amount"`
}

type vaultAmountResponse struct {
	Amount string `json:"amount"`
}

func (c *YieldVaultClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal yield request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build yield request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("yield executor call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("yield executor returned %d: %s", resp.StatusCode, string(data))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode yield response: %w", err)
		}
	}
	return nil
}

func parseAmountField(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("yield executor returned bad amount %q", s)
	}
	return v, nil
}

// UnderlyingAsset returns the vault's live self-reported deposit asset.
func (c *YieldVaultClient) UnderlyingAsset(ctx context.Context, vault common.Address) (common.Address, error) {
	var out vaultAssetResponse
	if err := c.do(ctx, http.MethodGet, "/v1/vaults/"+vault.Hex()+"/asset", nil, &out); err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(out.Asset) {
		return common.Address{}, fmt.Errorf("yield executor returned bad asset %q", out.Asset)
	}
	return common.HexToAddress(out.Asset), nil
}

// Deposit pushes an underlying amount into the vault, returning the vault
// shares received.
func (c *YieldVaultClient) Deposit(ctx context.Context, vault common.Address, amount *big.Int) (*big.Int, error) {
	var out vaultAmountResponse
	err := c.do(ctx, http.MethodPost, "/v1/vaults/"+vault.Hex()+"/deposit", vaultAmountRequest{Amount: amount.String()}, &out)
	if err != nil {
		return nil, err
	}
	return parseAmountField(out.Amount)
}

// Withdraw burns vault shares, returning the underlying received.
func (c *YieldVaultClient) Withdraw(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error) {
	var out vaultAmountResponse
	err := c.do(ctx, http.MethodPost, "/v1/vaults/"+vault.Hex()+"/withdraw", vaultAmountRequest{Amount: shares.String()}, &out)
	if err != nil {
		return nil, err
	}
	return parseAmountField(out.Amount)
}

// AssetValue values a share count in underlying terms without moving funds.
func (c *YieldVaultClient) AssetValue(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error) {
	var out vaultAmountResponse
	err := c.do(ctx, http.MethodGet, "/v1/vaults/"+vault.Hex()+"/value?shares="+shares.String(), nil, &out)
	if err != nil {
		return nil, err
	}
	return parseAmountField(out.Amount)
}
