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

// CustodianClient calls the custody executor that moves the underlying
// asset. The ledger does the accounting; the custodian does the transfer and
// must fully succeed or fully fail.
type CustodianClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCustodianClient(baseURL string, timeout time.Duration) *CustodianClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CustodianClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type transferRequest struct {
	Asset  string `json:"asset"`
	Party  string `json:"party"` // hex payload, network-specific encoding
	Amount string `json:"amount"`
}

func (c *CustodianClient) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal custodian request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build custodian request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("custodian call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("custodian returned %d: %s", resp.StatusCode, string(data))
	}
	return nil
}

// TransferIn pulls an asset amount from the depositor into custody.
func (c *CustodianClient) TransferIn(ctx context.Context, asset common.Address, from []byte, amount *big.Int) error {
	return c.post(ctx, "/v1/transfers/in", transferRequest{
		Asset:  asset.Hex(),
		Party:  common.Bytes2Hex(from),
		Amount: amount.String(),
	})
}

// TransferOut pays an asset amount from custody to the receiver.
func (c *CustodianClient) TransferOut(ctx context.Context, asset common.Address, to []byte, amount *big.Int) error {
	return c.post(ctx, "/v1/transfers/out", transferRequest{
		Asset:  asset.Hex(),
		Party:  common.Bytes2Hex(to),
		Amount: amount.String(),
	})
}
