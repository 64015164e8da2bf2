package chain

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bazari/settlement/internal/escrow"
)

// EscrowClient is the real implementation of escrow.EscrowChain.
type EscrowClient struct {
	rpc *Client
}

// NewEscrowClient wraps an RPC client.
func NewEscrowClient(rpc *Client) *EscrowClient {
	return &EscrowClient{rpc: rpc}
}

type chainHeader struct {
	Number string `json:"number"` // hex-encoded block height
}

// CurrentBlock returns the best block height.
func (c *EscrowClient) CurrentBlock(ctx context.Context) (uint64, error) {
	var header chainHeader
	if err := c.rpc.Call(ctx, "chain_getHeader", []interface{}{}, &header); err != nil {
		return 0, err
	}

	height, err := strconv.ParseUint(strings.TrimPrefix(header.Number, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed block number %q: %w", header.Number, err)
	}
	return height, nil
}

type escrowRecord struct {
	Status   string `json:"status"`
	LockedAt uint64 `json:"lockedAt"`
}

// Escrow reads escrow state for an on-chain order id. A missing record is
// valid absence.
func (c *EscrowClient) Escrow(ctx context.Context, chainOrderID uint64) (escrow.EscrowInfo, bool, error) {
	var record *escrowRecord
	if err := c.rpc.Call(ctx, "escrow_getEscrow", []interface{}{chainOrderID}, &record); err != nil {
		return escrow.EscrowInfo{}, false, err
	}
	if record == nil {
		return escrow.EscrowInfo{}, false, nil
	}

	return escrow.EscrowInfo{
		Status:        record.Status,
		LockedAtBlock: record.LockedAt,
	}, true, nil
}

// HasActiveDispute reports whether an unresolved dispute exists for the
// order. Errors propagate so the sweeper can fail safe.
func (c *EscrowClient) HasActiveDispute(ctx context.Context, chainOrderID uint64) (bool, error) {
	var active bool
	if err := c.rpc.Call(ctx, "dispute_hasActiveDispute", []interface{}{chainOrderID}, &active); err != nil {
		return false, err
	}
	return active, nil
}

// Release submits the release_funds extrinsic and returns its tx hash.
func (c *EscrowClient) Release(ctx context.Context, chainOrderID uint64) (string, error) {
	var txHash string
	if err := c.rpc.Call(ctx, "escrow_releaseFunds", []interface{}{chainOrderID}, &txHash); err != nil {
		return "", fmt.Errorf("release for order %d failed: %w", chainOrderID, err)
	}
	return txHash, nil
}
