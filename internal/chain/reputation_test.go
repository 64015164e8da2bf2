package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazari/settlement/internal/reputation"
	"github.com/bazari/settlement/pkg/planck"
)

func TestFetchDecodesStoreReputation(t *testing.T) {
	client := dialTestNode(t, func(req testRequest) (interface{}, *rpcError) {
		assert.Equal(t, "stores_getStore", req.Method)
		assert.Equal(t, []interface{}{"42"}, req.Params)
		return map[string]interface{}{
			"id": "42",
			"reputation": map[string]interface{}{
				"sales":        7,
				"positive":     5,
				"negative":     1,
				"volumePlanck": "123456789",
			},
		}, nil
	})

	snap, found, err := NewReputationAdapter(client).Fetch(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(7), snap.Sales)
	assert.Equal(t, uint64(5), snap.Positive)
	assert.Equal(t, uint64(1), snap.Negative)
	assert.Equal(t, "123456789", snap.VolumePlanck.String())
}

func TestFetchMapsNullToValidAbsence(t *testing.T) {
	// A store that was never bumped has no on-chain record. That is a
	// valid state, not an error: found=false with a nil error.
	client := dialTestNode(t, func(req testRequest) (interface{}, *rpcError) {
		return nil, nil
	})

	snap, found, err := NewReputationAdapter(client).Fetch(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, snap.VolumePlanck.IsZero())
}

func TestFetchMalformedVolumeIsAnError(t *testing.T) {
	client := dialTestNode(t, func(req testRequest) (interface{}, *rpcError) {
		return map[string]interface{}{
			"id": "42",
			"reputation": map[string]interface{}{
				"volumePlanck": "12.5",
			},
		}, nil
	})

	_, found, err := NewReputationAdapter(client).Fetch(context.Background(), "42")
	require.Error(t, err)
	assert.False(t, found)
}

func TestBumpZeroDeltaNeverTouchesTheWire(t *testing.T) {
	// The nil RPC client would panic on any call, so a nil return proves
	// the all-zero delta was dropped before reaching the connection.
	adapter := NewReputationAdapter(nil)

	err := adapter.Bump(context.Background(), "42", reputation.Snapshot{})
	assert.NoError(t, err)
}

func TestBumpSendsStringifiedDelta(t *testing.T) {
	var got testRequest
	client := dialTestNode(t, func(req testRequest) (interface{}, *rpcError) {
		got = req
		return "0xabc123", nil
	})

	delta := reputation.Snapshot{
		Sales:        2,
		Positive:     1,
		VolumePlanck: planck.FromInt(5000),
	}
	require.NoError(t, NewReputationAdapter(client).Bump(context.Background(), "42", delta))

	assert.Equal(t, "stores_bumpReputation", got.Method)
	assert.Equal(t, []interface{}{"42", "2", "1", "0", "5000"}, got.Params)
}

func TestBumpSurfacesRPCFailure(t *testing.T) {
	client := dialTestNode(t, func(req testRequest) (interface{}, *rpcError) {
		return nil, &rpcError{Code: 1010, Message: "invalid transaction"}
	})

	delta := reputation.Snapshot{Sales: 1}
	err := NewReputationAdapter(client).Bump(context.Background(), "42", delta)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transaction")
}
