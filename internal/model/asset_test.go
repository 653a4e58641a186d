package model

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssetRoundTrip(t *testing.T) {
	for _, a := range []Asset{
		Currency(3),
		Outcome(12, 1),
		CombinatorialToken(common.HexToHash("0xbeef")),
	} {
		parsed, err := ParseAsset(a.String())
		require.NoError(t, err, a.String())
		assert.Equal(t, a, parsed)
	}
}

func TestParseAssetRejects(t *testing.T) {
	for _, in := range []string{"", "currency", "outcome:1", "outcome:x:0", "combo:0x12", "gold:1"} {
		_, err := ParseAsset(in)
		assert.Error(t, err, in)
	}
}

func TestAssetJSONKeys(t *testing.T) {
	balances := map[Asset]string{Outcome(1, 0): "5"}
	data, err := json.Marshal(balances)
	require.NoError(t, err)
	assert.JSONEq(t, `{"outcome:1:0":"5"}`, string(data))
}

func TestPoolDeployedEventName(t *testing.T) {
	assert.Equal(t, EventPoolDeployed, PoolDeployedEvent{PoolType: Standard(1)}.EventName())
	assert.Equal(t, EventComboPoolDeployed, PoolDeployedEvent{PoolType: Combinatorial(1, 2)}.EventName())
}
