package node

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/p2p"

	"permachain/privval"
	"permachain/types"
)

func defaultTestConfig(t *testing.T, name string) *cfg.Config {
	config := cfg.ResetTestRoot(name)
	t.Cleanup(func() { os.RemoveAll(config.RootDir) })

	// replace the tendermint test fixtures with our own key and genesis
	pv := privval.GenFilePV(config.PrivValidatorKeyFile())
	pv.Save()

	genDoc := &types.GenesisDoc{
		ChainID:     fmt.Sprintf("test-chain-%s", name),
		GenesisTime: time.Now(),
		Validators: []types.GenesisValidator{
			{Address: pv.GetAddress(), PubKey: pv.Key.PubKey, Name: "val0"},
		},
	}
	require.NoError(t, genDoc.SaveAs(config.GenesisFile()))

	return config
}

func TestDefaultNewNode(t *testing.T) {
	config := defaultTestConfig(t, "node_new_node_test")

	n, err := DefaultNewNode(config, log.TestingLogger())
	require.NoError(t, err)

	assert.Equal(t, genDocChainID(t, config), n.GenesisDoc().ChainID)
	assert.NotNil(t, n.Switch())
	assert.NotNil(t, n.ConsensusState())
	n.OnStop()
}

func TestNodeReloadsStateFromStore(t *testing.T) {
	config := defaultTestConfig(t, "node_reload_test")

	n, err := DefaultNewNode(config, log.TestingLogger())
	require.NoError(t, err)
	height := n.consensusState.CommittedHeight()
	n.OnStop()

	// a second construction over the same data dir must find the genesis
	// block instead of writing a new one
	n2, err := DefaultNewNode(config, log.TestingLogger())
	require.NoError(t, err)
	defer n2.OnStop()

	assert.Equal(t, height, n2.consensusState.CommittedHeight())
	head := n2.blockStore.Head()
	require.NotNil(t, head)
	assert.EqualValues(t, 0, head.Height)
}

func TestNodeInfoCarriesAllChannels(t *testing.T) {
	config := defaultTestConfig(t, "node_info_test")

	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	require.NoError(t, err)
	genDoc, err := types.GenesisDocFromFile(config.GenesisFile())
	require.NoError(t, err)

	info, err := makeNodeInfo(config, nodeKey, genDoc)
	require.NoError(t, err)

	defaultInfo, ok := info.(p2p.DefaultNodeInfo)
	require.True(t, ok)
	assert.Equal(t, genDoc.ChainID, defaultInfo.Network)
	assert.Len(t, defaultInfo.Channels, 5)
}

func TestSplitAndTrimEmpty(t *testing.T) {
	testCases := []struct {
		s        string
		expected []string
	}{
		{"", []string{}},
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a, ,c", []string{"a", "c"}},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, splitAndTrimEmpty(tc.s, ",", " "), "%q", tc.s)
	}
}

func genDocChainID(t *testing.T, config *cfg.Config) string {
	genDoc, err := types.GenesisDocFromFile(config.GenesisFile())
	require.NoError(t, err)
	return genDoc.ChainID
}
