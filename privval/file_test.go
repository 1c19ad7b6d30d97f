package privval

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permachain/types"
)

func tempKeyPath(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "privval_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "priv_validator_key.json")
}

func TestGenSaveLoadFilePV(t *testing.T) {
	path := tempKeyPath(t)

	pv := GenFilePV(path)
	pv.Save()

	loaded := LoadFilePV(path)
	assert.Equal(t, pv.Key.PubKey, loaded.Key.PubKey)
	assert.Equal(t, pv.GetAddress(), loaded.GetAddress())
}

func TestLoadOrGenFilePV(t *testing.T) {
	path := tempKeyPath(t)

	pv := LoadOrGenFilePV(path)
	again := LoadOrGenFilePV(path)
	assert.Equal(t, pv.GetAddress(), again.GetAddress(), "second call must load, not regenerate")
}

func TestFilePVSignsVerifiably(t *testing.T) {
	pv := GenFilePV(tempKeyPath(t))
	pub, err := pv.GetPubKey()
	require.NoError(t, err)

	propose := types.NewSkipPropose(1, 1, 1, types.Tx("parent").Hash())
	require.NoError(t, pv.SignPropose("privval_test", propose))
	assert.True(t, pub.VerifySignature(propose.SignBytes("privval_test"), propose.Signature))

	prevote := types.NewPrevote(1, 1, 1, propose.Hash(), types.RoundNone)
	require.NoError(t, pv.SignPrevote("privval_test", prevote))
	assert.True(t, pub.VerifySignature(prevote.SignBytes("privval_test"), prevote.Signature))

	status := types.NewStatus(1, 4, propose.Hash(), 0)
	require.NoError(t, pv.SignStatus("privval_test", status))
	assert.True(t, pub.VerifySignature(status.SignBytes("privval_test"), status.Signature))
}
