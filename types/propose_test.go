package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/crypto/tmhash"
)

func TestProposeSignVerify(t *testing.T) {
	chainID := "propose_test"
	priv := NewMockPV()
	pub, err := priv.GetPubKey()
	require.NoError(t, err)

	p := NewPropose(0, 1, InitialRound, tmhash.Sum([]byte("prev")),
		Txs{Tx("a"), Tx("b")}.Hashes())
	require.NoError(t, priv.SignPropose(chainID, p))
	require.NoError(t, p.ValidateBasic())

	assert.True(t, pub.VerifySignature(p.SignBytes(chainID), p.Signature))
	// signature does not cover another chain id
	assert.False(t, pub.VerifySignature(p.SignBytes("other-chain"), p.Signature))
}

func TestProposeHashIgnoresSignature(t *testing.T) {
	p := NewPropose(1, 3, 2, tmhash.Sum([]byte("prev")), nil)
	unsigned := p.Hash()

	priv := NewMockPV()
	require.NoError(t, priv.SignPropose("propose_test", p))
	assert.Equal(t, unsigned, p.Hash(), "propose hash must not depend on the signature")
}

func TestSkipPropose(t *testing.T) {
	p := NewSkipPropose(2, 1, InitialRound, tmhash.Sum([]byte("prev")))
	assert.True(t, p.IsSkip())

	p2 := NewPropose(2, 1, InitialRound, tmhash.Sum([]byte("prev")), Txs{Tx("x")}.Hashes())
	assert.False(t, p2.IsSkip())
	assert.NotEqual(t, p.Hash(), p2.Hash())
}

func TestPrevoteValidateBasic(t *testing.T) {
	priv := NewMockPV()
	chainID := "propose_test"
	hash := tmhash.Sum([]byte("propose"))

	v := NewPrevote(0, 1, 2, hash, InitialRound)
	require.NoError(t, priv.SignPrevote(chainID, v))
	require.NoError(t, v.ValidateBasic())

	// a voter cannot claim a lock at or past the round it votes in
	bad := NewPrevote(0, 1, 2, hash, 2)
	require.NoError(t, priv.SignPrevote(chainID, bad))
	assert.Error(t, bad.ValidateBasic())

	unsigned := NewPrevote(0, 1, 2, hash, RoundNone)
	assert.Error(t, unsigned.ValidateBasic())
}

func TestPrecommitValidateBasic(t *testing.T) {
	priv := NewMockPV()
	chainID := "propose_test"

	pc := NewPrecommit(0, 1, InitialRound,
		tmhash.Sum([]byte("propose")), tmhash.Sum([]byte("block")), time.Now())
	require.NoError(t, priv.SignPrecommit(chainID, pc))
	require.NoError(t, pc.ValidateBasic())

	pc.BlockHash = []byte("short")
	assert.Error(t, pc.ValidateBasic())
}
