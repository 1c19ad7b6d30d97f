package types

import (
	tmjson "github.com/tendermint/tendermint/libs/json"
)

func init() {
	tmjson.RegisterType(&Propose{}, "permachain/Propose")
	tmjson.RegisterType(&Prevote{}, "permachain/Prevote")
	tmjson.RegisterType(&Precommit{}, "permachain/Precommit")
	tmjson.RegisterType(&Status{}, "permachain/Status")
	tmjson.RegisterType(&ProposeRequest{}, "permachain/ProposeRequest")
	tmjson.RegisterType(&TransactionsRequest{}, "permachain/TransactionsRequest")
	tmjson.RegisterType(&TransactionsResponse{}, "permachain/TransactionsResponse")
	tmjson.RegisterType(&PrevotesRequest{}, "permachain/PrevotesRequest")
	tmjson.RegisterType(&BlockRequest{}, "permachain/BlockRequest")
	tmjson.RegisterType(&PoolTransactionsRequest{}, "permachain/PoolTransactionsRequest")
	tmjson.RegisterType(&BlockResponse{}, "permachain/BlockResponse")
}

// signBytes produces the canonical byte representation that validators sign:
// the chain id alongside the message payload with its signature field zeroed.
// Marshalling a consensus message can only fail on a programming error.
func signBytes(chainID string, msg interface{}) []byte {
	bz, err := tmjson.Marshal(struct {
		ChainID string      `json:"chain_id"`
		Msg     interface{} `json:"msg"`
	}{chainID, msg})
	if err != nil {
		panic(err)
	}
	return bz
}

func tmjsonMarshal(v interface{}) ([]byte, error) {
	return tmjson.Marshal(v)
}
