package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
	tmrand "github.com/tendermint/tendermint/libs/rand"
	tmtime "github.com/tendermint/tendermint/types/time"

	"permachain/privval"
	"permachain/types"
)

var chainID string

// GenGenesisCmd assembles a cluster genesis file from the validator key
// files given as arguments; the argument order defines the validator
// indexes.
var GenGenesisCmd = &cobra.Command{
	Use:     "gen-genesis [validator-key-file ...]",
	Aliases: []string{"gen_genesis"},
	Short:   "Generate a genesis file for a cluster",
	Args:    cobra.MinimumNArgs(1),
	PreRun:  deprecateSnakeCase,
	RunE:    genGenesisFile,
}

func init() {
	GenGenesisCmd.Flags().StringVar(&chainID, "chain-id", "", "chain id, a random test-chain id when empty")
}

func genGenesisFile(cmd *cobra.Command, args []string) error {
	genFile := config.GenesisFile()
	if tmos.FileExists(genFile) {
		logger.Info("Found genesis file", "path", genFile)
		return nil
	}

	if chainID == "" {
		chainID = fmt.Sprintf("test-chain-%v", tmrand.Str(6))
	}

	vals := make([]types.GenesisValidator, len(args))
	for i, keyFile := range args {
		pv := privval.LoadFilePV(keyFile)
		pubKey, err := pv.GetPubKey()
		if err != nil {
			return fmt.Errorf("can't get pubkey from %s: %w", keyFile, err)
		}
		vals[i] = types.GenesisValidator{
			Address: pubKey.Address(),
			PubKey:  pubKey,
			Name:    fmt.Sprintf("validator-%d", i),
		}
	}

	genDoc := types.GenesisDoc{
		ChainID:     chainID,
		GenesisTime: tmtime.Now(),
		Validators:  vals,
	}

	if err := genDoc.SaveAs(genFile); err != nil {
		return err
	}
	logger.Info("Generated genesis file", "path", genFile, "validators", len(vals))
	return nil
}
