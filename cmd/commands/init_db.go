package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"permachain/state"
	"permachain/store"
	"permachain/types"
)

// InitDBCmd seeds the block store with the genesis block so a fresh data dir
// is ready before the node first starts.
var InitDBCmd = &cobra.Command{
	Use:     "init-db",
	Aliases: []string{"init_db", "initdb"},
	Short:   "Seed the block store with the genesis block",
	RunE:    initDB,
}

func initDB(cmd *cobra.Command, args []string) error {
	genDoc, err := types.GenesisDocFromFile(config.GenesisFile())
	if err != nil {
		return err
	}

	blockStore, err := store.NewGoLevelStore("chain", config.DBDir(), logger.With("module", "store"))
	if err != nil {
		return err
	}
	defer blockStore.Close()

	if blockStore.Head() != nil {
		return errors.New("block store already initialized")
	}

	_, genesisBlock := state.MakeGenesisState(genDoc)
	if err := blockStore.SaveGenesisBlock(genesisBlock); err != nil {
		return err
	}
	logger.Info("Seeded block store", "hash", genesisBlock.Hash())
	return nil
}
