package main

import (
	"fmt"
	"os"
	"path/filepath"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/cli"

	cmd "permachain/cmd/commands"
	nm "permachain/node"
)

func main() {
	cfg.DefaultTendermintDir = ".permachain"

	rootCmd := cmd.RootCmd
	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cmd.GenNodeKeyCmd,
		cmd.GenValidatorCmd,
		cmd.GenGenesisCmd,
		cmd.InitDBCmd,
		cmd.ShowNodeIDCmd,
		cmd.ShowValidatorCmd,
		cli.NewCompletionCmd(rootCmd, true),
	)

	// NOTE:
	// Users wishing to use an external signer or supply a genesis doc from
	// another source can copy this file and use something other than the
	// DefaultNewNode function.
	nodeFunc := nm.DefaultNewNode
	rootCmd.AddCommand(cmd.NewRunNodeCmd(nodeFunc))

	baseCmd := cli.PrepareBaseCmd(rootCmd, "PC", os.ExpandEnv(filepath.Join("$HOME", cfg.DefaultTendermintDir)))
	if err := baseCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
