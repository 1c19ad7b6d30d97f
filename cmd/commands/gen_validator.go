package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"

	"permachain/privval"
)

// GenValidatorCmd generates the consensus signing keypair.
var GenValidatorCmd = &cobra.Command{
	Use:     "gen-validator",
	Aliases: []string{"gen_validator"},
	Short:   "Generate new validator keypair",
	PreRun:  deprecateSnakeCase,
	RunE:    genValidator,
}

func genValidator(cmd *cobra.Command, args []string) error {
	privValKeyFile := config.PrivValidatorKeyFile()
	if tmos.FileExists(privValKeyFile) {
		logger.Info("Found private validator", "keyFile", privValKeyFile)
		return nil
	}

	pv := privval.GenFilePV(privValKeyFile)
	pv.Save()

	jsbz, err := tmjson.Marshal(pv.Key)
	if err != nil {
		return err
	}
	fmt.Println(string(jsbz))
	return nil
}
