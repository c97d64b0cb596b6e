package cmd

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var headCmd = &cobra.Command{
	Use:   "head",
	Short: "Print the head version and its root hash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, db, err := openTree(true)
		if err != nil {
			return err
		}
		defer db.Close()

		head, ok := tree.LatestVersion()
		if !ok {
			log.Info("store holds no committed version")
			return nil
		}
		rootHash, err := tree.RootHash(head)
		if err != nil {
			return err
		}
		leaves, err := tree.LeafCount(head)
		if err != nil {
			return err
		}
		earliest, _ := tree.EarliestVersion()
		log.Info("state tree head",
			"version", uint64(head),
			"root", hexutil.Encode(rootHash),
			"leaves", leaves,
			"earliest", uint64(earliest),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(headCmd)
}
