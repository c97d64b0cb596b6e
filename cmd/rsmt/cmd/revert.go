package cmd

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zkrollup-labs/rsmt"
)

var revertCmd = &cobra.Command{
	Use:   "revert [target version]",
	Short: "Truncate every version above the target",
	Long:  "Deletes all versions above the target from the store and reinstates the target as the head. The server process must be stopped while this runs.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid target version %q", args[0])
		}

		tree, db, err := openTree(false)
		if err != nil {
			return err
		}
		defer db.Close()

		head, ok := tree.LatestVersion()
		if !ok {
			return errors.New("store holds no committed version")
		}
		log.Info("reverting", "head", uint64(head), "target", target)

		if err := tree.RevertTo(rsmt.Version(target)); err != nil {
			return err
		}

		rootHash, err := tree.RootHash(rsmt.Version(target))
		if err != nil {
			return err
		}
		log.Info("revert complete", "head", target, "root", hexutil.Encode(rootHash))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(revertCmd)
}
