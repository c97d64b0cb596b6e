package cmd

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zkrollup-labs/rsmt"
)

var pruneCmd = &cobra.Command{
	Use:   "prune [oldest retained version]",
	Short: "Drop history below the given version",
	Long:  "Deletes all versions below the given one and reclaims the nodes no retained version can reach. The server process must be stopped while this runs.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldest, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid version %q", args[0])
		}

		tree, db, err := openTree(false)
		if err != nil {
			return err
		}
		defer db.Close()

		earliest, ok := tree.EarliestVersion()
		if !ok {
			return errors.New("store holds no committed version")
		}
		log.Info("pruning", "earliest", uint64(earliest), "oldest_retained", oldest)

		if err := tree.Prune(rsmt.Version(oldest)); err != nil {
			return err
		}
		log.Info("prune complete", "earliest", oldest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
