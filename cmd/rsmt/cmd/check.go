package cmd

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zkrollup-labs/rsmt"
)

var (
	flagCheckFrom        uint64
	flagCheckTo          uint64
	flagCheckExpected    string
	flagCheckParallelism int
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that persisted nodes reconstruct the recorded root hashes",
	Long:  "Walks every version in the range, recomputes all node hashes against the store and reports mismatches, missing nodes and undecodable records. Exits non-zero when any fault is found.",
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
		earliest, _ := tree.EarliestVersion()

		from, to := rsmt.Version(flagCheckFrom), rsmt.Version(flagCheckTo)
		if !cmd.Flags().Changed("from") {
			from = earliest
		}
		if !cmd.Flags().Changed("to") {
			to = head
		}

		expected, err := loadExpectedRoots(flagCheckExpected)
		if err != nil {
			return err
		}

		report, err := rsmt.Check(db, rsmt.CheckOptions{
			From:          from,
			To:            to,
			ExpectedRoots: expected,
			Parallelism:   flagCheckParallelism,
			Observer:      logObserver{},
		})
		if err != nil {
			return err
		}

		for _, result := range report.Results {
			for _, fault := range result.Faults {
				log.Error("fault", "version", uint64(result.Version), "detail", fault.String())
			}
		}
		if !report.Ok() {
			return errors.Errorf("%d faults in versions [%d, %d]", report.FaultCount(), from, to)
		}
		log.Info("store is consistent", "from", uint64(from), "to", uint64(to))
		return nil
	},
}

func init() {
	checkCmd.Flags().Uint64Var(&flagCheckFrom, "from", 0, "first version to check (default: earliest)")
	checkCmd.Flags().Uint64Var(&flagCheckTo, "to", 0, "last version to check (default: head)")
	checkCmd.Flags().StringVar(&flagCheckExpected, "expected", "", "JSON file mapping versions to expected root hashes")
	checkCmd.Flags().IntVar(&flagCheckParallelism, "parallelism", 4, "number of versions verified concurrently")
	rootCmd.AddCommand(checkCmd)
}

// loadExpectedRoots reads a {"version": "0x..."} JSON map.
func loadExpectedRoots(path string) (map[rsmt.Version][]byte, error) {
	if path == "" {
		return nil, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read expected roots %s", path)
	}
	raw := map[string]string{}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, errors.Wrapf(err, "parse expected roots %s", path)
	}
	expected := make(map[rsmt.Version][]byte, len(raw))
	for versionStr, hashStr := range raw {
		version, err := strconv.ParseUint(versionStr, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid version %q", versionStr)
		}
		hash, err := hexutil.Decode(hashStr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid root hash for version %s", versionStr)
		}
		expected[rsmt.Version(version)] = hash
	}
	return expected, nil
}

// logObserver routes checker progress into the CLI logger.
type logObserver struct{}

func (logObserver) StartCheck() {
	log.Info("consistency check started")
}

func (logObserver) Progress(msg string) {
	log.Debug(msg)
}

func (logObserver) EndCheck(err error) {
	if err != nil {
		log.Error("consistency check aborted", "error", err)
		return
	}
	log.Info("consistency check finished")
}
