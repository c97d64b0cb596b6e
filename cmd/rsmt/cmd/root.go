package cmd

import (
	"os"

	logging "github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zkrollup-labs/rsmt"
	"github.com/zkrollup-labs/rsmt/database/leveldb"
)

var (
	log = logging.New("module", "rsmt-cli")

	rootCmd = &cobra.Command{
		Use:           "rsmt",
		Short:         "Maintenance tooling for the rollup state tree",
		Long:          "Offline maintenance for the versioned Merkle state tree: inspect the head, revert committed blocks, prune old history and verify store consistency.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("db", "", "path to the state tree leveldb directory")
	flags.String("namespace", "", "key namespace inside the store")
	flags.Int("cache", 128, "leveldb cache size in megabytes")
	flags.Int("handles", 128, "leveldb open file handles")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	viper.SetEnvPrefix("RSMT")
	viper.AutomaticEnv()
	for _, name := range []string{"db", "namespace", "cache", "handles", "log-level"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	cobra.OnInitialize(setupLogging)
}

func setupLogging() {
	level, err := logging.LvlFromString(viper.GetString("log-level"))
	if err != nil {
		level = logging.LvlInfo
	}
	log.SetHandler(logging.LvlFilterHandler(level, logging.StreamHandler(os.Stdout, logging.TerminalFormat())))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// openStore opens the leveldb store named by --db. The reverter and the
// pruner need it writable; head and check open it read-only so they can
// run next to a stopped-but-locked-elsewhere deployment workflow.
func openStore(readonly bool) (*leveldb.Database, error) {
	path := viper.GetString("db")
	if path == "" {
		return nil, errors.New("--db is required")
	}
	db, err := leveldb.New(path, viper.GetInt("cache"), viper.GetInt("handles"), readonly)
	if err != nil {
		return nil, errors.Wrapf(err, "open store at %s", path)
	}
	if namespace := viper.GetString("namespace"); namespace != "" {
		db = leveldb.WrapWithNamespace(db, namespace)
	}
	return db, nil
}

func openTree(readonly bool) (*rsmt.MerkleStateTree, *leveldb.Database, error) {
	db, err := openStore(readonly)
	if err != nil {
		return nil, nil, err
	}
	tree, err := rsmt.NewMerkleStateTree(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return tree, db, nil
}
