// Command pmcpipeline drives the PMC ingestion/vectorization pipeline:
// download, article_split, extract_data, extract_vocabulary, vectorize, and
// a composed "run" that chains them. Subcommand/flag composition follows
// edict.go's cobra-based dispatch (ported from the teacher's flag.FlagSet
// style onto spf13/cobra, the idiomatic choice for a multi-subcommand CLI
// of this size).
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reichan1998/pmcpipeline/internal/config"
	"github.com/reichan1998/pmcpipeline/internal/entrez"
	"github.com/reichan1998/pmcpipeline/internal/logging"
)

var (
	flagDataDir string
	flagAPIKey  string
	flagLogDir  string
	flagNJobs   int
)

func main() {
	root := &cobra.Command{
		Use:   "pmcpipeline",
		Short: "Download, extract and vectorize PubMed Central full-text articles",
	}
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "root data directory (default: $PMCPIPELINE_DATA_DIR or ./pmcpipeline_data)")
	root.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "Entrez API key")
	root.PersistentFlags().StringVar(&flagLogDir, "log-dir", "", "directory for log files, in addition to stderr")
	root.PersistentFlags().IntVar(&flagNJobs, "n-jobs", 1, "worker count; -1 means all cores")

	root.AddCommand(
		newDownloadCommand(),
		newSplitCommand(),
		newExtractCommand(),
		newVocabularyCommand(),
		newVectorizeCommand(),
		newRunCommand(),
		newServeCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(exitError))
	}
}

const (
	exitCompleted = 0
	exitIncomplete = 1
	exitError     = 2
)

func resolveConfig() config.Config {
	return config.Resolve(
		config.WithDataDir(flagDataDir),
		config.WithAPIKey(flagAPIKey),
		config.WithLogDir(flagLogDir),
		config.WithNJobs(flagNJobs),
	)
}

func newClient(cfg config.Config) *entrez.Client {
	return entrez.New(cfg.BaseURL, cfg.APIKey)
}

func parsePMCIDs(csv string) ([]int, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pmcid %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newLogger(cfg config.Config) *logrus.Logger {
	return logging.New(cfg.LogDir)
}
