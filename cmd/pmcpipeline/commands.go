package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reichan1998/pmcpipeline/internal/articles"
	"github.com/reichan1998/pmcpipeline/internal/download"
	"github.com/reichan1998/pmcpipeline/internal/extract"
	"github.com/reichan1998/pmcpipeline/internal/extract/extractors"
	"github.com/reichan1998/pmcpipeline/internal/logging"
	"github.com/reichan1998/pmcpipeline/internal/pipeline"
	"github.com/reichan1998/pmcpipeline/internal/stepinfo"
	"github.com/reichan1998/pmcpipeline/internal/vectorize"
)

// fixedExtractors is the ordered extractor list data extraction always
// runs, so later extractors can read earlier ones' outputs via prior
// (spec.md §4.5's fixed order: metadata, authors, text, coordinates,
// coordinate_space, links).
func fixedExtractors() []extract.Extractor {
	return []extract.Extractor{
		extractors.Metadata{},
		extractors.Authors{},
		extractors.Text{},
		extractors.Coordinates{},
		extractors.CoordinateSpace{},
		extractors.Links{},
	}
}

func toProcessExit(code stepinfo.ExitCode) int {
	switch code {
	case stepinfo.Completed:
		return exitCompleted
	case stepinfo.Incomplete:
		return exitIncomplete
	default:
		return exitError
	}
}

func newDownloadCommand() *cobra.Command {
	var query, pmcidList string
	var nDocs int
	var batchSize int

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download full-text articles matching a query or id list",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveConfig()
			log := newLogger(cfg)
			logging.Banner("download")

			ids, err := parsePMCIDs(pmcidList)
			if err != nil {
				return err
			}
			req := download.Request{Query: query, PMCIDs: ids, BatchSize: batchSize}
			if nDocs >= 0 {
				req.NDocs = &nDocs
			}

			mgr := &download.Manager{Client: newClient(cfg), Log: log}
			_, code, err := mgr.Run(context.Background(), cfg.DataDir, req)
			if err != nil {
				return err
			}
			os.Exit(toProcessExit(code))
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Entrez search query")
	cmd.Flags().StringVar(&pmcidList, "pmcids", "", "comma-separated PMCID list (mutually exclusive with --query)")
	cmd.Flags().IntVar(&nDocs, "n-docs", -1, "maximum number of documents to fetch; -1 means no limit")
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "documents per fetch batch")
	return cmd
}

func newSplitCommand() *cobra.Command {
	var articlesetsDir, outputDir string
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split downloaded articlesets into per-article XML and tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveConfig()
			log := newLogger(cfg)
			logging.Banner("article_split")
			_, code, err := articles.Split(articlesetsDir, outputDir, log)
			if err != nil {
				return err
			}
			os.Exit(toProcessExit(code))
			return nil
		},
	}
	cmd.Flags().StringVar(&articlesetsDir, "articlesets-dir", "", "directory containing articleset_*.xml")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory to write split articles into")
	cmd.MarkFlagRequired("articlesets-dir")
	cmd.MarkFlagRequired("output-dir")
	return cmd
}

func newExtractCommand() *cobra.Command {
	var articlesDir, outputDir string
	var coordsOnly bool
	var chunkSize int
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run field extractors over split articles into CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveConfig()
			log := newLogger(cfg)
			logging.Banner("extract_data")
			opts := extract.Options{NWorkers: cfg.NJobs, ChunkSize: chunkSize, ArticlesWithCoordsOnly: coordsOnly}
			code, err := extract.Run(articlesDir, outputDir, fixedExtractors(), opts, log)
			if err != nil {
				return err
			}
			os.Exit(toProcessExit(code))
			return nil
		},
	}
	cmd.Flags().StringVar(&articlesDir, "articles-dir", "", "directory of split articles")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory to write extractor CSVs into")
	cmd.Flags().BoolVar(&coordsOnly, "coords-only", false, "keep only articles with at least one coordinate row")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 100, "backpressure chunk size")
	cmd.MarkFlagRequired("articles-dir")
	cmd.MarkFlagRequired("output-dir")
	return cmd
}

func newVocabularyCommand() *cobra.Command {
	var extractedDataDir, outputDir string
	cmd := &cobra.Command{
		Use:   "vocabulary",
		Short: "Extract a vocabulary and document frequencies from text.csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := vectorize.ExtractVocabulary(filepath.Join(extractedDataDir, "text.csv"), outputDir)
			if err != nil {
				return err
			}
			os.Exit(toProcessExit(code))
			return nil
		},
	}
	cmd.Flags().StringVar(&extractedDataDir, "extracted-data-dir", "", "directory containing text.csv")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory to write vocabulary.csv into")
	cmd.MarkFlagRequired("extracted-data-dir")
	cmd.MarkFlagRequired("output-dir")
	return cmd
}

func newVectorizeCommand() *cobra.Command {
	var extractedDataDir, vocabularyPath, outputDir string
	cmd := &cobra.Command{
		Use:   "vectorize",
		Short: "Compute word-count and TF-IDF matrices from text.csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := vectorize.VectorizeCorpus(filepath.Join(extractedDataDir, "text.csv"), vocabularyPath, outputDir)
			if err != nil {
				return err
			}
			os.Exit(toProcessExit(code))
			return nil
		},
	}
	cmd.Flags().StringVar(&extractedDataDir, "extracted-data-dir", "", "directory containing text.csv")
	cmd.Flags().StringVar(&vocabularyPath, "vocabulary-file", "", "path to vocabulary.csv")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory to write matrices into")
	cmd.MarkFlagRequired("extracted-data-dir")
	cmd.MarkFlagRequired("vocabulary-file")
	cmd.MarkFlagRequired("output-dir")
	return cmd
}

func newRunCommand() *cobra.Command {
	var query, pmcidList string
	var nDocs, batchSize int
	var withVocabulary, withVectorize, withArchive bool
	var vocabularyPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: download, split, extract, and optionally vectorize",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveConfig()
			log := newLogger(cfg)

			ids, err := parsePMCIDs(pmcidList)
			if err != nil {
				return err
			}
			req := download.Request{Query: query, PMCIDs: ids, BatchSize: batchSize}
			if nDocs >= 0 {
				req.NDocs = &nDocs
			}

			root := filepath.Join(cfg.DataDir, "pipeline_run")
			steps := []pipeline.Step{
				&pipeline.DownloadStep{Client: newClient(cfg), Log: log, DataDir: cfg.DataDir, Request: req},
				&pipeline.SplitStep{Log: log, OutputDir: filepath.Join(root, "articles")},
				&pipeline.ExtractDataStep{
					Log:        log,
					OutputDir:  filepath.Join(root, "extracted"),
					Extractors: fixedExtractors(),
					Options:    extract.Options{NWorkers: cfg.NJobs},
				},
				&pipeline.ArchiveStep{Enabled: withArchive},
				&pipeline.VocabularyStep{Enabled: withVocabulary, OutputDir: filepath.Join(root, "vocabulary")},
				&pipeline.VectorizeStep{Enabled: withVectorize, OutputDir: filepath.Join(root, "vectorized"), VocabularyPath: vocabularyPath},
			}

			code := pipeline.Run(steps, log)
			os.Exit(toProcessExit(code))
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Entrez search query")
	cmd.Flags().StringVar(&pmcidList, "pmcids", "", "comma-separated PMCID list (mutually exclusive with --query)")
	cmd.Flags().IntVar(&nDocs, "n-docs", -1, "maximum number of documents to fetch; -1 means no limit")
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "documents per fetch batch")
	cmd.Flags().BoolVar(&withArchive, "archive", false, "tar+gzip the download and article_split output directories once complete")
	cmd.Flags().BoolVar(&withVocabulary, "extract-vocabulary", false, "also run the extract_vocabulary step")
	cmd.Flags().BoolVar(&withVectorize, "vectorize", false, "also run the vectorize step")
	cmd.Flags().StringVar(&vocabularyPath, "vocabulary-file", "", "vocabulary to vectorize against, if not produced by --extract-vocabulary")
	return cmd
}
