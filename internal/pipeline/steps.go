package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/reichan1998/pmcpipeline/internal/archive"
	"github.com/reichan1998/pmcpipeline/internal/articles"
	"github.com/reichan1998/pmcpipeline/internal/download"
	"github.com/reichan1998/pmcpipeline/internal/entrez"
	"github.com/reichan1998/pmcpipeline/internal/extract"
	"github.com/reichan1998/pmcpipeline/internal/stepinfo"
	"github.com/reichan1998/pmcpipeline/internal/vectorize"
)

// DownloadStep drives the entrez client to download a query or id list.
type DownloadStep struct {
	Client  *entrez.Client
	Log     *logrus.Logger
	DataDir string
	Request download.Request
}

func (s *DownloadStep) Name() string { return "download" }

func (s *DownloadStep) Run(_ map[string]string) (string, stepinfo.ExitCode, error) {
	mgr := &download.Manager{Client: s.Client, Log: s.Log}
	return mgr.Run(context.Background(), s.DataDir, s.Request)
}

// SplitStep atomizes the downloaded articlesets into per-article XML plus
// extracted tables.
type SplitStep struct {
	Log       *logrus.Logger
	OutputDir string
}

func (s *SplitStep) Name() string { return "article_split" }

func (s *SplitStep) Run(priorOutputs map[string]string) (string, stepinfo.ExitCode, error) {
	articlesetsDir, ok := priorOutputs["download"]
	if !ok {
		return "", stepinfo.Error, &stepinfo.StopPipeline{Reason: "article split has no download output to read"}
	}
	return articles.Split(articlesetsDir, s.OutputDir, s.Log)
}

// ExtractDataStep runs the fixed extractor list over split articles.
type ExtractDataStep struct {
	Log        *logrus.Logger
	OutputDir  string
	Extractors []extract.Extractor
	Options    extract.Options
}

func (s *ExtractDataStep) Name() string { return "extract_data" }

func (s *ExtractDataStep) Run(priorOutputs map[string]string) (string, stepinfo.ExitCode, error) {
	articlesDir, ok := priorOutputs["article_split"]
	if !ok {
		return "", stepinfo.Error, &stepinfo.StopPipeline{Reason: "data extraction has no article_split output to read"}
	}
	code, err := extract.Run(articlesDir, s.OutputDir, s.Extractors, s.Options, s.Log)
	if err != nil {
		return "", code, err
	}
	return s.OutputDir, code, nil
}

// ArchiveStep tar+pgzips completed download and article_split output
// directories once they're done being written, the same way extern.go's
// pgzip.BestSpeed writer shrinks large on-disk article directories instead
// of leaving raw XML around indefinitely. A no-op step when disabled, the
// same opt-in shape as VocabularyStep/VectorizeStep.
type ArchiveStep struct {
	Enabled bool
}

func (s *ArchiveStep) Name() string { return "archive" }

func (s *ArchiveStep) Run(priorOutputs map[string]string) (string, stepinfo.ExitCode, error) {
	if !s.Enabled {
		return "", stepinfo.Completed, nil
	}
	for _, stage := range []string{"download", "article_split"} {
		dir, ok := priorOutputs[stage]
		if !ok || dir == "" {
			continue
		}
		info, ok, err := stepinfo.Read(dir)
		if err != nil {
			return "", stepinfo.Error, err
		}
		if !ok || !info.IsComplete {
			continue
		}
		archivePath := dir + ".tar.gz"
		if _, err := os.Stat(archivePath); err == nil {
			continue
		}
		if err := archive.CompressDirectory(dir, archivePath); err != nil {
			return "", stepinfo.Error, fmt.Errorf("archive: compressing %s: %w", dir, err)
		}
	}
	return "", stepinfo.Completed, nil
}

// VocabularyStep fits document frequencies over extracted text when
// requested; a no-op step that produces no output when disabled, the same
// opt-in shape as pubget's `--extract_vocabulary` flag.
type VocabularyStep struct {
	Enabled   bool
	OutputDir string
}

func (s *VocabularyStep) Name() string { return "extract_vocabulary" }

func (s *VocabularyStep) Run(priorOutputs map[string]string) (string, stepinfo.ExitCode, error) {
	if !s.Enabled {
		return "", stepinfo.Completed, nil
	}
	extractedDataDir, ok := priorOutputs["extract_data"]
	if !ok {
		return "", stepinfo.Error, &stepinfo.StopPipeline{Reason: "vocabulary extraction has no extract_data output to read"}
	}
	code, err := vectorize.ExtractVocabulary(filepath.Join(extractedDataDir, "text.csv"), s.OutputDir)
	if err != nil {
		return "", code, err
	}
	return s.OutputDir, code, nil
}

// VectorizeStep computes count and TF-IDF matrices against a vocabulary
// supplied directly or produced by VocabularyStep.
type VectorizeStep struct {
	Enabled        bool
	OutputDir      string
	VocabularyPath string
}

func (s *VectorizeStep) Name() string { return "vectorize" }

func (s *VectorizeStep) Run(priorOutputs map[string]string) (string, stepinfo.ExitCode, error) {
	if !s.Enabled {
		return "", stepinfo.Completed, nil
	}
	extractedDataDir, ok := priorOutputs["extract_data"]
	if !ok {
		return "", stepinfo.Error, &stepinfo.StopPipeline{Reason: "vectorization has no extract_data output to read"}
	}
	vocabularyPath := s.VocabularyPath
	if vocabularyPath == "" {
		if vocabDir, ok := priorOutputs["extract_vocabulary"]; ok {
			vocabularyPath = filepath.Join(vocabDir, "vocabulary.csv")
		}
	}
	if vocabularyPath == "" {
		return "", stepinfo.Error, &stepinfo.StopPipeline{Reason: "vectorization requires a vocabulary file or a preceding extract_vocabulary step"}
	}
	code, err := vectorize.VectorizeCorpus(filepath.Join(extractedDataDir, "text.csv"), vocabularyPath, s.OutputDir)
	if err != nil {
		return "", code, err
	}
	return s.OutputDir, code, nil
}
