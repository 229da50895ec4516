package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reichan1998/pmcpipeline/internal/stepinfo"
)

func TestSplitStep_MissingDownloadOutputStopsPipeline(t *testing.T) {
	step := &SplitStep{Log: newTestLogger(), OutputDir: t.TempDir()}
	_, _, err := step.Run(map[string]string{})
	assert.Equal(t, "article_split", step.Name())
	assert.Error(t, err)
}

func TestExtractDataStep_MissingArticleSplitOutputStopsPipeline(t *testing.T) {
	step := &ExtractDataStep{Log: newTestLogger(), OutputDir: t.TempDir()}
	_, _, err := step.Run(map[string]string{})
	assert.Equal(t, "extract_data", step.Name())
	assert.Error(t, err)
}

func TestArchiveStep_DisabledIsNoOp(t *testing.T) {
	step := &ArchiveStep{Enabled: false}
	path, code, err := step.Run(map[string]string{"download": t.TempDir()})
	assert.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, stepinfo.Completed, code)
	assert.Equal(t, "archive", step.Name())
}

func TestArchiveStep_SkipsDirectoriesNotYetComplete(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, stepinfo.Write(dir, "download", false, nil))

	step := &ArchiveStep{Enabled: true}
	_, code, err := step.Run(map[string]string{"download": dir})
	require.NoError(t, err)
	assert.Equal(t, stepinfo.Completed, code)
	assert.NoFileExists(t, dir+".tar.gz")
}

func TestArchiveStep_CompressesCompletedDirectories(t *testing.T) {
	parent := t.TempDir()
	downloadDir := filepath.Join(parent, "download_out")
	require.NoError(t, os.MkdirAll(downloadDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(downloadDir, "articleset_00001.xml"), []byte("<x/>"), 0o644))
	require.NoError(t, stepinfo.Write(downloadDir, "download", true, nil))

	step := &ArchiveStep{Enabled: true}
	_, code, err := step.Run(map[string]string{"download": downloadDir})
	require.NoError(t, err)
	assert.Equal(t, stepinfo.Completed, code)
	assert.FileExists(t, downloadDir+".tar.gz")
}

func TestArchiveStep_SkipsUnknownPriorOutputs(t *testing.T) {
	step := &ArchiveStep{Enabled: true}
	_, code, err := step.Run(map[string]string{})
	assert.NoError(t, err)
	assert.Equal(t, stepinfo.Completed, code)
}

func TestVocabularyStep_DisabledIsNoOp(t *testing.T) {
	step := &VocabularyStep{Enabled: false}
	path, _, err := step.Run(map[string]string{})
	assert.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "extract_vocabulary", step.Name())
}

func TestVocabularyStep_EnabledWithoutExtractDataOutputStops(t *testing.T) {
	step := &VocabularyStep{Enabled: true, OutputDir: t.TempDir()}
	_, _, err := step.Run(map[string]string{})
	assert.Error(t, err)
}

func TestVectorizeStep_DisabledIsNoOp(t *testing.T) {
	step := &VectorizeStep{Enabled: false}
	path, _, err := step.Run(map[string]string{})
	assert.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "vectorize", step.Name())
}

func TestVectorizeStep_MissingExtractDataStopsBeforeVocabularyLookup(t *testing.T) {
	step := &VectorizeStep{Enabled: true, OutputDir: t.TempDir()}
	// No extract_data output either, so it stops before reaching the
	// vocabulary resolution's filesystem read -- this only checks the
	// StopPipeline reason ordering (extract_data is checked first).
	_, _, err := step.Run(map[string]string{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "extract_data")
}

func TestVectorizeStep_NoVocabularySourceStops(t *testing.T) {
	step := &VectorizeStep{Enabled: true, OutputDir: t.TempDir()}
	_, _, err := step.Run(map[string]string{"extract_data": t.TempDir()})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "vocabulary")
}
