package main

import (
	"testing"

	"github.com/reichan1998/pmcpipeline/internal/extract/extractors"
	"github.com/reichan1998/pmcpipeline/internal/stepinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToProcessExit(t *testing.T) {
	assert.Equal(t, exitCompleted, toProcessExit(stepinfo.Completed))
	assert.Equal(t, exitIncomplete, toProcessExit(stepinfo.Incomplete))
	assert.Equal(t, exitError, toProcessExit(stepinfo.Error))
}

func TestFixedExtractors_RunsMetadataBeforeDependentExtractors(t *testing.T) {
	list := fixedExtractors()
	require.Len(t, list, 6)

	var names []string
	for _, e := range list {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"metadata", "authors", "text", "coordinates", "coordinate_space", "links"}, names)

	// Text and coordinates take the article id from the metadata record in
	// `prior`, so metadata has to run first.
	assert.IsType(t, extractors.Metadata{}, list[0])
}

func TestNewDownloadCommand_FlagsAndRequirements(t *testing.T) {
	cmd := newDownloadCommand()
	assert.Equal(t, "download", cmd.Use)
	for _, name := range []string{"query", "pmcids", "n-docs", "batch-size"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "expected flag %q", name)
	}
}

func TestNewSplitCommand_RequiresDirectories(t *testing.T) {
	cmd := newSplitCommand()
	assert.Equal(t, "split", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("articlesets-dir"))
	assert.NotNil(t, cmd.Flags().Lookup("output-dir"))
}

func TestNewExtractCommand_DefaultChunkSize(t *testing.T) {
	cmd := newExtractCommand()
	flag := cmd.Flags().Lookup("chunk-size")
	require.NotNil(t, flag)
	assert.Equal(t, "100", flag.DefValue)
}

func TestNewVocabularyCommand_RequiredFlags(t *testing.T) {
	cmd := newVocabularyCommand()
	assert.NotNil(t, cmd.Flags().Lookup("extracted-data-dir"))
	assert.NotNil(t, cmd.Flags().Lookup("output-dir"))
}

func TestNewVectorizeCommand_RequiredFlags(t *testing.T) {
	cmd := newVectorizeCommand()
	assert.NotNil(t, cmd.Flags().Lookup("vocabulary-file"))
}

func TestNewRunCommand_DefaultsVectorizeStepsDisabled(t *testing.T) {
	cmd := newRunCommand()
	assert.Equal(t, "run", cmd.Use)
	for _, name := range []string{"archive", "extract-vocabulary", "vectorize"} {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag)
		assert.Equal(t, "false", flag.DefValue)
	}
}
