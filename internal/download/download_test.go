package download

import (
	"context"
	"testing"

	"github.com/reichan1998/pmcpipeline/internal/entrez"
	"github.com/reichan1998/pmcpipeline/internal/stepinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputDirName_Query(t *testing.T) {
	name := outputDirName(Request{Query: "brain"})
	assert.Regexp(t, `^query_[0-9a-f]{32}$`, name)
}

func TestOutputDirName_PMCIDList(t *testing.T) {
	name := outputDirName(Request{PMCIDs: []int{3, 1, 2}})
	assert.Regexp(t, `^pmcidList_[0-9a-f]{32}$`, name)
}

func TestOutputDirName_Deterministic(t *testing.T) {
	a := outputDirName(Request{Query: "brain"})
	b := outputDirName(Request{Query: "brain"})
	assert.Equal(t, a, b)
}

func TestOutputDirName_DifferentRequestsDiffer(t *testing.T) {
	a := outputDirName(Request{Query: "brain"})
	b := outputDirName(Request{Query: "cortex"})
	assert.NotEqual(t, a, b)
}

func TestManager_AcquireToken_ResumesFromInfoJSON(t *testing.T) {
	articlesetsDir := t.TempDir()
	require.NoError(t, stepinfo.Write(articlesetsDir, "download", false, map[string]interface{}{
		"sessionToken": map[string]interface{}{
			"webEnv":   "resumed-env",
			"queryKey": "9",
			"count":    float64(42),
		},
	}))

	m := &Manager{}
	token, err := m.acquireToken(context.Background(), t.TempDir(), articlesetsDir, Request{Query: "brain"})
	require.NoError(t, err)
	assert.Equal(t, entrez.SessionToken{WebEnv: "resumed-env", QueryKey: "9", Count: 42}, token)
}
