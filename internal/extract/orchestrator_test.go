package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reichan1998/pmcpipeline/internal/stepinfo"
	"github.com/reichan1998/pmcpipeline/internal/xmlnode"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureArticleXML = `<article><front><article-meta>
	<article-id pub-id-type="pmc">123</article-id>
</article-meta></front></article>`

func writeArticleFixture(t *testing.T, articlesDir, bucket, name string) string {
	t.Helper()
	dir := filepath.Join(articlesDir, bucket, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "article.xml"), []byte(fixtureArticleXML), 0o644))
	return dir
}

type pmcidExtractor struct{}

func (pmcidExtractor) Name() string     { return "metadata" }
func (pmcidExtractor) Fields() []string { return []string{"pmcid"} }
func (pmcidExtractor) Extract(article *xmlnode.Node, _ string, _ map[string]Record) Record {
	id := article.Path("front", "article-meta", "article-id")
	if id == nil {
		return Record{}
	}
	return Record{Single: map[string]string{"pmcid": id.Text()}}
}

type panickingExtractor struct{}

func (panickingExtractor) Name() string     { return "broken" }
func (panickingExtractor) Fields() []string { return []string{"pmcid"} }
func (panickingExtractor) Extract(_ *xmlnode.Node, _ string, _ map[string]Record) Record {
	panic("boom")
}

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	return log
}

func TestListArticleDirs_SortsByBucketThenName(t *testing.T) {
	root := t.TempDir()
	writeArticleFixture(t, root, "b2f", "pmcid_200")
	writeArticleFixture(t, root, "a1c", "pmcid_100")
	writeArticleFixture(t, root, "a1c", "pmcid_050")

	paths, err := listArticleDirs(root)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(root, "a1c", "pmcid_050"), paths[0])
	assert.Equal(t, filepath.Join(root, "a1c", "pmcid_100"), paths[1])
	assert.Equal(t, filepath.Join(root, "b2f", "pmcid_200"), paths[2])
}

func TestExtractOne_PanickingExtractorDoesNotKillArticle(t *testing.T) {
	root := t.TempDir()
	dir := writeArticleFixture(t, root, "a1c", "pmcid_100")

	data := extractOne(dir, []Extractor{pmcidExtractor{}, panickingExtractor{}}, newTestLogger())
	require.NotNil(t, data)
	assert.Equal(t, "123", data["metadata"].Single["pmcid"])
	assert.True(t, data["broken"].IsEmpty())
}

func TestShouldWrite_CoordsOnlyFilter(t *testing.T) {
	withCoords := map[string]Record{"coordinates": {RowSet: []map[string]string{{"x": "1"}}}}
	withoutCoords := map[string]Record{"coordinates": {}}

	assert.True(t, shouldWrite(withCoords, true))
	assert.False(t, shouldWrite(withoutCoords, true))
	assert.True(t, shouldWrite(withoutCoords, false))
	assert.False(t, shouldWrite(nil, false))
}

func TestRun_EndToEnd(t *testing.T) {
	articlesDir := t.TempDir()
	writeArticleFixture(t, articlesDir, "a1c", "pmcid_100")
	writeArticleFixture(t, articlesDir, "a1c", "pmcid_200")
	require.NoError(t, stepinfo.Write(articlesDir, "article_split", true, nil))

	outputDir := t.TempDir()
	code, err := Run(articlesDir, outputDir, []Extractor{pmcidExtractor{}}, Options{NWorkers: 2, ChunkSize: 1}, newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, stepinfo.Completed, code)

	content, err := os.ReadFile(filepath.Join(outputDir, "metadata.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "pmcid\n")
	assert.Contains(t, string(content), "123\n")

	info, ok, err := stepinfo.Read(outputDir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, info.IsComplete)
}

func TestRun_NoArticlesStopsPipeline(t *testing.T) {
	articlesDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(articlesDir, "a1c"), 0o755))
	require.NoError(t, stepinfo.Write(articlesDir, "article_split", true, nil))

	outputDir := t.TempDir()
	code, err := Run(articlesDir, outputDir, []Extractor{pmcidExtractor{}}, Options{}, newTestLogger())
	assert.Error(t, err)
	assert.Equal(t, stepinfo.Error, code)
}

func TestRun_AlreadyComplete_SkipsRerun(t *testing.T) {
	articlesDir := t.TempDir()
	writeArticleFixture(t, articlesDir, "a1c", "pmcid_100")
	require.NoError(t, stepinfo.Write(articlesDir, "article_split", true, nil))

	outputDir := t.TempDir()
	require.NoError(t, stepinfo.Write(outputDir, stepName, true, nil))

	code, err := Run(articlesDir, outputDir, []Extractor{pmcidExtractor{}}, Options{}, newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, stepinfo.Completed, code)
}
