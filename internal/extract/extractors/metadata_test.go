package extractors

import (
	"testing"

	"github.com/reichan1998/pmcpipeline/internal/extract"
	"github.com/reichan1998/pmcpipeline/internal/xmlnode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleArticle = `<article>
<front>
	<journal-meta>
		<journal-id>Neuro</journal-id>
		<journal-title-group><journal-title>Journal of Neuroscience</journal-title></journal-title-group>
	</journal-meta>
	<article-meta>
		<article-id pub-id-type="pmc">PMC123</article-id>
		<article-id pub-id-type="pmid">456</article-id>
		<article-id pub-id-type="doi">10.1000/xyz</article-id>
		<title-group><article-title>A Study of <italic>Cortex</italic></article-title></title-group>
		<pub-date><year>2019</year></pub-date>
		<pub-date><year>2018</year></pub-date>
		<permissions>
			<license href="https://creativecommons.org/licenses/by/4.0/"/>
		</permissions>
		<aff>Some University, City<label>1</label></aff>
		<kwd-group><kwd>fmri</kwd><kwd>brain</kwd></kwd-group>
		<abstract><p>An abstract paragraph.</p></abstract>
		<contrib-group>
			<contrib contrib-type="author">
				<name><surname>Smith</surname><given-names>Jane</given-names></name>
				<xref ref-type="aff">1</xref>
			</contrib>
		</contrib-group>
	</article-meta>
</front>
<body>
	<sec><title>Intro</title><p>Body paragraph one.</p></sec>
	<sec><p>Body paragraph two.</p></sec>
</body>
</article>`

func parseSample(t *testing.T) *xmlnode.Node {
	t.Helper()
	n, err := xmlnode.Parse([]byte(sampleArticle))
	require.NoError(t, err)
	return n
}

func TestMetadata_Extract(t *testing.T) {
	article := parseSample(t)
	record := Metadata{}.Extract(article, "", nil)
	row := record.Single

	assert.Equal(t, "PMC123", row["pmcid"])
	assert.Equal(t, "456", row["pmid"])
	assert.Equal(t, "10.1000/xyz", row["doi"])
	assert.Equal(t, "PMC123", row["id"])
	assert.Equal(t, "A Study of Cortex", row["title"])
	assert.Equal(t, "Neuro", row["journal"])
	assert.Equal(t, "Journal of Neuroscience", row["journal_fullname"])
	assert.Equal(t, "2018", row["publication_year"])
	assert.Equal(t, "https://creativecommons.org/licenses/by/4.0/", row["license"])
}

func TestMetadata_Extract_NoArticleMeta(t *testing.T) {
	article, err := xmlnode.Parse([]byte(`<article><front></front></article>`))
	require.NoError(t, err)
	record := Metadata{}.Extract(article, "", nil)
	assert.Equal(t, map[string]string{}, record.Single)
}

func TestMetadata_Fields(t *testing.T) {
	assert.Contains(t, Metadata{}.Fields(), "pmcid")
}

func TestAuthors_Extract(t *testing.T) {
	article := parseSample(t)
	record := Authors{}.Extract(article, "", nil)
	require.Len(t, record.RowSet, 1)
	row := record.RowSet[0]
	assert.Equal(t, "PMC123", row["pmcid"])
	assert.Equal(t, "Smith", row["surname"])
	assert.Equal(t, "Jane", row["given-names"])
	assert.Equal(t, "Some University, City", row["affiliations"])
}

func TestAuthors_Extract_NoContribGroup(t *testing.T) {
	article, err := xmlnode.Parse([]byte(`<article><front><article-meta>
		<article-id pub-id-type="pmc">PMC1</article-id>
	</article-meta></front></article>`))
	require.NoError(t, err)
	record := Authors{}.Extract(article, "", nil)
	assert.Empty(t, record.RowSet)
}

func TestText_Extract(t *testing.T) {
	article := parseSample(t)
	record := Text{}.Extract(article, "", map[string]extract.Record{})
	row := record.Single
	assert.Equal(t, "A Study of Cortex", row["title"])
	assert.Equal(t, "fmri; brain", row["keywords"])
	assert.Equal(t, "An abstract paragraph.", row["abstract"])
	assert.Equal(t, "Intro\nBody paragraph one.\nBody paragraph two.", row["body"])
}

func TestCoordinateSpace_Extract_MNI(t *testing.T) {
	article, err := xmlnode.Parse([]byte(`<article><body><p>Coordinates reported in MNI space using SPM.</p></body></article>`))
	require.NoError(t, err)
	record := CoordinateSpace{}.Extract(article, "", nil)
	assert.Equal(t, "MNI", record.Single["coordinate_space"])
}

func TestCoordinateSpace_Extract_Talairach(t *testing.T) {
	article, err := xmlnode.Parse([]byte(`<article><body><p>Normalized to Talairach space with AFNI.</p></body></article>`))
	require.NoError(t, err)
	record := CoordinateSpace{}.Extract(article, "", nil)
	assert.Equal(t, "TAL", record.Single["coordinate_space"])
}

func TestCoordinateSpace_Extract_Unknown(t *testing.T) {
	article, err := xmlnode.Parse([]byte(`<article><body><p>No spatial normalization mentioned here.</p></body></article>`))
	require.NoError(t, err)
	record := CoordinateSpace{}.Extract(article, "", nil)
	assert.Equal(t, "UNKNOWN", record.Single["coordinate_space"])
}

func TestLinks_Extract_DedupsAndDerivesIDs(t *testing.T) {
	article, err := xmlnode.Parse([]byte(`<article><body>
		<p><ext-link href="https://example.com/pmc/articles/PMC123/bin/figure1.jpg"/></p>
		<p><ext-link href="https://example.com/pmc/articles/PMC123/bin/figure1.jpg"/></p>
		<p><uri href="https://figshare.com/collections/dataset/98765"/></p>
	</body></article>`))
	require.NoError(t, err)
	record := Links{}.Extract(article, "", nil)
	require.Len(t, record.RowSet, 2)

	assert.Equal(t, "image", record.RowSet[0]["id_type"])
	assert.Equal(t, "figure1.jpg", record.RowSet[0]["derived_id"])
	assert.Equal(t, "collection", record.RowSet[1]["id_type"])
	assert.Equal(t, "98765", record.RowSet[1]["derived_id"])
}

func TestLinks_Extract_NoHrefSkipped(t *testing.T) {
	article, err := xmlnode.Parse([]byte(`<article><body><p><ext-link/></p></body></article>`))
	require.NoError(t, err)
	record := Links{}.Extract(article, "", nil)
	assert.Empty(t, record.RowSet)
}
