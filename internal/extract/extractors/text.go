package extractors

import (
	"strings"

	"github.com/reichan1998/pmcpipeline/internal/extract"
	"github.com/reichan1998/pmcpipeline/internal/xmlnode"
)

// Text emits the concatenated title, keywords, abstract and body text used
// downstream both for display and as the raw corpus for vectorization.
type Text struct{}

func (Text) Name() string { return "text" }

func (Text) Fields() []string {
	return []string{"id", "title", "keywords", "abstract", "body"}
}

func (Text) Extract(article *xmlnode.Node, _ string, prior map[string]extract.Record) extract.Record {
	meta := article.Path("front", "article-meta")
	row := map[string]string{}
	if meta == nil {
		return extract.Record{Single: row}
	}

	row["id"] = idFromPrior(prior)

	if titleGroup := meta.Child("title-group"); titleGroup != nil {
		if title := titleGroup.Child("article-title"); title != nil {
			row["title"] = title.Text()
		}
	}

	var keywords []string
	for _, group := range meta.Children("kwd-group") {
		for _, kwd := range group.Children("kwd") {
			keywords = append(keywords, kwd.Text())
		}
	}
	row["keywords"] = strings.Join(keywords, "; ")

	if abstract := meta.Child("abstract"); abstract != nil {
		row["abstract"] = joinParagraphs(abstract)
	}

	if body := article.Child("body"); body != nil {
		row["body"] = joinParagraphs(body)
	}

	return extract.Record{Single: row}
}

// idFromPrior reuses the metadata extractor's resolved id when it already
// ran (the fixed extractor order in spec.md §4.5 always runs metadata
// first), falling back to an empty id if metadata failed on this article.
func idFromPrior(prior map[string]extract.Record) string {
	if metaRecord, ok := prior["metadata"]; ok && metaRecord.Single != nil {
		return metaRecord.Single["id"]
	}
	return ""
}

// joinParagraphs concatenates the text of every title and p element under
// n in document order, one per line.
func joinParagraphs(n *xmlnode.Node) string {
	var lines []string
	var walk func(*xmlnode.Node)
	walk = func(cur *xmlnode.Node) {
		for i := range cur.Nodes {
			c := &cur.Nodes[i]
			if name := c.XMLName.Local; name == "title" || name == "p" {
				if t := c.Text(); t != "" {
					lines = append(lines, t)
				}
			}
			walk(c)
		}
	}
	walk(n)
	return strings.Join(lines, "\n")
}
