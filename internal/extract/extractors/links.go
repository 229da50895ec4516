package extractors

import (
	"regexp"

	"github.com/reichan1998/pmcpipeline/internal/extract"
	"github.com/reichan1998/pmcpipeline/internal/xmlnode"
)

// Links collects every element carrying an xlink href (ext-link, uri),
// deduplicated, plus a derived typed id recovered from the href by regex
// (pubget's _links.py LinkExtractor and its secondary id-deriving pass,
// folded into one CSV per spec.md §4.10).
type Links struct{}

func (Links) Name() string { return "links" }

func (Links) Fields() []string {
	return []string{"pmcid", "ext-link-type", "href", "id_type", "derived_id"}
}

var hrefIDPatterns = map[string]*regexp.Regexp{
	"image":      regexp.MustCompile(`/pmc/articles/PMC\d+/bin/([\w.-]+)`),
	"collection": regexp.MustCompile(`figshare\.com/collections/[^/]+/(\d+)`),
}

func (Links) Extract(article *xmlnode.Node, _ string, prior map[string]extract.Record) extract.Record {
	pmcid := idFromPrior(prior)
	seen := map[string]bool{}
	var rows []map[string]string

	for _, name := range []string{"ext-link", "uri"} {
		for _, n := range article.FindAll(name) {
			href := n.Attr("href")
			if href == "" {
				continue
			}
			key := name + "|" + href
			if seen[key] {
				continue
			}
			seen[key] = true

			idType, derivedID := deriveID(href)
			rows = append(rows, map[string]string{
				"pmcid":         pmcid,
				"ext-link-type": name,
				"href":          href,
				"id_type":       idType,
				"derived_id":    derivedID,
			})
		}
	}
	return extract.Record{RowSet: rows}
}

func deriveID(href string) (string, string) {
	for idType, pattern := range hrefIDPatterns {
		if m := pattern.FindStringSubmatch(href); m != nil {
			return idType, m[1]
		}
	}
	return "", ""
}
