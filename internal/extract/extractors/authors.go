package extractors

import (
	"strconv"
	"strings"

	"github.com/reichan1998/pmcpipeline/internal/extract"
	"github.com/reichan1998/pmcpipeline/internal/xmlnode"
)

// Authors emits one row per author, joined with the author's affiliation
// text (pubget's _authors.py).
type Authors struct{}

func (Authors) Name() string { return "authors" }

func (Authors) Fields() []string {
	return []string{"pmcid", "surname", "given-names", "affiliations"}
}

func (Authors) Extract(article *xmlnode.Node, _ string, _ map[string]extract.Record) extract.Record {
	meta := article.Path("front", "article-meta")
	if meta == nil {
		return extract.Record{}
	}
	pmcid := ""
	for _, id := range meta.Children("article-id") {
		if id.Attr("pub-id-type") == "pmc" {
			pmcid = id.Text()
		}
	}

	affByLabel := map[int]string{}
	for _, aff := range meta.Children("aff") {
		label := aff.Child("label")
		if label == nil {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(label.Text()))
		if err != nil {
			continue
		}
		affByLabel[n] = firstDirectText(aff)
	}

	contribGroup := meta.Child("contrib-group")
	if contribGroup == nil {
		return extract.Record{}
	}

	var rows []map[string]string
	for _, contrib := range contribGroup.Children("contrib") {
		if contrib.Attr("contrib-type") != "" && contrib.Attr("contrib-type") != "author" {
			continue
		}
		name := contrib.Child("name")
		if name == nil {
			continue
		}
		surname := ""
		given := ""
		if s := name.Child("surname"); s != nil {
			surname = s.Text()
		}
		if g := name.Child("given-names"); g != nil {
			given = g.Text()
		}

		var affs []string
		for _, xref := range contrib.Children("xref") {
			if xref.Attr("ref-type") != "aff" {
				continue
			}
			refText := strings.TrimSpace(xref.Text())
			n, err := strconv.Atoi(refText)
			if err != nil {
				continue
			}
			if aff, ok := affByLabel[n]; ok {
				affs = append(affs, aff)
			}
		}

		rows = append(rows, map[string]string{
			"pmcid":        pmcid,
			"surname":      surname,
			"given-names":  given,
			"affiliations": strings.Join(affs, "; "),
		})
	}
	return extract.Record{RowSet: rows}
}

// firstDirectText returns the first direct text-node child of n (not the
// full rendered text of all descendants), matching the original's
// aff_elem.xpath("text()")[0].
func firstDirectText(n *xmlnode.Node) string {
	// Content is the innerXML; the first run of character data before any
	// tag is the first direct text node.
	idx := strings.IndexByte(n.Content, '<')
	var raw string
	if idx == -1 {
		raw = n.Content
	} else {
		raw = n.Content[:idx]
	}
	return strings.TrimSpace(raw)
}
