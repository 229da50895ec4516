// Package extractors implements the fixed set of field extractors run by
// the data-extraction stage (spec.md §4.5), grounded field-by-field on
// pubget's _metadata.py, _authors.py, _coordinate_space.py and _links.py.
package extractors

import (
	"strconv"
	"strings"

	"github.com/reichan1998/pmcpipeline/internal/extract"
	"github.com/reichan1998/pmcpipeline/internal/xmlnode"
)

// Metadata extracts per-article bibliographic fields.
type Metadata struct{}

func (Metadata) Name() string { return "metadata" }

func (Metadata) Fields() []string {
	return []string{"id", "pmcid", "pmid", "doi", "title", "journal", "journal_fullname", "publication_year", "license"}
}

func (Metadata) Extract(article *xmlnode.Node, _ string, _ map[string]extract.Record) extract.Record {
	meta := article.Path("front", "article-meta")
	row := map[string]string{}
	if meta == nil {
		return extract.Record{Single: row}
	}

	ids := meta.Children("article-id")
	var pmcid, pmid, doi string
	for _, id := range ids {
		switch id.Attr("pub-id-type") {
		case "pmc":
			pmcid = id.Text()
		case "pmid":
			pmid = id.Text()
		case "doi":
			doi = id.Text()
		}
	}
	row["pmcid"] = pmcid
	row["pmid"] = pmid
	row["doi"] = doi
	if pmcid != "" {
		row["id"] = pmcid
	} else {
		row["id"] = pmid
	}

	if titleGroup := meta.Child("title-group"); titleGroup != nil {
		if title := titleGroup.Child("article-title"); title != nil {
			row["title"] = title.Text()
		}
	}

	journalMeta := article.Path("front", "journal-meta")
	if journalMeta != nil {
		if jid := journalMeta.Child("journal-id"); jid != nil {
			row["journal"] = jid.Text()
		}
		if titleGroup := journalMeta.Child("journal-title-group"); titleGroup != nil {
			if t := titleGroup.Child("journal-title"); t != nil {
				row["journal_fullname"] = t.Text()
			}
		} else if t := journalMeta.Child("journal-title"); t != nil {
			row["journal_fullname"] = t.Text()
		}
	}

	row["publication_year"] = minPublicationYear(meta)
	row["license"] = findLicense(meta)

	return extract.Record{Single: row}
}

func minPublicationYear(meta *xmlnode.Node) string {
	best := -1
	for _, pubDate := range meta.Children("pub-date") {
		yearNode := pubDate.Child("year")
		if yearNode == nil {
			continue
		}
		text := strings.TrimSpace(yearNode.Text())
		if len(text) < 4 {
			continue
		}
		year, err := strconv.Atoi(text[:4])
		if err != nil {
			continue
		}
		if best == -1 || year < best {
			best = year
		}
	}
	if best == -1 {
		return ""
	}
	return strconv.Itoa(best)
}

// findLicense resolves the license in the same priority order as the
// original: the license element's own xlink:href, then a nested
// ext-link/uri's xlink:href, then the ALI-namespace license_ref text, then
// the license-type attribute.
func findLicense(meta *xmlnode.Node) string {
	permissions := meta.Child("permissions")
	if permissions == nil {
		return ""
	}
	license := permissions.Child("license")
	if license == nil {
		return ""
	}
	if href := license.Attr("href"); href != "" {
		return href
	}
	for _, name := range []string{"ext-link", "uri"} {
		if link := license.Child(name); link != nil {
			if href := link.Attr("href"); href != "" {
				return href
			}
		}
	}
	if ref := license.Child("license_ref"); ref != nil {
		if text := ref.Text(); text != "" {
			return text
		}
	}
	return license.Attr("license-type")
}
