package extractors

import (
	"regexp"
	"strings"

	"github.com/reichan1998/pmcpipeline/internal/extract"
	"github.com/reichan1998/pmcpipeline/internal/xmlnode"
)

// CoordinateSpace heuristically classifies an article's stereotactic space
// as MNI, TAL or UNKNOWN from its full text (pubget's
// _coordinate_space.py _neurosynth_guess_space).
type CoordinateSpace struct{}

func (CoordinateSpace) Name() string { return "coordinate_space" }

func (CoordinateSpace) Fields() []string {
	return []string{"id", "coordinate_space"}
}

var spaceTerms = regexp.MustCompile(`\b(mni|talairach|spm|fsl|afni|brainvoyager)\b.{0,20}?`)

func (CoordinateSpace) Extract(article *xmlnode.Node, _ string, prior map[string]extract.Record) extract.Record {
	text := strings.ToLower(fullArticleText(article))

	found := map[string]bool{}
	for _, m := range spaceTerms.FindAllStringSubmatch(text, -1) {
		found[m[1]] = true
	}

	mniSoftware := found["spm"] || found["fsl"]
	talSoftware := found["afni"] || found["brainvoyager"]

	space := "UNKNOWN"
	switch {
	case mniSoftware && !talSoftware:
		space = "MNI"
	case !mniSoftware && found["mni"] && !found["talairach"] && !talSoftware:
		space = "MNI"
	case talSoftware && !mniSoftware:
		space = "TAL"
	case !talSoftware && found["talairach"] && !found["mni"] && !mniSoftware:
		space = "TAL"
	}

	return extract.Record{Single: map[string]string{
		"id":               idFromPrior(prior),
		"coordinate_space": space,
	}}
}

// fullArticleText renders every text node under the article for the
// whole-text heuristic scan. Node.Text already strips tags over the full
// inner XML, so the whole article's rendered text is one call.
func fullArticleText(article *xmlnode.Node) string {
	return article.Text()
}
