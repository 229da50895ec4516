package extractors

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/reichan1998/pmcpipeline/internal/extract"
	"github.com/reichan1998/pmcpipeline/internal/xmlnode"
)

// Coordinates recovers stereotactic (x, y, z) triples from the per-article
// table sidecars written by the article-split stage, following the
// normalize/collapse/expand/discover/filter/gate pipeline of pubget's
// _coordinates.py.
type Coordinates struct{}

func (Coordinates) Name() string { return "coordinates" }

func (Coordinates) Fields() []string {
	return []string{"pmcid", "table_id", "table_label", "x", "y", "z"}
}

func (Coordinates) Extract(_ *xmlnode.Node, articleDir string, prior map[string]extract.Record) extract.Record {
	pmcid := ""
	if meta, ok := prior["metadata"]; ok && meta.Single != nil {
		pmcid = meta.Single["pmcid"]
	}

	infoPaths, err := filepath.Glob(filepath.Join(articleDir, "tables", "table_*_info.json"))
	if err != nil || len(infoPaths) == 0 {
		return extract.Record{}
	}
	sort.Strings(infoPaths)

	var rows []map[string]string
	for _, infoPath := range infoPaths {
		table, err := readTable(infoPath)
		if err != nil {
			continue
		}
		for _, triple := range extractTableCoordinates(table) {
			rows = append(rows, map[string]string{
				"pmcid":       pmcid,
				"table_id":    table.id,
				"table_label": table.label,
				"x":           strconv.FormatFloat(triple[0], 'f', 2, 64),
				"y":           strconv.FormatFloat(triple[1], 'f', 2, 64),
				"z":           strconv.FormatFloat(triple[2], 'f', 2, 64),
			})
		}
	}
	return extract.Record{RowSet: rows}
}

type parsedTable struct {
	id, label    string
	headerRows   [][]string
	dataRows     [][]string
	headerLevels int
}

func readTable(infoPath string) (*parsedTable, error) {
	infoBody, err := os.ReadFile(infoPath)
	if err != nil {
		return nil, err
	}
	var info struct {
		TableID       string `json:"table_id"`
		TableLabel    string `json:"table_label"`
		NHeaderRows   int    `json:"n_header_rows"`
		TableDataFile string `json:"table_data_file"`
	}
	if err := json.Unmarshal(infoBody, &info); err != nil {
		return nil, err
	}

	csvPath := filepath.Join(filepath.Dir(infoPath), info.TableDataFile)
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	allRows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	for r := range allRows {
		for c := range allRows[r] {
			allRows[r][c] = normalizeSigns(allRows[r][c])
		}
	}

	n := info.NHeaderRows
	if n > len(allRows) {
		n = len(allRows)
	}
	return &parsedTable{
		id:           info.TableID,
		label:        info.TableLabel,
		headerRows:   allRows[:n],
		dataRows:     allRows[n:],
		headerLevels: n,
	}, nil
}

// signLookalikes maps Unicode code points that resemble +/- signs onto their
// ASCII equivalents, so minus-like dashes in scanned tables parse as numbers.
var signLookalikes = map[rune]rune{
	0x2212: '-', 0x2796: '-', 0x2013: '-', 0xFE63: '-', 0xFF0D: '-',
	0xFF0B: '+',
}

func normalizeSigns(s string) string {
	return strings.Map(func(r rune) rune {
		if replacement, ok := signLookalikes[r]; ok {
			return replacement
		}
		return r
	}, s)
}

const numberPattern = `[-+]?\d+(?:\.\d+)?`

var (
	tripletCellRegex = regexp.MustCompile(
		`^\s*[\(\[]?\s*(` + numberPattern + `)\s*[,;\s]+\s*(` + numberPattern + `)\s*[,;\s]+\s*(` + numberPattern + `)\s*[\)\]]?\s*$`)
	singleNumberRegex = regexp.MustCompile(`^\s*` + numberPattern + `\s*$`)
	xyzHeaderRegex    = regexp.MustCompile(`(?i)^[\(\[]?\s*x\s*[,;\s]+\s*y\s*[,;\s]+\s*z\s*[\)\]]?\s*$`)
	coordNameRegex    = regexp.MustCompile(`(?i)coordinate|coord\(s\)|talairach|\btal\b|\bmni\b|location`)
	wordX             = regexp.MustCompile(`(?i)\bx\b`)
	wordY             = regexp.MustCompile(`(?i)\by\b`)
	wordZ             = regexp.MustCompile(`(?i)\bz\b`)
)

// extractTableCoordinates runs the full header-collapse / column-expansion /
// triplet-discovery / filter / plausibility-gate pipeline over one table and
// returns the surviving (x, y, z) triples, or nil if the table is rejected
// outright.
func extractTableCoordinates(table *parsedTable) [][3]float64 {
	headers := collapseHeaders(table.headerRows)
	columns := toColumns(table.dataRows, len(headers))

	headers, columns = expandColumns(headers, columns)

	var triples [][3]float64
	for i := 0; i+2 < len(headers); {
		if tripleQualifies(headers[i], headers[i+1], headers[i+2]) {
			triples = append(triples, collectTriple(columns[i], columns[i+1], columns[i+2])...)
			i += 3
		} else {
			i++
		}
	}

	// The plausibility gate runs on the raw, pre-filter triples (matching
	// `_check_table` preceding `_filter_coordinates` in the reference
	// implementation): filtering first would let a table whose raw
	// coordinates are implausible sneak through just because its
	// out-of-range/near-origin rows were stripped before the gate saw them.
	if !plausible(triples) {
		return nil
	}
	return filterCoordinates(triples)
}

// collapseHeaders joins multi-level header rows column by column with a
// space; a single header row is used as-is.
func collapseHeaders(headerRows [][]string) []string {
	width := 0
	for _, row := range headerRows {
		if len(row) > width {
			width = len(row)
		}
	}
	headers := make([]string, width)
	for _, row := range headerRows {
		for c := 0; c < width; c++ {
			if c >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[c])
			if cell == "" {
				continue
			}
			if headers[c] == "" {
				headers[c] = cell
			} else {
				headers[c] = headers[c] + " " + cell
			}
		}
	}
	return headers
}

func toColumns(rows [][]string, width int) [][]string {
	columns := make([][]string, width)
	for c := 0; c < width; c++ {
		col := make([]string, len(rows))
		for r, row := range rows {
			if c < len(row) {
				col[r] = row[c]
			}
		}
		columns[c] = col
	}
	return columns
}

// expandColumns scans columns left to right; a column whose header looks
// like a coordinate triple is split into three columns when doing so yields
// more well-formed triplets than single numeric values.
func expandColumns(headers []string, columns [][]string) ([]string, [][]string) {
	outHeaders := make([]string, 0, len(headers))
	outColumns := make([][]string, 0, len(columns))

	for i, header := range headers {
		if !xyzHeaderRegex.MatchString(header) && !coordNameRegex.MatchString(header) {
			outHeaders = append(outHeaders, header)
			outColumns = append(outColumns, columns[i])
			continue
		}

		tripletCount, singleCount := 0, 0
		xs := make([]string, len(columns[i]))
		ys := make([]string, len(columns[i]))
		zs := make([]string, len(columns[i]))
		for r, cell := range columns[i] {
			if m := tripletCellRegex.FindStringSubmatch(cell); m != nil {
				tripletCount++
				xs[r], ys[r], zs[r] = m[1], m[2], m[3]
			} else if singleNumberRegex.MatchString(cell) {
				singleCount++
			}
		}

		if tripletCount > singleCount {
			outHeaders = append(outHeaders, header, header, header)
			outColumns = append(outColumns, xs, ys, zs)
		} else {
			outHeaders = append(outHeaders, header)
			outColumns = append(outColumns, columns[i])
		}
	}
	return outHeaders, outColumns
}

func tripleQualifies(a, b, c string) bool {
	if wordX.MatchString(a) && wordY.MatchString(b) && wordZ.MatchString(c) {
		return true
	}
	if coordNameRegex.MatchString(a) && coordNameRegex.MatchString(b) && coordNameRegex.MatchString(c) && !wordX.MatchString(b) {
		return true
	}
	return false
}

func collectTriple(xs, ys, zs []string) [][3]float64 {
	n := len(xs)
	var triples [][3]float64
	for r := 0; r < n; r++ {
		x, okX := parseFloat(xs[r])
		y, okY := parseFloat(ys[r])
		z, okZ := parseFloat(zs[r])
		if okX && okY && okZ {
			triples = append(triples, [3]float64{x, y, z})
		}
	}
	return triples
}

func parseFloat(s string) (float64, bool) {
	s = normalizeSigns(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// filterCoordinates drops rows out of plausible stereotactic range, rows
// collapsed near the origin, and values that don't round cleanly to 2
// decimals (spec.md §3 coordinate filter invariant).
func filterCoordinates(triples [][3]float64) [][3]float64 {
	var kept [][3]float64
	for _, t := range triples {
		x, y, z := t[0], t[1], t[2]
		if math.Abs(x) >= 150 || math.Abs(y) >= 150 || math.Abs(z) >= 150 {
			continue
		}
		if inUnitRange(x) && inUnitRange(y) && inUnitRange(z) {
			continue
		}
		if !representableAt2Decimals(x) || !representableAt2Decimals(y) || !representableAt2Decimals(z) {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

func inUnitRange(v float64) bool {
	return v >= -1 && v <= 1
}

func representableAt2Decimals(v float64) bool {
	scaled := v * 100
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

// plausible fits a fixed zero-mean, covariance-1.5·I 3-D normal and requires
// the mean log-likelihood across the table's rows to be below -400; tables
// of degenerate near-origin "coordinates" fail this and are discarded
// whole (spec.md §4.5 step 7).
func plausible(triples [][3]float64) bool {
	if len(triples) == 0 {
		return false
	}
	const sigma2 = 1.5
	const dims = 3.0
	logConst := -0.5 * dims * math.Log(2*math.Pi*sigma2)

	var sum float64
	for _, t := range triples {
		sqNorm := t[0]*t[0] + t[1]*t[1] + t[2]*t[2]
		sum += logConst - sqNorm/(2*sigma2)
	}
	mean := sum / float64(len(triples))
	return mean < -400
}
