// Table-extraction "template" transform (spec.md §4.3, §4.8). The original
// implementation applies a static XSLT stylesheet via lxml; Go has no
// idiomatic XSLT engine anywhere in the example corpus, so this walks the
// parsed article tree procedurally, the way eutils' xplore.go walks parsed
// XML trees with hand-written element handlers (ProcessExtract and friends)
// instead of a declarative transform language.
package articles

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/reichan1998/pmcpipeline/internal/xmlnode"
)

// extractedTable is one table found in an article, ready to be serialized
// both into tables.xml and into its own CSV + info.json sidecar.
type extractedTable struct {
	TableID      string
	TableLabel   string
	TableCaption string
	Rows         [][]string
	HeaderRows   int
}

// ExtractTables parses articleDir/article.xml, locates every table-wrap
// element, and writes tables/tables.xml plus one table_NNN.csv +
// table_NNN_info.json pair per recognized table (spec.md §4.3 points 5-7).
func ExtractTables(articleDir string) error {
	data, err := os.ReadFile(filepath.Join(articleDir, "article.xml"))
	if err != nil {
		return fmt.Errorf("articles: reading article.xml: %w", err)
	}
	root, err := xmlnode.Parse(data)
	if err != nil {
		return fmt.Errorf("articles: parsing article.xml: %w", err)
	}

	wraps := root.FindAll("table-wrap")

	tables := make([]extractedTable, 0, len(wraps))
	for t, wrap := range wraps {
		table, err := parseTableWrap(wrap)
		if err != nil {
			// A per-table failure skips that table without logging and does
			// not abort the remaining tables in the same article.
			continue
		}
		if table.TableID == "" {
			table.TableID = fmt.Sprintf("table-%d", t)
		}
		tables = append(tables, table)
	}

	tablesDir := filepath.Join(articleDir, "tables")
	if err := os.MkdirAll(tablesDir, 0o755); err != nil {
		return err
	}
	if err := writeTablesXML(tablesDir, tables); err != nil {
		return err
	}
	for i, table := range tables {
		_ = writeTableCSV(tablesDir, i, table)
	}
	return nil
}

func parseTableWrap(wrap *xmlnode.Node) (extractedTable, error) {
	table := extractedTable{}
	if label := wrap.Child("label"); label != nil {
		table.TableLabel = label.Text()
	}
	if caption := wrap.Child("caption"); caption != nil {
		table.TableCaption = caption.Text()
	}
	if id := wrap.Attr("id"); id != "" {
		table.TableID = id
	}

	tableElem := findTableElement(wrap)
	if tableElem == nil {
		return table, fmt.Errorf("no table element found")
	}

	rows, headerRows := parseHTMLTable(tableElem)
	if len(rows) == 0 {
		return table, fmt.Errorf("empty table")
	}
	table.Rows = rows
	table.HeaderRows = headerRows
	return table, nil
}

func findTableElement(n *xmlnode.Node) *xmlnode.Node {
	if n.XMLName.Local == "table" {
		return n
	}
	for _, t := range n.FindAll("table") {
		return t
	}
	return nil
}

// parseHTMLTable flattens a table element's thead/tbody/tr/th/td structure
// into rows of cell text, and reports how many leading rows are headers.
func parseHTMLTable(table *xmlnode.Node) ([][]string, int) {
	var headerRows [][]string
	var bodyRows [][]string

	for _, thead := range table.Children("thead") {
		for _, tr := range thead.Children("tr") {
			headerRows = append(headerRows, rowCells(tr))
		}
	}
	for _, tbody := range table.Children("tbody") {
		for _, tr := range tbody.Children("tr") {
			cells := rowCells(tr)
			if len(headerRows) == 0 && rowIsAllHeaderCells(tr) {
				headerRows = append(headerRows, cells)
				continue
			}
			bodyRows = append(bodyRows, cells)
		}
	}
	// Tables with no thead/tbody wrapper, direct <tr> children of <table>.
	for _, tr := range table.Children("tr") {
		cells := rowCells(tr)
		if len(headerRows) == 0 && rowIsAllHeaderCells(tr) {
			headerRows = append(headerRows, cells)
			continue
		}
		bodyRows = append(bodyRows, cells)
	}

	all := append(append([][]string{}, headerRows...), bodyRows...)
	return all, len(headerRows)
}

func rowCells(tr *xmlnode.Node) []string {
	cells := make([]string, 0, len(tr.Nodes))
	for i := range tr.Nodes {
		c := &tr.Nodes[i]
		if c.XMLName.Local == "td" || c.XMLName.Local == "th" {
			cells = append(cells, c.Text())
		}
	}
	return cells
}

func rowIsAllHeaderCells(tr *xmlnode.Node) bool {
	found := false
	for i := range tr.Nodes {
		if tr.Nodes[i].XMLName.Local == "th" {
			found = true
		}
		if tr.Nodes[i].XMLName.Local == "td" {
			return false
		}
	}
	return found
}

func writeTablesXML(tablesDir string, tables []extractedTable) error {
	type xmlTable struct {
		XMLName      xml.Name `xml:"extracted-table"`
		TableID      string   `xml:"table-id"`
		TableLabel   string   `xml:"table-label"`
		TableCaption string   `xml:"table-caption"`
	}
	type xmlSet struct {
		XMLName xml.Name   `xml:"extracted-tables-set"`
		Tables  []xmlTable `xml:"extracted-table"`
	}
	set := xmlSet{}
	for _, t := range tables {
		set.Tables = append(set.Tables, xmlTable{
			TableID:      t.TableID,
			TableLabel:   t.TableLabel,
			TableCaption: t.TableCaption,
		})
	}
	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	doc := append([]byte(xml.Header), body...)
	return os.WriteFile(filepath.Join(tablesDir, "tables.xml"), doc, 0o644)
}

func writeTableCSV(tablesDir string, index int, table extractedTable) error {
	name := fmt.Sprintf("table_%03d", index)
	csvPath := filepath.Join(tablesDir, name+".csv")

	f, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	for _, row := range table.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	info := map[string]interface{}{
		"table_id":        table.TableID,
		"table_label":     table.TableLabel,
		"table_caption":   table.TableCaption,
		"n_header_rows":   table.HeaderRows,
		"table_data_file": name + ".csv",
	}
	body, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(tablesDir, name+"_info.json"), body, 0o644)
}
