package vectorize

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/reichan1998/pmcpipeline/internal/sparse"
	"github.com/reichan1998/pmcpipeline/internal/stepinfo"
	"github.com/reichan1998/pmcpipeline/internal/vectorize/tokenize"
)

const vectorizeStepName = "vectorize"

var textFields = []string{"title", "keywords", "abstract", "body"}

// VectorizeCorpus streams text.csv, counts every text field against a
// vocabulary, collapses the counts through a vocabulary-mapping operator,
// and writes per-field count/TF-IDF matrices plus the corpus document
// frequencies (spec.md §4.6, grounded on pubget's `_vectorization.py`).
func VectorizeCorpus(textCSVPath, vocabularyPath, outputDir string) (stepinfo.ExitCode, error) {
	status, err := stepinfo.CheckStatus(filepath.Dir(textCSVPath), outputDir)
	if err != nil {
		return stepinfo.Error, err
	}
	if !status.NeedRun {
		return stepinfo.Completed, nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return stepinfo.Error, err
	}

	fullVocab, mapping, err := loadVocabulary(vocabularyPath)
	if err != nil {
		return stepinfo.Error, err
	}
	vocabIndex := make(map[string]int, len(fullVocab))
	for i, term := range fullVocab {
		vocabIndex[term] = i
	}

	pmcids, fieldRows, err := readTextCSV(textCSVPath, vocabIndex)
	if err != nil {
		return stepinfo.Error, err
	}

	countsFullVoc := map[string]*sparse.Matrix{}
	for _, field := range textFields {
		countsFullVoc[field] = sparse.NewFromRows(fieldRows[field], len(fullVocab))
	}

	termFreqFullVoc := map[string]*sparse.Matrix{}
	for _, field := range textFields {
		termFreqFullVoc[field] = countsFullVoc[field].NormalizeL1Rows()
	}
	termFreqFullVoc["merged"] = averageMatrices(
		termFreqFullVoc["title"], termFreqFullVoc["keywords"], termFreqFullVoc["abstract"], termFreqFullVoc["body"])

	fullVocabDocFreq := documentFrequency(termFreqFullVoc["merged"])

	collapse, reducedVocab := buildCollapseOperator(fullVocab, mapping)

	counts := map[string]*sparse.Matrix{}
	for _, field := range textFields {
		counts[field] = countsFullVoc[field].MulSparseTranspose(collapse)
	}
	termFreq := map[string]*sparse.Matrix{}
	for _, field := range append(append([]string{}, textFields...), "merged") {
		termFreq[field] = termFreqFullVoc[field].MulSparseTranspose(collapse)
	}

	reducedDocFreq := documentFrequency(termFreq["merged"])
	idf := make([]float64, len(reducedDocFreq))
	for i, df := range reducedDocFreq {
		idf[i] = -math.Log(df) + 1
	}

	tfidf := map[string]*sparse.Matrix{}
	for field, tf := range termFreq {
		tfidf[field] = tf.MulDiag(idf)
	}

	if err := writePmcids(filepath.Join(outputDir, "pmcid.txt"), pmcids); err != nil {
		return stepinfo.Error, err
	}
	for _, field := range textFields {
		if err := sparse.SaveNPZLike(filepath.Join(outputDir, field+"_counts.npz"), counts[field]); err != nil {
			return stepinfo.Error, err
		}
	}
	for field, m := range tfidf {
		if err := sparse.SaveNPZLike(filepath.Join(outputDir, field+"_tfidf.npz"), m); err != nil {
			return stepinfo.Error, err
		}
	}
	if err := writeTermDocFreqCSV(filepath.Join(outputDir, "feature_names.csv"), reducedVocab, reducedDocFreq); err != nil {
		return stepinfo.Error, err
	}
	if err := writeTermDocFreqCSV(filepath.Join(outputDir, "vocabulary.csv"), fullVocab, fullVocabDocFreq); err != nil {
		return stepinfo.Error, err
	}
	if err := writeMappingJSON(filepath.Join(outputDir, "vocabulary.csv_voc_mapping_identity.json"), mapping); err != nil {
		return stepinfo.Error, err
	}

	isComplete := status.PreviousStepComplete
	if err := stepinfo.Write(outputDir, vectorizeStepName, isComplete, map[string]interface{}{
		"nArticles": len(pmcids),
	}); err != nil {
		return stepinfo.Error, err
	}
	if !isComplete {
		return stepinfo.Incomplete, nil
	}
	return stepinfo.Completed, nil
}

// loadVocabulary reads a `term, df` CSV (ignoring the df column for
// ordering) and its sibling `<path>_voc_mapping_identity.json`, if present.
func loadVocabulary(path string) ([]string, map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	var terms []string
	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, err
		}
		if len(record) > 0 {
			terms = append(terms, record[0])
		}
	}

	mapping := map[string]string{}
	mappingPath := path + "_voc_mapping_identity.json"
	if body, err := os.ReadFile(mappingPath); err == nil {
		if err := json.Unmarshal(body, &mapping); err != nil {
			return nil, nil, fmt.Errorf("vectorize: parsing %s: %w", mappingPath, err)
		}
	}
	return terms, mapping, nil
}

// buildCollapseOperator returns the sparse vocabulary-collapse matrix and
// the reduced vocabulary (full vocabulary minus mapping sources, order
// preserved), matching `_voc_mapping_matrix` in `_vectorization.py`.
func buildCollapseOperator(fullVocab []string, mapping map[string]string) (*sparse.Matrix, []string) {
	index := make(map[string]int, len(fullVocab))
	for i, term := range fullVocab {
		index[term] = i
	}
	isSource := make(map[int]bool, len(mapping))
	for source := range mapping {
		if idx, ok := index[source]; ok {
			isSource[idx] = true
		}
	}

	var reducedVocab []string
	reducedPos := make(map[int]int, len(fullVocab))
	rows := make([]map[int]float64, 0, len(fullVocab))
	for i, term := range fullVocab {
		if isSource[i] {
			continue
		}
		reducedPos[i] = len(rows)
		rows = append(rows, map[int]float64{i: 1})
		reducedVocab = append(reducedVocab, term)
	}

	for source, target := range mapping {
		sIdx, sOk := index[source]
		tIdx, tOk := index[target]
		if !sOk || !tOk {
			continue
		}
		pos, ok := reducedPos[tIdx]
		if !ok {
			continue
		}
		rows[pos][sIdx] += 1
	}

	return sparse.NewFromRows(rows, len(fullVocab)), reducedVocab
}

// readTextCSV streams text.csv and returns article pmcids plus, per text
// field, one vocabulary count row per article in file order.
func readTextCSV(path string, vocabIndex map[string]int) ([]string, map[string][]map[int]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, nil, err
	}
	colIndex := map[string]int{}
	for i, name := range header {
		colIndex[name] = i
	}

	var pmcids []string
	fieldRows := map[string][]map[int]float64{}
	for _, field := range textFields {
		fieldRows[field] = nil
	}

	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, err
		}
		if idx, ok := colIndex["id"]; ok && idx < len(record) {
			pmcids = append(pmcids, record[idx])
		} else {
			pmcids = append(pmcids, "")
		}
		for _, field := range textFields {
			text := ""
			if idx, ok := colIndex[field]; ok && idx < len(record) {
				text = record[idx]
			}
			fieldRows[field] = append(fieldRows[field], countRow(text, vocabIndex))
		}
	}
	return pmcids, fieldRows, nil
}

func countRow(text string, vocabIndex map[string]int) map[int]float64 {
	row := map[int]float64{}
	for _, term := range tokenize.Vectorize(text) {
		if idx, ok := vocabIndex[term]; ok {
			row[idx]++
		}
	}
	return row
}

func averageMatrices(mats ...*sparse.Matrix) *sparse.Matrix {
	if len(mats) == 0 {
		return &sparse.Matrix{}
	}
	nRows, nCols := mats[0].NRows, mats[0].NCols
	rows := make([]map[int]float64, nRows)
	for r := 0; r < nRows; r++ {
		acc := map[int]float64{}
		for _, m := range mats {
			for col, val := range m.Row(r) {
				acc[col] += val
			}
		}
		for col := range acc {
			acc[col] /= float64(len(mats))
		}
		rows[r] = acc
	}
	return sparse.NewFromRows(rows, nCols)
}

// documentFrequency computes `(docCount + 1) / (nDocs + 1)` per column of a
// term-frequency matrix (spec.md §4.6 step 3/5).
func documentFrequency(tf *sparse.Matrix) []float64 {
	counts := tf.DocumentFrequencies()
	df := make([]float64, len(counts))
	for i, c := range counts {
		df[i] = float64(c+1) / float64(tf.NRows+1)
	}
	return df
}

func writePmcids(path string, pmcids []string) error {
	var b strings.Builder
	for _, id := range pmcids {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeTermDocFreqCSV(path string, terms []string, df []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	for i, term := range terms {
		if err := w.Write([]string{term, strconv.FormatFloat(df[i], 'g', -1, 64)}); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeMappingJSON(path string, mapping map[string]string) error {
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
