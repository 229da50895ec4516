// Package vectorize implements the extract_vocabulary and vectorize
// pipeline stages (spec.md §4.6), turning text.csv into a term vocabulary
// and, from a vocabulary, sparse count/TF-IDF matrices.
package vectorize

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/reichan1998/pmcpipeline/internal/stepinfo"
	"github.com/reichan1998/pmcpipeline/internal/vectorize/tokenize"
)

const vocabularyStepName = "extract_vocabulary"
const minDocFrequency = 0.001

// ExtractVocabulary fits a binary bag-of-words count over the concatenated
// text fields of textCSVPath and writes a two-column `term, df` CSV sorted
// by term, keeping only terms whose document frequency is at least
// minDocFrequency (pubget's `_vocabulary.py`).
func ExtractVocabulary(textCSVPath, outputDir string) (stepinfo.ExitCode, error) {
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

	docCounts := map[string]int{}
	nDocs := 0
	err = eachArticleText(textCSVPath, func(text string) {
		seen := map[string]bool{}
		for _, term := range tokenize.Vectorize(text) {
			seen[term] = true
		}
		for term := range seen {
			docCounts[term]++
		}
		nDocs++
	})
	if err != nil {
		return stepinfo.Error, err
	}

	terms := make([]string, 0, len(docCounts))
	for term, count := range docCounts {
		df := float64(count+1) / float64(nDocs+1)
		if df >= minDocFrequency {
			terms = append(terms, term)
		}
	}
	sort.Strings(terms)

	if err := writeVocabularyCSV(filepath.Join(outputDir, "vocabulary.csv"), terms, docCounts, nDocs); err != nil {
		return stepinfo.Error, err
	}

	isComplete := status.PreviousStepComplete
	if err := stepinfo.Write(outputDir, vocabularyStepName, isComplete, nil); err != nil {
		return stepinfo.Error, err
	}
	if !isComplete {
		return stepinfo.Incomplete, nil
	}
	return stepinfo.Completed, nil
}

func writeVocabularyCSV(path string, terms []string, docCounts map[string]int, nDocs int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	for _, term := range terms {
		df := float64(docCounts[term]+1) / float64(nDocs+1)
		if err := w.Write([]string{term, fmt.Sprintf("%.10g", df)}); err != nil {
			return err
		}
	}
	return w.Error()
}

// eachArticleText streams text.csv and invokes fn with each article's
// title+keywords+abstract+body joined by newlines, the concatenation the
// vocabulary/vectorization stages both tokenize over.
func eachArticleText(textCSVPath string, fn func(text string)) error {
	f, err := os.Open(textCSVPath)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return err
	}
	colIndex := map[string]int{}
	for i, name := range header {
		colIndex[name] = i
	}

	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		text := ""
		for _, field := range []string{"title", "keywords", "abstract", "body"} {
			idx, ok := colIndex[field]
			if !ok || idx >= len(record) {
				continue
			}
			if text != "" {
				text += "\n"
			}
			text += record[idx]
		}
		fn(text)
	}
	return nil
}
