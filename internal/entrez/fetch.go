package entrez

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const defaultBatchSize = 500

// FetchResult reports how a bulk fetch went, so the download manager can
// decide completion per spec.md §4.2 step 5.
type FetchResult struct {
	NFailures  int
	NBatches   int
	LastBatch  int
}

// Fetch downloads at most min(nDocs, token.Count) records in batches of
// batchSize, writing each response to outputDir/articleset_<NNNNN>.xml.
// Batches whose file already exists are skipped, which is what makes the
// download resumable (spec.md §4.1's fetch contract). A failing batch
// increments NFailures but does not abort the remaining batches.
func (c *Client) Fetch(ctx context.Context, token SessionToken, outputDir string, nDocs *int, batchSize int) (FetchResult, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return FetchResult{}, fmt.Errorf("entrez: creating output dir: %w", err)
	}

	toFetch := token.Count
	if nDocs != nil && *nDocs < toFetch {
		toFetch = *nDocs
	}
	if toFetch < 0 {
		toFetch = 0
	}

	nBatches := (toFetch + batchSize - 1) / batchSize
	result := FetchResult{NBatches: nBatches}

	for batch := 0; batch < nBatches; batch++ {
		result.LastBatch = batch
		batchFile := filepath.Join(outputDir, fmt.Sprintf("articleset_%05d.xml", batch))
		if _, err := os.Stat(batchFile); err == nil {
			continue
		}

		retstart := batch * batchSize
		retmax := batchSize
		if retstart+retmax > toFetch {
			retmax = toFetch - retstart
		}

		body, err := c.FetchBatch(ctx, token, retstart, retmax)
		if err != nil {
			result.NFailures++
			continue
		}
		if err := os.WriteFile(batchFile, body, 0o644); err != nil {
			result.NFailures++
			continue
		}
	}
	return result, nil
}
