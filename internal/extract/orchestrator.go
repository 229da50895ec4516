package extract

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gedex/inflector"
	"github.com/sirupsen/logrus"

	"github.com/reichan1998/pmcpipeline/internal/stepinfo"
	"github.com/reichan1998/pmcpipeline/internal/tuning"
	"github.com/reichan1998/pmcpipeline/internal/xmlnode"
)

const stepName = "extract_data"

// Options configures one run of the data-extraction stage.
type Options struct {
	NWorkers             int
	ChunkSize            int
	ArticlesWithCoordsOnly bool
}

type articleResult struct {
	dir  string
	data map[string]Record
}

// Run executes the streaming data-extraction stage over articlesDir,
// writing one CSV per extractor into outputDir (spec.md §4.4).
func Run(articlesDir, outputDir string, extractors []Extractor, opts Options, log *logrus.Logger) (stepinfo.ExitCode, error) {
	status, err := stepinfo.CheckStatus(articlesDir, outputDir)
	if err != nil {
		return stepinfo.Error, err
	}
	if !status.NeedRun {
		return stepinfo.Completed, nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return stepinfo.Error, err
	}

	ws, err := OpenWriterSet(outputDir, extractors)
	if err != nil {
		return stepinfo.Error, err
	}
	closed := false
	defer func() {
		if !closed {
			ws.Close()
		}
	}()

	tunings := tuning.Resolve(opts.NWorkers)
	nWorkers := tunings.NumWorkers
	chunkSize := opts.ChunkSize
	if chunkSize < 1 {
		chunkSize = tunings.ChunkSize
	}
	capacity := chunkSize * nWorkers

	paths, err := listArticleDirs(articlesDir)
	if err != nil {
		return stepinfo.Error, err
	}

	sem := make(chan struct{}, capacity)
	tasks := make(chan string, nWorkers)
	results := make(chan articleResult, nWorkers)

	// Producer: blocks on the semaphore before handing out each article
	// path, bounding the number of in-flight articles (spec.md §4.4).
	go func() {
		defer close(tasks)
		for _, p := range paths {
			sem <- struct{}{}
			tasks <- p
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dir := range tasks {
				results <- articleResult{dir: dir, data: extractOne(dir, extractors, log)}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	nProcessed := 0
	nKept := 0
	for res := range results {
		if shouldWrite(res.data, opts.ArticlesWithCoordsOnly) {
			if err := ws.WriteArticle(res.data); err != nil {
				return stepinfo.Error, err
			}
			nKept++
		}
		<-sem
		nProcessed++
		if nProcessed%chunkSize == 0 {
			noun := "article"
			if nProcessed != 1 {
				noun = inflector.Pluralize(noun)
			}
			log.Infof("processed %d %s", nProcessed, noun)
		}
	}

	closed = true
	if err := ws.Close(); err != nil {
		return stepinfo.Error, err
	}

	isComplete := status.PreviousStepComplete
	if err := stepinfo.Write(outputDir, stepName, isComplete, map[string]interface{}{
		"nArticles": nKept,
	}); err != nil {
		return stepinfo.Error, err
	}
	if nKept == 0 {
		return stepinfo.Error, &stepinfo.StopPipeline{Reason: "no articles matching the query and selection criteria could be extracted"}
	}
	if !isComplete {
		return stepinfo.Incomplete, nil
	}
	return stepinfo.Completed, nil
}

func shouldWrite(data map[string]Record, coordsOnly bool) bool {
	if data == nil {
		return false
	}
	if !coordsOnly {
		return true
	}
	coords, ok := data["coordinates"]
	if !ok {
		return false
	}
	return len(coords.Rows()) > 0
}

func extractOne(articleDir string, extractors []Extractor, log *logrus.Logger) map[string]Record {
	data, err := os.ReadFile(filepath.Join(articleDir, "article.xml"))
	if err != nil {
		log.WithError(err).WithField("article_dir", articleDir).Warn("failed to read article.xml")
		return nil
	}
	article, err := xmlnode.Parse(data)
	if err != nil {
		log.WithError(err).WithField("article_dir", articleDir).Warn("failed to parse article.xml")
		return nil
	}

	results := map[string]Record{}
	for _, e := range extractors {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("extractor", e.Name()).WithField("article_dir", articleDir).Warnf("extractor panicked: %v", r)
				}
			}()
			results[e.Name()] = e.Extract(article, articleDir, results)
		}()
	}
	return results
}

// listArticleDirs walks articlesDir/<bucket>/pmcid_* in lexicographic order
// of bucket, then article (spec.md §4.4's producer ordering).
func listArticleDirs(articlesDir string) ([]string, error) {
	buckets, err := os.ReadDir(articlesDir)
	if err != nil {
		return nil, err
	}
	var bucketNames []string
	for _, b := range buckets {
		if b.IsDir() {
			bucketNames = append(bucketNames, b.Name())
		}
	}
	sort.Strings(bucketNames)

	var paths []string
	for _, bucket := range bucketNames {
		bucketDir := filepath.Join(articlesDir, bucket)
		entries, err := os.ReadDir(bucketDir)
		if err != nil {
			continue
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			paths = append(paths, filepath.Join(bucketDir, name))
		}
	}
	return paths, nil
}
