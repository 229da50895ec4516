// Package download drives the entrez client to completion for a query or an
// explicit id list, persisting enough state in info.json to resume a
// partially completed download -- ported from pubget's _download.py
// _QueryDownloader/_PMCIDListDownloader into a single Go type parameterized
// over the two input modes.
package download

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/reichan1998/pmcpipeline/internal/entrez"
	"github.com/reichan1998/pmcpipeline/internal/stepinfo"
)

const stepName = "download"

// Request describes what to download: either Query or PMCIDs must be set,
// never both (spec.md §6's mutually exclusive CLI group).
type Request struct {
	Query     string
	PMCIDs    []int
	NDocs     *int
	BatchSize int
}

// Manager drives one download to completion (or resumes a prior one).
type Manager struct {
	Client *entrez.Client
	Log    *logrus.Logger
}

func checksum(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}

func outputDirName(req Request) string {
	if req.Query != "" {
		return "query_" + checksum(req.Query)
	}
	ids := make([]string, len(req.PMCIDs))
	for i, id := range req.PMCIDs {
		ids[i] = strconv.Itoa(id)
	}
	return "pmcidList_" + checksum(strings.Join(ids, ","))
}

// Run executes the download step under dataDir, returning the articlesets
// output directory and an exit code per spec.md §4.2 step 5.
func (m *Manager) Run(ctx context.Context, dataDir string, req Request) (string, stepinfo.ExitCode, error) {
	rootDir := filepath.Join(dataDir, outputDirName(req))
	articlesetsDir := filepath.Join(rootDir, "articlesets")

	status, err := stepinfo.CheckStatus("", articlesetsDir)
	if err != nil {
		return "", stepinfo.Error, err
	}
	if !status.NeedRun {
		return articlesetsDir, stepinfo.Completed, nil
	}

	if err := os.MkdirAll(articlesetsDir, 0o755); err != nil {
		return "", stepinfo.Error, err
	}

	token, err := m.acquireToken(ctx, rootDir, articlesetsDir, req)
	if err != nil {
		return "", stepinfo.Error, err
	}
	tokenInfo := map[string]interface{}{
		"webEnv":   token.WebEnv,
		"queryKey": token.QueryKey,
		"count":    token.Count,
	}
	if err := stepinfo.Write(articlesetsDir, stepName, false, map[string]interface{}{
		"retmax":       req.BatchSize,
		"sessionToken": tokenInfo,
	}); err != nil {
		return "", stepinfo.Error, err
	}

	result, err := m.Client.Fetch(ctx, token, articlesetsDir, req.NDocs, req.BatchSize)
	if err != nil {
		return "", stepinfo.Error, err
	}

	isComplete := result.NFailures == 0 && (req.NDocs == nil || *req.NDocs >= token.Count)
	extra := map[string]interface{}{
		"retmax":       req.BatchSize,
		"nFailures":    result.NFailures,
		"sessionToken": tokenInfo,
	}
	if err := stepinfo.Write(articlesetsDir, stepName, isComplete, extra); err != nil {
		return "", stepinfo.Error, err
	}

	exitCode := stepinfo.Completed
	if !isComplete {
		exitCode = stepinfo.Incomplete
	}
	m.Log.WithFields(logrus.Fields{
		"stage":      stepName,
		"nFailures":  result.NFailures,
		"isComplete": isComplete,
	}).Info("download finished")
	return articlesetsDir, exitCode, nil
}

// acquireToken reuses a persisted session token if one exists in info.json
// (crash-resume case), or writes the original query/id list to disk before
// performing the first search/post call, so a crash immediately after
// acquiring a token but before fetching still leaves a resumable record of
// what was requested (spec.md §4.2 step 3, §5 "Shared-resource policy").
func (m *Manager) acquireToken(ctx context.Context, rootDir, articlesetsDir string, req Request) (entrez.SessionToken, error) {
	if info, ok, err := stepinfo.Read(articlesetsDir); err == nil && ok {
		if tok, ok := info.Extra["sessionToken"].(map[string]interface{}); ok {
			webEnv, _ := tok["webEnv"].(string)
			queryKey, _ := tok["queryKey"].(string)
			count, _ := tok["count"].(float64)
			if webEnv != "" && queryKey != "" {
				return entrez.SessionToken{WebEnv: webEnv, QueryKey: queryKey, Count: int(count)}, nil
			}
		}
	}

	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return entrez.SessionToken{}, err
	}

	if req.Query != "" {
		if err := os.WriteFile(filepath.Join(rootDir, "query.txt"), []byte(req.Query), 0o644); err != nil {
			return entrez.SessionToken{}, err
		}
		return m.Client.Search(ctx, req.Query, "", "")
	}

	ids := append([]int(nil), req.PMCIDs...)
	sort.Ints(ids)
	lines := make([]string, len(ids))
	for i, id := range ids {
		lines[i] = strconv.Itoa(id)
	}
	if err := os.WriteFile(filepath.Join(rootDir, "requested_pmcids.txt"), []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return entrez.SessionToken{}, err
	}
	return m.Client.Post(ctx, req.PMCIDs)
}
