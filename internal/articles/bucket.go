package articles

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
)

// Bucket returns the 3-hex-digit shard name for a pmcid, matching pubget's
// article_bucket_from_pmcid: md5(str(pmcid))[:3].
func Bucket(pmcid int) string {
	sum := md5.Sum([]byte(strconv.Itoa(pmcid)))
	return hex.EncodeToString(sum[:])[:3]
}

// Dir returns the article directory path for a pmcid under articlesDir.
func Dir(articlesDir string, pmcid int) string {
	return filepath.Join(articlesDir, Bucket(pmcid), fmt.Sprintf("pmcid_%d", pmcid))
}
