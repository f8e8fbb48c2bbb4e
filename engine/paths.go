package engine

import "fmt"

func pendingPath(ns, pendingID string) string {
	return fmt.Sprintf("data/%s/pending/%s.parquet", ns, pendingID)
}

func compactedPrefix(ns string) string {
	return fmt.Sprintf("data/%s/compacted/", ns)
}

func compactedPath(ns string, firstSeq, lastSeq int64) string {
	return fmt.Sprintf("%s%020d-%020d.parquet", compactedPrefix(ns), firstSeq, lastSeq)
}
