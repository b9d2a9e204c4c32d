package fetcher

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wholesale-scraper/internal/types"
)

// auditMinBytes is the size below which a saved page is assumed to be an
// error page rather than a rendered product page.
const auditMinBytes = 50 * 1024

// CheckComplete classifies a saved artifact. A complete page has plausible
// size, the embedded data script, and an inventory table; anything less is
// worth refetching.
func CheckComplete(html string) (bool, string) {
	if len(html) < auditMinBytes {
		return false, "small file size"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, "unparsable markup"
	}
	if doc.Find("script#__NEXT_DATA__").Length() == 0 {
		return false, "missing data payload"
	}
	if doc.Find("table").Length() == 0 {
		return false, "missing inventory table"
	}
	return true, "complete"
}

// AuditArtifacts scans the store and removes incomplete artifacts so the
// next fetch pass re-downloads only those. It returns per-category counts of
// the artifacts it invalidated.
func AuditArtifacts(store *ArtifactStore, logger types.Logger) (map[string]int, error) {
	categories, err := store.Categories()
	if err != nil {
		return nil, err
	}

	invalidated := map[string]int{}
	for _, category := range categories {
		ids, err := store.Artifacts(category)
		if err != nil {
			return nil, err
		}
		for _, pid := range ids {
			html, err := store.Load(category, pid)
			if err != nil {
				logger.Warnf("[%s] Unreadable artifact %s: %v", category, pid, err)
				continue
			}
			if ok, reason := CheckComplete(html); !ok {
				logger.Infof("[%s] Invalidating %s: %s", category, pid, reason)
				if err := store.Remove(category, pid); err != nil {
					return nil, err
				}
				invalidated[category]++
			}
		}
	}
	return invalidated, nil
}
