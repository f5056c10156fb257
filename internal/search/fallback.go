package search

// SearchDir builds a fresh index over dir (diary/session files) and
// searches it for query in one call. Building fresh each time is
// wasteful for a long-running server but matches this CLI's
// one-shot-per-invocation model (spec.md §5: "single-threaded cooperative
// per invocation").
func SearchDir(dir, query string, limit int) ([]IndexResult, error) {
	idx, err := BuildIndex(dir)
	if err != nil {
		return nil, err
	}
	return Search(idx, query, limit), nil
}
