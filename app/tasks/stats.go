package tasks

type FetchStats struct {
	Sources        int `json:"sources"`
	Feeds          int `json:"feeds"`
	FetchedItems   int `json:"fetched_items"`
	QueuedItems    int `json:"queued_items"`
	Errors         int `json:"errors"`
	SkippedSources int `json:"skipped_sources"`
}

func (s FetchStats) Counters() map[string]int {
	return map[string]int{
		"sources":         s.Sources,
		"feeds":           s.Feeds,
		"fetched_items":   s.FetchedItems,
		"queued_items":    s.QueuedItems,
		"errors":          s.Errors,
		"skipped_sources": s.SkippedSources,
	}
}

type ExtractStats struct {
	Processed int `json:"processed"`
	Extracted int `json:"extracted"`
	Failed    int `json:"failed"`
}

func (s ExtractStats) Counters() map[string]int {
	return map[string]int{"processed": s.Processed, "extracted": s.Extracted, "failed": s.Failed}
}

type DedupeStats struct {
	Scanned    int `json:"scanned"`
	Duplicates int `json:"duplicates"`
}

func (s DedupeStats) Counters() map[string]int {
	return map[string]int{"scanned": s.Scanned, "duplicates": s.Duplicates}
}

type ChunkStats struct {
	Articles int `json:"articles"`
	Chunks   int `json:"chunks"`
}

func (s ChunkStats) Counters() map[string]int {
	return map[string]int{"articles": s.Articles, "chunks": s.Chunks}
}

type EmbedStats struct {
	Embedded int `json:"embedded"`
	Batches  int `json:"batches"`
}

func (s EmbedStats) Counters() map[string]int {
	return map[string]int{"embedded": s.Embedded, "batches": s.Batches}
}

type IndexStats struct {
	Indexed int `json:"indexed"`
	Batches int `json:"batches"`
}

func (s IndexStats) Counters() map[string]int {
	return map[string]int{"indexed": s.Indexed, "batches": s.Batches}
}

// RunStats collects the results of one full pipeline run. Index is nil when indexing was skipped.
type RunStats struct {
	RunID   string       `json:"run_id"`
	Fetch   FetchStats   `json:"fetch"`
	Extract ExtractStats `json:"extract"`
	Dedupe  DedupeStats  `json:"dedupe"`
	Chunk   ChunkStats   `json:"chunk"`
	Embed   EmbedStats   `json:"embed"`
	Index   *IndexStats  `json:"index,omitempty"`
}
