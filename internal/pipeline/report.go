package pipeline

// Stage marks how far an ingestion run progressed.
type Stage string

const (
	StageLoaded           Stage = "loaded"
	StageTextExtracted    Stage = "text_extracted"
	StageTablesDetected   Stage = "tables_detected"
	StageTablesSummarized Stage = "tables_summarized"
	StageIndexed          Stage = "indexed"
)

// TableResult records the outcome for one detected table.
type TableResult struct {
	Page         int    `json:"page"`
	Index        int    `json:"index"`
	ArtifactPath string `json:"artifact_path"`
	Placeholder  bool   `json:"placeholder,omitempty"`
	Error        string `json:"error,omitempty"`
}

// PageResult records the per-page outcome. Failures in the table
// sub-pipeline degrade a page rather than failing the run.
type PageResult struct {
	Page          int           `json:"page"`
	TextChunks    int           `json:"text_chunks"`
	Tables        []TableResult `json:"tables,omitempty"`
	TablesSkipped bool          `json:"tables_skipped,omitempty"`
}

// Degraded reports whether the page lost any table fidelity.
func (p PageResult) Degraded() bool {
	if p.TablesSkipped {
		return true
	}
	for _, t := range p.Tables {
		if t.Placeholder || t.Error != "" {
			return true
		}
	}
	return false
}

// Report aggregates an ingestion run.
type Report struct {
	Path        string       `json:"path"`
	Fingerprint string       `json:"fingerprint"`
	Stage       Stage        `json:"stage"`
	Skipped     bool         `json:"skipped,omitempty"`
	Pages       []PageResult `json:"pages,omitempty"`
	TextNodes   int          `json:"text_nodes"`
	TableNodes  int          `json:"table_nodes"`
	Errors      []string     `json:"errors,omitempty"`
}

// DegradedPages counts pages that lost table fidelity.
func (r *Report) DegradedPages() int {
	n := 0
	for _, p := range r.Pages {
		if p.Degraded() {
			n++
		}
	}
	return n
}
