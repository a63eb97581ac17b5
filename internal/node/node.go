package node

// Kind discriminates the two indexed content variants.
type Kind string

const (
	// KindText is a prose chunk extracted from the filing.
	KindText Kind = "text"
	// KindTableSummary is a vision-model description of a cropped table image.
	KindTableSummary Kind = "table_summary"
)

// Node is the unit of content committed to the vector store. A table
// summary node always carries the path of the crop it describes so the
// UI can show the source image next to the answer.
type Node struct {
	ID             string `json:"id"`
	Kind           Kind   `json:"kind"`
	Text           string `json:"text"`
	Page           int    `json:"page,omitempty"`
	ImagePath      string `json:"image_path,omitempty"`
	FileName       string `json:"file_name,omitempty"`
	DocFingerprint string `json:"doc_fingerprint,omitempty"`
}

// IsTable reports whether the node describes a table image.
func (n Node) IsTable() bool {
	return n.Kind == KindTableSummary && n.ImagePath != ""
}

// Scored pairs a node with its retrieval similarity score.
type Scored struct {
	Node  Node
	Score float64
}
