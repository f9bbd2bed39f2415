package snapshot

// Snapshot is a single stored, versioned capture of session context.
type Snapshot struct {
	// ID is a ULID that uniquely identifies this snapshot; immutable
	ID string

	// OwnerID identifies the owning principal; immutable, supplied by the
	// identity collaborator and never derived by the engine
	OwnerID string

	// ToolID names the originating/target AI tool (e.g., "claude-code")
	ToolID string

	// Title is an optional human-readable title
	Title *string

	// Tags is a set of descriptive tags (stored as JSON in the DB)
	Tags []string

	// CompressedPayload is the blob the codec produced from the canonical payload
	CompressedPayload []byte

	// RawSizeBytes is the canonical payload size at the last successful write
	RawSizeBytes int

	// CompressedSizeBytes is len(CompressedPayload) at the last successful write
	CompressedSizeBytes int

	// Algorithm names the codec encoding used ("lzma" or "none")
	Algorithm string

	// Version increases by exactly 1 on every successful update
	Version int64

	// CreatedAt is the Unix timestamp when the snapshot was created
	CreatedAt int64

	// UpdatedAt is the Unix timestamp when the snapshot was last updated
	UpdatedAt int64

	// DeletedAt is the Unix timestamp for soft delete (nullable)
	DeletedAt *int64
}

// Summary is a snapshot's metadata without the payload blob. Used by list,
// query, and preview output, and as the unit the search index derives from.
type Summary struct {
	ID                  string   `json:"id"`
	OwnerID             string   `json:"owner_id"`
	ToolID              string   `json:"tool_id"`
	Title               *string  `json:"title,omitempty"`
	Tags                []string `json:"tags,omitempty"`
	RawSizeBytes        int      `json:"raw_size_bytes"`
	CompressedSizeBytes int      `json:"compressed_size_bytes"`
	Algorithm           string   `json:"algorithm"`
	Version             int64    `json:"version"`
	CreatedAt           int64    `json:"created_at"`
	UpdatedAt           int64    `json:"updated_at"`
}

// ToSummary strips the payload blob from a snapshot.
func (s *Snapshot) ToSummary() Summary {
	return Summary{
		ID:                  s.ID,
		OwnerID:             s.OwnerID,
		ToolID:              s.ToolID,
		Title:               s.Title,
		Tags:                s.Tags,
		RawSizeBytes:        s.RawSizeBytes,
		CompressedSizeBytes: s.CompressedSizeBytes,
		Algorithm:           s.Algorithm,
		Version:             s.Version,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

// CompressionRatio is compressed/raw at the last write, or 0 when raw is empty.
func (s *Summary) CompressionRatio() float64 {
	if s.RawSizeBytes == 0 {
		return 0
	}
	return float64(s.CompressedSizeBytes) / float64(s.RawSizeBytes)
}
