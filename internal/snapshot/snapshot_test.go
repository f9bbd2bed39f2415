package snapshot

import "testing"

func TestToSummary(t *testing.T) {
	title := "Refactor session"
	snap := &Snapshot{
		ID:                  "01ABC",
		OwnerID:             "alice",
		ToolID:              "claude-code",
		Title:               &title,
		Tags:                []string{"refactor", "go"},
		CompressedPayload:   []byte{0x00, 0x7b, 0x7d},
		RawSizeBytes:        2,
		CompressedSizeBytes: 3,
		Algorithm:           "none",
		Version:             4,
		CreatedAt:           1700000000,
		UpdatedAt:           1700000100,
	}

	sum := snap.ToSummary()
	if sum.ID != snap.ID || sum.OwnerID != snap.OwnerID || sum.ToolID != snap.ToolID {
		t.Errorf("identity fields not carried: %+v", sum)
	}
	if *sum.Title != title {
		t.Errorf("Title = %q, want %q", *sum.Title, title)
	}
	if sum.Version != 4 {
		t.Errorf("Version = %d, want 4", sum.Version)
	}
	if sum.RawSizeBytes != 2 || sum.CompressedSizeBytes != 3 {
		t.Errorf("size fields not carried: %+v", sum)
	}
}

func TestCompressionRatio(t *testing.T) {
	sum := Summary{RawSizeBytes: 1000, CompressedSizeBytes: 250}
	if got := sum.CompressionRatio(); got != 0.25 {
		t.Errorf("CompressionRatio = %v, want 0.25", got)
	}

	empty := Summary{}
	if got := empty.CompressionRatio(); got != 0 {
		t.Errorf("CompressionRatio of empty summary = %v, want 0", got)
	}
}
