package store

import (
	"errors"
	"testing"

	"richCollab/backend/internal/ot/doc"
)

func TestSnapshotCodec(t *testing.T) {
	span := doc.Span{
		doc.Group{Attrs: doc.Attrs{"tag": "h1"}, Children: doc.Span{doc.Run{Text: "标题", Styles: doc.NewStyleSet("bold")}}},
		doc.Run{Text: "body text"},
	}
	blob, sum, err := EncodeSnapshot(span)
	if err != nil {
		t.Fatalf("EncodeSnapshot() error = %v", err)
	}
	raw, _ := doc.Encode(span)
	if sum != Checksum(raw) {
		t.Fatalf("checksum = %016x, want %016x", sum, Checksum(raw))
	}

	got, err := DecodeSnapshot(blob, sum)
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}
	if !got.Equal(span) {
		t.Fatalf("DecodeSnapshot() = %v, want %v", got, span)
	}
}

func TestSnapshotCodec_ChecksumMismatch(t *testing.T) {
	blob, sum, err := EncodeSnapshot(doc.Span{doc.Run{Text: "x"}})
	if err != nil {
		t.Fatalf("EncodeSnapshot() error = %v", err)
	}
	if _, err := DecodeSnapshot(blob, sum+1); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("DecodeSnapshot() error = %v, want ErrChecksumMismatch", err)
	}
	if _, err := DecodeSnapshot([]byte("not zstd"), sum); !errors.Is(err, ErrDecompress) {
		t.Fatalf("DecodeSnapshot() error = %v, want ErrDecompress", err)
	}
}
