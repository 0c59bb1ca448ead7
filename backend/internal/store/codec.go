package store

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"

	"richCollab/backend/internal/ot/doc"
)

var (
	ErrChecksumMismatch = errors.New("SNAPSHOT_CHECKSUM_MISMATCH")
	ErrDecompress       = errors.New("snapshot decompress failed")
)

// 共享的 zstd 编解码器，并发安全
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Checksum 是编码后文档的 xxh3 摘要，也用作 HTTP ETag。
func Checksum(encoded []byte) uint64 {
	return xxh3.Hash(encoded)
}

// EncodeSnapshot 返回 zstd 压缩后的文档 JSON 以及压缩前内容的校验和。
func EncodeSnapshot(span doc.Span) ([]byte, uint64, error) {
	raw, err := doc.Encode(span)
	if err != nil {
		return nil, 0, err
	}
	return zstdEncoder.EncodeAll(raw, nil), Checksum(raw), nil
}

func DecodeSnapshot(blob []byte, sum uint64) (doc.Span, error) {
	raw, err := zstdDecoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	if got := Checksum(raw); got != sum {
		return nil, fmt.Errorf("%w: got %016x want %016x", ErrChecksumMismatch, got, sum)
	}
	return doc.Decode(raw)
}
