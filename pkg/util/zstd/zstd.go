package zstd

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
)

// Magic is the zstd frame header used to probe message content blobs.
var Magic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

func IsCompressed(b []byte) bool {
	return bytes.HasPrefix(b, Magic)
}

func Decompress(src []byte) ([]byte, error) {
	return decoder.DecodeAll(src, nil)
}
