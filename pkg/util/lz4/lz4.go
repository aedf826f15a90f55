package lz4

import (
	"github.com/pierrec/lz4/v4"
)

// Decompress inflates a raw lz4 block. Legacy schema generations store
// compressed message content without a frame header, so the output size is
// unknown; the buffer grows until the block fits.
func Decompress(src []byte) ([]byte, error) {
	size := len(src) * 4
	for {
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(src, out)
		if err == nil {
			return out[:n], nil
		}
		if size >= len(src)*64 {
			return nil, err
		}
		size *= 2
	}
}
