package api

import (
	"github.com/klauspost/compress/zstd"
)

// signalCompressor zstd-compresses outbound signal-stream frames (spec.md
// §6.2's websocket stream), grounded on the teacher's message_compressor.go.
// One encoder is reused across every frame of a connection.
type signalCompressor struct {
	enc *zstd.Encoder
}

func newSignalCompressor() (*signalCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &signalCompressor{enc: enc}, nil
}

func (c *signalCompressor) compress(payload []byte) []byte {
	return c.enc.EncodeAll(payload, make([]byte, 0, len(payload)))
}

func (c *signalCompressor) Close() error {
	return c.enc.Close()
}
