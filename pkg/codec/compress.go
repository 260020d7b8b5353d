// Kunhua Huang 2025

package codec

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

type CompressType string

const (
	CompressNone CompressType = "none"
	CompressGzip CompressType = "gzip"
)

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

type NoneCompressor struct{}

var _ Compressor = (*NoneCompressor)(nil)

func (c *NoneCompressor) Compress(data []byte) ([]byte, error) { return data, nil }

func (c *NoneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

func (c *NoneCompressor) Name() string { return string(CompressNone) }

// ------------------ Gzip Compressor ------------------

type GzipCompressor struct {
	Level int
}

var _ Compressor = (*GzipCompressor)(nil)

func (c *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buf, c.Level)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer failed: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("gzip write failed: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip close failed: %w", err)
	}

	return buf.Bytes(), nil
}

func (c *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader failed: %w", err)
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

func (c *GzipCompressor) Name() string { return string(CompressGzip) }

// GetCompressor maps a configured name to a compressor. Unknown names are
// an error, "" means none.
func GetCompressor(typ CompressType) (Compressor, error) {
	switch typ {
	case "", CompressNone:
		return &NoneCompressor{}, nil
	case CompressGzip:
		return &GzipCompressor{Level: gzip.DefaultCompression}, nil
	default:
		return nil, fmt.Errorf("codec: unknown compressor %q", typ)
	}
}
