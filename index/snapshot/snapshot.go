// Package snapshot persists the full document set of an index as a
// single compressed blob and rebuilds an index from it. A snapshot is
// a point-in-time copy of committed state only; drift accumulated
// after the snapshot was taken is healed by reconciliation against
// the entry store.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/geodex/index"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the codec used for the snapshot payload.
type Compression uint8

const (
	// CompressionNone stores the payload uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 is fast with a moderate ratio.
	CompressionLZ4 Compression = 1
	// CompressionZSTD trades speed for a better ratio.
	CompressionZSTD Compression = 2
)

var magic = [8]byte{'g', 'e', 'o', 'd', 'e', 'x', 's', '1'}

// ErrBadSnapshot is returned when a snapshot blob is malformed.
var ErrBadSnapshot = errors.New("snapshot: malformed snapshot")

// Options configures snapshot writing.
type Options struct {
	Compression Compression
}

// Option customizes Options.
type Option func(*Options)

// WithCompression selects the payload codec. The default is LZ4.
func WithCompression(c Compression) Option {
	return func(o *Options) {
		o.Compression = c
	}
}

// Write serializes all committed documents of the index to w.
// Layout: an 8 byte magic, one codec byte, then a compressed stream of
// newline-delimited JSON documents.
func Write(w io.Writer, idx *index.Index, opts ...Option) error {
	o := Options{Compression: CompressionLZ4}
	for _, opt := range opts {
		opt(&o)
	}

	if _, err := w.Write(magic[:]); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}
	if _, err := w.Write([]byte{byte(o.Compression)}); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	cw, err := compressWriter(w, o.Compression)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cw)
	for _, doc := range idx.Documents() {
		if err := enc.Encode(doc); err != nil {
			_ = cw.Close()
			return fmt.Errorf("snapshot: encode document %s: %w", doc.ID, err)
		}
	}
	return cw.Close()
}

// Read rebuilds an index from a snapshot stream written by Write.
func Read(r io.Reader) (*index.Index, error) {
	var header [9]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrBadSnapshot)
	}
	if [8]byte(header[:8]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadSnapshot)
	}

	cr, err := compressReader(r, Compression(header[8]))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cr.Close() }()

	var docs []*index.Document
	dec := json.NewDecoder(cr)
	for {
		var doc index.Document
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		docs = append(docs, &doc)
	}

	idx := index.New()
	if err := idx.Restore(docs); err != nil {
		return nil, err
	}
	return idx, nil
}

func compressWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZSTD:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	default:
		return nil, fmt.Errorf("snapshot: unknown compression %d", c)
	}
}

func compressReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionZSTD:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrBadSnapshot, c)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
