package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const readBufferSize = 256 << 10

// zstdDecoderPool pools streaming zstd decoders across files. Decoders are
// reset onto each new file and released back on Close.
var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(false),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}
		return decoder
	},
}

// Open returns a streaming, decompressing reader for a record file. The
// codec is chosen from the file name suffix.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	buffered := bufio.NewReaderSize(f, readBufferSize)

	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(buffered)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &stream{Reader: zr, closers: []func() error{zr.Close, f.Close}}, nil

	case strings.HasSuffix(path, ".zst"):
		dec := zstdDecoderPool.Get().(*zstd.Decoder)
		if err := dec.Reset(buffered); err != nil {
			zstdDecoderPool.Put(dec)
			f.Close()
			return nil, err
		}
		release := func() error {
			_ = dec.Reset(nil)
			zstdDecoderPool.Put(dec)
			return nil
		}
		return &stream{Reader: dec, closers: []func() error{release, f.Close}}, nil

	case strings.HasSuffix(path, ".lz4"):
		return &stream{Reader: lz4.NewReader(buffered), closers: []func() error{f.Close}}, nil

	default:
		return &stream{Reader: buffered, closers: []func() error{f.Close}}, nil
	}
}

type stream struct {
	io.Reader
	closers []func() error
	once    sync.Once
	err     error
}

func (s *stream) Close() error {
	s.once.Do(func() {
		for _, c := range s.closers {
			if err := c(); err != nil && s.err == nil {
				s.err = err
			}
		}
	})
	return s.err
}
