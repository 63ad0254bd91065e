package safefetch

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Pooled decompressors. gzip and brotli readers reset cheaply; zstd decoders
// are expensive to construct, so pooling matters most there.
var (
	gzipPool = sync.Pool{
		New: func() any { return new(gzip.Reader) },
	}
	brotliPool = sync.Pool{
		New: func() any { return new(brotli.Reader) },
	}
	zstdPool = sync.Pool{
		New: func() any {
			d, _ := zstd.NewReader(nil)
			return d
		},
	}
)

// decodeBody wraps body with the decompression reader matching the
// Content-Encoding header. Unknown or identity encodings return the body
// unchanged.
func decodeBody(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	if body == nil {
		return nil, fmt.Errorf("response body is nil")
	}
	for _, raw := range strings.Split(contentEncoding, ",") {
		switch strings.TrimSpace(strings.ToLower(raw)) {
		case "", "identity":
			continue
		case "gzip":
			gr := gzipPool.Get().(*gzip.Reader)
			if err := gr.Reset(body); err != nil {
				gzipPool.Put(gr)
				_ = body.Close()
				return nil, fmt.Errorf("reset gzip reader: %w", err)
			}
			return &gzipBody{gr: gr, body: body}, nil
		case "deflate":
			fr := flate.NewReader(body)
			return &flateBody{fr: fr, body: body}, nil
		case "br":
			br := brotliPool.Get().(*brotli.Reader)
			if err := br.Reset(body); err != nil {
				brotliPool.Put(br)
				_ = body.Close()
				return nil, fmt.Errorf("reset brotli reader: %w", err)
			}
			return &brotliBody{br: br, body: body}, nil
		case "zstd":
			zr := zstdPool.Get().(*zstd.Decoder)
			if err := zr.Reset(body); err != nil {
				zstdPool.Put(zr)
				_ = body.Close()
				return nil, fmt.Errorf("reset zstd decoder: %w", err)
			}
			return &zstdBody{zr: zr, body: body}, nil
		}
	}
	return body, nil
}

type gzipBody struct {
	gr   *gzip.Reader
	body io.ReadCloser
}

func (b *gzipBody) Read(p []byte) (int, error) { return b.gr.Read(p) }

func (b *gzipBody) Close() error {
	err := b.gr.Close()
	gzipPool.Put(b.gr)
	if cerr := b.body.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

type flateBody struct {
	fr   io.ReadCloser
	body io.ReadCloser
}

func (b *flateBody) Read(p []byte) (int, error) { return b.fr.Read(p) }

func (b *flateBody) Close() error {
	err := b.fr.Close()
	if cerr := b.body.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

type brotliBody struct {
	br   *brotli.Reader
	body io.ReadCloser
}

func (b *brotliBody) Read(p []byte) (int, error) { return b.br.Read(p) }

func (b *brotliBody) Close() error {
	// Drain so the reader is reusable before returning it to the pool.
	_, _ = io.Copy(io.Discard, b.br)
	brotliPool.Put(b.br)
	return b.body.Close()
}

type zstdBody struct {
	zr   *zstd.Decoder
	body io.ReadCloser
}

func (b *zstdBody) Read(p []byte) (int, error) { return b.zr.Read(p) }

func (b *zstdBody) Close() error {
	b.zr.Reset(nil)
	zstdPool.Put(b.zr)
	return b.body.Close()
}
