package metaflow

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"

	"github.com/nlpodyssey/gopickle/pickle"
)

// BlobOpener opens a datastore object by its location (s3:// URL or path).
type BlobOpener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// DecodeValue unpickles an artifact blob. Blobs written by the content
// addressed store are gzip-compressed; raw blobs are accepted as well.
func DecodeValue(r io.Reader) (any, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	var src io.Reader = br
	if magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
		}
		defer func() { _ = zr.Close() }()
		src = zr
	}

	u := pickle.NewUnpickler(src)
	v, err := u.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return v, nil
}

// loadValue fetches and decodes the value of an artifact.
func loadValue(ctx context.Context, blobs BlobOpener, a Artifact) (any, error) {
	rc, err := blobs.Open(ctx, a.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %s: %w", a.Name, err)
	}
	defer func() { _ = rc.Close() }()

	v, err := DecodeValue(rc)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", a.Name, err)
	}
	return v, nil
}
