package mzml

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
)

// byteStream is the seekable source of bytes the reader owns. For plain
// files it is the file itself; gzip-wrapped files are decompressed into
// memory up front, since random access into a gzip stream is not possible.
type byteStream struct {
	ra     io.ReaderAt
	size   int64
	closer io.Closer
}

func (s *byteStream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// section returns a reader over [off, off+n); n < 0 means to end of stream.
func (s *byteStream) section(off, n int64) *io.SectionReader {
	if n < 0 {
		n = s.size - off
	}
	return io.NewSectionReader(s.ra, off, n)
}

// openStream maps a path to a byte stream, transparently decompressing
// .mzML.gz (and .igz) files.
func openStream(path string) (*byteStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") || strings.HasSuffix(path, ".igz") {
		defer f.Close()
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "mzml: open %s", path)
		}
		defer zr.Close()
		data, err := io.ReadAll(zr)
		if err != nil {
			return nil, errors.Wrapf(err, "mzml: decompress %s", path)
		}
		return &byteStream{ra: bytes.NewReader(data), size: int64(len(data))}, nil
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &byteStream{ra: f, size: fi.Size(), closer: f}, nil
}
