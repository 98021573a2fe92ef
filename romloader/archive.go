package romloader

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

type extractor func(path string, m matcher) ([]byte, string, error)

var extractors = map[format]extractor{
	formatZIP:  fromZIP,
	format7z:   from7z,
	formatGzip: fromGzip,
	formatRAR:  fromRAR,
}

// archiveFile is the common shape of zip and 7z directory entries.
type archiveFile interface {
	FileInfo() fs.FileInfo
	Open() (io.ReadCloser, error)
}

// pickFile reads the first regular file in files accepted by m.
func pickFile[F archiveFile](files []F, m matcher) ([]byte, string, error) {
	for _, f := range files {
		info := f.FileInfo()
		if info.IsDir() || !m.matches(info.Name()) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s in archive: %w", info.Name(), err)
		}
		data, err := readBounded(rc)
		rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", info.Name(), err)
		}
		return data, info.Name(), nil
	}
	return nil, "", ErrNoImageFile
}

// nextEntry advances a streaming archive. It returns io.EOF at the end.
type nextEntry func() (name string, regular bool, err error)

// pickStream reads the first regular entry accepted by m from a streaming
// archive whose current entry contents are read from r.
func pickStream(next nextEntry, r io.Reader, m matcher) ([]byte, string, error) {
	for {
		name, regular, err := next()
		if err == io.EOF {
			return nil, "", ErrNoImageFile
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to read archive entry: %w", err)
		}
		if !regular || !m.matches(name) {
			continue
		}
		data, err := readBounded(r)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		return data, filepath.Base(name), nil
	}
}

func fromZIP(path string, m matcher) ([]byte, string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()
	return pickFile(r.File, m)
}

func from7z(path string, m matcher) ([]byte, string, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open 7z: %w", err)
	}
	defer r.Close()
	return pickFile(r.File, m)
}

func fromRAR(path string, m matcher) ([]byte, string, error) {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open rar: %w", err)
	}
	defer r.Close()

	next := func() (string, bool, error) {
		h, err := r.Next()
		if err != nil {
			return "", false, err
		}
		return h.Name, !h.IsDir, nil
	}
	return pickStream(next, r, m)
}

// fromGzip handles both plain .gz files, whose decompressed contents are
// the image, and tar.gz archives.
func fromGzip(path string, m matcher) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open gzip: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gr.Close()

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		tr := tar.NewReader(gr)
		next := func() (string, bool, error) {
			h, err := tr.Next()
			if err != nil {
				return "", false, err
			}
			return h.Name, h.Typeflag == tar.TypeReg, nil
		}
		return pickStream(next, tr, m)
	}

	data, err := readBounded(gr)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decompress gzip: %w", err)
	}
	name := filepath.Base(path)
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		name = name[:len(name)-3]
	}
	return data, name, nil
}
