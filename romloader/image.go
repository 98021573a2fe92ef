// Package romloader loads program images from plain files and from
// compressed archives (ZIP, 7z, gzip, tar.gz, RAR).
package romloader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// maxImageSize bounds how much is read from a file or archive entry.
const maxImageSize = 64 * 1024 * 1024

var (
	// ErrNoImageFile is returned when an archive has no entry with a known extension.
	ErrNoImageFile = errors.New("no program image found in archive")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileTooLarge is returned when content exceeds maxImageSize.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")
)

// Image is a loaded program image.
type Image struct {
	// Data is the decompressed image contents.
	Data []byte

	// Name is the base name of the file the data came from. For archives
	// this is the entry name, not the archive name.
	Name string

	// Path is the file that was opened.
	Path string

	// Hash is the xxhash of Data.
	Hash uint64
}

// Title is Name without its extension.
func (img *Image) Title() string {
	return strings.TrimSuffix(img.Name, filepath.Ext(img.Name))
}

// Fingerprint is Hash as fixed-width hex, suitable for file names.
func (img *Image) Fingerprint() string {
	return fmt.Sprintf("%016x", img.Hash)
}

// Load reads the image at path. Archives are recognised by magic bytes,
// falling back to the file extension, and the first entry matching one of
// extensions is used. A plain file must carry one of extensions itself.
func Load(path string, extensions []string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}
	m := matcher(extensions)
	kind := sniff(header[:n], path, m)

	var (
		data []byte
		name string
	)
	switch kind {
	case formatRaw:
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to seek file: %w", err)
		}
		data, err = readBounded(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		name = filepath.Base(path)
	case formatUnknown:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	default:
		data, name, err = extractors[kind](path, m)
		if err != nil {
			return nil, err
		}
	}

	return &Image{
		Data: data,
		Name: name,
		Path: path,
		Hash: xxhash.Sum64(data),
	}, nil
}

// matcher reports whether a file name carries one of the configured extensions.
type matcher []string

func (m matcher) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range m {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func readBounded(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImageSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
