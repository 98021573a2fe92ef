package romloader

import (
	"bytes"
	"path/filepath"
	"strings"
)

type format int

const (
	formatUnknown format = iota
	formatRaw
	formatZIP
	format7z
	formatGzip
	formatRAR
)

var signatures = []struct {
	magic  []byte
	format format
}{
	{[]byte{0x50, 0x4B, 0x03, 0x04}, formatZIP},
	{[]byte{0x50, 0x4B, 0x05, 0x06}, formatZIP}, // empty archive
	{[]byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, format7z},
	{[]byte{0x52, 0x61, 0x72, 0x21}, formatRAR}, // "Rar!"
	{[]byte{0x1F, 0x8B}, formatGzip},
}

var archiveExtensions = map[string]format{
	".zip": formatZIP,
	".7z":  format7z,
	".gz":  formatGzip,
	".tgz": formatGzip,
	".rar": formatRAR,
}

// sniff decides how path should be read. Magic bytes win over extensions.
func sniff(header []byte, path string, m matcher) format {
	for _, sig := range signatures {
		if bytes.HasPrefix(header, sig.magic) {
			return sig.format
		}
	}
	if f, ok := archiveExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	if m.matches(path) {
		return formatRaw
	}
	return formatUnknown
}
