package source

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Candidate identifies one discovered CSV file. SourceZip is empty for plain
// files; for archive members Path is the member path inside the archive.
type Candidate struct {
	Path      string
	SourceZip string
}

// File is a loaded candidate: decoded text plus the SHA-256 of the raw bytes.
type File struct {
	Candidate
	Text        string
	ContentHash string
}

// Finder discovers sensor CSV files under a folder, including members of ZIP
// archives, whose base name matches a regexp.
type Finder struct {
	pattern  *regexp.Regexp
	encoding string
}

// NewFinder compiles the name pattern. Encoding selects the source text
// encoding: shift-jis (default) or utf-8.
func NewFinder(pattern, encoding string) (*Finder, error) {
	if pattern == "" {
		return nil, errors.New("source: empty pattern")
	}
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("source: compile pattern: %w", err)
	}
	if encoding == "" {
		encoding = "shift-jis"
	}
	switch normalizeEncoding(encoding) {
	case "shift-jis", "utf-8":
	default:
		return nil, fmt.Errorf("source: unsupported encoding %q", encoding)
	}
	return &Finder{pattern: regex, encoding: normalizeEncoding(encoding)}, nil
}

// FindCSVFiles walks the folder recursively and returns matching plain CSV
// files and matching CSV members of ZIP archives. An unreadable archive is
// skipped, not fatal.
func (f *Finder) FindCSVFiles(root string) ([]Candidate, error) {
	if f == nil {
		return nil, errors.New("source: nil finder")
	}
	candidates := make([]Candidate, 0)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".csv":
			if f.pattern.MatchString(entry.Name()) {
				candidates = append(candidates, Candidate{Path: path})
			}
		case ".zip":
			members, err := f.findInZip(path)
			if err != nil {
				return nil
			}
			candidates = append(candidates, members...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source: walk %s: %w", root, err)
	}
	return candidates, nil
}

func (f *Finder) findInZip(zipPath string) ([]Candidate, error) {
	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	members := make([]Candidate, 0)
	for _, member := range archive.File {
		name := filepath.Base(strings.ReplaceAll(member.Name, "\\", "/"))
		if !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		if f.pattern.MatchString(name) {
			members = append(members, Candidate{Path: member.Name, SourceZip: zipPath})
		}
	}
	return members, nil
}

// Load reads the candidate's raw bytes, hashes them and decodes the text to
// UTF-8.
func (f *Finder) Load(candidate Candidate) (File, error) {
	if f == nil {
		return File{}, errors.New("source: nil finder")
	}
	raw, err := readRaw(candidate)
	if err != nil {
		return File{}, err
	}
	sum := sha256.Sum256(raw)

	text, err := f.decode(raw)
	if err != nil {
		return File{}, fmt.Errorf("source: decode %s: %w", candidate.Path, err)
	}
	return File{
		Candidate:   candidate,
		Text:        text,
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}

func readRaw(candidate Candidate) ([]byte, error) {
	if candidate.SourceZip == "" {
		raw, err := os.ReadFile(candidate.Path)
		if err != nil {
			return nil, fmt.Errorf("source: read %s: %w", candidate.Path, err)
		}
		return raw, nil
	}

	archive, err := zip.OpenReader(candidate.SourceZip)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", candidate.SourceZip, err)
	}
	defer archive.Close()

	for _, member := range archive.File {
		if member.Name != candidate.Path {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return nil, fmt.Errorf("source: open member %s: %w", candidate.Path, err)
		}
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("source: read member %s: %w", candidate.Path, err)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("source: member %s not found in %s", candidate.Path, candidate.SourceZip)
}

func (f *Finder) decode(raw []byte) (string, error) {
	if f.encoding == "utf-8" {
		return string(raw), nil
	}
	decoded, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func normalizeEncoding(encoding string) string {
	switch strings.ToLower(encoding) {
	case "shift-jis", "shift_jis", "sjis", "cp932", "ms932":
		return "shift-jis"
	case "utf-8", "utf8":
		return "utf-8"
	default:
		return strings.ToLower(encoding)
	}
}
