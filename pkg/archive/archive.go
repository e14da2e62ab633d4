// Package archive opens compiled spelling archives and answers correctness
// and suggestion queries against them.
//
// An archive is a zip container holding an optional index.xml metadata block
// and an acceptor word list. Once opened, an Archive is never mutated, so any
// number of goroutines may query it without locking. Shared ownership is
// expressed with Handle, an atomically reference-counted wrapper.
package archive

import (
	"archive/zip"
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// File names inside an archive.
const (
	MetadataFile = "index.xml"
	AcceptorFile = "acceptor.default.tsv"
)

// Archive is an opened, read-only spelling archive.
type Archive struct {
	path   string
	digest string
	meta   *Metadata
	lex    *lexicon
	tag    language.Tag

	zr        *zip.ReadCloser
	closeOnce sync.Once
	closeErr  error
}

// lexicon is the in-memory acceptor. It is built once in Open and only read afterwards.
type lexicon struct {
	weights map[string]float64
	byLen   map[int][]string // rune length -> words, sorted
	size    int
}

// Open opens and validates the archive at path. Every failure is reported
// as an *OpenError; malformed content additionally matches ErrInvalidArchive.
func Open(path string) (*Archive, error) {
	digest, err := fileDigest(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("%w: %w", ErrInvalidArchive, err)}
	}

	a := &Archive{path: path, digest: digest, zr: zr, tag: language.Und}
	if err := a.load(); err != nil {
		zr.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	return a, nil
}

func (a *Archive) load() error {
	if f := a.lookup(MetadataFile); f != nil {
		rc, err := f.Open()
		if err != nil {
			return invalidf("metadata: %v", err)
		}
		meta, err := decodeMetadata(rc)
		rc.Close()
		if err != nil {
			return err
		}
		a.meta = meta
		if meta.Info.Locale != "" {
			if tag, err := language.Parse(meta.Info.Locale); err == nil {
				a.tag = tag
			}
		}
	}

	f := a.lookup(AcceptorFile)
	if f == nil {
		return invalidf("missing %s", AcceptorFile)
	}
	rc, err := f.Open()
	if err != nil {
		return invalidf("acceptor: %v", err)
	}
	defer rc.Close()
	lex, err := readLexicon(rc)
	if err != nil {
		return err
	}
	a.lex = lex
	return nil
}

func (a *Archive) lookup(name string) *zip.File {
	for _, f := range a.zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readLexicon(r io.Reader) (*lexicon, error) {
	lex := &lexicon{
		weights: make(map[string]float64),
		byLen:   make(map[int][]string),
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		word, weightStr, hasWeight := strings.Cut(text, "\t")
		if word == "" || !utf8.ValidString(word) {
			return nil, invalidf("acceptor line %d: bad word", line)
		}
		var weight float64
		if hasWeight && strings.TrimSpace(weightStr) != "" {
			w, err := strconv.ParseFloat(strings.TrimSpace(weightStr), 64)
			if err != nil {
				return nil, invalidf("acceptor line %d: bad weight %q", line, weightStr)
			}
			weight = w
		}
		if prev, ok := lex.weights[word]; ok && prev <= weight {
			continue
		} else if !ok {
			n := utf8.RuneCountInString(word)
			lex.byLen[n] = append(lex.byLen[n], word)
			lex.size++
		}
		lex.weights[word] = weight
	}
	if err := sc.Err(); err != nil {
		return nil, invalidf("acceptor: %v", err)
	}
	for _, words := range lex.byLen {
		sort.Strings(words)
	}
	return lex, nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Path returns the file the archive was opened from.
func (a *Archive) Path() string { return a.path }

// Digest returns the hex SHA-256 of the archive file.
func (a *Archive) Digest() string { return a.digest }

// Size returns the number of distinct lexicon entries.
func (a *Archive) Size() int { return a.lex.size }

// Metadata returns the metadata block; ok is false if the archive has none.
func (a *Archive) Metadata() (meta *Metadata, ok bool) {
	return a.meta, a.meta != nil
}

// Close releases the underlying file. Archives shared through a Handle are
// closed by the Handle when the last reference is dropped.
func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.zr.Close()
	})
	if errors.Is(a.closeErr, os.ErrClosed) {
		return nil
	}
	return a.closeErr
}
