package archive

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Entry is one acceptor word with its weight.
type Entry struct {
	Word   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// Write compiles entries (and meta, if non-nil) into an archive on w.
func Write(w io.Writer, meta *Metadata, entries []Entry) error {
	zw := zip.NewWriter(w)
	if meta != nil {
		f, err := zw.Create(MetadataFile)
		if err != nil {
			return err
		}
		if err := encodeMetadata(f, meta); err != nil {
			return err
		}
	}

	f, err := zw.Create(AcceptorFile)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	for _, e := range entries {
		if e.Word == "" || strings.ContainsAny(e.Word, "\t\r\n") {
			return fmt.Errorf("write archive: invalid word %q", e.Word)
		}
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", e.Word, strconv.FormatFloat(e.Weight, 'g', -1, 64)); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return zw.Close()
}

// WriteFile is Write to a newly created file at path.
func WriteFile(path string, meta *Metadata, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, meta, entries); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
