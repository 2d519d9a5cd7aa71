package utils

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"time"
)

// ErrEmptyArchive is returned when none of the entries could be written.
var ErrEmptyArchive = errors.New("zipper: no entries written")

// ZipEntry is one file of an archive. Open is called when the entry is
// written; a failing entry is skipped.
type ZipEntry struct {
	Name     string
	Modified time.Time
	Open     func() (io.ReadCloser, error)
}

// BytesEntry returns an entry with in-memory content.
func BytesEntry(name string, data []byte) ZipEntry {
	return ZipEntry{
		Name:     name,
		Modified: time.Now(),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// WriteZip writes entries as a ZIP archive to w and returns how many were
// written. Entries that cannot be opened are logged and skipped.
func WriteZip(w io.Writer, entries []ZipEntry) (int, error) {
	zipWriter := zip.NewWriter(w)

	written := 0
	for _, entry := range entries {
		src, err := entry.Open()
		if err != nil {
			log.Printf("zipper: Failed to open %s for zipping: %v. Skipping.", entry.Name, err)
			continue
		}

		header := &zip.FileHeader{Name: entry.Name, Method: zip.Deflate, Modified: entry.Modified}
		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			src.Close()
			return written, fmt.Errorf("failed to create entry in zip for %s: %w", entry.Name, err)
		}

		_, err = io.Copy(writer, src)
		src.Close()
		if err != nil {
			// the archive stream is now corrupt
			return written, fmt.Errorf("failed to write %s to zip: %w", entry.Name, err)
		}
		written++
	}

	if written == 0 {
		zipWriter.Close()
		return 0, ErrEmptyArchive
	}
	if err := zipWriter.Close(); err != nil {
		return written, fmt.Errorf("failed to finalize zip writer: %w", err)
	}

	log.Printf("zipper: Wrote archive with %d entries", written)
	return written, nil
}
