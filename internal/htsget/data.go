package htsget

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/variants"
)

// DataSlice is a staged response body: a temp file with the requested
// bytes and the download filename to expose via x-filename. The caller
// must Cleanup after streaming.
type DataSlice struct {
	Path     string
	Filename string
}

// Cleanup removes the staged temp file.
func (d *DataSlice) Cleanup() {
	if d.Path != "" {
		os.Remove(d.Path)
	}
}

// GetData materializes one slice of a genomic file. class=header writes
// only the header text; class=body only the records; an unspecified class
// writes both. The caller's referenceName is translated back to the
// file's native contig spelling before fetching.
func (s *Service) GetData(ctx context.Context, id, referenceName string, start, end int64, class, format string) (*DataSlice, error) {
	if end != -1 && end < start {
		return nil, fmt.Errorf("end cannot be less than start: %w", domain.ErrBadRequest)
	}
	if referenceName == "None" {
		referenceName = ""
	}

	gen, err := s.drs.GetGenomicObject(ctx, id)
	if err != nil {
		return nil, err
	}
	defer gen.Close()

	if format == "" {
		format = gen.Format
	}
	format = strings.ToLower(format)

	tmp, err := os.CreateTemp("", "htsget*."+format)
	if err != nil {
		return nil, fmt.Errorf("creating slice temp file: %w", err)
	}
	ok := false
	defer func() {
		tmp.Close()
		if !ok {
			os.Remove(tmp.Name())
		}
	}()
	w := bufio.NewWriter(tmp)

	if class == "" || class == "header" {
		for _, line := range gen.File.HeaderLines() {
			if _, err := w.WriteString(line + "\n"); err != nil {
				return nil, fmt.Errorf("writing slice header: %w", err)
			}
		}
	}

	if class == "" || class == "body" {
		contig := referenceName
		if referenceName != "" {
			native, err := s.repo.ContigNameInVariantFile(ctx, referenceName, id)
			if err == nil && native != "" {
				contig = native
			}
		}
		err := gen.File.Fetch(contig, start, end, func(rec *variants.Record) error {
			_, werr := w.WriteString(rec.Raw + "\n")
			return werr
		})
		if err != nil {
			return nil, fmt.Errorf("fetching records for %s: %w", id, err)
		}
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flushing slice: %w", err)
	}
	ok = true
	return &DataSlice{Path: tmp.Name(), Filename: id + "." + format}, nil
}
