package drs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/variants"
)

// GenomicObject is a resolved, openable genomic bundle: the data file
// handle, its format, and the local paths its bytes were staged to.
type GenomicObject struct {
	File      variants.GenomicFile
	Format    string
	Type      string // "variant" or "read"
	Samples   []string
	MainPath  string
	IndexPath string

	tempdir string
}

// Close releases the file handle and any staged temp files.
func (g *GenomicObject) Close() {
	if g.File != nil {
		g.File.Close()
	}
	if g.tempdir != "" {
		os.RemoveAll(g.tempdir)
	}
}

// GetGenomicObject resolves a GenomicDrsObject into open file handles.
// Each child object is fetched by name, classified by filename, and its
// bytes located: access_id children are presigned and downloaded to a
// temp dir, file:// access URLs with a local host resolve in place.
func (s *Service) GetGenomicObject(ctx context.Context, objectID string) (*GenomicObject, error) {
	obj, err := s.repo.GetDrsObject(ctx, objectID)
	if err != nil {
		return nil, err
	}

	tempdir, err := os.MkdirTemp("", "htsget")
	if err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}
	result := &GenomicObject{tempdir: tempdir}
	ok := false
	defer func() {
		if !ok {
			result.Close()
		}
	}()

	var mainPath, indexPath, format, fileType string
	for _, contents := range obj.Contents {
		sub, err := s.repo.GetDrsObject(ctx, contents.Name)
		if err != nil {
			continue
		}
		role := domain.ClassifyContent(sub.Name)
		if role == domain.ContentSample {
			continue
		}

		path, err := s.resolveObjectPath(ctx, sub, tempdir)
		if err != nil {
			return nil, err
		}
		if path == "" {
			continue
		}
		switch role {
		case domain.ContentIndex:
			indexPath = path
		case domain.ContentVariant:
			mainPath = path
			format = domain.FileFormat(sub.Name)
			fileType = "variant"
		case domain.ContentRead:
			mainPath = path
			format = domain.FileFormat(sub.Name)
			fileType = "read"
		}
	}

	if mainPath == "" {
		return nil, fmt.Errorf("object %s has no retrievable genomic file: %w", objectID, domain.ErrNotFound)
	}

	file, err := variants.Open(mainPath)
	if err != nil {
		return nil, err
	}

	result.File = file
	result.Format = format
	result.Type = fileType
	result.Samples = file.Samples()
	result.MainPath = mainPath
	result.IndexPath = indexPath
	ok = true
	return result, nil
}

// resolveObjectPath locates the bytes of one child object as a local
// filesystem path, downloading via a presigned URL when needed.
func (s *Service) resolveObjectPath(ctx context.Context, obj *domain.DrsObject, tempdir string) (string, error) {
	for _, method := range obj.AccessMethods {
		if method.AccessID != "" {
			signed, err := s.GetAccessURL(ctx, method.AccessID)
			if err != nil {
				return "", err
			}
			return s.download(ctx, signed.URL, filepath.Join(tempdir, filepath.Base(obj.Name)))
		}
		if method.URL != "" {
			u, err := url.Parse(method.URL)
			if err != nil || u.Scheme != "file" {
				continue
			}
			if u.Host != "" && u.Host != "localhost" {
				continue
			}
			if _, err := os.Stat(u.Path); err == nil {
				return u.Path, nil
			}
			// some producers write file:// URLs with paths relative to cwd
			relative := u.Path[1:]
			if _, err := os.Stat(relative); err == nil {
				return relative, nil
			}
			return "", fmt.Errorf("file %s for object %s does not exist: %w", u.Path, obj.Name, domain.ErrNotFound)
		}
	}
	return "", nil
}

func (s *Service) download(ctx context.Context, rawURL, dest string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading object bytes: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("object download returned %d: %w", resp.StatusCode, domain.ErrUpstream)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("staging object bytes: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("writing staged object: %w", err)
	}
	return dest, nil
}
