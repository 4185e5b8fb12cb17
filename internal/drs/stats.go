package drs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/htsget-drs-server/internal/domain"
)

// CalculateStats computes size and sha-256 for an object and everything
// beneath it, writing the results back to the catalog. Leaf objects hash
// their actual bytes; a bundle's size is the sum of its children and its
// checksum is the sha-256 of the sorted concatenation of the children's
// checksums, so bundle identity is stable under content reordering.
// Sample objects get sizes but no checksum of their own.
func (s *Service) CalculateStats(ctx context.Context, objectID string) (*domain.DrsObject, error) {
	obj, err := s.repo.GetDrsObject(ctx, objectID)
	if err != nil {
		return nil, err
	}

	size, checksum, err := s.calculate(ctx, obj)
	if err != nil {
		return nil, err
	}

	checksums := []domain.Checksum{}
	if checksum != "" {
		checksums = append(checksums, domain.Checksum{Type: "sha-256", Checksum: checksum})
	}
	if err := s.repo.UpdateObjectStats(ctx, obj.ID, size, checksums); err != nil {
		return nil, err
	}
	return s.repo.GetDrsObject(ctx, obj.ID)
}

func (s *Service) calculate(ctx context.Context, obj *domain.DrsObject) (int64, string, error) {
	if len(obj.Contents) == 0 {
		return s.hashLeaf(ctx, obj)
	}

	var total int64
	var childSums []string
	for _, contents := range obj.Contents {
		child, err := s.repo.GetDrsObject(ctx, contents.Name)
		if err != nil {
			continue
		}
		size, sum, err := s.calculate(ctx, child)
		if err != nil {
			return 0, "", err
		}
		childChecksums := []domain.Checksum{}
		if sum != "" {
			childSums = append(childSums, sum)
			childChecksums = append(childChecksums, domain.Checksum{Type: "sha-256", Checksum: sum})
		}
		if err := s.repo.UpdateObjectStats(ctx, child.ID, size, childChecksums); err != nil {
			return 0, "", err
		}
		total += size
	}

	if obj.IsSampleObject() {
		return total, "", nil
	}
	sort.Strings(childSums)
	digest := sha256.Sum256([]byte(strings.Join(childSums, "")))
	return total, hex.EncodeToString(digest[:]), nil
}

// hashLeaf stages the object's bytes and hashes them. Objects with no
// retrievable bytes keep zero size and no checksum.
func (s *Service) hashLeaf(ctx context.Context, obj *domain.DrsObject) (int64, string, error) {
	tempdir, err := os.MkdirTemp("", "drsstats")
	if err != nil {
		return 0, "", fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(tempdir)

	path, err := s.resolveObjectPath(ctx, obj, tempdir)
	if err != nil || path == "" {
		return 0, "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return 0, "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}
