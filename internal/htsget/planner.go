package htsget

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/htsget-drs-server/internal/domain"
)

// GetTicket builds the ticket for one file: the header URL first, then
// body slices unless only the header class was requested. start/end are
// nil when the caller did not bound the range.
func (s *Service) GetTicket(ctx context.Context, fileType, id, referenceName string, start, end *int64, class string) (*Ticket, error) {
	if start != nil && end != nil && *end < *start {
		return nil, fmt.Errorf("end cannot be less than start: %w", domain.ErrBadRequest)
	}
	if referenceName == "None" {
		referenceName = ""
	}
	if fileType != "variant" && fileType != "read" {
		return nil, fmt.Errorf("file type must be variant or read: %w", domain.ErrBadRequest)
	}

	format, err := s.describeFormat(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("no %s found for id %s: %w", fileType, id, domain.ErrNotFound)
	}

	ticket := &Ticket{
		Htsget: TicketBody{
			Format: format,
			URLs: []TicketURL{
				{URL: s.dataURL(fileType, id) + "?class=header", Class: "header"},
			},
		},
	}
	if class == "header" {
		return ticket, nil
	}

	slices, err := s.planSlices(ctx, fileType, id, referenceName, start, end)
	if err != nil {
		return nil, err
	}
	ticket.Htsget.URLs = append(ticket.Htsget.URLs, slices...)
	return ticket, nil
}

// describeFormat resolves the genomic format of a bundle from its
// contents' filenames.
func (s *Service) describeFormat(ctx context.Context, id string) (string, error) {
	obj, err := s.repo.GetDrsObject(ctx, id)
	if err != nil {
		return "", err
	}
	for _, contents := range obj.Contents {
		if format := domain.FileFormat(contents.Name); format != "" {
			return format, nil
		}
	}
	if format := domain.FileFormat(obj.Name); format != "" {
		return format, nil
	}
	return "", fmt.Errorf("object %s has no genomic content: %w", id, domain.ErrNotFound)
}

type chunk struct {
	count int64
	start int64
	end   int64
}

// planSlices folds the file's bucket list into body URLs, greedily capping
// each chunk at chunkSize records. The cap check happens before adding a
// bucket, so a chunk may overshoot by one bucket; that keeps every bucket
// covered by some slice.
func (s *Service) planSlices(ctx context.Context, fileType, id, referenceName string, start, end *int64) ([]TicketURL, error) {
	var st, en int64 = 0, -1
	if start != nil {
		st = *start
	}
	if end != nil {
		en = *end
	}

	contig := referenceName
	if referenceName != "" {
		canonical, err := s.repo.NormalizeContig(ctx, referenceName)
		if err != nil {
			return nil, err
		}
		if canonical != "" {
			contig = canonical
		}
	}

	buckets, err := s.repo.GetVariantCountForVariantFile(ctx, id, contig, st, en)
	if err != nil {
		return nil, err
	}

	chunks := []chunk{{count: 0, start: st, end: 0}}
	for _, b := range buckets {
		last := &chunks[len(chunks)-1]
		if last.count <= s.chunkSize {
			last.count += b.Count
			last.end = b.PosBucketID
		} else {
			chunks = append(chunks, chunk{start: last.end + 1, end: last.end + 1})
		}
	}
	// trailing chunk gets the exact requested end, or one bucket of slack
	// when the caller left the range open
	if en != -1 {
		chunks[len(chunks)-1].end = en
	} else {
		chunks[len(chunks)-1].end += s.bucketSize
	}

	urls := make([]TicketURL, 0, len(chunks))
	for _, c := range chunks {
		urls = append(urls, TicketURL{
			URL:   s.sliceURL(fileType, id, referenceName, c.start, c.end),
			Class: "body",
		})
	}
	return urls, nil
}

func (s *Service) dataURL(fileType, id string) string {
	return fmt.Sprintf("%s/htsget/v1/%ss/data/%s", s.baseURL, fileType, id)
}

// TicketBaseURL is the ticket (non-data) URL for one file.
func (s *Service) TicketBaseURL(fileType, id string) string {
	return fmt.Sprintf("%s/htsget/v1/%ss/%s", s.baseURL, fileType, id)
}

// SliceURL builds a ticket-level URL for a bounded region; used by the
// search endpoint to hand back region tickets.
func (s *Service) SliceURL(fileType, id, referenceName string, start, end *int64) string {
	params := url.Values{}
	if referenceName != "" {
		params.Set("referenceName", referenceName)
		if start != nil {
			params.Set("start", strconv.FormatInt(*start, 10))
		}
		if end != nil {
			params.Set("end", strconv.FormatInt(*end, 10))
		}
	}
	u := s.TicketBaseURL(fileType, id)
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

func (s *Service) sliceURL(fileType, id, referenceName string, start, end int64) string {
	params := url.Values{"class": []string{"body"}}
	if referenceName != "" {
		params.Set("referenceName", referenceName)
		params.Set("start", strconv.FormatInt(start, 10))
		params.Set("end", strconv.FormatInt(end, 10))
	}
	return s.dataURL(fileType, id) + "?" + params.Encode()
}
