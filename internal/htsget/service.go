package htsget

import (
	"github.com/sirupsen/logrus"

	"github.com/htsget-drs-server/internal/drs"
	"github.com/htsget-drs-server/internal/repository"
)

// Service plans htsget tickets and streams slice data over the catalog
// and the DRS object layer.
type Service struct {
	repo       *repository.Repository
	drs        *drs.Service
	baseURL    string
	chunkSize  int64
	bucketSize int64
	log        *logrus.Logger
}

// NewService creates the htsget planner. baseURL is the externally visible
// URL base tickets point back at; chunkSize caps records per body slice.
func NewService(repo *repository.Repository, drsSvc *drs.Service, baseURL string, chunkSize, bucketSize int64, log *logrus.Logger) *Service {
	return &Service{
		repo:       repo,
		drs:        drsSvc,
		baseURL:    baseURL,
		chunkSize:  chunkSize,
		bucketSize: bucketSize,
		log:        log,
	}
}

// Ticket is the htsget ticket envelope.
type Ticket struct {
	Htsget TicketBody `json:"htsget"`
}

// TicketBody carries the format and the ordered slice URLs.
type TicketBody struct {
	Format string      `json:"format"`
	URLs   []TicketURL `json:"urls"`
}

// TicketURL is one slice URL; Class distinguishes the header URL from
// body slices.
type TicketURL struct {
	URL   string `json:"url"`
	Class string `json:"class,omitempty"`
}
