package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/htsget"
	"github.com/htsget-drs-server/internal/repository"
)

func htsgetServiceInfo(datatype string, formats []string) gin.H {
	return gin.H{
		"id":   "org.candig.htsget",
		"name": "CanDIG htsget service",
		"type": gin.H{
			"group":    "org.ga4gh",
			"artifact": "htsget",
			"version":  "v1.3.0",
		},
		"description": "An htsget-compliant server for CanDIG genomic data",
		"organization": gin.H{
			"name": "CanDIG",
			"url":  "https://www.distributedgenomics.ca",
		},
		"version": "1.0.0",
		"htsget": gin.H{
			"datatype":                 datatype,
			"formats":                  formats,
			"fieldsParameterEffective": false,
			"tagsParametersEffective":  false,
		},
	}
}

func (s *Server) handleReadsServiceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, htsgetServiceInfo("reads", []string{"BAM", "CRAM", "SAM"}))
}

func (s *Server) handleVariantsServiceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, htsgetServiceInfo("variants", []string{"VCF", "BCF"}))
}

// queryInt64 parses an optional integer query parameter.
func queryInt64(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// handleTicket serves the htsget ticket endpoint for one file type.
func (s *Server) handleTicket(fileType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if status := s.objectAuthStatus(c, id); status != http.StatusOK {
			c.JSON(status, gin.H{"message": "User is not authorized to read object " + id})
			return
		}

		start, err := queryInt64(c, "start")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "start must be an integer"})
			return
		}
		end, err := queryInt64(c, "end")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "end must be an integer"})
			return
		}

		ticket, err := s.htsget.GetTicket(c.Request.Context(), fileType, id,
			c.Query("referenceName"), start, end, c.Query("class"))
		if err != nil {
			s.abortError(c, err)
			return
		}
		c.JSON(http.StatusOK, ticket)
	}
}

// handleData streams one slice of a genomic file. The download filename
// travels in x-filename so browser clients can save slices under the
// right name.
func (s *Server) handleData(fileType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if status := s.objectAuthStatus(c, id); status != http.StatusOK {
			c.JSON(status, gin.H{"message": "User is not authorized to read object " + id})
			return
		}

		var start, end int64 = 0, -1
		if v, err := queryInt64(c, "start"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "start must be an integer"})
			return
		} else if v != nil {
			start = *v
		}
		if v, err := queryInt64(c, "end"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "end must be an integer"})
			return
		} else if v != nil {
			end = *v
		}

		slice, err := s.htsget.GetData(c.Request.Context(), id, c.Query("referenceName"),
			start, end, c.Query("class"), c.Query("format"))
		if err != nil {
			s.abortError(c, err)
			return
		}
		defer slice.Cleanup()

		c.Header("x-filename", slice.Filename)
		c.Header("Access-Control-Expose-Headers", "x-filename")
		c.File(slice.Path)
	}
}

// handleIndexVariants queues one variantfile for (re-)indexing. Site
// admins only; force re-queues an already indexed file.
func (s *Server) handleIndexVariants(c *gin.Context) {
	if !s.requireSiteAdmin(c, "index variants") {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	genome := c.DefaultQuery("genome", "hg38")
	force := c.Query("force") == "true"

	obj, err := s.drs.GetObject(ctx, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "No variant with id " + id + " exists"})
		return
	}

	vf, err := s.drs.Repo().CreateVariantFile(ctx, &domain.VariantFile{
		ID:              obj.ID,
		ReferenceGenome: genome,
		GenomicID:       c.Query("genomic_id"),
	})
	if err != nil {
		s.abortError(c, err)
		return
	}
	if vf.Indexed == 1 && !force {
		c.JSON(http.StatusOK, vf)
		return
	}
	if force && vf.Indexed == 1 {
		if err := s.drs.Repo().ResetVariantFileIndex(ctx, id); err != nil {
			s.abortError(c, err)
			return
		}
	}
	if err := s.drs.EnqueueIndexing(obj.Cohort, id); err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, vf)
}

// handleSearchVariants runs the region/header search over indexed
// variantfiles; results are narrowed to objects the bearer may read.
func (s *Server) handleSearchVariants(c *gin.Context) {
	var req htsget.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	response, err := s.htsget.SearchVariants(c.Request.Context(), &req, s.objectAuthorizedFn(c))
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleListGenes(c *gin.Context) {
	s.listGeneNames(c, repository.RefSeqByGene)
}

func (s *Server) handleListTranscripts(c *gin.Context) {
	s.listGeneNames(c, repository.RefSeqByTranscript)
}

func (s *Server) listGeneNames(c *gin.Context, field string) {
	names, err := s.htsget.ListGeneNames(c.Request.Context(), field)
	if err != nil {
		s.abortError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"results": names})
}

func (s *Server) handleMatchGenes(c *gin.Context) {
	s.matchGenes(c, repository.RefSeqByGene)
}

func (s *Server) handleMatchTranscripts(c *gin.Context) {
	s.matchGenes(c, repository.RefSeqByTranscript)
}

func (s *Server) matchGenes(c *gin.Context, field string) {
	matches, err := s.htsget.MatchGenes(c.Request.Context(), c.Param("id"), field)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": matches})
}
