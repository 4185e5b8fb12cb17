package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/htsget-drs-server/internal/beacon"
)

func (s *Server) handleBeaconServiceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"id":   "org.candig.htsget.beacon",
		"name": "CanDIG Beacon v2 genomic variants service",
		"type": gin.H{
			"group":    "org.ga4gh",
			"artifact": "beacon",
			"version":  "v2.0.0",
		},
		"description": "A Beacon v2 server for CanDIG genomic data",
		"organization": gin.H{
			"name": "CanDIG",
			"url":  "https://www.distributedgenomics.ca",
		},
		"version": "1.0.0",
	})
}

// handleBeaconGet maps the flat GET query parameters onto the POST
// request shape and runs the same search.
func (s *Server) handleBeaconGet(c *gin.Context) {
	var req beacon.Request
	params := &req.Query.RequestParameters

	params.AssemblyID = c.Query("assembly_id")
	params.ReferenceName = c.Query("reference_name")
	params.GeneID = c.Query("gene_id")
	params.Allele = c.Query("allele")
	params.ReferenceBases = c.Query("reference_bases")
	params.AlternateBases = c.Query("alternate_bases")

	if v, err := queryInt64(c, "start"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "start must be an integer"})
		return
	} else if v != nil {
		params.Start = []int64{*v}
	}
	if v, err := queryInt64(c, "end"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "end must be an integer"})
		return
	} else if v != nil {
		params.End = []int64{*v}
	}
	var err error
	if params.VariantMinLength, err = queryInt64(c, "variant_min_length"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "variant_min_length must be an integer"})
		return
	}
	if params.VariantMaxLength, err = queryInt64(c, "variant_max_length"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "variant_max_length must be an integer"})
		return
	}

	req.RequestedGranularity = "record"
	s.runBeaconSearch(c, &req)
}

func (s *Server) handleBeaconPost(c *gin.Context) {
	var req beacon.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if req.RequestedGranularity == "" {
		req.RequestedGranularity = "record"
	}
	s.runBeaconSearch(c, &req)
}

func (s *Server) runBeaconSearch(c *gin.Context, req *beacon.Request) {
	response, err := s.beacon.Search(c.Request.Context(), req, s.objectAuthorizedFn(c))
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}
