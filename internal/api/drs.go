package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/htsget-drs-server/internal/domain"
)

func (s *Server) handleDrsServiceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"id":   "org.candig.drs",
		"name": "CanDIG baby DRS service",
		"type": gin.H{
			"group":    "org.ga4gh",
			"artifact": "drs",
			"version":  "v1.2.0",
		},
		"description": "A DRS-compliant server for CanDIG genomic data",
		"organization": gin.H{
			"name": "CanDIG",
			"url":  "https://www.distributedgenomics.ca",
		},
		"version": "1.0.0",
	})
}

// handleListObjects lists the catalog narrowed to what the bearer may
// read; site admins and test-mode callers see everything.
func (s *Server) handleListObjects(c *gin.Context) {
	ctx := c.Request.Context()
	header := c.GetHeader("Authorization")
	if header == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "no authorization provided"})
		return
	}
	cohortID := c.Query("cohort_id")

	objects, err := s.drs.ListObjects(ctx, cohortID)
	if err != nil {
		s.abortError(c, err)
		return
	}

	if s.auth.IsTesting(header) || s.auth.IsSiteAdmin(ctx, header) {
		c.JSON(http.StatusOK, objects)
		return
	}
	readable := map[string]bool{}
	for _, cohort := range s.auth.GetAuthorizedCohorts(ctx, header) {
		readable[cohort] = true
	}
	visible := []*domain.DrsObject{}
	for _, obj := range objects {
		if readable[obj.Cohort] {
			visible = append(visible, obj)
		}
	}
	c.JSON(http.StatusOK, visible)
}

// handleGetObject serves both GET /objects/{id} and
// GET /objects/{id}/access_url/{access_id}; the access_id may itself
// contain slashes, so the route is a catch-all split here.
func (s *Server) handleGetObject(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("id"), "/")
	objectID := path
	accessID := ""
	if i := strings.Index(path, "/access_url/"); i >= 0 {
		objectID = path[:i]
		accessID = path[i+len("/access_url/"):]
	}

	if status := s.objectAuthStatus(c, objectID); status != http.StatusOK {
		c.JSON(status, gin.H{"message": "User is not authorized to read object " + objectID})
		return
	}

	if accessID != "" {
		obj, err := s.drs.GetAccessURL(c.Request.Context(), accessID)
		if err != nil {
			s.abortError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": obj.URL})
		return
	}

	obj, err := s.drs.GetObject(c.Request.Context(), objectID)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

// handlePostObject upserts an object. Site admins may always write; a
// cohort admin may write objects into a cohort they administer.
func (s *Server) handlePostObject(c *gin.Context) {
	var obj domain.DrsObject
	if err := c.ShouldBindJSON(&obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if !s.canAdminCohort(c, obj.Cohort) {
		c.JSON(http.StatusForbidden, gin.H{"message": "User is not authorized to POST"})
		return
	}
	created, err := s.drs.CreateObject(c.Request.Context(), &obj)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

// handleDeleteObject removes an object; the caller must administer its
// cohort or hold the site-admin role. Unknown ids read as 403 to
// non-admins so deletion probes cannot map the catalog.
func (s *Server) handleDeleteObject(c *gin.Context) {
	objectID := strings.TrimPrefix(c.Param("id"), "/")
	obj, err := s.drs.GetObject(c.Request.Context(), objectID)
	if err != nil {
		if !s.requireSiteAdmin(c, "DELETE") {
			return
		}
		s.abortError(c, err)
		return
	}
	if !s.canAdminCohort(c, obj.Cohort) {
		c.JSON(http.StatusForbidden, gin.H{"message": "User is not authorized to DELETE"})
		return
	}
	if err := s.drs.DeleteObject(c.Request.Context(), objectID); err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "object " + objectID + " deleted"})
}

// handleListCohorts returns the cohort ids the bearer may read.
func (s *Server) handleListCohorts(c *gin.Context) {
	ctx := c.Request.Context()
	header := c.GetHeader("Authorization")
	cohorts, err := s.drs.ListCohorts(ctx)
	if err != nil {
		s.abortError(c, err)
		return
	}
	if s.auth.IsTesting(header) || s.auth.IsSiteAdmin(ctx, header) {
		c.JSON(http.StatusOK, cohorts)
		return
	}
	readable := map[string]bool{}
	for _, cohort := range s.auth.GetAuthorizedCohorts(ctx, header) {
		readable[cohort] = true
	}
	visible := []string{}
	for _, cohort := range cohorts {
		if readable[cohort] {
			visible = append(visible, cohort)
		}
	}
	c.JSON(http.StatusOK, visible)
}

func (s *Server) handlePostCohort(c *gin.Context) {
	if !s.requireSiteAdmin(c, "POST") {
		return
	}
	var cohort domain.Cohort
	if err := c.ShouldBindJSON(&cohort); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	created, err := s.drs.CreateCohort(c.Request.Context(), cohort.ID)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

func (s *Server) handleGetCohort(c *gin.Context) {
	cohortID := c.Param("id")
	if !s.cohortAuthorized(c, cohortID) {
		c.JSON(http.StatusForbidden, gin.H{"message": "User is not authorized to read cohort " + cohortID})
		return
	}
	cohort, err := s.drs.GetCohort(c.Request.Context(), cohortID)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, cohort)
}

func (s *Server) handleDeleteCohort(c *gin.Context) {
	if !s.requireSiteAdmin(c, "DELETE") {
		return
	}
	cohortID := c.Param("id")
	if err := s.drs.DeleteCohort(c.Request.Context(), cohortID); err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cohort " + cohortID + " deleted"})
}

// handleCohortStatus reports indexing progress for one cohort.
func (s *Server) handleCohortStatus(c *gin.Context) {
	cohortID := c.Param("id")
	if !s.cohortAuthorized(c, cohortID) {
		c.JSON(http.StatusForbidden, gin.H{"message": "User is not authorized to read cohort " + cohortID})
		return
	}
	status, err := s.drs.CohortStatus(c.Request.Context(), cohortID)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
