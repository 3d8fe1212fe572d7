package jobs

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httpapi "github.com/job-portal/job-portal-server/internal/api/http"
	"github.com/job-portal/job-portal-server/internal/apperr"
	"github.com/job-portal/job-portal-server/internal/docstore"
)

type Handler struct {
	repo *Repo
}

// Register mounts the job routes. Both /jobs and the singular /job spelling
// are served for writes; none of them require a session.
func Register(r gin.IRouter, repo *Repo) {
	h := &Handler{repo: repo}

	r.GET("/jobs", h.list)
	r.GET("/jobs/:id", h.get)
	r.POST("/jobs", h.create)
	r.POST("/job", h.create)
	r.PUT("/jobs/:id", h.replace)
	r.PUT("/job/:id", h.replace)
	r.DELETE("/job/:id", h.delete)
	r.DELETE("/jobs/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.repo.List(c.Request.Context(), c.Query("email"))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// get answers 200 with a null body for unknown ids.
func (h *Handler) get(c *gin.Context) {
	job, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if apperr.Is(err, apperr.KindNotFound) {
		c.JSON(http.StatusOK, nil)
		return
	}
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) create(c *gin.Context) {
	var payload docstore.Document
	if !httpapi.BindJSON(c, &payload) {
		return
	}
	res, err := h.repo.Create(c.Request.Context(), payload)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) replace(c *gin.Context) {
	var payload docstore.Document
	if !httpapi.BindJSON(c, &payload) {
		return
	}
	res, err := h.repo.ReplaceFields(c.Request.Context(), c.Param("id"), payload, docstore.UpsertCreate)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) delete(c *gin.Context) {
	res, err := h.repo.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
