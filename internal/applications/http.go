package applications

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httpapi "github.com/job-portal/job-portal-server/internal/api/http"
	"github.com/job-portal/job-portal-server/internal/apperr"
	"github.com/job-portal/job-portal-server/internal/auth"
	"github.com/job-portal/job-portal-server/internal/docstore"
)

type Handler struct {
	svc *Service
}

// Register mounts the application routes. Only the applicant listing runs
// behind guard.
func Register(r gin.IRouter, svc *Service, guard gin.HandlerFunc) {
	h := &Handler{svc: svc}

	r.POST("/applications", h.create)
	r.GET("/applications", guard, h.listMine)
	r.GET("/applications/:id", h.get)
	r.GET("/applications/jobs/:job_id", h.listByJob)
	r.PATCH("/applications/:id", h.updateStatus)
	r.DELETE("/applications/:id", h.delete)
}

func (h *Handler) create(c *gin.Context) {
	var payload docstore.Document
	if !httpapi.BindJSON(c, &payload) {
		return
	}
	res, err := h.svc.Create(c.Request.Context(), payload)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) listMine(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		httpapi.WriteError(c, apperr.Unauthorized("Unauthorized"))
		return
	}
	items, err := h.svc.ListByApplicant(c.Request.Context(), c.Query("email"), identity)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// get answers 200 with a null body for unknown ids.
func (h *Handler) get(c *gin.Context) {
	app, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if apperr.Is(err, apperr.KindNotFound) {
		c.JSON(http.StatusOK, nil)
		return
	}
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *Handler) listByJob(c *gin.Context) {
	items, err := h.svc.ListByJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type statusReq struct {
	Status interface{} `json:"status"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req statusReq
	if !httpapi.BindJSON(c, &req) {
		return
	}
	res, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) delete(c *gin.Context) {
	res, err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
