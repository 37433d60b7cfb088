package student

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"librarypos/model"
	studentsvc "librarypos/service/student"
)

type Controller struct {
	Svc studentsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

func (h *Controller) pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GET /v1/students  (admin)
func (h *Controller) List(c echo.Context) error {
	rows, err := h.Svc.List(c.Request().Context(), c.QueryParam("search"))
	if err != nil {
		h.Log.Error("student list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// POST /v1/students  (admin)
func (h *Controller) Create(c echo.Context) error {
	var req model.StudentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	st, err := h.Svc.Create(c.Request().Context(), req)
	if err != nil {
		if studentsvc.Code(err) == studentsvc.ErrBadInput {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "bad input"})
		}
		h.Log.Error("student create", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusCreated, st)
}

// PUT /v1/students/:id  (admin)
func (h *Controller) Update(c echo.Context) error {
	id, ok := h.pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req model.StudentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	st, err := h.Svc.Update(c.Request().Context(), id, req)
	if err != nil {
		if studentsvc.Code(err) == studentsvc.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "student not found"})
		}
		h.Log.Error("student update", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, st)
}

// DELETE /v1/students/:id  (admin)
func (h *Controller) Delete(c echo.Context) error {
	id, ok := h.pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		if studentsvc.Code(err) == studentsvc.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "student not found"})
		}
		h.Log.Error("student delete", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}

// GET /v1/students/pending  (admin)
func (h *Controller) Pending(c echo.Context) error {
	rows, err := h.Svc.ListPendingApproval(c.Request().Context())
	if err != nil {
		h.Log.Error("pending students", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// POST /v1/students/:id/approve  (admin)
func (h *Controller) Approve(c echo.Context) error {
	id, ok := h.pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.Svc.ApproveRegistration(c.Request().Context(), id); err != nil {
		switch studentsvc.Code(err) {
		case studentsvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "student not found"})
		case studentsvc.ErrNotRegistered:
			return c.JSON(http.StatusConflict, echo.Map{"message": "student has no registration to approve"})
		default:
			h.Log.Error("approve registration", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "student approved"})
}

// POST /v1/students/:id/reject  (admin)
func (h *Controller) Reject(c echo.Context) error {
	id, ok := h.pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.Svc.RejectRegistration(c.Request().Context(), id); err != nil {
		switch studentsvc.Code(err) {
		case studentsvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "student not found"})
		case studentsvc.ErrNotRegistered:
			return c.JSON(http.StatusConflict, echo.Map{"message": "student has no registration to reject"})
		default:
			h.Log.Error("reject registration", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "registration rejected"})
}

// POST /v1/students/import  (admin, text/csv body)
func (h *Controller) ImportCSV(c echo.Context) error {
	res, err := h.Svc.ImportCSV(c.Request().Context(), c.Request().Body)
	if err != nil {
		if studentsvc.Code(err) == studentsvc.ErrBadInput {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid csv"})
		}
		h.Log.Error("student import", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, res)
}
