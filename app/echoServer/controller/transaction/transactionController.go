package transaction

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"librarypos/app/echoServer/jwtx"
	"librarypos/service/circulation"
	"librarypos/service/inventory"
	studentsvc "librarypos/service/student"
)

type Controller struct {
	Circ     circulation.Service
	Students studentsvc.Service
	Log      *slog.Logger
}

func (h *Controller) pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GET /v1/transactions/pending  (admin)
func (h *Controller) ListPending(c echo.Context) error {
	rows, err := h.Circ.ListPending(c.Request().Context())
	if err != nil {
		h.Log.Error("list pending", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/transactions/overdue  (admin)
func (h *Controller) ListOverdue(c echo.Context) error {
	rows, err := h.Circ.ListOverdue(c.Request().Context())
	if err != nil {
		h.Log.Error("list overdue", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/transactions/:id/items  (admin)
func (h *Controller) Items(c echo.Context) error {
	id, ok := h.pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	items, err := h.Circ.Items(c.Request().Context(), id)
	if err != nil {
		h.Log.Error("transaction items", "err", err, "transaction_id", id)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// POST /v1/transactions/:id/approve  (admin)
func (h *Controller) Approve(c echo.Context) error {
	id, ok := h.pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	approverID, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	if err := h.Circ.Approve(c.Request().Context(), id, approverID); err != nil {
		var insufficient *inventory.InsufficientCopiesError
		if errors.As(err, &insufficient) {
			return c.JSON(http.StatusConflict, echo.Map{
				"message": "not enough copies to approve",
				"book_id": insufficient.BookID,
			})
		}
		switch circulation.Code(err) {
		case circulation.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "transaction not found"})
		case circulation.ErrNotPending:
			return c.JSON(http.StatusConflict, echo.Map{"message": "transaction is not pending"})
		default:
			h.Log.Error("approve transaction", "err", err, "transaction_id", id)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "transaction approved"})
}

// POST /v1/transactions/:id/reject  (admin)
func (h *Controller) Reject(c echo.Context) error {
	id, ok := h.pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	approverID, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	if err := h.Circ.Reject(c.Request().Context(), id, approverID); err != nil {
		switch circulation.Code(err) {
		case circulation.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "transaction not found"})
		case circulation.ErrNotPending:
			return c.JSON(http.StatusConflict, echo.Map{"message": "transaction is not pending"})
		default:
			h.Log.Error("reject transaction", "err", err, "transaction_id", id)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "transaction rejected"})
}

// GET /v1/dashboard  (admin)
func (h *Controller) Dashboard(c echo.Context) error {
	stats, err := h.Circ.Stats(c.Request().Context())
	if err != nil {
		h.Log.Error("dashboard stats", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, stats)
}

// me resolves the caller's student record from the JWT subject.
func (h *Controller) me(c echo.Context) (int64, error) {
	userID, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	st, err := h.Students.Profile(c.Request().Context(), userID)
	if err != nil {
		if studentsvc.Code(err) == studentsvc.ErrNotFound {
			return 0, echo.NewHTTPError(http.StatusNotFound, "no student profile for this account")
		}
		h.Log.Error("student profile", "err", err, "user_id", userID)
		return 0, echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return st.ID, nil
}

// GET /v1/me/borrowed  (student)
func (h *Controller) MyBorrowed(c echo.Context) error {
	studentID, err := h.me(c)
	if err != nil {
		return err
	}
	rows, err := h.Circ.ListBorrowedByStudent(c.Request().Context(), studentID)
	if err != nil {
		h.Log.Error("my borrowed", "err", err, "student_id", studentID)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/me/history  (student)
func (h *Controller) MyHistory(c echo.Context) error {
	studentID, err := h.me(c)
	if err != nil {
		return err
	}
	rows, err := h.Circ.HistoryByStudent(c.Request().Context(), studentID)
	if err != nil {
		h.Log.Error("my history", "err", err, "student_id", studentID)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}
