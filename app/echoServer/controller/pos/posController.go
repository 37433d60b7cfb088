package pos

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"librarypos/app/echoServer/jwtx"
	cartsvc "librarypos/service/cart"
	"librarypos/service/circulation"
	studentsvc "librarypos/service/student"
)

// Controller serves the checkout counter. Every handler resolves the
// operator from the JWT so two counters never share a cart.
type Controller struct {
	Cart     *cartsvc.Manager
	Circ     circulation.Service
	Students studentsvc.Service
	V        *validator.Validate
	Log      *slog.Logger
}

// POST /v1/pos/session
func (h *Controller) SelectStudent(c echo.Context) error {
	operatorID, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	var req SelectStudentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	st, err := h.Students.LookupApproved(c.Request().Context(), req.StudentID)
	if err != nil {
		switch studentsvc.Code(err) {
		case studentsvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "student not found"})
		case studentsvc.ErrNotApproved:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "student is not approved to borrow"})
		default:
			h.Log.Error("lookup student", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	h.Cart.Start(operatorID, st.ID)
	return c.JSON(http.StatusOK, echo.Map{"student": st})
}

// POST /v1/pos/cart/books
func (h *Controller) AddBook(c echo.Context) error {
	operatorID, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	var req AddBookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	entry, err := h.Cart.AddBook(c.Request().Context(), operatorID, req.ISBN)
	if err != nil {
		switch cartsvc.Code(err) {
		case cartsvc.ErrNoSession:
			return c.JSON(http.StatusConflict, echo.Map{"message": "no active session, select a student first"})
		case cartsvc.ErrBookNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "no book matches that ISBN"})
		case cartsvc.ErrDuplicate:
			return c.JSON(http.StatusConflict, echo.Map{"message": "book is already in the cart"})
		case cartsvc.ErrUnavailable:
			return c.JSON(http.StatusConflict, echo.Map{"message": "no copies currently available"})
		default:
			h.Log.Error("cart add", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, entry)
}

// DELETE /v1/pos/cart/books/:bookID
func (h *Controller) RemoveBook(c echo.Context) error {
	operatorID, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	bookID, err := strconv.ParseInt(c.Param("bookID"), 10, 64)
	if err != nil || bookID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid book id"})
	}
	if err := h.Cart.RemoveBook(operatorID, bookID); err != nil {
		if cartsvc.Code(err) == cartsvc.ErrNoSession {
			return c.JSON(http.StatusConflict, echo.Map{"message": "no active session"})
		}
		h.Log.Error("cart remove", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "removed"})
}

// GET /v1/pos/cart
func (h *Controller) ShowCart(c echo.Context) error {
	operatorID, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	studentID, entries, err := h.Cart.Entries(operatorID)
	if err != nil {
		if cartsvc.Code(err) == cartsvc.ErrNoSession {
			return c.JSON(http.StatusConflict, echo.Map{"message": "no active session"})
		}
		h.Log.Error("cart entries", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"student_id": studentID, "items": entries})
}

// POST /v1/pos/cart/confirm
func (h *Controller) Confirm(c echo.Context) error {
	operatorID, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	studentID, entries, err := h.Cart.Confirm(operatorID)
	if err != nil {
		switch cartsvc.Code(err) {
		case cartsvc.ErrNoSession:
			return c.JSON(http.StatusConflict, echo.Map{"message": "no active session"})
		case cartsvc.ErrEmptyCart:
			return c.JSON(http.StatusConflict, echo.Map{"message": "cart is empty"})
		default:
			h.Log.Error("cart confirm", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	bookIDs := make([]int64, 0, len(entries))
	for _, e := range entries {
		bookIDs = append(bookIDs, e.BookID)
	}
	txn, err := h.Circ.Create(c.Request().Context(), studentID, operatorID, bookIDs)
	if err != nil {
		h.Log.Error("create transaction", "err", err, "student_id", studentID)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusCreated, txn)
}

// DELETE /v1/pos/session
func (h *Controller) Cancel(c echo.Context) error {
	operatorID, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	h.Cart.Cancel(operatorID)
	return c.JSON(http.StatusOK, echo.Map{"message": "session cancelled"})
}

// GET /v1/pos/students/:id/borrowed
func (h *Controller) BorrowedByStudent(c echo.Context) error {
	studentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || studentID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid student id"})
	}
	rows, err := h.Circ.ListBorrowedByStudent(c.Request().Context(), studentID)
	if err != nil {
		h.Log.Error("borrowed by student", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// POST /v1/pos/transactions/:id/returns
func (h *Controller) ReturnItems(c echo.Context) error {
	transactionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || transactionID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid transaction id"})
	}
	var req ReturnReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	res, err := h.Circ.ReturnItems(c.Request().Context(), transactionID, req.ItemIDs)
	if err != nil {
		switch circulation.Code(err) {
		case circulation.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "transaction not found"})
		case circulation.ErrNotApproved:
			return c.JSON(http.StatusConflict, echo.Map{"message": "transaction is not approved for loan"})
		case circulation.ErrEmptyItems:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "no items given"})
		default:
			h.Log.Error("return items", "err", err, "transaction_id", transactionID)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, res)
}
