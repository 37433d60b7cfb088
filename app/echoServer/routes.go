package echoServer

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"librarypos/app/echoServer/controller/auth"
	"librarypos/app/echoServer/controller/book"
	"librarypos/app/echoServer/controller/pos"
	"librarypos/app/echoServer/controller/student"
	"librarypos/app/echoServer/controller/transaction"
	"librarypos/model"
)

type C struct {
	Auth        *auth.Controller
	Book        *book.Controller
	Student     *student.Controller
	Pos         *pos.Controller
	Transaction *transaction.Controller
	JWTSecret   string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/auth/login", c.Auth.Login)
	pub.POST("/auth/register", c.Auth.Register)

	// Authenticated
	authed := e.Group("/v1")
	authed.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(c.JWTSecret),
		TokenLookup: "header:Authorization:Bearer ",
	}))
	// Pull user_id and role out of the verified token so downstream
	// middleware and handlers never touch raw claims.
	authed.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			tok, ok := ctx.Get("user").(*jwt.Token)
			if !ok || tok == nil {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			sub, ok := claims["sub"].(float64)
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			role, _ := claims["role"].(string)
			ctx.Set("user_id", int64(sub))
			ctx.Set("role", role)
			return next(ctx)
		}
	})

	// Any signed-in account can change its own password.
	authed.PUT("/me/password", c.Auth.ChangePassword)

	// Catalog is readable by any signed-in role.
	authed.GET("/books", c.Book.List)
	authed.GET("/books/:id", c.Book.Detail)
	authed.GET("/books/isbn/:isbn", c.Book.ByISBN)

	// Admin
	admin := authed.Group("", RequireRole(string(model.UserAdmin)))
	admin.POST("/users", c.Auth.CreateUser)

	admin.POST("/books", c.Book.Create)
	admin.PUT("/books/:id", c.Book.Update)
	admin.DELETE("/books/:id", c.Book.Delete)
	admin.POST("/books/import", c.Book.ImportCSV)

	admin.GET("/students", c.Student.List)
	admin.POST("/students", c.Student.Create)
	admin.PUT("/students/:id", c.Student.Update)
	admin.DELETE("/students/:id", c.Student.Delete)
	admin.GET("/students/pending", c.Student.Pending)
	admin.POST("/students/:id/approve", c.Student.Approve)
	admin.POST("/students/:id/reject", c.Student.Reject)
	admin.POST("/students/import", c.Student.ImportCSV)

	admin.GET("/transactions/pending", c.Transaction.ListPending)
	admin.GET("/transactions/overdue", c.Transaction.ListOverdue)
	admin.GET("/transactions/:id/items", c.Transaction.Items)
	admin.POST("/transactions/:id/approve", c.Transaction.Approve)
	admin.POST("/transactions/:id/reject", c.Transaction.Reject)
	admin.GET("/dashboard", c.Transaction.Dashboard)

	// Checkout counter
	counter := authed.Group("/pos", RequireRole(string(model.UserPOS), string(model.UserAdmin)))
	counter.POST("/session", c.Pos.SelectStudent)
	counter.DELETE("/session", c.Pos.Cancel)
	counter.GET("/cart", c.Pos.ShowCart)
	counter.POST("/cart/books", c.Pos.AddBook)
	counter.DELETE("/cart/books/:bookID", c.Pos.RemoveBook)
	counter.POST("/cart/confirm", c.Pos.Confirm)
	counter.GET("/students/:id/borrowed", c.Pos.BorrowedByStudent)
	counter.POST("/transactions/:id/returns", c.Pos.ReturnItems)

	// Student self-service
	me := authed.Group("/me", RequireRole(string(model.UserStudent)))
	me.GET("/borrowed", c.Transaction.MyBorrowed)
	me.GET("/history", c.Transaction.MyHistory)
}
