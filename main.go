// Package main library circulation API.
//
// @title           Library POS API
// @version         1.0
// @description     Library circulation service (catalog, students, checkout, loans).
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"librarypos/app/echoServer"
	authctrl "librarypos/app/echoServer/controller/auth"
	bookctrl "librarypos/app/echoServer/controller/book"
	posctrl "librarypos/app/echoServer/controller/pos"
	studentctrl "librarypos/app/echoServer/controller/student"
	txnctrl "librarypos/app/echoServer/controller/transaction"
	"librarypos/app/echoServer/validation"
	"librarypos/config"
	authrepo "librarypos/repository/auth"
	bookrepo "librarypos/repository/book"
	studentrepo "librarypos/repository/student"
	transactionrepo "librarypos/repository/transaction"
	authsvc "librarypos/service/auth"
	booksvc "librarypos/service/book"
	cartsvc "librarypos/service/cart"
	"librarypos/service/circulation"
	"librarypos/service/inventory"
	studentsvc "librarypos/service/student"
	"librarypos/util/database"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB: *sql.DB via pgx stdlib
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// repos
	ar := authrepo.New(db.DB)
	br := bookrepo.New(db.DB)
	sr := studentrepo.New(db.DB)
	tr := transactionrepo.New(db.DB)

	// services
	ledger := inventory.New(br)
	as := authsvc.New(db, ar, sr, cfg.JWTSecret)
	bs := booksvc.New(br)
	ss := studentsvc.New(db, sr, ar)
	cs := circulation.New(db, tr, ledger, cfg.LoanPeriodDays)
	cart := cartsvc.NewManager(br)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log}
	bookC := &bookctrl.Controller{Svc: bs, V: v, Log: log}
	studentC := &studentctrl.Controller{Svc: ss, V: v, Log: log}
	posC := &posctrl.Controller{Cart: cart, Circ: cs, Students: ss, V: v, Log: log}
	txnC := &txnctrl.Controller{Circ: cs, Students: ss, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:        authC,
		Book:        bookC,
		Student:     studentC,
		Pos:         posC,
		Transaction: txnC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	log.Info("starting server", "port", port, "env", cfg.Env)

	e.Logger.Fatal(e.Start(":" + port))
}
