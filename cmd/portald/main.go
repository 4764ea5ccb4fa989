package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/examhall/cbt-portal/internal/api/http"
	authmw "github.com/examhall/cbt-portal/internal/auth/middleware"
	"github.com/examhall/cbt-portal/internal/config"
	"github.com/examhall/cbt-portal/internal/db"
	"github.com/examhall/cbt-portal/internal/exam"
	"github.com/examhall/cbt-portal/internal/rbac"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := exam.NewSQLStore(dbh)
	svc := exam.NewService(store)

	// --- Session sweeper ---
	sweeper := exam.NewSweeper(store, cfg.SweepInterval).WithGrace(cfg.SweepGrace)
	go sweeper.Run(context.Background())

	// --- Auth ---
	authSvc := authmw.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public login surfaces
	r.Post("/auth/student/login", authmw.StudentLoginHandler(authSvc, store))
	r.Post("/auth/examiner/login", authmw.ExaminerLoginHandler(authSvc, store, cfg.AdminUser, cfg.AdminPassHash))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(authSvc))

		// Student flow
		pr.With(rbac.Require("course:view")).
			Get("/courses", api.ListCoursesHandler(store))
		pr.With(rbac.Require("exam:start")).
			Post("/courses/{courseID}/start", api.StartExamHandler(svc))
		pr.With(rbac.Require("exam:save")).
			Post("/sessions/{sessionID}/answers", api.SaveAnswerHandler(svc, store))
		pr.With(rbac.Require("exam:submit")).
			Post("/sessions/{sessionID}/submit", api.SubmitExamHandler(svc, store))
		pr.With(rbac.RequireAny("result:view-own", "result:view-all")).
			Get("/sessions/{sessionID}", api.GetSessionHandler(store))
		pr.With(rbac.RequireAny("result:view-own", "result:view-all")).
			Get("/sessions/{sessionID}/result", api.GetResultHandler(store))

		// Course and question administration
		pr.With(rbac.Require("course:manage")).
			Put("/courses", api.PutCourseHandler(store))
		pr.With(rbac.Require("course:manage")).
			Delete("/courses/{courseID}", api.DeleteCourseHandler(store))
		pr.With(rbac.Require("question:manage")).
			Get("/courses/{courseID}/questions", api.ListQuestionsHandler(store))
		pr.With(rbac.Require("question:manage")).
			Put("/courses/{courseID}/questions", api.PutQuestionHandler(store))
		pr.With(rbac.Require("question:manage")).
			Delete("/questions/{questionID}", api.DeleteQuestionHandler(store))
		pr.With(rbac.Require("question:manage")).
			Post("/courses/{courseID}/subjective/import", api.ImportSubjectiveCSVHandler(store))
		pr.With(rbac.Require("question:manage")).
			Get("/courses/{courseID}/subjective/export", api.ExportSubjectiveCSVHandler(store))

		// Grading
		pr.With(rbac.Require("grading:view")).
			Get("/grading/questions/{questionID}/answers", api.ListAnswersForQuestionHandler(store))
		pr.With(rbac.Require("grading:apply")).
			Post("/grading/answers/{answerID}", api.ManualGradeHandler(svc))
		pr.With(rbac.Require("grading:apply")).
			Post("/grading/answers/{answerID}/auto", api.AutoGradeAnswerHandler(svc))
		pr.With(rbac.Require("grading:apply")).
			Post("/grading/questions/{questionID}/auto", api.BulkAutoGradeHandler(svc))
		pr.With(rbac.Require("grading:apply")).
			Post("/grading/sessions/{sessionID}/recalculate", api.RecalculateHandler(svc))

		// Monitoring and reporting
		pr.With(rbac.Require("monitor:view")).
			Get("/monitor/sessions", api.LiveSessionsHandler(store, sweeper))
		pr.With(rbac.Require("result:view-all")).
			Get("/results", api.ListResultsHandler(store))

		// Accounts
		pr.With(rbac.Require("examiners:manage")).
			Post("/examiners", api.PutExaminerHandler(store))

		// Roster
		pr.With(rbac.Require("students:bulk_upsert")).
			Post("/students/bulk", api.BulkUpsertStudentsHandler(store))
		pr.With(rbac.Require("students:delete")).
			Post("/students/delete", api.DeleteStudentsHandler(store))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
