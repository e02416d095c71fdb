package apiserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/isassess/isassess/pkg/apiserver/handlers"
	"github.com/isassess/isassess/pkg/apiserver/middleware"
	"github.com/isassess/isassess/pkg/assessment"
	"github.com/isassess/isassess/pkg/auth"
	"github.com/isassess/isassess/pkg/config"
	"github.com/isassess/isassess/pkg/dashboard"
	"github.com/isassess/isassess/pkg/eventbus"
	"github.com/isassess/isassess/pkg/storage"
	"github.com/isassess/isassess/pkg/store/postgres"
	redisclient "github.com/isassess/isassess/pkg/store/redis"
)

// Deps are the shared clients the API runs on. Any of them may be nil in
// tests; routes that need a missing one fail at request time.
type Deps struct {
	Store     *postgres.Store
	Redis     *redisclient.Client
	Bus       *eventbus.Bus
	Files     storage.Store
	Dashboard *dashboard.Service
	Tokens    *auth.TokenManager
}

type Server struct {
	router *gin.Engine
	cfg    *config.Config
	deps   Deps
	logger *zap.Logger
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Tokens == nil {
		deps.Tokens = auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	}
	s := &Server{cfg: cfg, deps: deps, logger: logger}
	s.setupRouter()
	return s
}

func (s *Server) db() *gorm.DB {
	if s.deps.Store == nil {
		return nil
	}
	return s.deps.Store.DB()
}

func (s *Server) assessmentService() *assessment.Service {
	evaluator := assessment.NewEvaluator(s.cfg.Scoring.EmptyPartitionSatisfied)
	repo := postgres.NewAssessmentRepository(s.db())
	if s.deps.Bus == nil {
		return assessment.NewService(repo, evaluator, nil, s.logger)
	}
	return assessment.NewService(repo, evaluator, s.deps.Bus, s.logger)
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	loc := s.cfg.App.Location()
	db := s.db()
	service := s.assessmentService()

	apps := postgres.NewApplicationRepository(db, loc)
	departments := postgres.NewDepartmentRepository(db)
	comments := postgres.NewCommentRepository(db)
	users := postgres.NewUserRepository(db)

	stats := s.deps.Dashboard
	if stats == nil {
		stats = dashboard.NewService(postgres.NewStatsRepository(db), nil, loc, s.logger)
	}

	authHandler := handlers.NewAuthHandler(users, s.deps.Tokens, s.logger)
	appHandler := handlers.NewApplicationHandler(apps, service, s.logger)
	deptHandler := handlers.NewDepartmentHandler(departments, comments, service, s.logger)
	questionHandler := handlers.NewQuestionnaireHandler(postgres.NewQuestionnaireRepository(db), service, s.logger)
	commentHandler := handlers.NewCommentHandler(comments, departments, s.logger)
	evidenceHandler := handlers.NewEvidenceHandler(postgres.NewEvidenceRepository(db), apps, departments, s.deps.Files, loc, s.logger)
	reportHandler := handlers.NewReportHandler(stats, apps, departments, loc, s.logger)

	require := middleware.Require

	limiter := middleware.NewRateLimiter(s.cfg.RateLimit.LoginRPS, s.cfg.RateLimit.LoginBurst)
	r.POST("/api/v1/auth/login", limiter.Handler(), authHandler.Login)

	api := r.Group("/api/v1")
	{
		api.Use(middleware.Auth(s.deps.Tokens))

		api.GET("/auth/me", authHandler.Me)
		api.POST("/auth/refresh", authHandler.Refresh)
		api.GET("/users", require(auth.ActionManageUsers), authHandler.ListUsers)
		api.POST("/users", require(auth.ActionManageUsers), authHandler.CreateUser)
		api.PATCH("/users/:id", require(auth.ActionManageUsers), authHandler.UpdateUser)

		api.GET("/applications", appHandler.List)
		api.POST("/applications", require(auth.ActionCreateApplication), appHandler.Create)
		api.GET("/applications/:id", appHandler.Get)
		api.PATCH("/applications/:id", require(auth.ActionUpdateApplication), appHandler.Update)
		api.DELETE("/applications/:id", require(auth.ActionDeactivateApp), appHandler.Deactivate)
		api.PUT("/applications/:id/status", require(auth.ActionChangeAppStatus), appHandler.UpdateStatus)
		api.GET("/applications/:id/priority", appHandler.ComputePriority)
		api.GET("/applications/:id/departments", deptHandler.ForApplication)
		api.POST("/applications/:id/departments", require(auth.ActionMapDepartments), appHandler.AddDepartments)
		api.GET("/applications/:id/departments/:dept_id", deptHandler.Info)
		api.PUT("/applications/:id/departments/:dept_id/status", require(auth.ActionChangeDeptStatus), deptHandler.ChangeStatus)

		api.GET("/departments", deptHandler.List)
		api.POST("/departments", require(auth.ActionCreateDepartment), deptHandler.Create)
		api.GET("/departments/:dept_id/users", deptHandler.Members)
		api.POST("/departments/:dept_id/users", require(auth.ActionAssignDeptUsers), deptHandler.AssignUsers)

		api.GET("/app-questions/sets", questionHandler.ListSets)
		api.POST("/app-questions/sets", require(auth.ActionManageQuestionnaires), questionHandler.CreateSet)
		api.GET("/app-questions/sets/:set_id", questionHandler.GetSet)
		api.POST("/app-questions/sets/:set_id/questions", require(auth.ActionManageQuestionnaires), questionHandler.AddQuestions)
		api.GET("/app-questions/applications/:id", questionHandler.AppQuestions)
		api.POST("/app-questions/applications/:id/answers", questionHandler.SubmitAnswer)

		api.GET("/dept-questionnaire/departments/:dept_id", questionHandler.GetDeptSet)
		api.POST("/dept-questionnaire/departments/:dept_id", require(auth.ActionManageQuestionnaires), questionHandler.CreateDeptSet)
		api.POST("/dept-questionnaire/departments/:dept_id/questions", require(auth.ActionManageQuestionnaires), questionHandler.AddDeptQuestion)
		api.GET("/dept-questionnaire/applications/:id/departments/:dept_id", questionHandler.AppDeptQuestions)
		api.POST("/dept-questionnaire/applications/:id/answers", questionHandler.SubmitDeptAnswer)

		api.POST("/comments", commentHandler.Create)
		api.PATCH("/comments/:comment_id", commentHandler.Update)
		api.GET("/comments/applications/:id", commentHandler.ByApplication)
		api.GET("/comments/applications/:id/latest", commentHandler.Latest)
		api.GET("/comments/applications/:id/departments/:dept_id", commentHandler.ByApplicationDepartment)

		api.POST("/evidences/applications/:id", require(auth.ActionUploadEvidence), evidenceHandler.Upload)
		api.GET("/evidences/applications/:id", evidenceHandler.List)
		api.GET("/evidences/url", evidenceHandler.URL)
		api.GET("/evidences/file", evidenceHandler.File)

		api.GET("/dashboard", reportHandler.Dashboard)
		api.GET("/export/applications", reportHandler.Applications)
		api.GET("/export/verticals", reportHandler.Verticals)
	}

	s.router = r
}

// ready pings every configured backend. Missing backends are not reported.
func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true
	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("backend", name), zap.Error(err))
			checks[name] = err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}
	if s.deps.Store != nil {
		check("postgres", s.deps.Store.Ping)
	}
	if s.deps.Redis != nil {
		check("redis", s.deps.Redis.Ping)
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unavailable"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
