package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dmoroni/uniteams/internal/auth"
	"github.com/dmoroni/uniteams/internal/metrics"
	"github.com/dmoroni/uniteams/internal/model"
	"github.com/dmoroni/uniteams/internal/service"
	"github.com/dmoroni/uniteams/pkg/logger"
)

type Handler struct {
	team    *service.TeamService
	course  *service.CourseService
	student *service.StudentService

	healthChecker HealthChecker

	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithTeamService(team *service.TeamService) *Handler {
	h.team = team
	return h
}

func (h *Handler) WithCourseService(course *service.CourseService) *Handler {
	h.course = course
	return h
}

func (h *Handler) WithStudentService(student *service.StudentService) *Handler {
	h.student = student
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(metrics.EchoMiddleware())

	e.GET("/health", h.healthChecker.HealthCheck())
	e.GET("/metrics", metrics.Handler())

	// Confirm and reject are followed from invitation links, no login.
	e.GET("/team/confirm/:token", h.ConfirmTeam)
	e.GET("/team/reject/:token", h.RejectTeam)

	userSecurity := e.Group("", AuthMiddleware(auth.RoleStudent, auth.RoleProfessor, auth.RoleAdmin))

	userSecurity.POST("/team/propose", h.ProposeTeam)
	userSecurity.GET("/team/get", h.GetTeam)
	userSecurity.GET("/team/members", h.GetTeamMembers)
	userSecurity.GET("/course/get", h.GetCourse)
	userSecurity.GET("/course/students", h.GetEnrolledStudents)
	userSecurity.GET("/course/availableStudents", h.GetEnrolledWithoutTeam)
	userSecurity.GET("/course/teams", h.GetTeamsForCourse)
	userSecurity.GET("/students/get", h.GetStudent)
	userSecurity.GET("/students/courses", h.GetCoursesForStudent)
	userSecurity.GET("/students/teams", h.GetTeamsForStudent)

	staffSecurity := e.Group("", AuthMiddleware(auth.RoleProfessor, auth.RoleAdmin))

	staffSecurity.POST("/course/add", h.AddCourse)
	staffSecurity.POST("/course/setEnabled", h.SetCourseEnabled)
	staffSecurity.POST("/course/enroll", h.AddStudentToCourse)
	staffSecurity.POST("/course/enrollAll", h.EnrollAll)
	staffSecurity.POST("/students/add", h.AddStudent)
	staffSecurity.POST("/team/cleanup", h.CleanupTeams)
}

func (h *Handler) ProposeTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		CourseID     string  `json:"course_id" validate:"required"`
		TeamName     string  `json:"team_name" validate:"required"`
		MemberIDs    []int64 `json:"member_ids" validate:"required,min=1"`
		HoursTimeout int64   `json:"hours_timeout" validate:"required,min=1"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("proposing team",
		zap.String("course_id", req.CourseID),
		zap.String("team_name", req.TeamName),
		zap.Int64s("member_ids", req.MemberIDs))

	team, err := h.team.ProposeTeam(e.Request().Context(), req.CourseID, req.TeamName, req.MemberIDs, req.HoursTimeout)
	if err != nil {
		metrics.ObserveTeamOp("propose", err)
		l.Error("failed to propose team", zap.String("team_name", req.TeamName), zap.Any("error", err))
		return h.transportError(e, err)
	}
	metrics.ObserveTeamOp("propose", nil)

	return e.JSON(http.StatusCreated, team)
}

func (h *Handler) ConfirmTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	tokenID := e.Param("token")

	l.Info("confirming team", zap.String("token_id", tokenID))

	confirmed, err := h.team.ConfirmTeam(e.Request().Context(), tokenID)
	if err != nil {
		metrics.ObserveTeamOp("confirm", err)
		l.Error("failed to confirm team", zap.String("token_id", tokenID), zap.Any("error", err))
		return h.transportError(e, err)
	}
	metrics.ObserveTeamOp("confirm", nil)

	return e.JSON(http.StatusOK, map[string]bool{"confirmed": confirmed})
}

func (h *Handler) RejectTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	tokenID := e.Param("token")

	l.Info("rejecting team", zap.String("token_id", tokenID))

	rejected, err := h.team.RejectTeam(e.Request().Context(), tokenID)
	if err != nil {
		metrics.ObserveTeamOp("reject", err)
		l.Error("failed to reject team", zap.String("token_id", tokenID), zap.Any("error", err))
		return h.transportError(e, err)
	}
	metrics.ObserveTeamOp("reject", nil)

	return e.JSON(http.StatusOK, map[string]bool{"rejected": rejected})
}

func (h *Handler) CleanupTeams(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		CourseID string `json:"course_id"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("cleaning up dead proposals", zap.String("course_id", req.CourseID))

	removed, err := h.team.CleanupExpiredTeams(e.Request().Context(), req.CourseID)
	if err != nil {
		metrics.ObserveTeamOp("cleanup", err)
		l.Error("failed to cleanup teams", zap.String("course_id", req.CourseID), zap.Any("error", err))
		return h.transportError(e, err)
	}
	metrics.ObserveTeamOp("cleanup", nil)
	metrics.AddTeamsCleaned(removed)

	return e.JSON(http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) GetTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID, err := h.int64QueryParam(e, "team_id")
	if err != nil {
		return h.transportError(e, err)
	}

	team, err := h.team.GetTeam(e.Request().Context(), teamID)
	if err != nil {
		l.Error("failed to get team", zap.Int64("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) GetTeamMembers(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID, err := h.int64QueryParam(e, "team_id")
	if err != nil {
		return h.transportError(e, err)
	}

	members, err := h.team.GetMembers(e.Request().Context(), teamID)
	if err != nil {
		l.Error("failed to get team members", zap.Int64("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, members)
}

func (h *Handler) AddCourse(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	course := &model.Course{}

	if err := h.decodeRequest(e, course); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("adding course", zap.String("course_id", course.ID))

	if err := h.course.AddCourse(e.Request().Context(), course); err != nil {
		l.Error("failed to add course", zap.String("course_id", course.ID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, course)
}

func (h *Handler) GetCourse(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	courseID := e.QueryParam("course_id")

	course, err := h.course.GetCourse(e.Request().Context(), courseID)
	if err != nil {
		l.Error("failed to get course", zap.String("course_id", courseID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, course)
}

func (h *Handler) SetCourseEnabled(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		CourseID string `json:"course_id" validate:"required"`
		Enabled  bool   `json:"enabled"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("setting course enabled", zap.String("course_id", req.CourseID), zap.Bool("enabled", req.Enabled))

	if err := h.course.SetCourseEnabled(e.Request().Context(), req.CourseID, req.Enabled); err != nil {
		l.Error("failed to update course", zap.String("course_id", req.CourseID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusOK)
}

func (h *Handler) AddStudentToCourse(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		StudentID int64  `json:"student_id" validate:"required"`
		CourseID  string `json:"course_id" validate:"required"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("enrolling student", zap.Int64("student_id", req.StudentID), zap.String("course_id", req.CourseID))

	if err := h.course.AddStudentToCourse(e.Request().Context(), req.StudentID, req.CourseID); err != nil {
		l.Error("failed to enroll student", zap.Int64("student_id", req.StudentID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusOK)
}

func (h *Handler) EnrollAll(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		StudentIDs []int64 `json:"student_ids" validate:"required,min=1"`
		CourseID   string  `json:"course_id" validate:"required"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("enrolling students", zap.String("course_id", req.CourseID), zap.Int64s("student_ids", req.StudentIDs))

	results, err := h.course.EnrollAll(e.Request().Context(), req.StudentIDs, req.CourseID)
	if err != nil {
		l.Error("failed to enroll students", zap.String("course_id", req.CourseID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, results)
}

func (h *Handler) GetEnrolledStudents(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	courseID := e.QueryParam("course_id")

	students, err := h.course.GetEnrolledStudents(e.Request().Context(), courseID)
	if err != nil {
		l.Error("failed to get enrolled students", zap.String("course_id", courseID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, students)
}

func (h *Handler) GetEnrolledWithoutTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	courseID := e.QueryParam("course_id")

	students, err := h.course.GetEnrolledWithoutTeam(e.Request().Context(), courseID)
	if err != nil {
		l.Error("failed to get available students", zap.String("course_id", courseID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, students)
}

func (h *Handler) GetTeamsForCourse(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	courseID := e.QueryParam("course_id")

	teams, err := h.course.GetTeamsForCourse(e.Request().Context(), courseID)
	if err != nil {
		l.Error("failed to get teams for course", zap.String("course_id", courseID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, teams)
}

func (h *Handler) AddStudent(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	student := &model.Student{}

	if err := h.decodeRequest(e, student); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("adding student", zap.Int64("student_id", student.ID))

	if err := h.student.AddStudent(e.Request().Context(), student); err != nil {
		l.Error("failed to add student", zap.Int64("student_id", student.ID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, student)
}

func (h *Handler) GetStudent(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	studentID, err := h.int64QueryParam(e, "student_id")
	if err != nil {
		return h.transportError(e, err)
	}

	student, err := h.student.GetStudent(e.Request().Context(), studentID)
	if err != nil {
		l.Error("failed to get student", zap.Int64("student_id", studentID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, student)
}

func (h *Handler) GetCoursesForStudent(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	studentID, err := h.int64QueryParam(e, "student_id")
	if err != nil {
		return h.transportError(e, err)
	}

	courses, err := h.student.GetCoursesForStudent(e.Request().Context(), studentID)
	if err != nil {
		l.Error("failed to get courses for student", zap.Int64("student_id", studentID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, courses)
}

func (h *Handler) GetTeamsForStudent(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	studentID, err := h.int64QueryParam(e, "student_id")
	if err != nil {
		return h.transportError(e, err)
	}
	courseID := e.QueryParam("course_id")

	teams, err := h.team.GetTeamsForStudent(e.Request().Context(), studentID, courseID)
	if err != nil {
		l.Error("failed to get teams for student",
			zap.Int64("student_id", studentID),
			zap.String("course_id", courseID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, teams)
}

func (h *Handler) int64QueryParam(e echo.Context, name string) (int64, *service.Error) {
	value, err := strconv.ParseInt(e.QueryParam(name), 10, 64)
	if err != nil {
		return 0, service.NewServiceError(service.ErrorCodeInvalidBody, "invalid "+name)
	}
	return value, nil
}

func (h *Handler) decodeRequest(e echo.Context, req any) *service.Error {
	if err := e.Bind(req); err != nil {
		return service.NewServiceError(service.ErrorCodeInvalidBody, "invalid request body")
	}

	if err := e.Validate(req); err != nil {
		return service.NewServiceError(service.ErrorCodeInvalidBody, errors.Wrap(err, "request validation failed").Error())
	}
	return nil
}

func (h *Handler) transportError(e echo.Context, err *service.Error) error {
	response := struct {
		Error *service.Error `json:"error"`
	}{Error: err}

	switch err.Code {
	case service.ErrorCodeCourseNotFound,
		service.ErrorCodeStudentNotFound,
		service.ErrorCodeTeamNotFound,
		service.ErrorCodeTokenNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeInvalidBody,
		service.ErrorCodeCardinalityViolation,
		service.ErrorCodeDuplicateMember:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeTeamNameTaken,
		service.ErrorCodeStudentNotEnrolled,
		service.ErrorCodeStudentInActiveTeam,
		service.ErrorCodeCourseDisabled,
		service.ErrorCodeAlreadyExists:
		return e.JSON(http.StatusConflict, response)
	default:
		return e.JSON(http.StatusInternalServerError, response)
	}
}
