package service

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dmoroni/uniteams/internal/db"
	"github.com/dmoroni/uniteams/internal/model"
	"github.com/dmoroni/uniteams/internal/repository"
	"github.com/dmoroni/uniteams/pkg/logger"
)

type CourseService struct {
	tx db.Transactor

	courses  repository.CourseRepository
	students repository.StudentRepository
	teams    repository.TeamRepository
}

func NewCourseService(tx db.Transactor) *CourseService {
	return &CourseService{
		tx: tx,
	}
}

func (c *CourseService) AddCourse(ctx context.Context, course *model.Course) *Error {
	l := logger.FromContext(ctx)
	l.Info("adding course", zap.String("course_id", course.ID), zap.String("course_name", course.Name))

	if course.MinTeamSize > course.MaxTeamSize {
		return NewServiceError(ErrorCodeCardinalityViolation, "min team size greater than max team size")
	}

	err := c.courses.Create(ctx, &repository.Course{
		ID:          course.ID,
		Name:        course.Name,
		Enabled:     course.Enabled,
		MinTeamSize: course.MinTeamSize,
		MaxTeamSize: course.MaxTeamSize,
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		l.Warn("course already exists", zap.String("course_id", course.ID))
		return NewServiceError(ErrorCodeAlreadyExists, "course already exists")
	}
	if err != nil {
		l.Error("failed to create course", zap.String("course_id", course.ID), zap.Error(err))
		return NewServiceError(ErrorCodeUnspecified, "failed to create course")
	}

	return nil
}

func (c *CourseService) GetCourse(ctx context.Context, courseID string) (*model.Course, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("getting course", zap.String("course_id", courseID))

	course, err := c.courses.Get(ctx, courseID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("course not found", zap.String("course_id", courseID))
		return nil, NewServiceError(ErrorCodeCourseNotFound, "course not found")
	}
	if err != nil {
		l.Error("failed to get course", zap.String("course_id", courseID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get course")
	}

	return &model.Course{
		ID:          course.ID,
		Name:        course.Name,
		Enabled:     course.Enabled,
		MinTeamSize: course.MinTeamSize,
		MaxTeamSize: course.MaxTeamSize,
	}, nil
}

func (c *CourseService) SetCourseEnabled(ctx context.Context, courseID string, enabled bool) *Error {
	l := logger.FromContext(ctx)
	l.Info("setting course enabled", zap.String("course_id", courseID), zap.Bool("enabled", enabled))

	err := c.courses.SetEnabled(ctx, courseID, enabled)
	if errors.Is(err, repository.ErrNotFound) {
		return NewServiceError(ErrorCodeCourseNotFound, "course not found")
	}
	if err != nil {
		l.Error("failed to update course", zap.String("course_id", courseID), zap.Error(err))
		return NewServiceError(ErrorCodeUnspecified, "failed to update course")
	}
	return nil
}

// AddStudentToCourse enrolls one student. The course must exist and be
// enabled; double enrollment is reported, not overwritten.
func (c *CourseService) AddStudentToCourse(ctx context.Context, studentID int64, courseID string) *Error {
	l := logger.FromContext(ctx)
	l.Info("enrolling student", zap.Int64("student_id", studentID), zap.String("course_id", courseID))

	err := c.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, err := c.students.Get(txCtx, studentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NewServiceError(ErrorCodeStudentNotFound, "student not found")
			}
			return NewServiceError(ErrorCodeUnspecified, "failed to get student")
		}

		course, err := c.courses.Get(txCtx, courseID)
		if errors.Is(err, repository.ErrNotFound) {
			return NewServiceError(ErrorCodeCourseNotFound, "course not found")
		}
		if err != nil {
			return NewServiceError(ErrorCodeUnspecified, "failed to get course")
		}
		if !course.Enabled {
			return NewServiceError(ErrorCodeCourseDisabled, "course is not enabled")
		}

		if err = c.courses.Enroll(txCtx, courseID, studentID); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return NewServiceError(ErrorCodeAlreadyExists, "student already enrolled")
			}
			return NewServiceError(ErrorCodeUnspecified, "failed to enroll student")
		}
		return nil
	})
	if err != nil {
		var res *Error
		if errors.As(err, &res) {
			return res
		}
		l.Error("enroll transaction failed", zap.Int64("student_id", studentID), zap.Error(err))
		return NewServiceError(ErrorCodeUnspecified, "failed to enroll student")
	}

	return nil
}

// EnrollAll enrolls a batch of students, reporting a per-student
// outcome. Unknown students fail the whole batch; students already
// enrolled are reported false and skipped.
func (c *CourseService) EnrollAll(ctx context.Context, studentIDs []int64, courseID string) ([]*model.EnrollResult, *Error) {
	l := logger.FromContext(ctx)
	l.Info("enrolling students", zap.String("course_id", courseID), zap.Int64s("student_ids", studentIDs))

	results := make([]*model.EnrollResult, 0, len(studentIDs))

	err := c.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		course, err := c.courses.Get(txCtx, courseID)
		if errors.Is(err, repository.ErrNotFound) {
			return NewServiceError(ErrorCodeCourseNotFound, "course not found")
		}
		if err != nil {
			return NewServiceError(ErrorCodeUnspecified, "failed to get course")
		}
		if !course.Enabled {
			return NewServiceError(ErrorCodeCourseDisabled, "course is not enabled")
		}

		for _, id := range studentIDs {
			if _, err = c.students.Get(txCtx, id); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return NewServiceError(ErrorCodeStudentNotFound, "student in list not found")
				}
				return NewServiceError(ErrorCodeUnspecified, "failed to get student")
			}

			err = c.courses.Enroll(txCtx, courseID, id)
			if errors.Is(err, repository.ErrAlreadyExists) {
				results = append(results, &model.EnrollResult{StudentID: id, Enrolled: false})
				continue
			}
			if err != nil {
				return NewServiceError(ErrorCodeUnspecified, "failed to enroll student")
			}
			results = append(results, &model.EnrollResult{StudentID: id, Enrolled: true})
		}
		return nil
	})
	if err != nil {
		var res *Error
		if errors.As(err, &res) {
			return nil, res
		}
		l.Error("enroll all transaction failed", zap.String("course_id", courseID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to enroll students")
	}

	return results, nil
}

func (c *CourseService) GetEnrolledStudents(ctx context.Context, courseID string) ([]*model.Student, *Error) {
	l := logger.FromContext(ctx)

	if _, err := c.courses.Get(ctx, courseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(ErrorCodeCourseNotFound, "course not found")
		}
		l.Error("failed to get course", zap.String("course_id", courseID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get course")
	}

	students, err := c.courses.GetEnrolledStudents(ctx, courseID)
	if err != nil {
		l.Error("failed to get enrolled students", zap.String("course_id", courseID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get enrolled students")
	}

	return toStudentModels(students), nil
}

// GetEnrolledWithoutTeam lists the enrolled students free to join a
// new proposal.
func (c *CourseService) GetEnrolledWithoutTeam(ctx context.Context, courseID string) ([]*model.Student, *Error) {
	l := logger.FromContext(ctx)

	if _, err := c.courses.Get(ctx, courseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(ErrorCodeCourseNotFound, "course not found")
		}
		l.Error("failed to get course", zap.String("course_id", courseID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get course")
	}

	students, err := c.courses.GetEnrolledWithoutTeam(ctx, courseID)
	if err != nil {
		l.Error("failed to get available students", zap.String("course_id", courseID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get available students")
	}

	return toStudentModels(students), nil
}

func (c *CourseService) GetTeamsForCourse(ctx context.Context, courseID string) ([]*model.Team, *Error) {
	l := logger.FromContext(ctx)

	if _, err := c.courses.Get(ctx, courseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(ErrorCodeCourseNotFound, "course not found")
		}
		l.Error("failed to get course", zap.String("course_id", courseID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get course")
	}

	teams, err := c.teams.GetTeamsForCourse(ctx, courseID)
	if err != nil {
		l.Error("failed to get teams for course", zap.String("course_id", courseID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get teams for course")
	}

	views := make([]*model.Team, 0, len(teams))
	for _, team := range teams {
		views = append(views, &model.Team{
			ID:       team.ID,
			Name:     team.Name,
			CourseID: team.CourseID,
			Active:   team.Active,
			Disabled: team.Disabled,
		})
	}
	return views, nil
}

func toStudentModels(students []*repository.Student) []*model.Student {
	res := make([]*model.Student, 0, len(students))
	for _, s := range students {
		res = append(res, &model.Student{
			ID:      s.ID,
			Name:    s.Name,
			Surname: s.Surname,
			Email:   s.Email,
		})
	}
	return res
}

func (c *CourseService) WithCourseRepo(r repository.CourseRepository) *CourseService {
	c.courses = r
	return c
}

func (c *CourseService) WithStudentRepo(r repository.StudentRepository) *CourseService {
	c.students = r
	return c
}

func (c *CourseService) WithTeamRepo(r repository.TeamRepository) *CourseService {
	c.teams = r
	return c
}
