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

type StudentService struct {
	tx db.Transactor

	students repository.StudentRepository
	courses  repository.CourseRepository
}

func NewStudentService(tx db.Transactor) *StudentService {
	return &StudentService{
		tx: tx,
	}
}

func (s *StudentService) AddStudent(ctx context.Context, student *model.Student) *Error {
	l := logger.FromContext(ctx)
	l.Info("adding student", zap.Int64("student_id", student.ID))

	err := s.students.Create(ctx, &repository.Student{
		ID:      student.ID,
		Name:    student.Name,
		Surname: student.Surname,
		Email:   student.Email,
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		l.Warn("student already exists", zap.Int64("student_id", student.ID))
		return NewServiceError(ErrorCodeAlreadyExists, "student already exists")
	}
	if err != nil {
		l.Error("failed to create student", zap.Int64("student_id", student.ID), zap.Error(err))
		return NewServiceError(ErrorCodeUnspecified, "failed to create student")
	}

	return nil
}

func (s *StudentService) GetStudent(ctx context.Context, studentID int64) (*model.Student, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("getting student", zap.Int64("student_id", studentID))

	student, err := s.students.Get(ctx, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("student not found", zap.Int64("student_id", studentID))
		return nil, NewServiceError(ErrorCodeStudentNotFound, "student not found")
	}
	if err != nil {
		l.Error("failed to get student", zap.Int64("student_id", studentID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get student")
	}

	return &model.Student{
		ID:      student.ID,
		Name:    student.Name,
		Surname: student.Surname,
		Email:   student.Email,
	}, nil
}

func (s *StudentService) GetCoursesForStudent(ctx context.Context, studentID int64) ([]*model.Course, *Error) {
	l := logger.FromContext(ctx)

	if _, err := s.students.Get(ctx, studentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(ErrorCodeStudentNotFound, "student not found")
		}
		l.Error("failed to get student", zap.Int64("student_id", studentID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get student")
	}

	courses, err := s.courses.GetCoursesForStudent(ctx, studentID)
	if err != nil {
		l.Error("failed to get courses for student", zap.Int64("student_id", studentID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get courses for student")
	}

	res := make([]*model.Course, 0, len(courses))
	for _, course := range courses {
		res = append(res, &model.Course{
			ID:          course.ID,
			Name:        course.Name,
			Enabled:     course.Enabled,
			MinTeamSize: course.MinTeamSize,
			MaxTeamSize: course.MaxTeamSize,
		})
	}
	return res, nil
}

func (s *StudentService) WithStudentRepo(r repository.StudentRepository) *StudentService {
	s.students = r
	return s
}

func (s *StudentService) WithCourseRepo(r repository.CourseRepository) *StudentService {
	s.courses = r
	return s
}
