package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmoroni/uniteams/internal/repository"
)

type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type MockCourseRepository struct {
	mock.Mock
}

func (m *MockCourseRepository) Create(ctx context.Context, course *repository.Course) error {
	args := m.Called(ctx, course)
	return args.Error(0)
}

func (m *MockCourseRepository) Get(ctx context.Context, id string) (*repository.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Course), args.Error(1)
}

func (m *MockCourseRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	args := m.Called(ctx, id, enabled)
	return args.Error(0)
}

func (m *MockCourseRepository) Enroll(ctx context.Context, courseID string, studentID int64) error {
	args := m.Called(ctx, courseID, studentID)
	return args.Error(0)
}

func (m *MockCourseRepository) IsEnrolled(ctx context.Context, studentID int64, courseID string) (bool, error) {
	args := m.Called(ctx, studentID, courseID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCourseRepository) GetEnrolledStudents(ctx context.Context, courseID string) ([]*repository.Student, error) {
	args := m.Called(ctx, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Student), args.Error(1)
}

func (m *MockCourseRepository) GetEnrolledWithoutTeam(ctx context.Context, courseID string) ([]*repository.Student, error) {
	args := m.Called(ctx, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Student), args.Error(1)
}

func (m *MockCourseRepository) GetCoursesForStudent(ctx context.Context, studentID int64) ([]*repository.Course, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Course), args.Error(1)
}

type MockStudentRepository struct {
	mock.Mock
}

func (m *MockStudentRepository) Create(ctx context.Context, student *repository.Student) error {
	args := m.Called(ctx, student)
	return args.Error(0)
}

func (m *MockStudentRepository) Get(ctx context.Context, id int64) (*repository.Student, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Student), args.Error(1)
}

type MockTeamRepository struct {
	mock.Mock
}

func (m *MockTeamRepository) Create(ctx context.Context, team *repository.Team) (int64, error) {
	args := m.Called(ctx, team)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTeamRepository) Get(ctx context.Context, id int64) (*repository.Team, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) GetForUpdate(ctx context.Context, id int64) (*repository.Team, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) GetFirstByNameAndCourse(ctx context.Context, name, courseID string) (*repository.Team, error) {
	args := m.Called(ctx, name, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) Patch(ctx context.Context, patch *repository.TeamPatch) (*repository.Team, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) AddMember(ctx context.Context, teamID, studentID int64) error {
	args := m.Called(ctx, teamID, studentID)
	return args.Error(0)
}

func (m *MockTeamRepository) RemoveMembers(ctx context.Context, teamID int64) error {
	args := m.Called(ctx, teamID)
	return args.Error(0)
}

func (m *MockTeamRepository) GetMembers(ctx context.Context, teamID int64) ([]*repository.Student, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Student), args.Error(1)
}

func (m *MockTeamRepository) GetMemberIDs(ctx context.Context, teamID int64) ([]int64, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockTeamRepository) GetTeamsForStudent(ctx context.Context, studentID int64, courseID string) ([]*repository.Team, error) {
	args := m.Called(ctx, studentID, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) GetTeamsForCourse(ctx context.Context, courseID string) ([]*repository.Team, error) {
	args := m.Called(ctx, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) ListActiveMemberIDs(ctx context.Context, courseID string) ([]int64, error) {
	args := m.Called(ctx, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockTeamRepository) ListInactiveSiblings(ctx context.Context, courseID string, teamID int64) ([]*repository.Team, error) {
	args := m.Called(ctx, courseID, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) ListInactiveDisabled(ctx context.Context, courseID string) ([]*repository.Team, error) {
	args := m.Called(ctx, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) Create(ctx context.Context, token *repository.Token) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) Get(ctx context.Context, id string) (*repository.Token, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Token), args.Error(1)
}

func (m *MockTokenRepository) GetForUpdate(ctx context.Context, id string) (*repository.Token, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Token), args.Error(1)
}

func (m *MockTokenRepository) GetByTeam(ctx context.Context, teamID int64) ([]*repository.Token, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Token), args.Error(1)
}

func (m *MockTokenRepository) GetByStudentAndTeam(ctx context.Context, studentID, teamID int64) ([]*repository.Token, error) {
	args := m.Called(ctx, studentID, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Token), args.Error(1)
}

func (m *MockTokenRepository) Patch(ctx context.Context, patch *repository.TokenPatch) (*repository.Token, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Token), args.Error(1)
}

func (m *MockTokenRepository) DeleteByTeam(ctx context.Context, teamID int64) error {
	args := m.Called(ctx, teamID)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, student *repository.Student, teamName, urlConfirm, urlReject string) error {
	args := m.Called(ctx, student, teamName, urlConfirm, urlReject)
	return args.Error(0)
}
