package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmoroni/uniteams/internal/repository"
)

const testBaseURL = "http://localhost:8080"

func newTestTeamService(
	courses *MockCourseRepository,
	students *MockStudentRepository,
	teams *MockTeamRepository,
	tokens *MockTokenRepository,
	notifier *MockNotifier,
) *TeamService {
	return NewTeamService(new(MockTransactor)).
		WithCourseRepo(courses).
		WithStudentRepo(students).
		WithTeamRepo(teams).
		WithTokenRepo(tokens).
		WithNotifier(notifier).
		WithBaseURL(testBaseURL)
}

func testStudent(id int64) *repository.Student {
	return &repository.Student{ID: id, Name: "name", Surname: "surname", Email: "student@test.edu"}
}

func TestTeamService_ProposeTeam(t *testing.T) {
	course := &repository.Course{ID: "C0", Name: "Algorithms", Enabled: true, MinTeamSize: 2, MaxTeamSize: 3}

	tests := []struct {
		name          string
		courseID      string
		teamName      string
		memberIDs     []int64
		setupMocks    func(*MockCourseRepository, *MockStudentRepository, *MockTeamRepository, *MockTokenRepository, *MockNotifier)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:      "success",
			courseID:  "C0",
			teamName:  "T1",
			memberIDs: []int64{1, 2},
			setupMocks: func(cr *MockCourseRepository, sr *MockStudentRepository, tr *MockTeamRepository, kr *MockTokenRepository, nf *MockNotifier) {
				tr.On("GetFirstByNameAndCourse", mock.Anything, "T1", "C0").Return(nil, repository.ErrNotFound)
				cr.On("Get", mock.Anything, "C0").Return(course, nil)
				tr.On("ListActiveMemberIDs", mock.Anything, "C0").Return([]int64{}, nil)
				sr.On("Get", mock.Anything, int64(1)).Return(testStudent(1), nil)
				sr.On("Get", mock.Anything, int64(2)).Return(testStudent(2), nil)
				cr.On("IsEnrolled", mock.Anything, int64(1), "C0").Return(true, nil)
				cr.On("IsEnrolled", mock.Anything, int64(2), "C0").Return(true, nil)
				tr.On("Create", mock.Anything, mock.MatchedBy(func(team *repository.Team) bool {
					return team.Name == "T1" && team.CourseID == "C0" && !team.Active && !team.Disabled
				})).Return(int64(10), nil)
				tr.On("AddMember", mock.Anything, int64(10), int64(1)).Return(nil)
				tr.On("AddMember", mock.Anything, int64(10), int64(2)).Return(nil)
				// The proposer's token is created already confirmed.
				kr.On("Create", mock.Anything, mock.MatchedBy(func(token *repository.Token) bool {
					return token.StudentID == 1 && token.Confirmed && !token.Rejected
				})).Return(nil).Once()
				kr.On("Create", mock.Anything, mock.MatchedBy(func(token *repository.Token) bool {
					return token.StudentID == 2 && !token.Confirmed && !token.Rejected
				})).Return(nil).Once()
				nf.On("Notify", mock.Anything, mock.MatchedBy(func(s *repository.Student) bool {
					return s.ID == 2
				}), "T1", mock.Anything, mock.Anything).Return(nil).Once()
			},
			expectedError: false,
		},
		{
			name:      "team name already used",
			courseID:  "C0",
			teamName:  "T1",
			memberIDs: []int64{1, 2},
			setupMocks: func(cr *MockCourseRepository, sr *MockStudentRepository, tr *MockTeamRepository, kr *MockTokenRepository, nf *MockNotifier) {
				tr.On("GetFirstByNameAndCourse", mock.Anything, "T1", "C0").
					Return(&repository.Team{ID: 9, Name: "T1", CourseID: "C0"}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeTeamNameTaken,
		},
		{
			name:      "course not found",
			courseID:  "missing",
			teamName:  "T1",
			memberIDs: []int64{1, 2},
			setupMocks: func(cr *MockCourseRepository, sr *MockStudentRepository, tr *MockTeamRepository, kr *MockTokenRepository, nf *MockNotifier) {
				tr.On("GetFirstByNameAndCourse", mock.Anything, "T1", "missing").Return(nil, repository.ErrNotFound)
				cr.On("Get", mock.Anything, "missing").Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeCourseNotFound,
		},
		{
			name:      "course disabled",
			courseID:  "C0",
			teamName:  "T1",
			memberIDs: []int64{1, 2},
			setupMocks: func(cr *MockCourseRepository, sr *MockStudentRepository, tr *MockTeamRepository, kr *MockTokenRepository, nf *MockNotifier) {
				tr.On("GetFirstByNameAndCourse", mock.Anything, "T1", "C0").Return(nil, repository.ErrNotFound)
				cr.On("Get", mock.Anything, "C0").
					Return(&repository.Course{ID: "C0", Enabled: false, MinTeamSize: 2, MaxTeamSize: 3}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeCourseDisabled,
		},
		{
			name:      "member not found",
			courseID:  "C0",
			teamName:  "T1",
			memberIDs: []int64{1, 99},
			setupMocks: func(cr *MockCourseRepository, sr *MockStudentRepository, tr *MockTeamRepository, kr *MockTokenRepository, nf *MockNotifier) {
				tr.On("GetFirstByNameAndCourse", mock.Anything, "T1", "C0").Return(nil, repository.ErrNotFound)
				cr.On("Get", mock.Anything, "C0").Return(course, nil)
				tr.On("ListActiveMemberIDs", mock.Anything, "C0").Return([]int64{}, nil)
				sr.On("Get", mock.Anything, int64(1)).Return(testStudent(1), nil)
				sr.On("Get", mock.Anything, int64(99)).Return(nil, repository.ErrNotFound)
				cr.On("IsEnrolled", mock.Anything, int64(1), "C0").Return(true, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeStudentNotFound,
		},
		{
			name:      "member not enrolled",
			courseID:  "C0",
			teamName:  "T1",
			memberIDs: []int64{1, 2},
			setupMocks: func(cr *MockCourseRepository, sr *MockStudentRepository, tr *MockTeamRepository, kr *MockTokenRepository, nf *MockNotifier) {
				tr.On("GetFirstByNameAndCourse", mock.Anything, "T1", "C0").Return(nil, repository.ErrNotFound)
				cr.On("Get", mock.Anything, "C0").Return(course, nil)
				tr.On("ListActiveMemberIDs", mock.Anything, "C0").Return([]int64{}, nil)
				sr.On("Get", mock.Anything, int64(1)).Return(testStudent(1), nil)
				sr.On("Get", mock.Anything, int64(2)).Return(testStudent(2), nil)
				cr.On("IsEnrolled", mock.Anything, int64(1), "C0").Return(true, nil)
				cr.On("IsEnrolled", mock.Anything, int64(2), "C0").Return(false, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeStudentNotEnrolled,
		},
		{
			name:      "member already in an active team",
			courseID:  "C0",
			teamName:  "T2",
			memberIDs: []int64{2, 3},
			setupMocks: func(cr *MockCourseRepository, sr *MockStudentRepository, tr *MockTeamRepository, kr *MockTokenRepository, nf *MockNotifier) {
				tr.On("GetFirstByNameAndCourse", mock.Anything, "T2", "C0").Return(nil, repository.ErrNotFound)
				cr.On("Get", mock.Anything, "C0").Return(course, nil)
				tr.On("ListActiveMemberIDs", mock.Anything, "C0").Return([]int64{1, 2}, nil)
				sr.On("Get", mock.Anything, int64(2)).Return(testStudent(2), nil)
				sr.On("Get", mock.Anything, int64(3)).Return(testStudent(3), nil)
				cr.On("IsEnrolled", mock.Anything, int64(2), "C0").Return(true, nil)
				cr.On("IsEnrolled", mock.Anything, int64(3), "C0").Return(true, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeStudentInActiveTeam,
		},
		{
			name:      "not found reported before not enrolled",
			courseID:  "C0",
			teamName:  "T1",
			memberIDs: []int64{1, 99},
			setupMocks: func(cr *MockCourseRepository, sr *MockStudentRepository, tr *MockTeamRepository, kr *MockTokenRepository, nf *MockNotifier) {
				tr.On("GetFirstByNameAndCourse", mock.Anything, "T1", "C0").Return(nil, repository.ErrNotFound)
				cr.On("Get", mock.Anything, "C0").Return(course, nil)
				tr.On("ListActiveMemberIDs", mock.Anything, "C0").Return([]int64{}, nil)
				sr.On("Get", mock.Anything, int64(1)).Return(testStudent(1), nil)
				sr.On("Get", mock.Anything, int64(99)).Return(nil, repository.ErrNotFound)
				cr.On("IsEnrolled", mock.Anything, int64(1), "C0").Return(false, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeStudentNotFound,
		},
		{
			name:      "team too small",
			courseID:  "C0",
			teamName:  "T1",
			memberIDs: []int64{1},
			setupMocks: func(cr *MockCourseRepository, sr *MockStudentRepository, tr *MockTeamRepository, kr *MockTokenRepository, nf *MockNotifier) {
				tr.On("GetFirstByNameAndCourse", mock.Anything, "T1", "C0").Return(nil, repository.ErrNotFound)
				cr.On("Get", mock.Anything, "C0").Return(course, nil)
				tr.On("ListActiveMemberIDs", mock.Anything, "C0").Return([]int64{}, nil)
				sr.On("Get", mock.Anything, int64(1)).Return(testStudent(1), nil)
				cr.On("IsEnrolled", mock.Anything, int64(1), "C0").Return(true, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeCardinalityViolation,
		},
		{
			name:      "team too big",
			courseID:  "C0",
			teamName:  "T1",
			memberIDs: []int64{1, 2, 3, 4},
			setupMocks: func(cr *MockCourseRepository, sr *MockStudentRepository, tr *MockTeamRepository, kr *MockTokenRepository, nf *MockNotifier) {
				tr.On("GetFirstByNameAndCourse", mock.Anything, "T1", "C0").Return(nil, repository.ErrNotFound)
				cr.On("Get", mock.Anything, "C0").Return(course, nil)
				tr.On("ListActiveMemberIDs", mock.Anything, "C0").Return([]int64{}, nil)
				for id := int64(1); id <= 4; id++ {
					sr.On("Get", mock.Anything, id).Return(testStudent(id), nil)
					cr.On("IsEnrolled", mock.Anything, id, "C0").Return(true, nil)
				}
			},
			expectedError: true,
			errorCode:     ErrorCodeCardinalityViolation,
		},
		{
			name:      "duplicate member",
			courseID:  "C0",
			teamName:  "T1",
			memberIDs: []int64{1, 1},
			setupMocks: func(cr *MockCourseRepository, sr *MockStudentRepository, tr *MockTeamRepository, kr *MockTokenRepository, nf *MockNotifier) {
				tr.On("GetFirstByNameAndCourse", mock.Anything, "T1", "C0").Return(nil, repository.ErrNotFound)
				cr.On("Get", mock.Anything, "C0").Return(course, nil)
				tr.On("ListActiveMemberIDs", mock.Anything, "C0").Return([]int64{}, nil)
				sr.On("Get", mock.Anything, int64(1)).Return(testStudent(1), nil)
				cr.On("IsEnrolled", mock.Anything, int64(1), "C0").Return(true, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeDuplicateMember,
		},
		{
			name:      "notification failure does not fail the proposal",
			courseID:  "C0",
			teamName:  "T1",
			memberIDs: []int64{1, 2},
			setupMocks: func(cr *MockCourseRepository, sr *MockStudentRepository, tr *MockTeamRepository, kr *MockTokenRepository, nf *MockNotifier) {
				tr.On("GetFirstByNameAndCourse", mock.Anything, "T1", "C0").Return(nil, repository.ErrNotFound)
				cr.On("Get", mock.Anything, "C0").Return(course, nil)
				tr.On("ListActiveMemberIDs", mock.Anything, "C0").Return([]int64{}, nil)
				sr.On("Get", mock.Anything, int64(1)).Return(testStudent(1), nil)
				sr.On("Get", mock.Anything, int64(2)).Return(testStudent(2), nil)
				cr.On("IsEnrolled", mock.Anything, int64(1), "C0").Return(true, nil)
				cr.On("IsEnrolled", mock.Anything, int64(2), "C0").Return(true, nil)
				tr.On("Create", mock.Anything, mock.Anything).Return(int64(10), nil)
				tr.On("AddMember", mock.Anything, int64(10), mock.Anything).Return(nil)
				kr.On("Create", mock.Anything, mock.Anything).Return(nil)
				nf.On("Notify", mock.Anything, mock.Anything, "T1", mock.Anything, mock.Anything).
					Return(errors.New("smtp down")).Once()
			},
			expectedError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockCourses := new(MockCourseRepository)
			mockStudents := new(MockStudentRepository)
			mockTeams := new(MockTeamRepository)
			mockTokens := new(MockTokenRepository)
			mockNotifier := new(MockNotifier)

			tt.setupMocks(mockCourses, mockStudents, mockTeams, mockTokens, mockNotifier)

			service := newTestTeamService(mockCourses, mockStudents, mockTeams, mockTokens, mockNotifier)

			got, err := service.ProposeTeam(context.Background(), tt.courseID, tt.teamName, tt.memberIDs, 24)

			if tt.expectedError {
				require.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				require.Nil(t, err)
				require.NotNil(t, got)
				assert.False(t, got.Active)
				assert.False(t, got.Disabled)
				assert.Len(t, got.Members, len(tt.memberIDs))
				// Exactly one confirmed token: the proposer's.
				require.NotNil(t, got.Members[0].ProposalAccepted)
				assert.True(t, *got.Members[0].ProposalAccepted)
				for _, member := range got.Members[1:] {
					require.NotNil(t, member.ProposalAccepted)
					assert.False(t, *member.ProposalAccepted)
				}
			}

			mockCourses.AssertExpectations(t)
			mockStudents.AssertExpectations(t)
			mockTeams.AssertExpectations(t)
			mockTokens.AssertExpectations(t)
			mockNotifier.AssertExpectations(t)
		})
	}
}

func TestTeamService_ConfirmTeam(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	past := time.Now().Add(-time.Hour)

	pendingToken := func(expiry time.Time) *repository.Token {
		return &repository.Token{ID: "tok-2", TeamID: 10, StudentID: 2, ExpiryDate: expiry}
	}
	proposedTeam := func() *repository.Team {
		return &repository.Team{ID: 10, Name: "T1", CourseID: "C0"}
	}

	tests := []struct {
		name            string
		tokenID         string
		setupMocks      func(*MockTeamRepository, *MockTokenRepository)
		expectedHandled bool
		expectedError   bool
		errorCode       ErrorCode
	}{
		{
			name:    "token not found is a no-op",
			tokenID: "missing",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "missing").Return(nil, repository.ErrNotFound)
			},
			expectedHandled: false,
		},
		{
			name:    "team missing is a no-op",
			tokenID: "tok-2",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "tok-2").Return(pendingToken(future), nil)
				tr.On("GetForUpdate", mock.Anything, int64(10)).Return(nil, repository.ErrNotFound)
			},
			expectedHandled: false,
		},
		{
			name:    "team both active and disabled is fatal",
			tokenID: "tok-2",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "tok-2").Return(pendingToken(future), nil)
				tr.On("GetForUpdate", mock.Anything, int64(10)).
					Return(&repository.Team{ID: 10, CourseID: "C0", Active: true, Disabled: true}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvariantViolation,
		},
		{
			name:    "disabled team is too late",
			tokenID: "tok-2",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "tok-2").Return(pendingToken(future), nil)
				tr.On("GetForUpdate", mock.Anything, int64(10)).
					Return(&repository.Team{ID: 10, CourseID: "C0", Disabled: true}, nil)
			},
			expectedHandled: false,
		},
		{
			name:    "live token on active team is corrupted state, no-op",
			tokenID: "tok-2",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "tok-2").Return(pendingToken(future), nil)
				tr.On("GetForUpdate", mock.Anything, int64(10)).
					Return(&repository.Team{ID: 10, CourseID: "C0", Active: true}, nil)
			},
			expectedHandled: false,
		},
		{
			name:    "token both confirmed and rejected is fatal",
			tokenID: "tok-2",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				token := pendingToken(future)
				token.Confirmed = true
				token.Rejected = true
				kr.On("GetForUpdate", mock.Anything, "tok-2").Return(token, nil)
				tr.On("GetForUpdate", mock.Anything, int64(10)).Return(proposedTeam(), nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvariantViolation,
		},
		{
			name:    "already confirmed token is a no-op",
			tokenID: "tok-2",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				token := pendingToken(future)
				token.Confirmed = true
				kr.On("GetForUpdate", mock.Anything, "tok-2").Return(token, nil)
				tr.On("GetForUpdate", mock.Anything, int64(10)).Return(proposedTeam(), nil)
			},
			expectedHandled: false,
		},
		{
			name:    "already rejected token is a no-op",
			tokenID: "tok-2",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				token := pendingToken(future)
				token.Rejected = true
				kr.On("GetForUpdate", mock.Anything, "tok-2").Return(token, nil)
				tr.On("GetForUpdate", mock.Anything, int64(10)).Return(proposedTeam(), nil)
			},
			expectedHandled: false,
		},
		{
			name:    "expired token rejects itself and disables the team",
			tokenID: "tok-2",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "tok-2").Return(pendingToken(past), nil)
				tr.On("GetForUpdate", mock.Anything, int64(10)).Return(proposedTeam(), nil)
				kr.On("Patch", mock.Anything, mock.MatchedBy(func(p *repository.TokenPatch) bool {
					return p.ID == "tok-2" && p.Rejected != nil && *p.Rejected && p.Confirmed == nil
				})).Return(&repository.Token{ID: "tok-2", Rejected: true}, nil)
				tr.On("Patch", mock.Anything, mock.MatchedBy(func(p *repository.TeamPatch) bool {
					return p.ID == 10 && p.Disabled != nil && *p.Disabled && p.Active == nil
				})).Return(&repository.Team{ID: 10, Disabled: true}, nil)
			},
			expectedHandled: false,
		},
		{
			name:    "confirmation with tokens still outstanding",
			tokenID: "tok-2",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "tok-2").Return(pendingToken(future), nil)
				tr.On("GetForUpdate", mock.Anything, int64(10)).Return(proposedTeam(), nil)
				kr.On("Patch", mock.Anything, mock.MatchedBy(func(p *repository.TokenPatch) bool {
					return p.ID == "tok-2" && p.Confirmed != nil && *p.Confirmed
				})).Return(&repository.Token{ID: "tok-2", Confirmed: true}, nil)
				kr.On("GetByTeam", mock.Anything, int64(10)).Return([]*repository.Token{
					{ID: "tok-1", TeamID: 10, StudentID: 1, Confirmed: true},
					{ID: "tok-2", TeamID: 10, StudentID: 2, Confirmed: true},
					{ID: "tok-3", TeamID: 10, StudentID: 3},
				}, nil)
			},
			expectedHandled: true,
		},
		{
			name:    "last confirmation activates the team",
			tokenID: "tok-2",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "tok-2").Return(pendingToken(future), nil)
				tr.On("GetForUpdate", mock.Anything, int64(10)).Return(proposedTeam(), nil)
				kr.On("Patch", mock.Anything, mock.MatchedBy(func(p *repository.TokenPatch) bool {
					return p.ID == "tok-2" && p.Confirmed != nil && *p.Confirmed
				})).Return(&repository.Token{ID: "tok-2", Confirmed: true}, nil)
				kr.On("GetByTeam", mock.Anything, int64(10)).Return([]*repository.Token{
					{ID: "tok-1", TeamID: 10, StudentID: 1, Confirmed: true},
					{ID: "tok-2", TeamID: 10, StudentID: 2, Confirmed: true},
				}, nil)
				tr.On("GetMemberIDs", mock.Anything, int64(10)).Return([]int64{1, 2}, nil)
				tr.On("ListActiveMemberIDs", mock.Anything, "C0").Return([]int64{}, nil)
				tr.On("Patch", mock.Anything, mock.MatchedBy(func(p *repository.TeamPatch) bool {
					return p.ID == 10 && p.Active != nil && *p.Active && p.Disabled == nil
				})).Return(&repository.Team{ID: 10, Active: true}, nil)
				tr.On("ListInactiveSiblings", mock.Anything, "C0", int64(10)).Return([]*repository.Team{
					{ID: 11, Name: "T2", CourseID: "C0"},
				}, nil)
				tr.On("Patch", mock.Anything, mock.MatchedBy(func(p *repository.TeamPatch) bool {
					return p.ID == 11 && p.Disabled != nil && *p.Disabled
				})).Return(&repository.Team{ID: 11, Disabled: true}, nil)
				kr.On("DeleteByTeam", mock.Anything, int64(10)).Return(nil)
			},
			expectedHandled: true,
		},
		{
			name:    "activation blocked by concurrent active team",
			tokenID: "tok-2",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "tok-2").Return(pendingToken(future), nil)
				tr.On("GetForUpdate", mock.Anything, int64(10)).Return(proposedTeam(), nil)
				kr.On("Patch", mock.Anything, mock.Anything).Return(&repository.Token{ID: "tok-2", Confirmed: true}, nil)
				kr.On("GetByTeam", mock.Anything, int64(10)).Return([]*repository.Token{
					{ID: "tok-1", TeamID: 10, StudentID: 1, Confirmed: true},
					{ID: "tok-2", TeamID: 10, StudentID: 2, Confirmed: true},
				}, nil)
				tr.On("GetMemberIDs", mock.Anything, int64(10)).Return([]int64{1, 2}, nil)
				tr.On("ListActiveMemberIDs", mock.Anything, "C0").Return([]int64{2}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeStudentInActiveTeam,
		},
		{
			name:    "team with no tokens after confirm is fatal",
			tokenID: "tok-2",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "tok-2").Return(pendingToken(future), nil)
				tr.On("GetForUpdate", mock.Anything, int64(10)).Return(proposedTeam(), nil)
				kr.On("Patch", mock.Anything, mock.Anything).Return(&repository.Token{ID: "tok-2", Confirmed: true}, nil)
				kr.On("GetByTeam", mock.Anything, int64(10)).Return([]*repository.Token{}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvariantViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTeams := new(MockTeamRepository)
			mockTokens := new(MockTokenRepository)

			tt.setupMocks(mockTeams, mockTokens)

			service := newTestTeamService(new(MockCourseRepository), new(MockStudentRepository), mockTeams, mockTokens, new(MockNotifier))

			handled, err := service.ConfirmTeam(context.Background(), tt.tokenID)

			if tt.expectedError {
				require.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.False(t, handled)
			} else {
				require.Nil(t, err)
				assert.Equal(t, tt.expectedHandled, handled)
			}

			mockTeams.AssertExpectations(t)
			mockTokens.AssertExpectations(t)
		})
	}
}

func TestTeamService_RejectTeam(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name            string
		tokenID         string
		setupMocks      func(*MockTeamRepository, *MockTokenRepository)
		expectedHandled bool
		expectedError   bool
		errorCode       ErrorCode
	}{
		{
			name:    "success: rejection disables the team",
			tokenID: "tok-5",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "tok-5").
					Return(&repository.Token{ID: "tok-5", TeamID: 30, StudentID: 5, ExpiryDate: future}, nil)
				tr.On("GetForUpdate", mock.Anything, int64(30)).
					Return(&repository.Team{ID: 30, Name: "T3", CourseID: "C0"}, nil)
				kr.On("Patch", mock.Anything, mock.MatchedBy(func(p *repository.TokenPatch) bool {
					return p.ID == "tok-5" && p.Rejected != nil && *p.Rejected && p.Confirmed == nil
				})).Return(&repository.Token{ID: "tok-5", Rejected: true}, nil)
				tr.On("Patch", mock.Anything, mock.MatchedBy(func(p *repository.TeamPatch) bool {
					return p.ID == 30 && p.Disabled != nil && *p.Disabled && p.Active == nil
				})).Return(&repository.Team{ID: 30, Disabled: true}, nil)
			},
			expectedHandled: true,
		},
		{
			name:    "token not found is a no-op",
			tokenID: "missing",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "missing").Return(nil, repository.ErrNotFound)
			},
			expectedHandled: false,
		},
		{
			name:    "confirm after rejection is a no-op on disabled team",
			tokenID: "tok-4",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "tok-4").
					Return(&repository.Token{ID: "tok-4", TeamID: 30, StudentID: 4, ExpiryDate: future, Confirmed: true}, nil)
				tr.On("GetForUpdate", mock.Anything, int64(30)).
					Return(&repository.Team{ID: 30, Name: "T3", CourseID: "C0", Disabled: true}, nil)
			},
			expectedHandled: false,
		},
		{
			name:    "already rejected token is a no-op",
			tokenID: "tok-5",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				kr.On("GetForUpdate", mock.Anything, "tok-5").
					Return(&repository.Token{ID: "tok-5", TeamID: 30, StudentID: 5, ExpiryDate: future, Rejected: true}, nil)
				tr.On("GetForUpdate", mock.Anything, int64(30)).
					Return(&repository.Team{ID: 30, Name: "T3", CourseID: "C0"}, nil)
			},
			expectedHandled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTeams := new(MockTeamRepository)
			mockTokens := new(MockTokenRepository)

			tt.setupMocks(mockTeams, mockTokens)

			service := newTestTeamService(new(MockCourseRepository), new(MockStudentRepository), mockTeams, mockTokens, new(MockNotifier))

			handled, err := service.RejectTeam(context.Background(), tt.tokenID)

			if tt.expectedError {
				require.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
			} else {
				require.Nil(t, err)
				assert.Equal(t, tt.expectedHandled, handled)
			}

			mockTeams.AssertExpectations(t)
			mockTokens.AssertExpectations(t)
		})
	}
}

func TestTeamService_CleanupExpiredTeams(t *testing.T) {
	tests := []struct {
		name            string
		courseID        string
		setupMocks      func(*MockTeamRepository, *MockTokenRepository)
		expectedRemoved int
	}{
		{
			name:     "nothing to clean is a no-op",
			courseID: "C0",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				tr.On("ListInactiveDisabled", mock.Anything, "C0").Return([]*repository.Team{}, nil)
			},
			expectedRemoved: 0,
		},
		{
			name:     "dead proposals are detached and deleted",
			courseID: "",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				tr.On("ListInactiveDisabled", mock.Anything, "").Return([]*repository.Team{
					{ID: 21, Name: "dead-1", CourseID: "C0", Disabled: true},
					{ID: 22, Name: "dead-2", CourseID: "C1", Disabled: true},
				}, nil)
				for _, id := range []int64{21, 22} {
					tr.On("RemoveMembers", mock.Anything, id).Return(nil)
					kr.On("DeleteByTeam", mock.Anything, id).Return(nil)
					tr.On("Delete", mock.Anything, id).Return(nil)
				}
			},
			expectedRemoved: 2,
		},
		{
			name:     "team removed by concurrent sweep is skipped",
			courseID: "C0",
			setupMocks: func(tr *MockTeamRepository, kr *MockTokenRepository) {
				tr.On("ListInactiveDisabled", mock.Anything, "C0").Return([]*repository.Team{
					{ID: 21, Name: "dead-1", CourseID: "C0", Disabled: true},
				}, nil)
				tr.On("RemoveMembers", mock.Anything, int64(21)).Return(nil)
				kr.On("DeleteByTeam", mock.Anything, int64(21)).Return(nil)
				tr.On("Delete", mock.Anything, int64(21)).Return(repository.ErrNotFound)
			},
			expectedRemoved: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTeams := new(MockTeamRepository)
			mockTokens := new(MockTokenRepository)

			tt.setupMocks(mockTeams, mockTokens)

			service := newTestTeamService(new(MockCourseRepository), new(MockStudentRepository), mockTeams, mockTokens, new(MockNotifier))

			removed, err := service.CleanupExpiredTeams(context.Background(), tt.courseID)

			require.Nil(t, err)
			assert.Equal(t, tt.expectedRemoved, removed)

			// A second run over the same (now empty) state stays a no-op.
			mockTeams.AssertExpectations(t)
			mockTokens.AssertExpectations(t)
		})
	}
}

func TestTeamService_GetTeamsForStudent(t *testing.T) {
	student := testStudent(2)
	course := &repository.Course{ID: "C0", Name: "Algorithms", Enabled: true, MinTeamSize: 2, MaxTeamSize: 3}

	t.Run("pending proposal carries member token state and links", func(t *testing.T) {
		mockCourses := new(MockCourseRepository)
		mockStudents := new(MockStudentRepository)
		mockTeams := new(MockTeamRepository)
		mockTokens := new(MockTokenRepository)

		mockStudents.On("Get", mock.Anything, int64(2)).Return(student, nil)
		mockCourses.On("Get", mock.Anything, "C0").Return(course, nil)
		mockTeams.On("GetTeamsForStudent", mock.Anything, int64(2), "C0").Return([]*repository.Team{
			{ID: 10, Name: "T1", CourseID: "C0"},
		}, nil)
		mockTeams.On("GetMembers", mock.Anything, int64(10)).Return([]*repository.Student{
			testStudent(1), testStudent(2),
		}, nil)
		mockTokens.On("GetByStudentAndTeam", mock.Anything, int64(1), int64(10)).Return([]*repository.Token{
			{ID: "tok-1", TeamID: 10, StudentID: 1, Confirmed: true},
		}, nil)
		mockTokens.On("GetByStudentAndTeam", mock.Anything, int64(2), int64(10)).Return([]*repository.Token{
			{ID: "tok-2", TeamID: 10, StudentID: 2},
		}, nil)

		service := newTestTeamService(mockCourses, mockStudents, mockTeams, mockTokens, new(MockNotifier))

		teams, err := service.GetTeamsForStudent(context.Background(), 2, "C0")
		require.Nil(t, err)
		require.Len(t, teams, 1)
		require.Len(t, teams[0].Members, 2)

		proposer := teams[0].Members[0]
		require.NotNil(t, proposer.ProposalAccepted)
		assert.True(t, *proposer.ProposalAccepted)

		invitee := teams[0].Members[1]
		require.NotNil(t, invitee.ProposalAccepted)
		assert.False(t, *invitee.ProposalAccepted)
		assert.Equal(t, testBaseURL+"/team/confirm/tok-2", invitee.URLConfirm)
		assert.Equal(t, testBaseURL+"/team/reject/tok-2", invitee.URLReject)

		mockTokens.AssertExpectations(t)
	})

	t.Run("member without token is reported unresolved", func(t *testing.T) {
		mockCourses := new(MockCourseRepository)
		mockStudents := new(MockStudentRepository)
		mockTeams := new(MockTeamRepository)
		mockTokens := new(MockTokenRepository)

		mockStudents.On("Get", mock.Anything, int64(2)).Return(student, nil)
		mockCourses.On("Get", mock.Anything, "C0").Return(course, nil)
		mockTeams.On("GetTeamsForStudent", mock.Anything, int64(2), "C0").Return([]*repository.Team{
			{ID: 10, Name: "T1", CourseID: "C0"},
		}, nil)
		mockTeams.On("GetMembers", mock.Anything, int64(10)).Return([]*repository.Student{testStudent(2)}, nil)
		mockTokens.On("GetByStudentAndTeam", mock.Anything, int64(2), int64(10)).Return([]*repository.Token{}, nil)

		service := newTestTeamService(mockCourses, mockStudents, mockTeams, mockTokens, new(MockNotifier))

		teams, err := service.GetTeamsForStudent(context.Background(), 2, "C0")
		require.Nil(t, err)
		require.Len(t, teams, 1)
		require.Len(t, teams[0].Members, 1)
		assert.Nil(t, teams[0].Members[0].ProposalAccepted)
		assert.Empty(t, teams[0].Members[0].URLConfirm)
	})

	t.Run("two active teams in one course is an invariant violation", func(t *testing.T) {
		mockCourses := new(MockCourseRepository)
		mockStudents := new(MockStudentRepository)
		mockTeams := new(MockTeamRepository)
		mockTokens := new(MockTokenRepository)

		mockStudents.On("Get", mock.Anything, int64(2)).Return(student, nil)
		mockCourses.On("Get", mock.Anything, "C0").Return(course, nil)
		mockTeams.On("GetTeamsForStudent", mock.Anything, int64(2), "C0").Return([]*repository.Team{
			{ID: 10, Name: "T1", CourseID: "C0", Active: true},
			{ID: 11, Name: "T2", CourseID: "C0", Active: true},
		}, nil)
		mockTeams.On("GetMembers", mock.Anything, int64(10)).Return([]*repository.Student{testStudent(2)}, nil)
		mockTeams.On("GetMembers", mock.Anything, int64(11)).Return([]*repository.Student{testStudent(2)}, nil)

		service := newTestTeamService(mockCourses, mockStudents, mockTeams, mockTokens, new(MockNotifier))

		teams, err := service.GetTeamsForStudent(context.Background(), 2, "C0")
		require.Error(t, err)
		assert.Equal(t, ErrorCodeInvariantViolation, err.Code)
		assert.Nil(t, teams)
	})

	t.Run("student not found", func(t *testing.T) {
		mockCourses := new(MockCourseRepository)
		mockStudents := new(MockStudentRepository)

		mockStudents.On("Get", mock.Anything, int64(99)).Return(nil, repository.ErrNotFound)

		service := newTestTeamService(mockCourses, mockStudents, new(MockTeamRepository), new(MockTokenRepository), new(MockNotifier))

		teams, err := service.GetTeamsForStudent(context.Background(), 99, "C0")
		require.Error(t, err)
		assert.Equal(t, ErrorCodeStudentNotFound, err.Code)
		assert.Nil(t, teams)
	})
}
