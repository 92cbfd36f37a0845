package service

type ErrorCode string

const (
	ErrorCodeCourseNotFound       ErrorCode = "COURSE_NOT_FOUND"
	ErrorCodeStudentNotFound      ErrorCode = "STUDENT_NOT_FOUND"
	ErrorCodeTeamNotFound         ErrorCode = "TEAM_NOT_FOUND"
	ErrorCodeTokenNotFound        ErrorCode = "TOKEN_NOT_FOUND"
	ErrorCodeTeamNameTaken        ErrorCode = "TEAM_NAME_TAKEN"
	ErrorCodeCardinalityViolation ErrorCode = "CARDINALITY_VIOLATION"
	ErrorCodeDuplicateMember      ErrorCode = "DUPLICATE_MEMBER"
	ErrorCodeStudentNotEnrolled   ErrorCode = "STUDENT_NOT_ENROLLED"
	ErrorCodeStudentInActiveTeam  ErrorCode = "STUDENT_IN_ACTIVE_TEAM"
	ErrorCodeCourseDisabled       ErrorCode = "COURSE_DISABLED"
	ErrorCodeAlreadyExists        ErrorCode = "ALREADY_EXISTS"
	ErrorCodeInvariantViolation   ErrorCode = "INVARIANT_VIOLATION"
	ErrorCodeInvalidBody          ErrorCode = "INVALID_BODY"
	ErrorCodeUnspecified          ErrorCode = "UNSPECIFIED"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func NewServiceError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) Error() string {
	return e.Message
}
