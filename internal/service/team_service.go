package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dmoroni/uniteams/internal/db"
	"github.com/dmoroni/uniteams/internal/model"
	"github.com/dmoroni/uniteams/internal/repository"
	"github.com/dmoroni/uniteams/pkg/logger"
)

// TeamService coordinates the team-formation protocol: a student
// proposes a team, every member confirms through a personal token, and
// the team activates once the last token is confirmed. Teams and tokens
// only move toward terminal states; each operation runs in a single
// transaction.
type TeamService struct {
	tx db.Transactor

	courses  repository.CourseRepository
	students repository.StudentRepository
	teams    repository.TeamRepository
	tokens   repository.TokenRepository

	notifier Notifier
	baseURL  string
}

func NewTeamService(tx db.Transactor) *TeamService {
	return &TeamService{
		tx: tx,
	}
}

type invite struct {
	student    *repository.Student
	urlConfirm string
	urlReject  string
}

// ProposeTeam validates and persists a team proposal. The team starts
// inactive, one confirmation token per member is created, and the
// proposer (first member of the list) is auto-confirmed. Invited
// members are notified after the transaction commits.
func (t *TeamService) ProposeTeam(ctx context.Context, courseID, teamName string, memberIDs []int64, hoursTimeout int64) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Info("proposing team",
		zap.String("course_id", courseID),
		zap.String("team_name", teamName),
		zap.Int64s("member_ids", memberIDs),
		zap.Int64("hours_timeout", hoursTimeout))

	var created *model.Team
	var invites []invite

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		_, err := t.teams.GetFirstByNameAndCourse(txCtx, teamName, courseID)
		if err == nil {
			l.Warn("team name already used in course", zap.String("team_name", teamName), zap.String("course_id", courseID))
			return NewServiceError(ErrorCodeTeamNameTaken, "team name already used in this course")
		}
		if !errors.Is(err, repository.ErrNotFound) {
			l.Error("failed to check team name", zap.Error(err))
			return NewServiceError(ErrorCodeUnspecified, "failed to check team name")
		}

		course, err := t.courses.Get(txCtx, courseID)
		if errors.Is(err, repository.ErrNotFound) {
			l.Warn("course not found", zap.String("course_id", courseID))
			return NewServiceError(ErrorCodeCourseNotFound, "course not found")
		}
		if err != nil {
			l.Error("failed to get course", zap.String("course_id", courseID), zap.Error(err))
			return NewServiceError(ErrorCodeUnspecified, "failed to get course")
		}
		if !course.Enabled {
			return NewServiceError(ErrorCodeCourseDisabled, "course is not enabled")
		}

		activeIDs, err := t.teams.ListActiveMemberIDs(txCtx, courseID)
		if err != nil {
			l.Error("failed to list active team members", zap.String("course_id", courseID), zap.Error(err))
			return NewServiceError(ErrorCodeUnspecified, "failed to list active team members")
		}
		activeSet := make(map[int64]bool, len(activeIDs))
		for _, id := range activeIDs {
			activeSet[id] = true
		}

		var notFound, notEnrolled, alreadyActive []int64
		members := make([]*repository.Student, 0, len(memberIDs))
		for _, id := range memberIDs {
			student, err := t.students.Get(txCtx, id)
			if errors.Is(err, repository.ErrNotFound) {
				notFound = append(notFound, id)
				continue
			}
			if err != nil {
				l.Error("failed to get student", zap.Int64("student_id", id), zap.Error(err))
				return NewServiceError(ErrorCodeUnspecified, "failed to get student")
			}

			enrolled, err := t.courses.IsEnrolled(txCtx, id, courseID)
			if err != nil {
				l.Error("failed to check enrollment", zap.Int64("student_id", id), zap.Error(err))
				return NewServiceError(ErrorCodeUnspecified, "failed to check enrollment")
			}
			if !enrolled {
				notEnrolled = append(notEnrolled, id)
				continue
			}

			if activeSet[id] {
				alreadyActive = append(alreadyActive, id)
				continue
			}

			members = append(members, student)
		}

		// Report every offending id, first non-empty bucket wins.
		if len(notFound) > 0 {
			return NewServiceError(ErrorCodeStudentNotFound, "students not found: "+formatIDs(notFound))
		}
		if len(notEnrolled) > 0 {
			return NewServiceError(ErrorCodeStudentNotEnrolled, "students not enrolled in course: "+formatIDs(notEnrolled))
		}
		if len(alreadyActive) > 0 {
			return NewServiceError(ErrorCodeStudentInActiveTeam, "students already in an active team of this course: "+formatIDs(alreadyActive))
		}

		if len(members) < course.MinTeamSize || len(members) > course.MaxTeamSize {
			return NewServiceError(ErrorCodeCardinalityViolation,
				fmt.Sprintf("team size %d outside course bounds [%d, %d]", len(members), course.MinTeamSize, course.MaxTeamSize))
		}

		seen := make(map[int64]bool, len(memberIDs))
		for _, id := range memberIDs {
			if seen[id] {
				return NewServiceError(ErrorCodeDuplicateMember, "duplicate students in proposal")
			}
			seen[id] = true
		}

		teamID, err := t.teams.Create(txCtx, &repository.Team{
			Name:     teamName,
			CourseID: courseID,
		})
		if errors.Is(err, repository.ErrAlreadyExists) {
			// Lost a race with a concurrent proposal using the same name.
			return NewServiceError(ErrorCodeTeamNameTaken, "team name already used in this course")
		}
		if err != nil {
			l.Error("failed to create team", zap.String("team_name", teamName), zap.Error(err))
			return NewServiceError(ErrorCodeUnspecified, "failed to create team")
		}

		expiry := time.Now().Add(time.Duration(hoursTimeout) * time.Hour)
		memberViews := make([]*model.TeamMember, 0, len(members))

		for i, member := range members {
			if err = t.teams.AddMember(txCtx, teamID, member.ID); err != nil {
				l.Error("failed to add team member", zap.Int64("student_id", member.ID), zap.Error(err))
				return NewServiceError(ErrorCodeUnspecified, "failed to add team member")
			}

			token := &repository.Token{
				ID:         uuid.NewString(),
				TeamID:     teamID,
				StudentID:  member.ID,
				ExpiryDate: expiry,
				// The proposer agrees by the act of proposing.
				Confirmed: i == 0,
			}
			if err = t.tokens.Create(txCtx, token); err != nil {
				l.Error("failed to create confirmation token", zap.Int64("student_id", member.ID), zap.Error(err))
				return NewServiceError(ErrorCodeUnspecified, "failed to create confirmation token")
			}

			if i > 0 {
				invites = append(invites, invite{
					student:    member,
					urlConfirm: t.confirmURL(token.ID),
					urlReject:  t.rejectURL(token.ID),
				})
			}

			accepted := token.Confirmed
			rejected := false
			memberViews = append(memberViews, &model.TeamMember{
				StudentID:        member.ID,
				Name:             member.Name,
				Surname:          member.Surname,
				ProposalAccepted: &accepted,
				ProposalRejected: &rejected,
				URLConfirm:       t.confirmURL(token.ID),
				URLReject:        t.rejectURL(token.ID),
			})
		}

		created = &model.Team{
			ID:       teamID,
			Name:     teamName,
			CourseID: courseID,
			Members:  memberViews,
		}

		return nil
	})
	if err != nil {
		var res *Error
		if errors.As(err, &res) {
			return nil, res
		}
		l.Error("propose team transaction failed", zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to propose team")
	}

	// Best-effort delivery; a failed notification never undoes the proposal.
	for _, inv := range invites {
		if err := t.notifier.Notify(ctx, inv.student, teamName, inv.urlConfirm, inv.urlReject); err != nil {
			l.Warn("failed to notify invited student",
				zap.Int64("student_id", inv.student.ID),
				zap.String("team_name", teamName),
				zap.Error(err))
		}
	}

	l.Info("team proposed", zap.Int64("team_id", created.ID), zap.String("team_name", teamName))

	return created, nil
}

// ConfirmTeam applies one confirmation. It returns true only when this
// call turned the token confirmed; late or repeated clicks are a no-op.
// When the last outstanding token confirms, the team activates, sibling
// proposals in the course are disabled and the team's tokens are
// deleted.
func (t *TeamService) ConfirmTeam(ctx context.Context, tokenID string) (bool, *Error) {
	l := logger.FromContext(ctx)

	handled := false

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		token, team, stop, err := t.resolveToken(txCtx, tokenID)
		if err != nil || stop {
			return err
		}

		if time.Now().After(token.ExpiryDate) {
			// Lazy expiry: an expired token rejects itself on touch and
			// takes the proposal down with it.
			rejected := true
			if _, err := t.tokens.Patch(txCtx, &repository.TokenPatch{ID: token.ID, Rejected: &rejected}); err != nil {
				l.Error("failed to reject expired token", zap.String("token_id", token.ID), zap.Error(err))
				return NewServiceError(ErrorCodeUnspecified, "failed to reject expired token")
			}
			disabled := true
			if _, err := t.teams.Patch(txCtx, &repository.TeamPatch{ID: team.ID, Disabled: &disabled}); err != nil {
				l.Error("failed to disable team", zap.Int64("team_id", team.ID), zap.Error(err))
				return NewServiceError(ErrorCodeUnspecified, "failed to disable team")
			}
			l.Info("confirmation token expired, team disabled",
				zap.String("token_id", token.ID), zap.Int64("team_id", team.ID))
			return nil
		}

		confirmed := true
		if _, err := t.tokens.Patch(txCtx, &repository.TokenPatch{ID: token.ID, Confirmed: &confirmed}); err != nil {
			l.Error("failed to confirm token", zap.String("token_id", token.ID), zap.Error(err))
			return NewServiceError(ErrorCodeUnspecified, "failed to confirm token")
		}
		handled = true

		teamTokens, err := t.tokens.GetByTeam(txCtx, team.ID)
		if err != nil {
			l.Error("failed to list team tokens", zap.Int64("team_id", team.ID), zap.Error(err))
			return NewServiceError(ErrorCodeUnspecified, "failed to list team tokens")
		}
		if len(teamTokens) == 0 {
			l.Error("team has no tokens", zap.Int64("team_id", team.ID))
			return NewServiceError(ErrorCodeInvariantViolation, "team has no associated tokens")
		}
		for _, tok := range teamTokens {
			if !tok.Confirmed || tok.Rejected {
				return nil
			}
		}

		return t.activateTeam(txCtx, team)
	})
	if err != nil {
		var res *Error
		if errors.As(err, &res) {
			return false, res
		}
		l.Error("confirm team transaction failed", zap.String("token_id", tokenID), zap.Error(err))
		return false, NewServiceError(ErrorCodeUnspecified, "failed to confirm team")
	}

	return handled, nil
}

// RejectTeam applies one rejection: the token is marked rejected and
// the whole proposal disabled. Same no-op contract as ConfirmTeam for
// late or repeated clicks.
func (t *TeamService) RejectTeam(ctx context.Context, tokenID string) (bool, *Error) {
	l := logger.FromContext(ctx)

	handled := false

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		token, team, stop, err := t.resolveToken(txCtx, tokenID)
		if err != nil || stop {
			return err
		}

		rejected := true
		if _, err := t.tokens.Patch(txCtx, &repository.TokenPatch{ID: token.ID, Rejected: &rejected}); err != nil {
			l.Error("failed to reject token", zap.String("token_id", token.ID), zap.Error(err))
			return NewServiceError(ErrorCodeUnspecified, "failed to reject token")
		}
		disabled := true
		if _, err := t.teams.Patch(txCtx, &repository.TeamPatch{ID: team.ID, Disabled: &disabled}); err != nil {
			l.Error("failed to disable team", zap.Int64("team_id", team.ID), zap.Error(err))
			return NewServiceError(ErrorCodeUnspecified, "failed to disable team")
		}
		handled = true

		l.Info("team proposal rejected", zap.String("token_id", token.ID), zap.Int64("team_id", team.ID))

		return nil
	})
	if err != nil {
		var res *Error
		if errors.As(err, &res) {
			return false, res
		}
		l.Error("reject team transaction failed", zap.String("token_id", tokenID), zap.Error(err))
		return false, NewServiceError(ErrorCodeUnspecified, "failed to reject team")
	}

	return handled, nil
}

// resolveToken loads and locks the token and its team and runs the
// shared preamble of confirm/reject. stop reports that the call is a
// benign no-op (unknown token, resolved team or token).
func (t *TeamService) resolveToken(ctx context.Context, tokenID string) (token *repository.Token, team *repository.Team, stop bool, resErr error) {
	l := logger.FromContext(ctx)

	token, err := t.tokens.GetForUpdate(ctx, tokenID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Info("confirmation token not found", zap.String("token_id", tokenID))
		return nil, nil, true, nil
	}
	if err != nil {
		l.Error("failed to get token", zap.String("token_id", tokenID), zap.Error(err))
		return nil, nil, false, NewServiceError(ErrorCodeUnspecified, "failed to get token")
	}

	team, err = t.teams.GetForUpdate(ctx, token.TeamID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("no team associated with token", zap.String("token_id", tokenID), zap.Int64("team_id", token.TeamID))
		return nil, nil, true, nil
	}
	if err != nil {
		l.Error("failed to get team", zap.Int64("team_id", token.TeamID), zap.Error(err))
		return nil, nil, false, NewServiceError(ErrorCodeUnspecified, "failed to get team")
	}

	if team.Active && team.Disabled {
		l.Error("team is both active and disabled", zap.Int64("team_id", team.ID))
		return nil, nil, false, NewServiceError(ErrorCodeInvariantViolation, "team is both active and disabled")
	}
	if team.Disabled {
		return nil, nil, true, nil
	}
	if team.Active {
		// Tokens are deleted on activation, so a live token pointing at
		// an active team means corrupted state.
		l.Error("token refers to an already active team", zap.String("token_id", tokenID), zap.Int64("team_id", team.ID))
		return nil, nil, true, nil
	}

	if token.Confirmed && token.Rejected {
		l.Error("token is both confirmed and rejected", zap.String("token_id", tokenID))
		return nil, nil, false, NewServiceError(ErrorCodeInvariantViolation, "token is both confirmed and rejected")
	}
	if token.Confirmed || token.Rejected {
		return nil, nil, true, nil
	}

	return token, team, false, nil
}

// activateTeam is the linearization point of the protocol: with the
// team row locked and every token confirmed, re-check that no member
// slipped into another active team, then activate, disable sibling
// proposals and drop the tokens.
func (t *TeamService) activateTeam(ctx context.Context, team *repository.Team) error {
	l := logger.FromContext(ctx)

	memberIDs, err := t.teams.GetMemberIDs(ctx, team.ID)
	if err != nil {
		l.Error("failed to get team members", zap.Int64("team_id", team.ID), zap.Error(err))
		return NewServiceError(ErrorCodeUnspecified, "failed to get team members")
	}

	activeIDs, err := t.teams.ListActiveMemberIDs(ctx, team.CourseID)
	if err != nil {
		l.Error("failed to list active team members", zap.String("course_id", team.CourseID), zap.Error(err))
		return NewServiceError(ErrorCodeUnspecified, "failed to list active team members")
	}
	activeSet := make(map[int64]bool, len(activeIDs))
	for _, id := range activeIDs {
		activeSet[id] = true
	}
	for _, id := range memberIDs {
		if activeSet[id] {
			l.Warn("activation blocked, member already in an active team",
				zap.Int64("team_id", team.ID), zap.Int64("student_id", id))
			return NewServiceError(ErrorCodeStudentInActiveTeam, "member already in an active team of this course")
		}
	}

	active := true
	if _, err = t.teams.Patch(ctx, &repository.TeamPatch{ID: team.ID, Active: &active}); err != nil {
		l.Error("failed to activate team", zap.Int64("team_id", team.ID), zap.Error(err))
		return NewServiceError(ErrorCodeUnspecified, "failed to activate team")
	}

	// Snapshot the sibling list before mutating any of them.
	siblings, err := t.teams.ListInactiveSiblings(ctx, team.CourseID, team.ID)
	if err != nil {
		l.Error("failed to list sibling proposals", zap.Int64("team_id", team.ID), zap.Error(err))
		return NewServiceError(ErrorCodeUnspecified, "failed to list sibling proposals")
	}
	disabled := true
	for _, sibling := range siblings {
		if _, err = t.teams.Patch(ctx, &repository.TeamPatch{ID: sibling.ID, Disabled: &disabled}); err != nil {
			l.Error("failed to disable sibling proposal", zap.Int64("team_id", sibling.ID), zap.Error(err))
			return NewServiceError(ErrorCodeUnspecified, "failed to disable sibling proposal")
		}
	}

	if err = t.tokens.DeleteByTeam(ctx, team.ID); err != nil {
		l.Error("failed to delete team tokens", zap.Int64("team_id", team.ID), zap.Error(err))
		return NewServiceError(ErrorCodeUnspecified, "failed to delete team tokens")
	}

	l.Info("team activated",
		zap.Int64("team_id", team.ID),
		zap.String("course_id", team.CourseID),
		zap.Int("disabled_siblings", len(siblings)))

	return nil
}

// CleanupExpiredTeams deletes dead proposals (inactive and disabled):
// members are detached and residual tokens removed, one transaction per
// team. Empty courseID sweeps every course. Returns the number of teams
// removed.
func (t *TeamService) CleanupExpiredTeams(ctx context.Context, courseID string) (int, *Error) {
	l := logger.FromContext(ctx)

	teams, err := t.teams.ListInactiveDisabled(ctx, courseID)
	if err != nil {
		l.Error("failed to list disabled teams", zap.String("course_id", courseID), zap.Error(err))
		return 0, NewServiceError(ErrorCodeUnspecified, "failed to list disabled teams")
	}

	removed := 0
	for _, team := range teams {
		teamID := team.ID
		err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
			if err := t.teams.RemoveMembers(txCtx, teamID); err != nil {
				return NewServiceError(ErrorCodeUnspecified, "failed to detach team members")
			}
			if err := t.tokens.DeleteByTeam(txCtx, teamID); err != nil {
				return NewServiceError(ErrorCodeUnspecified, "failed to delete team tokens")
			}
			if err := t.teams.Delete(txCtx, teamID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					// Already removed by a concurrent sweep.
					return nil
				}
				return NewServiceError(ErrorCodeUnspecified, "failed to delete team")
			}
			removed++
			return nil
		})
		if err != nil {
			l.Error("cleanup transaction failed", zap.Int64("team_id", teamID), zap.Error(err))
			var res *Error
			if errors.As(err, &res) {
				return removed, res
			}
			return removed, NewServiceError(ErrorCodeUnspecified, "failed to cleanup teams")
		}
	}

	l.Info("cleanup completed", zap.String("course_id", courseID), zap.Int("removed", removed))

	return removed, nil
}

// GetTeam returns the team with per-member proposal status.
func (t *TeamService) GetTeam(ctx context.Context, teamID int64) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("getting team", zap.Int64("team_id", teamID))

	team, err := t.teams.Get(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("team not found", zap.Int64("team_id", teamID))
		return nil, NewServiceError(ErrorCodeTeamNotFound, "team not found")
	}
	if err != nil {
		l.Error("failed to get team", zap.Int64("team_id", teamID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get team")
	}

	return t.buildTeamView(ctx, team)
}

// GetMembers returns the plain member list of a team.
func (t *TeamService) GetMembers(ctx context.Context, teamID int64) ([]*model.Student, *Error) {
	l := logger.FromContext(ctx)

	if _, err := t.teams.Get(ctx, teamID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(ErrorCodeTeamNotFound, "team not found")
		}
		l.Error("failed to get team", zap.Int64("team_id", teamID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get team")
	}

	members, err := t.teams.GetMembers(ctx, teamID)
	if err != nil {
		l.Error("failed to get team members", zap.Int64("team_id", teamID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get team members")
	}

	students := make([]*model.Student, 0, len(members))
	for _, member := range members {
		students = append(students, &model.Student{
			ID:      member.ID,
			Name:    member.Name,
			Surname: member.Surname,
			Email:   member.Email,
		})
	}
	return students, nil
}

// GetTeamsForStudent lists the student's teams in a course, enriched
// with each member's confirmation state for pending proposals. Finding
// more than one active team is surfaced as an error, not swallowed.
func (t *TeamService) GetTeamsForStudent(ctx context.Context, studentID int64, courseID string) ([]*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("getting teams for student", zap.Int64("student_id", studentID), zap.String("course_id", courseID))

	if _, err := t.students.Get(ctx, studentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(ErrorCodeStudentNotFound, "student not found")
		}
		l.Error("failed to get student", zap.Int64("student_id", studentID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get student")
	}
	if _, err := t.courses.Get(ctx, courseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(ErrorCodeCourseNotFound, "course not found")
		}
		l.Error("failed to get course", zap.String("course_id", courseID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get course")
	}

	teams, err := t.teams.GetTeamsForStudent(ctx, studentID, courseID)
	if err != nil {
		l.Error("failed to get teams for student", zap.Int64("student_id", studentID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get teams for student")
	}

	views := make([]*model.Team, 0, len(teams))
	activeCount := 0
	for _, team := range teams {
		if team.Active && len(teams) > 1 {
			l.Warn("student still has sibling proposals next to an active team",
				zap.Int64("student_id", studentID), zap.Int64("team_id", team.ID))
		}
		if team.Active {
			activeCount++
		}
		view, serr := t.buildTeamView(ctx, team)
		if serr != nil {
			return nil, serr
		}
		views = append(views, view)
	}

	if activeCount > 1 {
		l.Error("student in multiple active teams for one course",
			zap.Int64("student_id", studentID), zap.String("course_id", courseID))
		return nil, NewServiceError(ErrorCodeInvariantViolation, "student belongs to multiple active teams in this course")
	}

	return views, nil
}

func (t *TeamService) buildTeamView(ctx context.Context, team *repository.Team) (*model.Team, *Error) {
	l := logger.FromContext(ctx)

	if team.Active && team.Disabled {
		l.Error("team is both active and disabled", zap.Int64("team_id", team.ID))
		return nil, NewServiceError(ErrorCodeInvariantViolation, "team is both active and disabled")
	}

	members, err := t.teams.GetMembers(ctx, team.ID)
	if err != nil {
		l.Error("failed to get team members", zap.Int64("team_id", team.ID), zap.Error(err))
		return nil, NewServiceError(ErrorCodeUnspecified, "failed to get team members")
	}

	memberViews := make([]*model.TeamMember, 0, len(members))
	for _, member := range members {
		view := &model.TeamMember{
			StudentID: member.ID,
			Name:      member.Name,
			Surname:   member.Surname,
		}
		if !team.Active {
			tokens, err := t.tokens.GetByStudentAndTeam(ctx, member.ID, team.ID)
			if err != nil {
				l.Error("failed to get member token", zap.Int64("student_id", member.ID), zap.Error(err))
				return nil, NewServiceError(ErrorCodeUnspecified, "failed to get member token")
			}
			switch {
			case len(tokens) == 0:
				// Report the member as unresolved instead of failing the
				// whole query.
				l.Warn("no token for member of inactive team",
					zap.Int64("student_id", member.ID), zap.Int64("team_id", team.ID))
			case len(tokens) > 1:
				l.Error("multiple tokens for member of one team",
					zap.Int64("student_id", member.ID), zap.Int64("team_id", team.ID))
				return nil, NewServiceError(ErrorCodeInvariantViolation, "multiple tokens for the same team")
			default:
				token := tokens[0]
				accepted := token.Confirmed
				rejected := token.Rejected
				view.ProposalAccepted = &accepted
				view.ProposalRejected = &rejected
				view.URLConfirm = t.confirmURL(token.ID)
				view.URLReject = t.rejectURL(token.ID)
			}
		}
		memberViews = append(memberViews, view)
	}

	return &model.Team{
		ID:       team.ID,
		Name:     team.Name,
		CourseID: team.CourseID,
		Active:   team.Active,
		Disabled: team.Disabled,
		Members:  memberViews,
	}, nil
}

func (t *TeamService) confirmURL(tokenID string) string {
	return t.baseURL + "/team/confirm/" + tokenID
}

func (t *TeamService) rejectURL(tokenID string) string {
	return t.baseURL + "/team/reject/" + tokenID
}

func formatIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, " ")
}

func (t *TeamService) WithCourseRepo(r repository.CourseRepository) *TeamService {
	t.courses = r
	return t
}

func (t *TeamService) WithStudentRepo(r repository.StudentRepository) *TeamService {
	t.students = r
	return t
}

func (t *TeamService) WithTeamRepo(r repository.TeamRepository) *TeamService {
	t.teams = r
	return t
}

func (t *TeamService) WithTokenRepo(r repository.TokenRepository) *TeamService {
	t.tokens = r
	return t
}

func (t *TeamService) WithNotifier(n Notifier) *TeamService {
	t.notifier = n
	return t
}

func (t *TeamService) WithBaseURL(baseURL string) *TeamService {
	t.baseURL = baseURL
	return t
}
