/*
2026 © Postgres.ai
*/

// Package interpreter runs instruction set trees against a terminal session.
package interpreter

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"gitlab.com/postgres-ai/database-lab/v2/pkg/log"

	"gitlab.com/postgres-ai/hostlink/pkg/emulator"
	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
	"gitlab.com/postgres-ai/hostlink/pkg/models"
	"gitlab.com/postgres-ai/hostlink/pkg/navigation"
	"gitlab.com/postgres-ai/hostlink/pkg/screen"
)

// Screen protocol failures.
var (
	// ErrScreenError is returned when an error identification mark matches.
	ErrScreenError = errors.New("screen indicates error")

	// ErrMarkNotFound is returned when a mandatory identification mark does not match in time.
	ErrMarkNotFound = errors.New("screen identification mark not found")

	// ErrCaptureMissing is returned when a mandatory capture yields nothing.
	ErrCaptureMissing = errors.New("mandatory capture not found")

	// ErrKeyTimeout is returned when the host does not answer a key in time.
	ErrKeyTimeout = navigation.ErrKeyTimeout

	// ErrSuccessCondition is returned when success condition marks do not match.
	ErrSuccessCondition = errors.New("success condition failed")
)

// Interpreter runs instruction sets.
type Interpreter struct {
	engine    *screen.Engine
	navigator *navigation.Executor
}

// New creates an interpreter.
func New(engine *screen.Engine, navigator *navigation.Executor) *Interpreter {
	return &Interpreter{engine: engine, navigator: navigator}
}

// Run executes the actions in order on the session guarded by conn.
func (i *Interpreter) Run(ctx context.Context, conn *emulator.Conn, actions []instruction.ProcessAction, rc *RunContext) error {
	return i.runSequence(ctx, conn, nil, actions, rc)
}

func (i *Interpreter) runSequence(ctx context.Context, conn *emulator.Conn, parent *instruction.ProcessAction,
	actions []instruction.ProcessAction, rc *RunContext) error {
	for idx := range actions {
		action := &actions[idx]

		err := i.runAction(ctx, conn, action, rc)
		if err == nil {
			continue
		}

		if ctx.Err() != nil || isCancellation(err) {
			return err
		}

		if !action.IsCore() || (parent != nil && !parent.IsCore()) {
			log.Err(fmt.Sprintf("Request %s: non-core action %q failed: %v", rc.RequestID, action.Identifier, err))
			continue
		}

		return err
	}

	return nil
}

func (i *Interpreter) runAction(ctx context.Context, conn *emulator.Conn, action *instruction.ProcessAction, rc *RunContext) error {
	if guard := action.Guard(); guard != nil && !guard.Eval(rc.Lookup) {
		log.Dbg(fmt.Sprintf("Request %s: action %q skipped by %q", rc.RequestID, action.Identifier, guard))
		return nil
	}

	log.Dbg(fmt.Sprintf("Request %s: running action %q", rc.RequestID, action.Identifier))

	if err := conn.Do(ctx, func(scope *emulator.Scope) error {
		return i.runSteps(ctx, scope.Terminal(), action, rc)
	}); err != nil {
		return errors.Wrapf(err, "action %q", action.Identifier)
	}

	return i.runSequence(ctx, conn, action, action.Children, rc)
}

func (i *Interpreter) runSteps(ctx context.Context, term emulator.Terminal, action *instruction.ProcessAction, rc *RunContext) error {
	if action.Navigation != nil {
		before := screen.Take(term.Screen())

		if err := i.navigator.Navigate(ctx, term, action.Navigation); err != nil {
			return err
		}

		rc.record(models.ActionNavigate, action.Identifier+":"+action.Navigation.Key)

		if diff := screen.Diff(before, screen.Take(term.Screen())); diff != "" {
			log.Dbg(fmt.Sprintf("Request %s: screen changed after %s:\n%s", rc.RequestID, action.Navigation.Key, diff))
		}
	}

	if mark, ok := screen.MatchAny(term.Screen(), action.ErrorMarks); ok {
		return errors.Wrapf(ErrScreenError, "error mark %q matched", mark.Identifier)
	}

	if err := i.checkMarks(ctx, term, action.Marks); err != nil {
		return err
	}

	if err := i.checkMarks(ctx, term, action.PostNavigationMarks); err != nil {
		return errors.Wrap(err, "post-navigation check")
	}

	for idx := range action.Inputs {
		if err := i.writeInput(term, action, &action.Inputs[idx], rc); err != nil {
			return err
		}
	}

	if err := i.capture(term, action, rc); err != nil {
		return err
	}

	if action.Success != nil {
		return i.checkSuccess(ctx, term, action.Success, rc)
	}

	return nil
}

func (i *Interpreter) checkMarks(ctx context.Context, term emulator.Terminal, marks []instruction.ScreenIdentificationMark) error {
	for idx := range marks {
		mark := &marks[idx]

		matched, err := i.engine.Wait(ctx, term, mark)
		if err != nil {
			return err
		}

		if matched {
			continue
		}

		if mark.ExceptIfNotFound {
			log.Dbg(fmt.Sprintf("Optional mark %q not found", mark.Identifier))
			continue
		}

		return errors.Wrapf(ErrMarkNotFound, "mark %q in %s", mark.Identifier, mark.Area)
	}

	return nil
}

func (i *Interpreter) writeInput(term emulator.Terminal, action *instruction.ProcessAction, input *instruction.ScreenInput,
	rc *RunContext) error {
	value, err := instruction.Substitute(input.Value, rc.Lookup)
	if err != nil {
		return errors.Wrapf(err, "input %q", input.Identifier)
	}

	rc.markUsed(instruction.Placeholders(input.Value))

	if input.Position.Field != nil {
		if err := term.SetField(*input.Position.Field, value); err != nil {
			return errors.Wrapf(err, "failed to write input %q", input.Identifier)
		}
	} else {
		if err := term.SetCursor(input.Position.Row, input.Position.Col); err != nil {
			return errors.Wrapf(err, "failed to position input %q", input.Identifier)
		}

		if err := term.SendText(value); err != nil {
			return errors.Wrapf(err, "failed to write input %q", input.Identifier)
		}
	}

	rc.record(models.ActionInput, action.Identifier+":"+input.Identifier)

	return nil
}

func (i *Interpreter) capture(term emulator.Terminal, action *instruction.ProcessAction, rc *RunContext) error {
	if action.NoData {
		log.Dbg(fmt.Sprintf("Request %s: no data screen recognized by %q", rc.RequestID, action.Identifier))
		rc.flagNoData()

		return nil
	}

	if len(action.Captures) == 0 {
		return nil
	}

	scr := term.Screen()

	for idx := range action.Captures {
		point := &action.Captures[idx]

		value, ok := screen.Capture(scr, point)
		if !ok {
			if point.ExceptIfNotFound {
				continue
			}

			return errors.Wrapf(ErrCaptureMissing, "capture %q in %s", point.Identifier, point.Area)
		}

		rc.capture(point.Identifier, value)
		rc.record(models.ActionCapture, fmt.Sprintf("%s:%s=%s", action.Identifier, point.Identifier, value))
	}

	rc.snapshot(screen.Take(scr))

	return nil
}

func (i *Interpreter) checkSuccess(ctx context.Context, term emulator.Terminal, cond *instruction.SuccessCondition, rc *RunContext) error {
	err := i.checkMarks(ctx, term, cond.Marks)
	if err == nil || isCancellation(err) {
		return err
	}

	escalationCtx := context.WithoutCancel(ctx)

	if cond.LockCredentialOnFailure && rc.Escalator != nil {
		if revokeErr := rc.Escalator.RevokeCredential(escalationCtx); revokeErr != nil {
			log.Err(errors.Wrap(revokeErr, "failed to revoke credential"))
		}
	}

	if cond.ResetSessionOnFailure && rc.Escalator != nil {
		if resetErr := rc.Escalator.ResetSession(escalationCtx); resetErr != nil {
			log.Err(errors.Wrap(resetErr, "failed to reset session"))
		}
	}

	return &successConditionError{cause: err}
}

// successConditionError matches ErrSuccessCondition and keeps the failed check as its cause.
type successConditionError struct {
	cause error
}

func (e *successConditionError) Error() string {
	return ErrSuccessCondition.Error() + ": " + e.cause.Error()
}

func (e *successConditionError) Is(target error) bool {
	return target == ErrSuccessCondition
}

func (e *successConditionError) Unwrap() error {
	return e.cause
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
