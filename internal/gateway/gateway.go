// Package gateway is the single entry point for administrative operations.
//
// Every operation follows the same path: resolve the uuid within the
// caller's team, authorize the operation's ability, validate engine inputs,
// dispatch to the engine service resolved for the handle and wrap the outcome
// in an envelope. Reads answer {available, ...}; writes answer
// {success, message?, error?}. Errors never leave this package: they become
// a Result with the matching Outcome.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"DBAdminDO/internal/authz"
	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/logparser"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"
	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/pkg/logger"
	"DBAdminDO/internal/restart"
	"DBAdminDO/internal/transport"
)

// Resolver finds a database handle within a team
type Resolver interface {
	FindByUUID(ctx context.Context, uuid string, teamID int64) (*models.DatabaseHandle, error)
}

// Authorizer checks that a caller holds an ability on a handle
type Authorizer interface {
	Authorize(caller *models.Caller, ability authz.Ability, handle *models.DatabaseHandle) error
}

// Services resolves the engine service for an engine type
type Services interface {
	For(engine models.EngineType) (engines.Service, bool)
}

// CredentialStore persists regenerated admin passwords
type CredentialStore interface {
	UpdatePassword(ctx context.Context, handle *models.DatabaseHandle, password string) error
}

// Deps are the collaborators a Gateway dispatches to
type Deps struct {
	Resolver    Resolver
	Authorizer  Authorizer
	Services    Services
	Runner      transport.Transport // Engine-independent commands such as docker logs
	Credentials CredentialStore
	Restarter   restart.Requester
}

// Gateway dispatches administrative operations
type Gateway struct {
	deps   Deps
	limits Limits
	parser *logparser.Parser
}

// New creates a Gateway bounded by cfg
func New(deps Deps, cfg *config.GatewayConfig) *Gateway {
	return &Gateway{
		deps:   deps,
		limits: LimitsFrom(cfg),
		parser: logparser.New(),
	}
}

// Limits returns the request bounds the gateway enforces
func (g *Gateway) Limits() Limits {
	return g.limits
}

// Request identifies the caller and the database an operation targets
type Request struct {
	Caller *models.Caller
	UUID   string
}

// target is a resolved, authorized and dispatchable database
type target struct {
	handle  *models.DatabaseHandle
	server  *models.Server
	service engines.Service
}

// engine names the handle's engine type for logs
func (t *target) engine() string {
	return string(t.handle.Engine)
}

// capability returns the target's service as the optional interface T
func capability[T any](t *target) (T, bool) {
	c, ok := any(t.service).(T)
	return c, ok
}

// writeAbilities lists what each mutating operation requires. Operations not
// listed are reads.
var writeAbilities = map[string]authz.Ability{
	"query":               authz.AbilityManage,
	"create_row":          authz.AbilityUpdate,
	"update_row":          authz.AbilityUpdate,
	"delete_row":          authz.AbilityManage,
	"create_user":         authz.AbilityManage,
	"delete_user":         authz.AbilityManage,
	"kill_connection":     authz.AbilityManage,
	"set_extension":       authz.AbilityUpdate,
	"maintenance":         authz.AbilityUpdate,
	"create_index":        authz.AbilityUpdate,
	"set_key":             authz.AbilityUpdate,
	"delete_key":          authz.AbilityManage,
	"flush":               authz.AbilityManage,
	"regenerate_password": authz.AbilityManage,
}

func abilityFor(op string) authz.Ability {
	if ability, ok := writeAbilities[op]; ok {
		return ability
	}
	return authz.AbilityRead
}

// admit resolves req and authorizes the caller for op
func (g *Gateway) admit(ctx context.Context, req Request, op string) (*models.DatabaseHandle, error) {
	if req.Caller == nil {
		return nil, apperrors.ErrForbidden
	}

	handle, err := g.deps.Resolver.FindByUUID(ctx, req.UUID, req.Caller.TeamID)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return nil, apperrors.ErrNotFound
	}

	if err := g.deps.Authorizer.Authorize(req.Caller, abilityFor(op), handle); err != nil {
		return nil, err
	}
	return handle, nil
}

// Admit runs only the resolve and authorize steps of op. Callers that reject
// malformed input before invoking an operation use it first, so a database
// the caller cannot see or touch answers the same whatever the input held.
// On failure the classified outcome and message are returned with false.
func (g *Gateway) Admit(ctx context.Context, req Request, op string) (Outcome, string, bool) {
	if _, err := g.admit(ctx, req, op); err != nil {
		outcome, message := g.classify(req, nil, op, "Request failed", err)
		return outcome, message, false
	}
	return OutcomeOK, "", true
}

// prepare resolves, authorizes and gates a request. A nil target comes with
// the error describing why the operation cannot proceed.
func (g *Gateway) prepare(ctx context.Context, req Request, op string) (*target, error) {
	handle, err := g.admit(ctx, req, op)
	if err != nil {
		return nil, err
	}

	service, ok := g.deps.Services.For(handle.Engine)
	if !ok {
		return nil, unsupportedEngine(handle.Engine)
	}

	if handle.Server == nil || !handle.Server.Functional {
		return nil, apperrors.ErrServerNotFunctional
	}

	return &target{handle: handle, server: handle.Server, service: service}, nil
}

// unsupportedError carries the message of an unsupported operation
type unsupportedError struct {
	message string
}

func (e *unsupportedError) Error() string {
	return e.message
}

func (e *unsupportedError) Unwrap() error {
	return apperrors.ErrUnsupported
}

func unsupportedEngine(engine models.EngineType) error {
	return &unsupportedError{message: fmt.Sprintf("Unsupported database type: %s", engine)}
}

func unsupportedOperation(op string, t *target) error {
	return &unsupportedError{message: fmt.Sprintf("%s is not supported for %s databases", op, t.engine())}
}

// read runs a read operation and wraps it in the {available} envelope
func (g *Gateway) read(ctx context.Context, req Request, op, prefix string, fn func(t *target) (Payload, error)) Result {
	start := time.Now()

	t, err := g.prepare(ctx, req, op)
	if err == nil {
		var payload Payload
		payload, err = fn(t)
		if err == nil {
			logger.Debug("Operation completed",
				logger.Database(req.UUID, t.engine()),
				logger.String("operation", op),
				logger.Duration("took", time.Since(start)))
			return Available(payload)
		}
	}

	outcome, message := g.classify(req, t, op, prefix, err)
	return Unavailable(outcome, message)
}

// write runs a mutating operation and wraps it in the {success} envelope
func (g *Gateway) write(ctx context.Context, req Request, op, prefix string, fn func(t *target) (string, Payload, error)) Result {
	t, err := g.prepare(ctx, req, op)
	if err == nil {
		var (
			message string
			payload Payload
		)
		message, payload, err = fn(t)
		if err == nil {
			logger.Info("Operation completed",
				logger.Database(req.UUID, t.engine()),
				logger.String("operation", op),
				logger.String("user", req.Caller.Username))
			return Succeeded(message, payload)
		}
	}

	outcome, message := g.classify(req, t, op, prefix, err)
	return Failed(outcome, message)
}

// classify maps err to an Outcome and the message the caller sees
func (g *Gateway) classify(req Request, t *target, op, prefix string, err error) (Outcome, string) {
	engine := ""
	if t != nil {
		engine = t.engine()
	}

	var unsupported *unsupportedError
	switch {
	case errors.Is(err, apperrors.ErrForbidden):
		logger.Warn("Operation forbidden",
			logger.Database(req.UUID, engine),
			logger.String("operation", op),
			logger.Err(err))
		return OutcomeForbidden, "This action is unauthorized."

	case errors.As(err, &unsupported):
		return OutcomeUnsupported, unsupported.message

	case apperrors.IsValidation(err), errors.Is(err, apperrors.ErrProtectedUser):
		logger.Warn("Operation rejected",
			logger.Database(req.UUID, engine),
			logger.String("operation", op),
			logger.Err(err))
		return OutcomeInvalid, err.Error()

	case errors.Is(err, apperrors.ErrNotFound):
		if t == nil {
			return OutcomeNotFound, "Database not found"
		}
		return OutcomeNotFound, fmt.Sprintf("%s: %v", prefix, err)

	case errors.Is(err, apperrors.ErrServerNotFunctional):
		return OutcomeFailed, "Server is not functional"

	default:
		logger.Error("Operation failed",
			logger.Database(req.UUID, engine),
			logger.String("operation", op),
			logger.Err(err))
		return OutcomeFailed, fmt.Sprintf("%s: %v", prefix, err)
	}
}
