// Package apperror defines the error kinds surfaced by HTTP handlers.
package apperror

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies an error by how it is reported to clients.
type Kind int

const (
	ServerError Kind = iota
	BadRequest
	Unauthorized
	RateLimited
	NotFound
	Conflict
	StorageUnavailable
)

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "bad_request"
	case Unauthorized:
		return "unauthorized"
	case RateLimited:
		return "rate_limited"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case StorageUnavailable:
		return "storage_unavailable"
	default:
		return "server_error"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case BadRequest:
		return fiber.StatusBadRequest
	case Unauthorized:
		return fiber.StatusUnauthorized
	case RateLimited:
		return fiber.StatusTooManyRequests
	case NotFound:
		return fiber.StatusNotFound
	case Conflict:
		return fiber.StatusConflict
	case StorageUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// Error is a classified application error.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewBadRequest(message string) *Error   { return New(BadRequest, message) }
func NewUnauthorized(message string) *Error { return New(Unauthorized, message) }
func NewNotFound(message string) *Error     { return New(NotFound, message) }
func NewConflict(message string) *Error     { return New(Conflict, message) }

// NewRateLimited reports a blocked caller and how long it must wait.
func NewRateLimited(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: RateLimited, Message: message, RetryAfter: retryAfter}
}

// NewStorageUnavailable wraps a backing store failure.
func NewStorageUnavailable(err error) *Error {
	return Wrap(StorageUnavailable, "Storage unavailable", err)
}

// KindOf returns the kind of err, or ServerError when err is not classified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ServerError
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// RetryAfterSeconds rounds a duration up to whole seconds, minimum 1.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Handler returns a fiber error handler rendering {"error": message}.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *Error
		if errors.As(err, &appErr) {
			if appErr.Kind == RateLimited {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(RetryAfterSeconds(appErr.RetryAfter)))
			}
			if appErr.Kind == ServerError || appErr.Kind == StorageUnavailable {
				logger.Error("Request failed",
					slog.String("path", c.Path()),
					slog.String("kind", appErr.Kind.String()),
					slog.Any("error", err))
			}
			return c.Status(appErr.Kind.Status()).JSON(fiber.Map{"error": appErr.Message})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
		}

		logger.Error("Unhandled request error", slog.String("path", c.Path()), slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Server error"})
	}
}
