package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/kbase/pkg/answer"
	"github.com/papercomputeco/kbase/pkg/knowledge"
	"github.com/papercomputeco/kbase/pkg/vector"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, knowledge.ErrNoDocuments):
		return fiber.StatusNotFound
	case errors.Is(err, knowledge.ErrInvalidCollection),
		errors.Is(err, vector.ErrEmptyInput):
		return fiber.StatusBadRequest
	case errors.Is(err, knowledge.ErrNoGenerator):
		return fiber.StatusNotImplemented
	case errors.Is(err, vector.ErrDimensionMismatch):
		return fiber.StatusConflict
	case errors.Is(err, vector.ErrEmbedding),
		errors.Is(err, vector.ErrPersistence):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, answer.ErrGeneration):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, vector.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// fail logs err and writes its status and user message.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(ErrorResponse{Error: knowledge.UserMessage(err)})
}
