package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/abhisek/anamnesis/internal/auth"
	"github.com/abhisek/anamnesis/internal/evaluation"
	"github.com/abhisek/anamnesis/internal/llm"
	"github.com/abhisek/anamnesis/internal/patient"
	"github.com/abhisek/anamnesis/internal/session"
	"github.com/abhisek/anamnesis/internal/users"
)

// Error codes in response bodies.
const (
	codeForbidden           = "forbidden"
	codeAlreadyFinished     = "already_finished"
	codeInvalidDifficulty   = "invalid_difficulty"
	codeEmptyMessage        = "empty_message"
	codeInvalidInput        = "invalid_input"
	codeNotFound            = "not_found"
	codeGenerationFailed    = "generation_failed"
	codeEvaluationParse     = "evaluation_unparsable"
	codeOracleUnavailable   = "oracle_unavailable"
	codeOracleBadResponse   = "oracle_bad_response"
	codeUnauthorized        = "unauthorized"
	codeUsernameTaken       = "username_taken"
	codeInvalidCredentials  = "invalid_credentials"
	codeInternal            = "internal_error"
	codeMethodNotAllowed    = "method_not_allowed"
	codeRequestTooLarge     = "request_too_large"
	codeServiceNotAvailable = "service_unavailable"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps an error to a status and code. Order matters: a
// GenerationError can wrap an oracle error.
func classify(err error) (int, string) {
	var (
		genErr   *patient.GenerationError
		parseErr *evaluation.ParseError
		invalid  *llm.ErrInvalidResponse
		maxTok   *llm.ErrMaxTokensExceeded
		httpErr  *echo.HTTPError
	)
	switch {
	case errors.Is(err, session.ErrUnauthorized):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, session.ErrAlreadyFinished):
		return http.StatusBadRequest, codeAlreadyFinished
	case errors.Is(err, session.ErrInvalidDifficulty):
		return http.StatusBadRequest, codeInvalidDifficulty
	case errors.Is(err, session.ErrEmptyMessage):
		return http.StatusBadRequest, codeEmptyMessage
	case errors.Is(err, users.ErrInvalidInput):
		return http.StatusBadRequest, codeInvalidInput
	case errors.Is(err, session.ErrNotFound), errors.Is(err, users.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, users.ErrUsernameTaken):
		return http.StatusConflict, codeUsernameTaken
	case errors.Is(err, users.ErrInvalidCredentials):
		return http.StatusUnauthorized, codeInvalidCredentials
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, codeUnauthorized
	case errors.As(err, &genErr):
		return http.StatusBadGateway, codeGenerationFailed
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, codeEvaluationParse
	case llm.IsUnavailable(err):
		return http.StatusServiceUnavailable, codeOracleUnavailable
	case errors.As(err, &invalid), errors.As(err, &maxTok):
		return http.StatusBadGateway, codeOracleBadResponse
	case errors.As(err, &httpErr):
		return httpErr.Code, httpCode(httpErr.Code)
	}
	return http.StatusInternalServerError, codeInternal
}

func httpCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return codeInvalidInput
	case http.StatusUnauthorized:
		return codeUnauthorized
	case http.StatusForbidden:
		return codeForbidden
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusMethodNotAllowed:
		return codeMethodNotAllowed
	case http.StatusRequestEntityTooLarge:
		return codeRequestTooLarge
	case http.StatusServiceUnavailable:
		return codeServiceNotAvailable
	}
	return codeInternal
}

var upstreamMessages = map[string]string{
	codeGenerationFailed:  "the patient could not be generated, try again",
	codeEvaluationParse:   "the evaluation could not be read, try again",
	codeOracleUnavailable: "the language model is unavailable, try again later",
	codeOracleBadResponse: "the language model returned an unusable reply, try again",
}

// errorHandler renders errors as ErrorBody. Internal details are never
// sent to the client.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, code := classify(err)
	msg := http.StatusText(status)
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		if m, ok := httpErr.Message.(string); ok {
			msg = m
		}
	case status < http.StatusInternalServerError:
		msg = err.Error()
	default:
		if m, ok := upstreamMessages[code]; ok {
			msg = m
		}
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, ErrorBody{Error: code, Message: msg})
	}
	if werr != nil {
		s.logger.Error().Err(werr).Msg("failed to write error response")
	}
}
