// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodePatternGetNotFound     Code = "pattern.get.not_found"
	CodePatternCreateConflict  Code = "pattern.create.conflict"
	CodePatternValidateInvalid Code = "pattern.validate.invalid_value"
	CodePatternStorageFailure  Code = "pattern.storage.failure"
	CodePatternEncodeFailure   Code = "pattern.encode.failure"

	CodeArchiveAppendFailure Code = "archive.append.failure"
	CodeArchiveReadFailure   Code = "archive.read.failure"

	CodeIndexPersistFailure     Code = "index.persist.failure"
	CodeIndexLoadFailure        Code = "index.load.failure"
	CodeIndexEmbedFailure       Code = "index.embed.failure"
	CodeIndexBackendUnsupported Code = "index.backend.unsupported"

	CodeEmbedInputInvalid    Code = "embed.input.invalid"
	CodeEmbedUpstreamFailure Code = "embed.upstream.failure"

	CodePersonaNotFound Code = "persona.resolve.not_found"

	CodeDomainNotFound      Code = "domain.resolve.not_found"
	CodeDomainConfigInvalid Code = "domain.config.invalid_value"

	CodeProviderNotFound        Code = "provider.registry.not_found"
	CodeProviderNoDefault       Code = "provider.routing.no_default"
	CodeProviderRequestInvalid  Code = "provider.request.invalid"
	CodeProviderUpstreamFailure Code = "provider.upstream.failure"
	CodeProviderTimeout         Code = "provider.request.timeout"

	CodeSearchUpstreamFailure Code = "websearch.upstream.failure"
	CodeSearchResponseInvalid Code = "websearch.response.invalid"

	CodeLibraryScanFailure Code = "library.scan.failure"

	CodeSecretNotFound     Code = "secret.get.not_found"
	CodeSecretStoreFailure Code = "secret.store.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodePipelineInputInvalid Code = "pipeline.input.invalid"
	CodePipelineFailure      Code = "pipeline.stage.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerInternalFailure Code = "server.internal.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldDomain(value string) Attr {
	return Field("domain", value)
}

func FieldPattern(value string) Attr {
	return Field("pattern_id", value)
}

func FieldPersona(value string) Attr {
	return Field("persona", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldStage(value string) Attr {
	return Field("stage", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
