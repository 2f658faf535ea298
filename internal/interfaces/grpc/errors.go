package grpc

import (
	"context"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

var httpToGRPC = map[int]codes.Code{
	http.StatusBadRequest:          codes.InvalidArgument,
	http.StatusUnprocessableEntity: codes.InvalidArgument,
	http.StatusUnauthorized:        codes.Unauthenticated,
	http.StatusForbidden:           codes.PermissionDenied,
	http.StatusNotFound:            codes.NotFound,
	http.StatusConflict:            codes.AlreadyExists,
	http.StatusTooManyRequests:     codes.ResourceExhausted,
	http.StatusRequestTimeout:      codes.Canceled,
	http.StatusGatewayTimeout:      codes.DeadlineExceeded,
	http.StatusServiceUnavailable:  codes.Unavailable,
	http.StatusNotImplemented:      codes.Unimplemented,
}

// ToStatus converts an application error into a gRPC status error.  Client
// errors keep their message prefixed with the error code; server errors are
// reported as a bare Internal.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	code := errors.GetCode(err)
	grpcCode, ok := httpToGRPC[errors.HTTPStatusForCode(code)]
	if !ok {
		return status.Error(codes.Internal, "internal server error")
	}

	msg := errors.DefaultMessageForCode(code)
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
		if appErr.Detail != "" {
			msg += ": " + appErr.Detail
		}
	}
	return status.Errorf(grpcCode, "[%s] %s", code, msg)
}
