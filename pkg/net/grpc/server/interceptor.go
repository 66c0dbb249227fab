package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

// CorrelationIDHeader is the metadata key clients may set to trace a call
const CorrelationIDHeader = "x-correlation-id"

// UnaryServerInterceptor attaches a correlation id to the call context, logs the
// outcome of every call and turns handler panics into Internal errors.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		ctx = logtrace.CtxWithCorrelationID(ctx, incomingCorrelationID(ctx))
		start := time.Now()

		defer errors.Recover(func(rec error) {
			logtrace.Error(ctx, "panic in grpc handler", logtrace.Fields{
				logtrace.FieldModule:     "server",
				logtrace.FieldMethod:     info.FullMethod,
				logtrace.FieldError:      rec.Error(),
				logtrace.FieldStackTrace: errors.ErrorStack(rec),
			})
			resp, err = nil, status.Error(codes.Internal, "internal error")
		})

		resp, err = handler(ctx, req)

		fields := logtrace.Fields{
			logtrace.FieldModule: "server",
			logtrace.FieldMethod: info.FullMethod,
			logtrace.FieldStatus: status.Code(err).String(),
			"ms":                 time.Since(start).Milliseconds(),
		}
		if err != nil {
			fields[logtrace.FieldError] = err.Error()
		}
		logtrace.Debug(ctx, "grpc call", fields)
		return resp, err
	}
}

func incomingCorrelationID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(CorrelationIDHeader); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.NewString()
}
