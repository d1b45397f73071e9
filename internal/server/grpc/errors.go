package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/securevault/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// mapError converts service errors into gRPC statuses. Credential failures
// always carry the same message.
func (s *GRPCServer) mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, common.ErrorUnauthorized.Error())
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, common.ErrorNotFound.Error())
	case errors.Is(err, common.ErrorConflict):
		return status.Error(codes.AlreadyExists, common.ErrorConflict.Error())
	case errors.Is(err, common.ErrorUpstream):
		s.logger.Warn(ctx, "upstream failure", "error", err.Error())
		return status.Error(codes.Unavailable, common.ErrorUpstream.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	s.logger.Error(ctx, "internal error", "error", err.Error())
	return status.Error(codes.Internal, common.ErrorInternal.Error())
}

// check validates req against its struct tags.
func (s *GRPCServer) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}
