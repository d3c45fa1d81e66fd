package grpc

import (
	"context"
	"crypto/subtle"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// SharedSecretMetadataKey carries the shared secret on every call.
const SharedSecretMetadataKey = "x-intercept-shared-secret"

// ServerOptions returns the interceptors enforcing the shared secret. An empty secret
// leaves the service open.
func ServerOptions(secret string) []grpc.ServerOption {
	normalized := strings.TrimSpace(secret)
	if normalized == "" {
		return nil
	}
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			if err := authorize(ctx, normalized); err != nil {
				return nil, err
			}
			return handler(ctx, req)
		}),
		grpc.ChainStreamInterceptor(func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
			if err := authorize(ss.Context(), normalized); err != nil {
				return err
			}
			return handler(srv, ss)
		}),
	}
}

func authorize(ctx context.Context, secret string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	candidate := extractSharedSecret(md)
	if candidate == "" {
		return status.Error(codes.Unauthenticated, "missing shared secret")
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid shared secret")
	}
	return nil
}

// extractSharedSecret accepts either the dedicated header or a bearer token.
func extractSharedSecret(md metadata.MD) string {
	for _, value := range md.Get(SharedSecretMetadataKey) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	for _, value := range md.Get("authorization") {
		if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
			if token := strings.TrimSpace(value[7:]); token != "" {
				return token
			}
		}
	}
	return ""
}
