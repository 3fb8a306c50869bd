package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/hr-extractor/internal/common"
	"github.com/joseph-ayodele/hr-extractor/internal/extractor"
)

// ControlServiceName is the gRPC service exposing batch control. Messages are well-known types
// (Empty in, Struct out) so no generated stubs are needed on either side.
const ControlServiceName = "hrextractor.v1.Control"

// ControlServer implements the batch control RPCs.
type ControlServer struct {
	svc    *extractor.Service
	logger *slog.Logger
}

func NewControlServer(svc *extractor.Service, logger *slog.Logger) *ControlServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlServer{svc: svc, logger: logger}
}

func (s *ControlServer) GetStatus(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.svc.Snapshot())
}

func (s *ControlServer) StartBatch(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.svc.Start(ctx); err != nil {
		s.logger.Warn("grpc.start_batch.rejected", "error", err)
		return nil, common.GRPCError(err)
	}
	return toStruct(s.svc.Snapshot())
}

func (s *ControlServer) CancelBatch(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"cancelled": s.svc.Cancel()})
}

func (s *ControlServer) Export(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	res, err := s.svc.Export(ctx)
	if err != nil {
		return nil, common.GRPCError(err)
	}
	return structpb.NewStruct(map[string]any{"location": res.Location, "rows": res.Rows, "bytes": res.Bytes})
}

func toStruct(v any) (*structpb.Struct, error) {
	bs, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(bs, &m); err != nil {
		return nil, common.InternalErrorf("decode: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("struct: %v", err)
	}
	return out, nil
}

type controlService interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StartBatch(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	CancelBatch(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Export(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(controlService, context.Context, *emptypb.Empty) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(controlService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ControlServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(controlService), ctx, req.(*emptypb.Empty))
			})
		},
	}
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ControlServiceName,
	HandlerType: (*controlService)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetStatus", controlService.GetStatus),
		unaryHandler("StartBatch", controlService.StartBatch),
		unaryHandler("CancelBatch", controlService.CancelBatch),
		unaryHandler("Export", controlService.Export),
	},
	Metadata: "hrextractor/v1/control",
}

// NewGRPCServer registers health, reflection and the control service.
// The returned health server lets the caller flip serving status on shutdown.
func NewGRPCServer(svc *extractor.Service, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ControlServiceName, healthpb.HealthCheckResponse_SERVING)

	gs.RegisterService(&controlServiceDesc, NewControlServer(svc, logger))
	// Reflection for grpcurl
	reflection.Register(gs)
	return gs, hs
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("grpc.request", "method", info.FullMethod, "error", err)
		} else {
			logger.Debug("grpc.request", "method", info.FullMethod)
		}
		return resp, err
	}
}

// InvokeControl calls one control method on conn; used by cmd/healthcheck.
func InvokeControl(ctx context.Context, conn grpc.ClientConnInterface, method string) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+ControlServiceName+"/"+method, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}
