package server

import (
	"context"

	"google.golang.org/grpc"

	pb "github.com/LumeraProtocol/entrynode/api"
	statussvc "github.com/LumeraProtocol/entrynode/entrynode/status"
)

// StatusServer implements the StatusService gRPC service
type StatusServer struct {
	pb.UnimplementedStatusServiceServer
	statusService *statussvc.Service
}

// NewStatusServer creates a new StatusServer
func NewStatusServer(statusService *statussvc.Service) *StatusServer {
	return &StatusServer{statusService: statusService}
}

// Desc returns the service descriptor
func (s *StatusServer) Desc() *grpc.ServiceDesc {
	return &pb.StatusService_ServiceDesc
}

// GetStatus implements StatusService.GetStatus
func (s *StatusServer) GetStatus(ctx context.Context, req *pb.StatusRequest) (*pb.StatusResponse, error) {
	return s.statusService.GetStatus(ctx, req.IncludeP2PMetrics)
}
