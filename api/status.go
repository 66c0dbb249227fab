package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// StatusServiceName is the fully qualified status service name
	StatusServiceName = "entrynode.api.StatusService"

	StatusService_GetStatus_FullMethodName = "/" + StatusServiceName + "/GetStatus"
)

// StatusRequest asks for node status
type StatusRequest struct {
	IncludeP2PMetrics bool `json:"include_p2p_metrics"`
}

// StatusResponse describes the running node
type StatusResponse struct {
	Version       string           `json:"version"`
	UptimeSeconds uint64           `json:"uptime_seconds"`
	Resources     *Resources       `json:"resources,omitempty"`
	RunningTasks  []ServiceTasks   `json:"running_tasks"`
	Dispatcher    DispatcherStatus `json:"dispatcher"`
	P2PMetrics    *P2PMetrics      `json:"p2p_metrics,omitempty"`
}

// Resources reports host resource usage
type Resources struct {
	CPUCores      int32   `json:"cpu_cores"`
	MemoryTotalGB float64 `json:"memory_total_gb"`
	MemoryUsedGB  float64 `json:"memory_used_gb"`
	MemoryAvailGB float64 `json:"memory_available_gb"`
	MemoryUsedPct float64 `json:"memory_used_percent"`
}

// ServiceTasks lists in-flight requests of one service
type ServiceTasks struct {
	ServiceName string   `json:"service_name"`
	TaskIDs     []string `json:"task_ids"`
	TaskCount   int32    `json:"task_count"`
}

// DispatcherStatus reports request queue and broadcast counters
type DispatcherStatus struct {
	QueueDepth      int    `json:"queue_depth"`
	QueueCapacity   int    `json:"queue_capacity"`
	Processed       uint64 `json:"processed"`
	Rejected        uint64 `json:"rejected"`
	Unauthenticated uint64 `json:"unauthenticated"`
	Failed          uint64 `json:"failed"`
	Subscribers     int    `json:"subscribers"`
	Published       uint64 `json:"published"`
	Dropped         uint64 `json:"dropped"`
}

// P2PMetrics reports the DHT node
type P2PMetrics struct {
	NodeID       string     `json:"node_id"`
	Address      string     `json:"address"`
	PeersCount   int        `json:"peers_count"`
	Peers        []string   `json:"peers,omitempty"`
	RecordsCount int        `json:"records_count"`
	DBSizeMB     float64    `json:"db_size_mb"`
	BanList      []BanEntry `json:"ban_list"`
	LocalHits    int64      `json:"local_hits"`
	NetworkHits  int64      `json:"network_hits"`
	Misses       int64      `json:"misses"`
	// StoreSuccessRate is the mean peer acceptance rate of recent writes, in percent
	StoreSuccessRate float64   `json:"store_success_rate"`
	Disk             *DiskInfo `json:"disk,omitempty"`

	RecentStores    []RecentOp `json:"recent_stores,omitempty"`
	RecentRetrieves []RecentOp `json:"recent_retrieves,omitempty"`
}

// RecentOp is one peer request handled by the local DHT node
type RecentOp struct {
	TimeUnix   int64  `json:"time_unix"`
	Peer       string `json:"peer"`
	Key        string `json:"key"`
	OK         bool   `json:"ok"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// BanEntry is one peer on the ban list
type BanEntry struct {
	ID         string `json:"id"`
	IP         string `json:"ip"`
	Port       uint32 `json:"port"`
	Count      int32  `json:"count"`
	AgeSeconds int64  `json:"age_seconds"`
}

// DiskInfo reports the file system holding the record store, in megabytes
type DiskInfo struct {
	AllMB  float64 `json:"all_mb"`
	UsedMB float64 `json:"used_mb"`
	FreeMB float64 `json:"free_mb"`
}

// StatusServiceClient is the client API for StatusService
type StatusServiceClient interface {
	GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error)
}

type statusServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewStatusServiceClient returns a StatusService client over cc
func NewStatusServiceClient(cc grpc.ClientConnInterface) StatusServiceClient {
	return &statusServiceClient{cc}
}

func (c *statusServiceClient) GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, StatusService_GetStatus_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusServiceServer is the server API for StatusService
type StatusServiceServer interface {
	GetStatus(context.Context, *StatusRequest) (*StatusResponse, error)
}

// UnimplementedStatusServiceServer answers every method with Unimplemented
type UnimplementedStatusServiceServer struct{}

func (UnimplementedStatusServiceServer) GetStatus(context.Context, *StatusRequest) (*StatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetStatus not implemented")
}

// RegisterStatusServiceServer registers srv on s
func RegisterStatusServiceServer(s grpc.ServiceRegistrar, srv StatusServiceServer) {
	s.RegisterService(&StatusService_ServiceDesc, srv)
}

func _StatusService_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StatusService_GetStatus_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatusServiceServer).GetStatus(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// StatusService_ServiceDesc is the grpc.ServiceDesc for StatusService
var StatusService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: StatusServiceName,
	HandlerType: (*StatusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: _StatusService_GetStatus_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "entrynode/api/status",
}
