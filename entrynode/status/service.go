// Package status assembles the node status report.
package status

import (
	"context"
	"sort"
	"time"

	pb "github.com/LumeraProtocol/entrynode/api"
	"github.com/LumeraProtocol/entrynode/entrynode/dispatch"
	"github.com/LumeraProtocol/entrynode/p2p"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
	"github.com/LumeraProtocol/entrynode/pkg/task"
)

// Version is the node version, set by the main application
var Version = "dev"

const statusSubsystemTimeout = 8 * time.Second

// DispatcherStats reports dispatcher counters
type DispatcherStats interface {
	Stats() dispatch.Stats
}

// BroadcasterStats reports broadcaster counters
type BroadcasterStats interface {
	Stats() dispatch.BroadcasterStats
}

// Service provides the node status
type Service struct {
	metrics     *MetricsCollector
	startTime   time.Time
	p2pService  p2p.Client
	dispatcher  DispatcherStats
	broadcaster BroadcasterStats
	tracker     task.Tracker
}

// NewService creates a status service; any dependency may be nil
func NewService(p2pService p2p.Client, dispatcher DispatcherStats, broadcaster BroadcasterStats, tracker task.Tracker) *Service {
	return &Service{
		metrics:     NewMetricsCollector(),
		startTime:   time.Now(),
		p2pService:  p2pService,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		tracker:     tracker,
	}
}

// GetStatus returns the current node status, with P2P metrics when asked for
func (s *Service) GetStatus(ctx context.Context, includeP2PMetrics bool) (*pb.StatusResponse, error) {
	fields := logtrace.Fields{logtrace.FieldMethod: "GetStatus", logtrace.FieldModule: "StatusService"}
	logtrace.Debug(ctx, "status request received", fields)

	resp := &pb.StatusResponse{
		Version:       Version,
		UptimeSeconds: uint64(time.Since(s.startTime).Seconds()),
		RunningTasks:  []pb.ServiceTasks{},
		Resources:     &pb.Resources{},
	}

	if cores, err := s.metrics.GetCPUCores(ctx); err == nil {
		resp.Resources.CPUCores = cores
	}
	if total, used, avail, perc, err := s.metrics.CollectMemoryMetrics(ctx); err == nil {
		resp.Resources.MemoryTotalGB = float64(total) / bytesToGB
		resp.Resources.MemoryUsedGB = float64(used) / bytesToGB
		resp.Resources.MemoryAvailGB = float64(avail) / bytesToGB
		resp.Resources.MemoryUsedPct = perc
	}

	if s.tracker != nil {
		for svc, ids := range s.tracker.Snapshot() {
			resp.RunningTasks = append(resp.RunningTasks, pb.ServiceTasks{
				ServiceName: svc,
				TaskIDs:     ids,
				TaskCount:   int32(len(ids)),
			})
		}
		sort.Slice(resp.RunningTasks, func(i, j int) bool {
			return resp.RunningTasks[i].ServiceName < resp.RunningTasks[j].ServiceName
		})
	}

	if s.dispatcher != nil {
		ds := s.dispatcher.Stats()
		resp.Dispatcher.QueueDepth = ds.QueueDepth
		resp.Dispatcher.QueueCapacity = ds.QueueCapacity
		resp.Dispatcher.Processed = ds.Processed
		resp.Dispatcher.Rejected = ds.Rejected
		resp.Dispatcher.Unauthenticated = ds.Unauthenticated
		resp.Dispatcher.Failed = ds.Failed
	}
	if s.broadcaster != nil {
		bs := s.broadcaster.Stats()
		resp.Dispatcher.Subscribers = bs.Subscribers
		resp.Dispatcher.Published = bs.Published
		resp.Dispatcher.Dropped = bs.Dropped
	}

	if !includeP2PMetrics {
		return resp, nil
	}
	if s.p2pService == nil {
		return resp, errors.New("p2p service is nil")
	}

	p2pCtx, cancel := context.WithTimeout(ctx, statusSubsystemTimeout)
	defer cancel()
	snap, err := s.p2pService.Stats(p2pCtx)
	if err != nil {
		fields[logtrace.FieldError] = err.Error()
		logtrace.Error(ctx, "failed to get p2p stats snapshot", fields)
		return resp, err
	}
	resp.P2PMetrics = toP2PMetrics(snap)
	return resp, nil
}

func toP2PMetrics(snap *p2p.StatsSnapshot) *pb.P2PMetrics {
	pm := &pb.P2PMetrics{
		NodeID:       snap.Self,
		Address:      snap.Address,
		PeersCount:   snap.PeersCount,
		RecordsCount: snap.Database.RecordsCount,
		DBSizeMB:     snap.Database.SizeMB,
		BanList:      []pb.BanEntry{},
		LocalHits:    snap.DHTMetrics.LocalHits,
		NetworkHits:  snap.DHTMetrics.NetworkHits,
		Misses:       snap.DHTMetrics.Misses,
	}
	for _, peer := range snap.Peers {
		pm.Peers = append(pm.Peers, peer.String()+"@"+peer.Address())
	}
	for _, b := range snap.BanList {
		pm.BanList = append(pm.BanList, pb.BanEntry{ID: b.ID, IP: b.IP, Port: uint32(b.Port), Count: int32(b.Count), AgeSeconds: b.AgeSecs})
	}
	if n := len(snap.DHTMetrics.StoreSuccessRecent); n > 0 {
		var sum float64
		for _, p := range snap.DHTMetrics.StoreSuccessRecent {
			sum += p.SuccessRate
		}
		pm.StoreSuccessRate = sum / float64(n)
	}
	for _, r := range snap.RecentStores {
		pm.RecentStores = append(pm.RecentStores, pb.RecentOp{TimeUnix: r.TimeUnix, Peer: r.SenderID, Key: r.Key, OK: r.OK, DurationMS: r.DurationMS, Error: r.Error})
	}
	for _, r := range snap.RecentRetrieves {
		pm.RecentRetrieves = append(pm.RecentRetrieves, pb.RecentOp{TimeUnix: r.TimeUnix, Peer: r.SenderID, Key: r.Key, OK: r.Found, DurationMS: r.DurationMS, Error: r.Error})
	}
	if snap.DiskInfo != nil {
		pm.Disk = &pb.DiskInfo{AllMB: snap.DiskInfo.All, UsedMB: snap.DiskInfo.Used, FreeMB: snap.DiskInfo.Free}
	}
	return pm
}
