package p2p

import (
	"github.com/LumeraProtocol/entrynode/p2p/kademlia"
	"github.com/LumeraProtocol/entrynode/p2p/kademlia/domain"
	"github.com/LumeraProtocol/entrynode/pkg/utils"
)

// StatsSnapshot is the p2p state reported by the status service
type StatsSnapshot struct {
	Self       string           `json:"self"`
	Address    string           `json:"address"`
	PeersCount int              `json:"peers_count"`
	Peers      []*kademlia.Node `json:"peers,omitempty"`

	BanList []kademlia.BanSnapshot `json:"ban_list"`

	NetworkHandleMetrics map[string]kademlia.HandleCounters `json:"network_handle_metrics,omitempty"`
	DHTMetrics           kademlia.DHTMetricsSnapshot        `json:"dht_metrics"`

	RecentStores    []kademlia.RecentStoreEntry    `json:"recent_stores,omitempty"`
	RecentRetrieves []kademlia.RecentRetrieveEntry `json:"recent_retrieves,omitempty"`

	Database DatabaseStats     `json:"database"`
	DiskInfo *utils.DiskStatus `json:"disk_info,omitempty"`
}

// DatabaseStats describes the local record store
type DatabaseStats = domain.DatabaseStats

func (s *StatsSnapshot) clone() *StatsSnapshot {
	if s == nil {
		return &StatsSnapshot{}
	}
	out := *s
	out.Peers = append([]*kademlia.Node(nil), s.Peers...)
	out.BanList = append([]kademlia.BanSnapshot(nil), s.BanList...)
	out.RecentStores = append([]kademlia.RecentStoreEntry(nil), s.RecentStores...)
	out.RecentRetrieves = append([]kademlia.RecentRetrieveEntry(nil), s.RecentRetrieves...)
	if s.NetworkHandleMetrics != nil {
		out.NetworkHandleMetrics = make(map[string]kademlia.HandleCounters, len(s.NetworkHandleMetrics))
		for k, v := range s.NetworkHandleMetrics {
			out.NetworkHandleMetrics[k] = v
		}
	}
	if s.DiskInfo != nil {
		disk := *s.DiskInfo
		out.DiskInfo = &disk
	}
	return &out
}
