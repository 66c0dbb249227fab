package status

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/LumeraProtocol/entrynode/entrynode/dispatch"
	"github.com/LumeraProtocol/entrynode/p2p"
	"github.com/LumeraProtocol/entrynode/p2p/kademlia"
	"github.com/LumeraProtocol/entrynode/p2p/kademlia/domain"
	"github.com/LumeraProtocol/entrynode/p2p/mocks"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/task"
	"github.com/LumeraProtocol/entrynode/pkg/utils"
)

type fixedDispatcher struct{}

func (fixedDispatcher) Stats() dispatch.Stats {
	return dispatch.Stats{QueueDepth: 2, QueueCapacity: 32, Processed: 10, Rejected: 1, Unauthenticated: 3, Failed: 4}
}

func TestGetStatusWithoutP2P(t *testing.T) {
	tracker := task.New()
	tracker.Start("api.put", "b")
	tracker.Start("api.get", "a")
	b := dispatch.NewBroadcaster(4)
	sub := b.Subscribe()
	defer sub.Close()

	svc := NewService(nil, fixedDispatcher{}, b, tracker)
	resp, err := svc.GetStatus(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, Version, resp.Version)
	require.Len(t, resp.RunningTasks, 2)
	assert.Equal(t, "api.get", resp.RunningTasks[0].ServiceName)
	assert.Equal(t, []string{"b"}, resp.RunningTasks[1].TaskIDs)
	assert.Equal(t, int32(1), resp.RunningTasks[1].TaskCount)

	assert.Equal(t, 2, resp.Dispatcher.QueueDepth)
	assert.Equal(t, uint64(3), resp.Dispatcher.Unauthenticated)
	assert.Equal(t, 1, resp.Dispatcher.Subscribers)
	assert.Nil(t, resp.P2PMetrics)

	_, err = svc.GetStatus(context.Background(), true)
	assert.Error(t, err)
}

func TestGetStatusWithP2P(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	peer := &kademlia.Node{ID: make([]byte, 32), IP: "10.0.0.2", Port: 4445}
	client.EXPECT().Stats(gomock.Any()).Return(&p2p.StatsSnapshot{
		Self:       "self-id",
		Address:    "10.0.0.1:4445",
		PeersCount: 1,
		Peers:      []*kademlia.Node{peer},
		BanList:    []kademlia.BanSnapshot{{ID: "bad", IP: "10.0.0.9", Port: 1, Count: 4, AgeSecs: 7}},
		DHTMetrics: kademlia.DHTMetricsSnapshot{
			StoreSuccessRecent: []kademlia.StoreSuccessPoint{{SuccessRate: 100}, {SuccessRate: 50}},
			LocalHits:          5,
		},
		Database:        domain.DatabaseStats{RecordsCount: 12, SizeMB: 1.5},
		RecentStores:    []kademlia.RecentStoreEntry{{SenderID: "p1", Key: "e_ab", OK: true}},
		RecentRetrieves: []kademlia.RecentRetrieveEntry{{SenderID: "p2", Key: "loc", Error: "disk"}},
		DiskInfo:        &utils.DiskStatus{All: 100, Used: 40, Free: 60},
	}, nil)

	svc := NewService(client, nil, nil, nil)
	resp, err := svc.GetStatus(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, resp.P2PMetrics)

	pm := resp.P2PMetrics
	assert.Equal(t, "self-id", pm.NodeID)
	assert.Equal(t, 1, pm.PeersCount)
	assert.Equal(t, []string{peer.String() + "@10.0.0.2:4445"}, pm.Peers)
	assert.Equal(t, 12, pm.RecordsCount)
	assert.Equal(t, 75.0, pm.StoreSuccessRate)
	assert.Equal(t, int64(5), pm.LocalHits)
	require.Len(t, pm.BanList, 1)
	assert.Equal(t, int32(4), pm.BanList[0].Count)
	require.NotNil(t, pm.Disk)
	assert.Equal(t, 60.0, pm.Disk.FreeMB)
	require.Len(t, pm.RecentStores, 1)
	assert.True(t, pm.RecentStores[0].OK)
	require.Len(t, pm.RecentRetrieves, 1)
	assert.Equal(t, "p2", pm.RecentRetrieves[0].Peer)
	assert.False(t, pm.RecentRetrieves[0].OK)
}

func TestGetStatusP2PError(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Stats(gomock.Any()).Return(nil, errors.New("p2p down"))

	resp, err := NewService(client, nil, nil, nil).GetStatus(context.Background(), true)
	assert.Error(t, err)
	require.NotNil(t, resp)
	assert.Nil(t, resp.P2PMetrics)
}
