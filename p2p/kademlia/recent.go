package kademlia

import "time"

const recentEntriesLimit = 10

// RecentStoreEntry captures a handled StoreData request outcome
type RecentStoreEntry struct {
	TimeUnix   int64  `json:"time_unix"`
	SenderID   string `json:"sender_id"`
	SenderIP   string `json:"sender_ip"`
	Key        string `json:"key"`
	Bytes      int    `json:"bytes"`
	DurationMS int64  `json:"duration_ms"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// RecentRetrieveEntry captures a handled FindValue request outcome
type RecentRetrieveEntry struct {
	TimeUnix   int64  `json:"time_unix"`
	SenderID   string `json:"sender_id"`
	SenderIP   string `json:"sender_ip"`
	Key        string `json:"key"`
	Found      bool   `json:"found"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func newRecentStoreEntry(sender *Node, key []byte, size int, start time.Time, err error) RecentStoreEntry {
	e := RecentStoreEntry{
		TimeUnix:   time.Now().UTC().Unix(),
		SenderID:   sender.String(),
		SenderIP:   sender.IP,
		Key:        string(key),
		Bytes:      size,
		DurationMS: time.Since(start).Milliseconds(),
		OK:         err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func prependCapped[T any](list []T, e T) []T {
	list = append([]T{e}, list...)
	if len(list) > recentEntriesLimit {
		list = list[:recentEntriesLimit]
	}
	return list
}

func (s *Network) appendStoreEntry(e RecentStoreEntry) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	if s.recentStoreByIP == nil {
		s.recentStoreByIP = make(map[string][]RecentStoreEntry)
	}
	s.recentStoreOverall = prependCapped(s.recentStoreOverall, e)
	s.recentStoreByIP[e.SenderIP] = prependCapped(s.recentStoreByIP[e.SenderIP], e)
}

func (s *Network) appendRetrieveEntry(e RecentRetrieveEntry) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	if s.recentRetrieveByIP == nil {
		s.recentRetrieveByIP = make(map[string][]RecentRetrieveEntry)
	}
	s.recentRetrieveOverall = prependCapped(s.recentRetrieveOverall, e)
	s.recentRetrieveByIP[e.SenderIP] = prependCapped(s.recentRetrieveByIP[e.SenderIP], e)
}

// RecentStoreSnapshot returns copies of recent store entries (overall and by IP)
func (s *Network) RecentStoreSnapshot() (overall []RecentStoreEntry, byIP map[string][]RecentStoreEntry) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	overall = append([]RecentStoreEntry(nil), s.recentStoreOverall...)
	byIP = make(map[string][]RecentStoreEntry, len(s.recentStoreByIP))
	for k, v := range s.recentStoreByIP {
		byIP[k] = append([]RecentStoreEntry(nil), v...)
	}
	return
}

// RecentRetrieveSnapshot returns copies of recent retrieve entries (overall and by IP)
func (s *Network) RecentRetrieveSnapshot() (overall []RecentRetrieveEntry, byIP map[string][]RecentRetrieveEntry) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	overall = append([]RecentRetrieveEntry(nil), s.recentRetrieveOverall...)
	byIP = make(map[string][]RecentRetrieveEntry, len(s.recentRetrieveByIP))
	for k, v := range s.recentRetrieveByIP {
		byIP[k] = append([]RecentRetrieveEntry(nil), v...)
	}
	return
}
