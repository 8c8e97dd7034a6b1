package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/nsharda/edge-gateway/internal/models"
)

const (
	perMinuteWindow = time.Minute
	activeWindow    = 5 * time.Minute
	topEndpointsMax = 5
)

type EndpointCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// Stats is the derived view served to the dashboard. Error rate and average
// response time cover the whole buffer, not the last minute; the dashboard
// depends on that.
type Stats struct {
	TotalRequests     int             `json:"totalRequests"`
	RequestsPerMinute int             `json:"requestsPerMinute"`
	TopEndpoints      []EndpointCount `json:"topEndpoints"`
	ErrorRate         float64         `json:"errorRate"`
	AvgResponseTime   float64         `json:"avgResponseTime"`
	ActiveClients     int             `json:"activeClients"`
	ActiveKeyUses     int             `json:"activeKeyUses"`
	RateLimitHits     int64           `json:"rateLimitHits"`
}

// Service recomputes the stats view on demand from the buffer plus the
// limiter's hit counter.
type Service struct {
	buffer *Buffer
	hits   func() int64
	now    func() time.Time
}

func NewService(buffer *Buffer, hits func() int64) *Service {
	return &Service{
		buffer: buffer,
		hits:   hits,
		now:    time.Now,
	}
}

func (s *Service) Buffer() *Buffer {
	return s.buffer
}

func (s *Service) Record(record models.RequestLog) {
	s.buffer.Add(record)
}

func (s *Service) Stats() Stats {
	logs := s.buffer.Snapshot()
	now := s.now()

	minuteCutoff := now.Add(-perMinuteWindow)
	activeCutoff := now.Add(-activeWindow)

	var (
		perMinute     int
		errorCount    int
		totalTime     int
		byPath        = make(map[string]int)
		activeClients = make(map[string]struct{})
		activeKeyUses = make(map[string]struct{})
	)

	for _, entry := range logs {
		byPath[entry.Path]++
		totalTime += entry.ResponseTimeMs

		if entry.StatusCode >= 400 {
			errorCount++
		}
		if entry.Timestamp.After(minuteCutoff) {
			perMinute++
		}
		if entry.Timestamp.After(activeCutoff) {
			activeClients[entry.IP] = struct{}{}
			if entry.APIKey != "" {
				activeKeyUses[entry.IP+"|"+entry.APIKey] = struct{}{}
			}
		}
	}

	stats := Stats{
		TotalRequests:     len(logs),
		RequestsPerMinute: perMinute,
		TopEndpoints:      topEndpoints(byPath),
		ActiveClients:     len(activeClients),
		ActiveKeyUses:     len(activeKeyUses),
		RateLimitHits:     s.hits(),
	}

	if len(logs) > 0 {
		stats.ErrorRate = round2(100 * float64(errorCount) / float64(len(logs)))
		stats.AvgResponseTime = round2(float64(totalTime) / float64(len(logs)))
	}

	return stats
}

func topEndpoints(byPath map[string]int) []EndpointCount {
	counts := make([]EndpointCount, 0, len(byPath))
	for path, count := range byPath {
		counts = append(counts, EndpointCount{Path: path, Count: count})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})

	if len(counts) > topEndpointsMax {
		counts = counts[:topEndpointsMax]
	}
	return counts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
