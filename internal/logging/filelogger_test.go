package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsharda/edge-gateway/internal/models"
)

func TestLevelFor(t *testing.T) {
	tt := []struct {
		status int
		level  string
	}{
		{200, "info"},
		{201, "info"},
		{399, "info"},
		{400, "warn"},
		{404, "warn"},
		{429, "warn"},
		{499, "warn"},
		{500, "error"},
		{502, "error"},
		{503, "fatal"},
		{504, "error"},
	}

	for _, tc := range tt {
		assert.Equal(t, tc.level, LevelFor(tc.status), "status %d", tc.status)
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2025, time.March, 10, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, "edge-gateway_2025-03-10_090503_001.log", FileName("edge-gateway", now, 1))
	assert.Equal(t, "edge-gateway_2025-03-10_090503_012.log", FileName("edge-gateway", now, 12))
}

func TestFileLogger_WritesJSONL(t *testing.T) {
	dir := t.TempDir()

	l, err := NewFileLogger(dir, "gw", 100, logrus.New())
	require.NoError(t, err)

	record := models.RequestLog{
		Timestamp:      time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
		Method:         "GET",
		Path:           "/api/ping",
		StatusCode:     200,
		ResponseTimeMs: 12,
		ClientID:       "key_001",
		IP:             "10.0.0.1",
		Authenticated:  true,
	}

	l.Record(record, "req-1")
	l.Record(models.RequestLog{Timestamp: record.Timestamp, Method: "GET", Path: "/x", StatusCode: 503}, "req-2")
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "gw_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}

	require.Len(t, entries, 2)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "gw", entries[0].Service)
	assert.Equal(t, "req-1", entries[0].RequestID)
	assert.Equal(t, "key_001", entries[0].ClientID)
	assert.Equal(t, "2025-03-10T09:00:00Z", entries[0].Timestamp)
	assert.Equal(t, "fatal", entries[1].Level)
}

func TestFileLogger_RotatesOnLineLimit(t *testing.T) {
	dir := t.TempDir()

	l, err := NewFileLogger(dir, "gw", 2, logrus.New())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		l.Record(models.RequestLog{Timestamp: time.Now(), Method: "GET", Path: "/x", StatusCode: 200}, "r")
	}
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "gw_*.log"))
	require.NoError(t, err)
	assert.Len(t, files, 3)
}
