package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nsharda/edge-gateway/internal/models"
)

const defaultMaxLines = 10000

// Entry is one access-log line.
type Entry struct {
	Timestamp     string `json:"timestamp"`
	Level         string `json:"level"`
	Service       string `json:"service"`
	Method        string `json:"method"`
	Path          string `json:"path"`
	StatusCode    int    `json:"statusCode"`
	ResponseTime  int    `json:"responseTime"`
	RequestID     string `json:"requestId"`
	ClientID      string `json:"clientId"`
	IP            string `json:"ip"`
	Authenticated bool   `json:"authenticated"`
}

// LevelFor derives the log level from the response status.
func LevelFor(statusCode int) string {
	switch {
	case statusCode < 400:
		return "info"
	case statusCode < 500:
		return "warn"
	case statusCode == 503:
		return "fatal"
	default:
		return "error"
	}
}

// FileLogger writes access records as JSONL, one file per rotation. Files
// rotate on date change or after maxLines lines, with a three-digit index
// that increments within a day. Writes are asynchronous; a full queue drops
// the record rather than blocking the request.
type FileLogger struct {
	dir      string
	service  string
	maxLines int

	queue chan Entry
	done  chan struct{}

	log logrus.FieldLogger
	now func() time.Time

	// writer-goroutine state
	file  *os.File
	lines int
	date  string
	index int
}

func NewFileLogger(dir, service string, maxLines int, log logrus.FieldLogger) (*FileLogger, error) {
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &FileLogger{
		dir:      dir,
		service:  service,
		maxLines: maxLines,
		queue:    make(chan Entry, 1024),
		done:     make(chan struct{}),
		log:      log,
		now:      time.Now,
	}

	go l.run()
	return l, nil
}

// Record queues one request for writing.
func (l *FileLogger) Record(record models.RequestLog, requestID string) {
	entry := Entry{
		Timestamp:     record.Timestamp.UTC().Format(time.RFC3339Nano),
		Level:         LevelFor(record.StatusCode),
		Service:       l.service,
		Method:        record.Method,
		Path:          record.Path,
		StatusCode:    record.StatusCode,
		ResponseTime:  record.ResponseTimeMs,
		RequestID:     requestID,
		ClientID:      record.ClientID,
		IP:            record.IP,
		Authenticated: record.Authenticated,
	}

	select {
	case l.queue <- entry:
	default:
		l.log.Warn("access log queue full, dropping record")
	}
}

func (l *FileLogger) run() {
	defer close(l.done)

	for entry := range l.queue {
		if err := l.write(entry); err != nil {
			l.log.WithError(err).Error("failed to write access log")
		}
	}

	if l.file != nil {
		l.file.Close()
	}
}

func (l *FileLogger) write(entry Entry) error {
	date := l.now().Format("2006-01-02")

	if l.file == nil || date != l.date || l.lines >= l.maxLines {
		if err := l.rotate(date); err != nil {
			return err
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return err
	}

	l.lines++
	return nil
}

func (l *FileLogger) rotate(date string) error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if date != l.date {
		l.date = date
		l.index = 0
	}
	l.index++

	name := FileName(l.service, l.now(), l.index)

	file, err := os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	l.file = file
	l.lines = 0
	return nil
}

// FileName builds {service}_{YYYY-MM-DD}_{HHmmss}_{NNN}.log.
func FileName(service string, now time.Time, index int) string {
	return fmt.Sprintf("%s_%s_%s_%03d.log",
		service,
		now.Format("2006-01-02"),
		now.Format("150405"),
		index,
	)
}

// Close drains pending records and closes the current file.
func (l *FileLogger) Close() {
	close(l.queue)
	<-l.done
}
