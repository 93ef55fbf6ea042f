package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sample is one latency measurement: the publish timestamp carried in the
// message payload and the local receive timestamp, both in Unix seconds.
type Sample struct {
	Timestamp         float64 `json:"timestamp"`
	ReceivedTimestamp float64 `json:"received_timestamp"`
}

// LatencyLog appends one JSON object per received message to a timestamped
// file, e.g. logs/mqtt_logs_20260801_153000.json. Safe for concurrent use.
type LatencyLog struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
}

// NewLatencyLog creates the log directory if needed and opens a log file
// named after the current time.
func NewLatencyLog(dir string) (*LatencyLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll(%s): %w", dir, err)
	}

	name := fmt.Sprintf("mqtt_logs_%s.json", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}

	return &LatencyLog{
		file: file,
		enc:  json.NewEncoder(file),
		path: path,
	}, nil
}

// Path returns the path of the log file.
func (l *LatencyLog) Path() string {
	return l.path
}

// Record appends one sample as a single JSON line.
func (l *LatencyLog) Record(s Sample) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.enc.Encode(s); err != nil {
		return fmt.Errorf("encoding sample: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *LatencyLog) Close() error {
	return l.file.Close()
}
