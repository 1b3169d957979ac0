// Package packetlog writes one NDJSON record per datagram for offline
// debugging. The file is size-rotated.
package packetlog

import (
	"encoding/json"
	"io"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Record struct {
	RunID       string `json:"run_id"`
	Timestamp   string `json:"ts"`
	Type        string `json:"type"`
	Role        string `json:"role,omitempty"`
	Direction   string `json:"direction,omitempty"`
	Source      string `json:"src,omitempty"`
	Destination string `json:"dst,omitempty"`
	Length      int    `json:"len,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Message     string `json:"message,omitempty"`
}

type Logger struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// New opens (or appends to) path, rotating once it reaches maxSizeMB.
func New(path string, maxSizeMB int) (*Logger, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		MaxAge:     7,
	}
	// Open eagerly so a bad path fails at startup rather than on first write.
	if _, err := lj.Write(nil); err != nil {
		return nil, err
	}
	return &Logger{w: lj}, nil
}

// NewWriter logs to an arbitrary writer.
func NewWriter(w io.WriteCloser) *Logger {
	return &Logger{w: w}
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	err := l.w.Close()
	l.w = nil
	return err
}

// Log appends rec. A nil Logger discards.
func (l *Logger) Log(rec Record) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w == nil {
		return
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_, _ = l.w.Write(append(line, '\n'))
}
