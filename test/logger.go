package test

import (
	"bytes"
	"fmt"
	"sync"
)

// BufferLogger implements jpdata.Logger by collecting Printf lines. Debugf
// output is kept too, behind a "debug: " prefix.
type BufferLogger struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewBufferLogger returns an empty BufferLogger.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (b *BufferLogger) Printf(format string, v ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(&b.buf, format+"\n", v...)
}

func (b *BufferLogger) Debugf(format string, v ...interface{}) {
	b.Printf("debug: "+format, v...)
}

// String returns everything logged so far.
func (b *BufferLogger) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
