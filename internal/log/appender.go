package log

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/hdrview/internal/config"
)

// MultiWriter fans log output out to every appender. A failing appender
// does not stop the others.
type MultiWriter struct {
	writers []io.Writer
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		_, e := w.Write(p)
		if e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{}
}

// AddFileAppender appends a size-rotated log file.
func (m *MultiWriter) AddFileAppender(f config.FileOutputConfig) *MultiWriter {
	m.writers = append(m.writers, &lumberjack.Logger{
		Filename:   f.Path,
		MaxSize:    f.Rotation.MaxSizeMB,
		MaxBackups: f.Rotation.MaxBackups,
		MaxAge:     f.Rotation.MaxAgeDays,
		Compress:   f.Rotation.Compress,
	})
	return m
}
