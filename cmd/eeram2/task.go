// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package main

import (
	"bytes"
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tve/clicks/internal/demo"
)

const separator = "--------------------"

// memory is the part of eeram2.Dev the demo uses.
type memory interface {
	Write(addr uint32, data []byte) error
	Read(addr uint32, data []byte) error
}

// publisher is implemented by *publish.Client.
type publisher interface {
	Publish(topic string, payload interface{}) error
}

// result is what gets published after each iteration.
type result struct {
	Addr uint32 `json:"addr"`
	Data string `json:"data"`
	OK   bool   `json:"ok"`
}

// Varints encodes the result as the address, the match flag and the bytes read.
func (r result) Varints() []int {
	v := []int{int(r.Addr), 0}
	if r.OK {
		v[1] = 1
	}
	for _, b := range []byte(r.Data) {
		v = append(v, int(b))
	}
	return v
}

type memoryDemo struct {
	mem    memory
	log    *zap.SugaredLogger
	pub    publisher
	topic  string
	addr   uint32
	data   []byte
	settle time.Duration // between write and read back
}

// task writes the data, reads it back and prints it. Errors halt the demo.
func (m *memoryDemo) task(ctx context.Context) error {
	if err := m.mem.Write(m.addr, m.data); err != nil {
		m.log.Error("ERROR Writing")
		m.log.Info(separator)
		return err
	}
	m.log.Info("Writing...")
	m.log.Info(separator)
	if !demo.Sleep(ctx, m.settle) {
		return nil
	}

	buf := make([]byte, len(m.data))
	if err := m.mem.Read(m.addr, buf); err != nil {
		m.log.Error("Reading ERROR")
		m.log.Info(separator)
		return err
	}
	m.log.Infof("Read data : %s", text(buf))
	m.log.Info(separator)

	r := result{Addr: m.addr, Data: text(buf), OK: bytes.Equal(buf, m.data)}
	if !r.OK {
		m.log.Warnf("read back %q, wrote %q", buf, m.data)
	}
	if m.pub != nil {
		if err := m.pub.Publish(m.topic, r); err != nil {
			m.log.Warnw("cannot publish", "error", err)
		}
	}
	return nil
}

// text returns the string stored in buf, which is NUL terminated and ends in a newline.
func text(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return strings.TrimRight(string(buf), "\r\n")
}
