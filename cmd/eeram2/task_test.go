// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tve/clicks/internal/demo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeMemory is a sparse memory with injectable failures.
type fakeMemory struct {
	cells    map[uint32]byte
	writeErr error
	readErr  error
	corrupt  bool
}

func (f *fakeMemory) Write(addr uint32, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	for i, b := range data {
		f.cells[addr+uint32(i)] = b
	}
	return nil
}

func (f *fakeMemory) Read(addr uint32, data []byte) error {
	if f.readErr != nil {
		return f.readErr
	}
	for i := range data {
		data[i] = f.cells[addr+uint32(i)]
	}
	if f.corrupt {
		data[0] ^= 0x20
	}
	return nil
}

type fakePublisher struct {
	topics  []string
	results []result
}

func (f *fakePublisher) Publish(topic string, payload interface{}) error {
	f.topics = append(f.topics, topic)
	f.results = append(f.results, payload.(result))
	return nil
}

func newDemo(mem memory) (*memoryDemo, *observer.ObservedLogs, *fakePublisher) {
	core, logs := observer.New(zapcore.InfoLevel)
	pub := &fakePublisher{}
	return &memoryDemo{
		mem:   mem,
		log:   zap.New(core).Sugar(),
		pub:   pub,
		topic: "clicks/eeram2",
		addr:  0x00543210,
		data:  []byte("MikroE\r\n\x00"),
	}, logs, pub
}

func messages(logs *observer.ObservedLogs) []string {
	var m []string
	for _, e := range logs.All() {
		m = append(m, e.Message)
	}
	return m
}

func TestTask(t *testing.T) {
	mem := &fakeMemory{cells: map[uint32]byte{}}
	m, logs, pub := newDemo(mem)
	require.NoError(t, m.task(context.Background()))
	assert.Equal(t, []string{"Writing...", separator, "Read data : MikroE", separator}, messages(logs))
	assert.Equal(t, byte('M'), mem.cells[0x00543210])
	assert.Equal(t, []string{"clicks/eeram2"}, pub.topics)
	assert.Equal(t, result{Addr: 0x00543210, Data: "MikroE", OK: true}, pub.results[0])
}

func TestTaskWithoutBroker(t *testing.T) {
	m, logs, _ := newDemo(&fakeMemory{cells: map[uint32]byte{}})
	m.pub = nil
	require.NoError(t, m.task(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("Read data : MikroE").Len())
}

func TestTaskMismatch(t *testing.T) {
	m, logs, pub := newDemo(&fakeMemory{cells: map[uint32]byte{}, corrupt: true})
	require.NoError(t, m.task(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("Read data : mikroE").Len())
	assert.False(t, pub.results[0].OK)
}

func TestWriteErrorHalts(t *testing.T) {
	boom := errors.New("spi gone")
	m, logs, pub := newDemo(&fakeMemory{writeErr: boom})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := demo.Run(ctx, m.log, 0, time.Millisecond, m.task)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"ERROR Writing", separator, "halted, interrupt to exit"}, messages(logs))
	assert.Empty(t, pub.topics)
}

func TestReadErrorHalts(t *testing.T) {
	boom := errors.New("spi gone")
	m, logs, _ := newDemo(&fakeMemory{cells: map[uint32]byte{}, readErr: boom})
	assert.ErrorIs(t, m.task(context.Background()), boom)
	assert.Equal(t, []string{"Writing...", separator, "Reading ERROR", separator}, messages(logs))
}

func TestResultVarints(t *testing.T) {
	r := result{Addr: 0x13210, Data: "Hi", OK: true}
	assert.Equal(t, []int{0x13210, 1, 'H', 'i'}, r.Varints())
}

func TestText(t *testing.T) {
	assert.Equal(t, "MikroE", text([]byte("MikroE\r\n\x00")))
	assert.Equal(t, "abc", text([]byte("abc")))
	assert.Equal(t, "", text([]byte{0, 'x'}))
}

func TestFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--addr", "0x100", "--data", "hello", "-n", "2"}))
	v, err := cmd.Flags().GetUint32("addr")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x100), v)
	n, err := cmd.Flags().GetInt("count")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
