// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package publish

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type token struct {
	done bool
	err  error
}

func (t *token) Wait() bool                       { return t.done }
func (t *token) WaitTimeout(d time.Duration) bool { return t.done }
func (t *token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *token) Error() error { return t.err }

type message struct {
	topic   string
	payload []byte
}

// fakeClient records publications, the other mqtt.Client methods are not used.
type fakeClient struct {
	mqtt.Client
	tok  *token
	sent []message
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.sent = append(f.sent, message{topic, payload.([]byte)})
	return f.tok
}

type reading struct {
	T float64 `json:"t"`
	X float64 `json:"x"`
}

func (r reading) Varints() []int { return []int{int(r.T * 100), int(r.X * 100)} }

func TestPublishJSON(t *testing.T) {
	f := &fakeClient{tok: &token{done: true}}
	c := newClient(f, Opts{Logger: t.Logf})
	require.NoError(t, c.Publish("clicks/gauss", reading{21.5, -3}))
	require.Len(t, f.sent, 1)
	assert.Equal(t, "clicks/gauss", f.sent[0].topic)
	assert.JSONEq(t, `{"t":21.5,"x":-3}`, string(f.sent[0].payload))
}

func TestPublishVarint(t *testing.T) {
	f := &fakeClient{tok: &token{done: true}}
	c := newClient(f, Opts{Format: Varint})
	require.NoError(t, c.Publish("clicks/gauss", reading{1, -0.01}))
	assert.Equal(t, []byte{0x1, 0xc8, 0x81}, f.sent[0].payload)

	assert.Error(t, c.Publish("clicks/gauss", "not a reading"))
}

func TestPublishErrors(t *testing.T) {
	c := newClient(&fakeClient{tok: &token{done: false}}, Opts{Timeout: time.Millisecond})
	assert.ErrorContains(t, c.Publish("a", 1), "timeout")

	broken := errors.New("broken pipe")
	c = newClient(&fakeClient{tok: &token{done: true, err: broken}}, Opts{})
	assert.ErrorIs(t, c.Publish("a", 1), broken)

	c = newClient(&fakeClient{tok: &token{done: true}}, Opts{Format: "xml"})
	assert.Error(t, c.Publish("a", 1))
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Publish("a", 1))
	c.Close()
}

func TestConnectNeedsBroker(t *testing.T) {
	_, err := Connect(Opts{})
	assert.Error(t, err)
}
