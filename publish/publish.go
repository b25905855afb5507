// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// Package publish sends the results of the click demos to an MQTT broker.
//
// Payloads are JSON encoded by default. Payloads implementing Varinter can instead be sent in
// the compact JeeLabs varint format, which is what low-power nodes on the same broker tend to
// use. A nil *Client is valid and publishes nothing, so callers don't need to special-case
// running without a broker.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tve/clicks/varint"
)

// Format selects the payload encoding.
type Format string

const (
	JSON   Format = "json"
	Varint Format = "varint"
)

// Varinter is implemented by payloads that can be published in the varint format.
type Varinter interface {
	Varints() []int
}

// LogPrintf is a function used to print logging info.
type LogPrintf func(format string, v ...interface{})

// Opts describes the broker connection.
type Opts struct {
	Broker   string        // host:port of the broker
	ClientID string        // defaults to "clicks-<hostname>"
	User     string        // optional credentials
	Password string        //
	Format   Format        // payload encoding, defaults to JSON
	Timeout  time.Duration // connect and publish timeout, defaults to 10s
	ErrorLog *log.Logger   // receives paho's error messages, may be nil
	Logger   LogPrintf     // debug logging, may be nil
}

// Client is a handle onto a broker connection. The connection is persistent, i.e., it
// re-establishes itself if there is a disconnect.
type Client struct {
	conn    mqtt.Client
	format  Format
	timeout time.Duration
	log     LogPrintf
}

// Connect connects to the broker and returns a new Client.
func Connect(opts Opts) (*Client, error) {
	if opts.Broker == "" {
		return nil, errors.New("publish: no broker specified")
	}
	if opts.ClientID == "" {
		hostname, _ := os.Hostname()
		opts.ClientID = "clicks-" + hostname
	}
	if opts.ErrorLog != nil {
		mqtt.ERROR = opts.ErrorLog
	}
	mo := mqtt.NewClientOptions().AddBroker("tcp://" + opts.Broker)
	mo.ClientID = opts.ClientID
	mo.Username = opts.User
	mo.Password = opts.Password
	mo.SetAutoReconnect(true)

	c := newClient(mqtt.NewClient(mo), opts)
	c.log("connecting to %s as %s", opts.Broker, opts.ClientID)
	if err := wait(c.conn.Connect(), c.timeout); err != nil {
		return nil, fmt.Errorf("publish: cannot connect to %s: %w", opts.Broker, err)
	}
	return c, nil
}

func newClient(conn mqtt.Client, opts Opts) *Client {
	c := &Client{conn: conn, format: opts.Format, timeout: opts.Timeout, log: opts.Logger}
	if c.format == "" {
		c.format = JSON
	}
	if c.timeout == 0 {
		c.timeout = 10 * time.Second
	}
	if c.log == nil {
		c.log = func(format string, v ...interface{}) {}
	}
	return c
}

// Publish encodes payload and publishes it to topic with QoS 1.
func (c *Client) Publish(topic string, payload interface{}) error {
	if c == nil {
		return nil
	}
	data, err := encode(c.format, payload)
	if err != nil {
		return err
	}
	if err := wait(c.conn.Publish(topic, 1, false, data), c.timeout); err != nil {
		return fmt.Errorf("publish: %s: %w", topic, err)
	}
	c.log("published %d bytes to %s", len(data), topic)
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.conn.Disconnect(250)
}

func encode(f Format, payload interface{}) ([]byte, error) {
	switch f {
	case JSON:
		return json.Marshal(payload)
	case Varint:
		v, ok := payload.(Varinter)
		if !ok {
			return nil, fmt.Errorf("publish: %T cannot be varint encoded", payload)
		}
		return varint.Encode(v.Varints()), nil
	}
	return nil, fmt.Errorf("publish: unknown format %q", f)
}

func wait(t mqtt.Token, timeout time.Duration) error {
	if !t.WaitTimeout(timeout) {
		return errors.New("timeout")
	}
	return t.Error()
}
