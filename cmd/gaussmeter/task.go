// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package main

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/tve/clicks/gaussmeter"
)

const separator = "----------------------------------"

// sensor is the part of gaussmeter.Dev the demo uses.
type sensor interface {
	Sense() (gaussmeter.Sample, error)
}

// halter is implemented by gaussmeter.Dev.
type halter interface {
	Halt() error
}

// halt stops the chip on the way out, a failure is only logged.
func halt(h halter, log *zap.SugaredLogger) {
	if err := h.Halt(); err != nil {
		log.Warnw("cannot halt", "error", err)
	}
}

// publisher is implemented by *publish.Client.
type publisher interface {
	Publish(topic string, payload interface{}) error
}

// reading is the published form of a sample, channels that weren't measured are omitted.
type reading struct {
	Axes        string   `json:"axes"`
	Temperature *float64 `json:"t,omitempty"` // °C
	X           *float64 `json:"x,omitempty"` // µT
	Y           *float64 `json:"y,omitempty"`
	Z           *float64 `json:"z,omitempty"`
}

func newReading(s gaussmeter.Sample) reading {
	r := reading{Axes: s.Axes.String()}
	if s.Axes&gaussmeter.AxisT != 0 {
		t := s.Celsius()
		r.Temperature = &t
	}
	if s.Axes&gaussmeter.AxisX != 0 {
		r.X = &s.X
	}
	if s.Axes&gaussmeter.AxisY != 0 {
		r.Y = &s.Y
	}
	if s.Axes&gaussmeter.AxisZ != 0 {
		r.Z = &s.Z
	}
	return r
}

// Varints encodes the channel mask followed by the measured values in hundredths.
func (r reading) Varints() []int {
	var mask int
	var v []int
	for i, p := range []*float64{r.Temperature, r.X, r.Y, r.Z} {
		if p != nil {
			mask |= 1 << i
			v = append(v, int(math.Round(*p*100)))
		}
	}
	return append([]int{mask}, v...)
}

type gaussDemo struct {
	sensor sensor
	log    *zap.SugaredLogger
	pub    publisher
	topic  string
}

// task reads one sample and prints the channels it contains. A failed reading is reported
// and skipped, the next iteration tries again.
func (g *gaussDemo) task(ctx context.Context) error {
	s, err := g.sensor.Sense()
	if err != nil {
		g.log.Warnw("Measurement ERROR", "error", err)
		g.log.Info(separator)
		return nil
	}
	if s.Axes&gaussmeter.AxisT != 0 {
		g.log.Infof(" * Temperature: %.2f C", s.Celsius())
	}
	if s.Axes&gaussmeter.AxisX != 0 {
		g.log.Infof(" * X-axis: %.2f microT", s.X)
	}
	if s.Axes&gaussmeter.AxisY != 0 {
		g.log.Infof(" * Y-axis: %.2f microT", s.Y)
	}
	if s.Axes&gaussmeter.AxisZ != 0 {
		g.log.Infof(" * Z-axis: %.2f microT", s.Z)
	}
	g.log.Info(separator)

	if g.pub != nil {
		if err := g.pub.Publish(g.topic, newReading(s)); err != nil {
			g.log.Warnw("cannot publish", "error", err)
		}
	}
	return nil
}
