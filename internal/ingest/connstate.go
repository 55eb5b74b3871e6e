package ingest

import "sync/atomic"

// ConnState tracks the two connectivity booleans the command surface
// reports via is_mqtt_connected / is_supabase_connected.
type ConnState struct {
	mqtt atomic.Bool
	db   atomic.Bool
}

// NewConnState returns a ConnState with both sources reported disconnected.
func NewConnState() *ConnState {
	return &ConnState{}
}

func (c *ConnState) SetMQTT(v bool) { c.mqtt.Store(v) }
func (c *ConnState) MQTT() bool     { return c.mqtt.Load() }

func (c *ConnState) SetDB(v bool) { c.db.Store(v) }
func (c *ConnState) DB() bool     { return c.db.Load() }
