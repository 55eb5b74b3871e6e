package ingest

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"coldwatch/internal/alerts"
	"coldwatch/internal/config"
	"coldwatch/internal/model"
)

// rpcRequestTopic is part of the broker contract, not configurable — see
// §4.3.
const rpcRequestTopic = "v1/devices/me/rpc/request/+"

// rpcEnvelope is the RPC-shaped JSON payload the broker delivers. AlarmID
// is held as json.Number; rpcParams.UnmarshalJSON accepts either a string
// or a bare number on the wire.
type rpcEnvelope struct {
	Method string    `json:"method"`
	Params rpcParams `json:"params"`
}

type rpcParams struct {
	AlarmID     json.Number `json:"alarmId"`
	Originator  string      `json:"originator"`
	Type        string      `json:"type"`
	Status      string      `json:"status"`
	Description string      `json:"description"`
	CreatedTime int64       `json:"createdTime"`
}

// UnmarshalJSON decodes alarmId from either a JSON string or a bare number.
func (p *rpcParams) UnmarshalJSON(data []byte) error {
	type plain rpcParams
	aux := struct {
		*plain
		AlarmID json.RawMessage `json:"alarmId"`
	}{plain: (*plain)(p)}
	err := json.Unmarshal(data, &aux)
	var s string
	if json.Unmarshal(aux.AlarmID, &s) != nil {
		s = string(aux.AlarmID)
	}
	p.AlarmID = json.Number(s)
	return err
}

// alarmDiff is the outcome of mapping one RPC envelope: either an alert to
// upsert, an id to remove, or neither (drop, unrecognized shape).
type alarmDiff struct {
	upsert *model.Alert
	remove string
}

// mapEnvelope implements the §4.3 mapping table. It returns nil when the
// envelope isn't an ALARM RPC call, or when the status isn't one this
// system reacts to.
func mapEnvelope(env rpcEnvelope, now time.Time) *alarmDiff {
	if !strings.EqualFold(env.Method, "ALARM") {
		return nil
	}
	p := env.Params
	alarmID := strings.TrimSpace(p.AlarmID.String())
	if alarmID == "" {
		return nil
	}
	id := "mqtt:" + alarmID

	switch p.Status {
	case "CLEARED_UNACK", "CLEARED_ACK":
		return &alarmDiff{remove: id}
	case "ACTIVE_UNACK", "ACTIVE_ACK":
		alertType, defaultDesc, ok := classify(p.Type)
		if !ok {
			return nil
		}
		desc := strings.TrimSpace(p.Description)
		if desc == "" {
			desc = defaultDesc
		}
		ts := now
		if p.CreatedTime > 0 {
			ts = time.UnixMilli(p.CreatedTime)
		}
		return &alarmDiff{upsert: &model.Alert{
			ID:          id,
			DateTime:    model.FormatDateTime(ts.Local()),
			AlertType:   alertType,
			Device:      p.Originator,
			Description: desc,
		}}
	default:
		return nil
	}
}

// classify maps the RPC "type" field to an AlertType and its default
// description, per §4.3. Severity direction (tempUp vs tempDown) can't be
// recovered from the payload this system receives, so every temperature
// alarm currently classifies as tempUp — tempDown remains a reachable
// AlertType value for the wire format and for a future refinement that
// parses a numeric threshold out of description.
func classify(rpcType string) (model.AlertType, string, bool) {
	switch rpcType {
	case "Temperature out of range":
		return model.AlertTempUp, "Temp. alta", true
	case "Inactivity TimeOut":
		return model.AlertDisconnect, "Sin conexión", true
	default:
		return "", "", false
	}
}

// RunMQTTLoop connects to the broker, subscribes to rpcRequestTopic, and
// applies diffs to store until ctx is done. It reconnects with the shared
// backoff schedule on any connect/subscribe failure.
func RunMQTTLoop(ctx context.Context, cfg *config.Manager, store *alerts.Store, connected *ConnState, logger *slog.Logger) {
	backoff := NewBackoff()
	for {
		if ctx.Err() != nil {
			return
		}
		client, err := connectMQTT(ctx, cfg, store, connected, logger)
		if err != nil {
			connected.SetMQTT(false)
			logger.Warn("mqtt connect failed", "err", err)
			if !Sleep(ctx, backoff.Next()) {
				return
			}
			continue
		}

		backoff.Reset()
		<-ctx.Done()
		client.Disconnect(500)
		connected.SetMQTT(false)
		return
	}
}

func connectMQTT(ctx context.Context, cfg *config.Manager, store *alerts.Store, connected *ConnState, logger *slog.Logger) (mqtt.Client, error) {
	current := cfg.Get()
	if current.MQTTServer == "" {
		return nil, fmt.Errorf("mqtt: no server configured")
	}

	scheme := "tcp"
	if current.MQTTUseSecure {
		scheme = "ssl"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, current.MQTTServer, current.MQTTPort)).
		SetClientID(current.MQTTClientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(false).
		SetCleanSession(true)

	if current.MQTTUsername != "" {
		opts.SetUsername(current.MQTTUsername)
		opts.SetPassword(current.MQTTPassword)
	}
	if current.MQTTUseSecure {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		connected.SetMQTT(false)
		logger.Warn("mqtt connection lost", "err", err)
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		handleMQTTMessage(msg.Payload(), store, logger)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt: connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, err
	}

	subToken := client.Subscribe(rpcRequestTopic, 1, handler)
	if !subToken.WaitTimeout(10 * time.Second) {
		client.Disconnect(250)
		return nil, fmt.Errorf("mqtt: subscribe timed out")
	}
	if err := subToken.Error(); err != nil {
		client.Disconnect(250)
		return nil, err
	}

	connected.SetMQTT(true)
	logger.Info("mqtt connected", "topic", rpcRequestTopic)
	return client, nil
}

func handleMQTTMessage(payload []byte, store *alerts.Store, logger *slog.Logger) {
	var env rpcEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logger.Warn("mqtt message parse failed, dropping", "err", err)
		return
	}
	diff := mapEnvelope(env, time.Now())
	if diff == nil {
		return
	}
	if diff.upsert != nil {
		store.Upsert(*diff.upsert)
	} else if diff.remove != "" {
		store.Remove(diff.remove)
	}
}
