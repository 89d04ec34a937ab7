package devbroker

import (
	"bytes"
	"crypto/subtle"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
)

// authHook accepts only clients presenting the configured credentials.
type authHook struct {
	mochi.HookBase
	username []byte
	password []byte
}

func newAuthHook(username, password string) *authHook {
	return &authHook{
		username: []byte(username),
		password: []byte(password),
	}
}

// ID returns the hook identifier.
func (h *authHook) ID() string {
	return "devbroker-auth"
}

// Provides indicates which hook methods this hook provides.
func (h *authHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mochi.OnConnectAuthenticate,
		mochi.OnACLCheck,
	}, []byte{b})
}

// OnConnectAuthenticate compares credentials in constant time.
func (h *authHook) OnConnectAuthenticate(cl *mochi.Client, pk packets.Packet) bool {
	userOK := subtle.ConstantTimeCompare(h.username, cl.Properties.Username) == 1
	passOK := subtle.ConstantTimeCompare(h.password, pk.Connect.Password) == 1
	return userOK && passOK
}

// OnACLCheck allows every topic to authenticated clients.
func (h *authHook) OnACLCheck(_ *mochi.Client, _ string, _ bool) bool {
	return true
}

// observerHook logs client activity and forwards publishes to observers.
type observerHook struct {
	mochi.HookBase
	broker *Broker
}

func newObserverHook(b *Broker) *observerHook {
	return &observerHook{broker: b}
}

// ID returns the hook identifier.
func (h *observerHook) ID() string {
	return "devbroker-observer"
}

// Provides indicates which hook methods this hook provides.
func (h *observerHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mochi.OnConnect,
		mochi.OnDisconnect,
		mochi.OnSubscribed,
		mochi.OnPublish,
	}, []byte{b})
}

// OnConnect logs new client sessions.
func (h *observerHook) OnConnect(cl *mochi.Client, _ packets.Packet) error {
	h.broker.log.Info("client connected", "client_id", cl.ID, "remote", cl.Net.Remote)
	return nil
}

// OnDisconnect logs ended client sessions.
func (h *observerHook) OnDisconnect(cl *mochi.Client, err error, _ bool) {
	h.broker.log.Info("client disconnected", "client_id", cl.ID, "error", err)
}

// OnSubscribed logs subscription filters.
func (h *observerHook) OnSubscribed(cl *mochi.Client, pk packets.Packet, _ []byte) {
	for _, sub := range pk.Filters {
		h.broker.log.Info("client subscribed", "client_id", cl.ID, "filter", sub.Filter)
	}
}

// OnPublish forwards the message to observers unchanged.
func (h *observerHook) OnPublish(cl *mochi.Client, pk packets.Packet) (packets.Packet, error) {
	h.broker.log.Debug("publish",
		"client_id", cl.ID,
		"topic", pk.TopicName,
		"bytes", len(pk.Payload),
	)

	h.broker.notify(Message{
		ClientID: cl.ID,
		Topic:    pk.TopicName,
		Payload:  append([]byte(nil), pk.Payload...),
		Retain:   pk.FixedHeader.Retain,
	})
	return pk, nil
}
