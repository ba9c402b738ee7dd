// Package notify publishes purchase events to NATS so backend services can
// follow purchases made through the SDK.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/nats-io/nats.go"

	"glassfy/pkg/v2/types"
)

const DefaultSubject = "glassfy.purchase"

// Config holds NATS configuration
type Config struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     string `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
	Subject  string `yaml:"subject" json:"subject"`
}

// PurchaseEvent is the message published for every completed purchase
type PurchaseEvent struct {
	SubscriberID   string                `json:"subscriberid,omitempty"`
	InstallationID string                `json:"installationid,omitempty"`
	IsSubscription bool                  `json:"is_subscription"`
	Purchase       *types.PurchaseRecord `json:"purchase"`
	Timestamp      int64                 `json:"timestamp"`
}

// Identity supplies the ids attached to each event
type Identity interface {
	InstallationID() string
	SubscriberID() string
}

// DataSender is a types.PurchaseDelegate publishing to NATS. A disabled
// sender accepts events and drops them.
type DataSender struct {
	conn     *nats.Conn
	subject  string
	enabled  bool
	identity Identity
}

func NewDataSender(cfg Config, identity Identity) (*DataSender, error) {
	if !cfg.Enabled {
		glog.Infof("NATS purchase publisher disabled")
		return &DataSender{enabled: false}, nil
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}

	natsURL := fmt.Sprintf("nats://%s:%s", cfg.Host, cfg.Port)
	opts := []nats.Option{
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			glog.Warningf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			glog.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	glog.Infof("Connected to NATS server at %s:%s", cfg.Host, cfg.Port)

	return &DataSender{
		conn:     conn,
		subject:  cfg.Subject,
		enabled:  true,
		identity: identity,
	}, nil
}

// OnProductPurchase implements types.PurchaseDelegate
func (ds *DataSender) OnProductPurchase(p *types.PurchaseRecord, isSubscription bool) {
	event := PurchaseEvent{
		IsSubscription: isSubscription,
		Purchase:       p,
		Timestamp:      time.Now().UnixMilli(),
	}
	if ds.identity != nil {
		event.SubscriberID = ds.identity.SubscriberID()
		event.InstallationID = ds.identity.InstallationID()
	}
	if err := ds.Send(event); err != nil {
		glog.Errorf("publish purchase %v failed: %v", p.ProductIDs, err)
	}
}

func (ds *DataSender) Send(event PurchaseEvent) error {
	if !ds.enabled {
		glog.V(2).Infof("NATS purchase publisher is disabled, skipping message send")
		return nil
	}
	if ds.conn == nil {
		return fmt.Errorf("NATS connection is not initialized")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal purchase event: %w", err)
	}

	glog.V(2).Infof("Sending purchase event to NATS subject '%s': %s", ds.subject, string(data))
	if err := ds.conn.Publish(ds.subject, data); err != nil {
		return fmt.Errorf("failed to publish message to NATS: %w", err)
	}
	return nil
}

func (ds *DataSender) Close() {
	if ds.conn != nil && ds.enabled {
		ds.conn.Close()
		glog.Infof("NATS connection closed")
	}
}

func (ds *DataSender) IsConnected() bool {
	if !ds.enabled || ds.conn == nil {
		return false
	}
	return ds.conn.IsConnected()
}

// Chain fans a purchase out to several delegates in order
type Chain []types.PurchaseDelegate

func (c Chain) OnProductPurchase(p *types.PurchaseRecord, isSubscription bool) {
	for _, d := range c {
		if d != nil {
			d.OnProductPurchase(p, isSubscription)
		}
	}
}

var (
	_ types.PurchaseDelegate = (*DataSender)(nil)
	_ types.PurchaseDelegate = Chain(nil)
)
