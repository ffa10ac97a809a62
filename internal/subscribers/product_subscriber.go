package subscribers

import (
	"encoding/json"
	"time"

	"catalog-inventory-service/internal/models"
	"catalog-inventory-service/internal/services"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// ProductEvent is the payload published by the products service. Catalog
// counters and stock item identity fields are owned by that service and
// mirrored here.
type ProductEvent struct {
	EventType    string     `json:"eventType"`
	ProductID    uuid.UUID  `json:"productId"`
	Name         string     `json:"name,omitempty"`
	SKU          string     `json:"sku,omitempty"`
	CategoryID   *uuid.UUID `json:"categoryId,omitempty"`
	ProductCount *int       `json:"productCount,omitempty"`
	TotalSales   *int64     `json:"totalSales,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// ProductSubscriber mirrors product events into the catalog counters and
// stock item identity fields
type ProductSubscriber struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	sub       *nats.Subscription
	catalog   *services.CatalogService
	inventory *services.InventoryService
	logger    *logrus.Entry
}

// NewProductSubscriber connects to NATS and prepares a durable consumer
// on the product event stream
func NewProductSubscriber(natsURL string, catalog *services.CatalogService, inventory *services.InventoryService, logger *logrus.Logger) (*ProductSubscriber, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("catalog-inventory-service-product-subscriber"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &ProductSubscriber{
		nc:        nc,
		js:        js,
		catalog:   catalog,
		inventory: inventory,
		logger:    logger.WithField("component", "subscribers.products"),
	}, nil
}

// Start subscribes to product events. Failed handlers are redelivered by
// JetStream up to the consumer's MaxDeliver.
func (s *ProductSubscriber) Start() error {
	sub, err := s.js.Subscribe("product.>", s.handleMessage,
		nats.Durable("catalog-inventory-products"),
		nats.DeliverNew(),
		nats.MaxDeliver(3),
		nats.AckWait(30*time.Second),
		nats.ManualAck(),
	)
	if err != nil {
		return err
	}
	s.sub = sub
	s.logger.Info("product event subscription started")
	return nil
}

func (s *ProductSubscriber) handleMessage(msg *nats.Msg) {
	var event ProductEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.WithError(err).WithField("subject", msg.Subject).Warn("failed to decode product event")
		msg.Term()
		return
	}

	if err := s.handleEvent(&event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"subject":    msg.Subject,
			"product_id": event.ProductID,
		}).Error("failed to apply product event")
		msg.Nak()
		return
	}
	msg.Ack()
}

func (s *ProductSubscriber) handleEvent(event *ProductEvent) error {
	switch event.EventType {
	case "product.created", "product.updated":
		req := &models.UpdateItemSettingsRequest{CategoryID: event.CategoryID}
		if event.Name != "" {
			req.ProductName = &event.Name
		}
		if event.SKU != "" {
			req.SKU = &event.SKU
		}
		if _, err := s.inventory.UpdateItemSettings(event.ProductID, req); err != nil {
			return err
		}

	case "product.stats":
		if event.CategoryID == nil {
			return nil
		}
		_, err := s.catalog.UpdateProductStats(*event.CategoryID, &models.UpdateProductStatsRequest{
			ProductCount: event.ProductCount,
			TotalSales:   event.TotalSales,
		})
		if err != nil {
			return err
		}

	default:
		s.logger.WithField("event_type", event.EventType).Debug("ignoring unhandled product event")
	}
	return nil
}

// Stop drains the subscription and closes the connection
func (s *ProductSubscriber) Stop() {
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
