package events

import (
	"encoding/json"
	"time"

	"catalog-inventory-service/internal/models"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Event subjects
const (
	SubjectCategoryCreated = "category.created"
	SubjectCategoryUpdated = "category.updated"
	SubjectCategoryMoved   = "category.moved"
	SubjectCategoryDeleted = "category.deleted"
	SubjectStockAdjusted   = "inventory.stock.adjusted"
	SubjectLowStockAlert   = "inventory.alert.low_stock"
)

// CategoryEvent is the payload for category lifecycle events
type CategoryEvent struct {
	EventType  string      `json:"eventType"`
	CategoryID uuid.UUID   `json:"categoryId"`
	Name       string      `json:"name,omitempty"`
	Slug       string      `json:"slug,omitempty"`
	ParentID   *uuid.UUID  `json:"parentId,omitempty"`
	Depth      int         `json:"depth"`
	DeletedIDs []uuid.UUID `json:"deletedIds,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// StockEvent is the payload for stock movement and alert events
type StockEvent struct {
	EventType     string              `json:"eventType"`
	ProductID     uuid.UUID           `json:"productId"`
	MovementType  models.MovementType `json:"movementType,omitempty"`
	Quantity      int                 `json:"quantity,omitempty"`
	CurrentStock  int                 `json:"currentStock"`
	ReservedStock int                 `json:"reservedStock"`
	StockStatus   models.StockStatus  `json:"stockStatus"`
	Severity      models.AlertSeverity `json:"severity,omitempty"`
	AlertID       *uuid.UUID          `json:"alertId,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
}

// Publisher pushes catalog and inventory events onto JetStream.
// Publishing is fire-and-forget from the caller's point of view;
// failures are logged, never propagated into the write path.
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
}

// NewPublisher connects to NATS and ensures the event streams exist
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("catalog-inventory-service"),
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

	p := &Publisher{
		nc:     nc,
		js:     js,
		logger: logger.WithField("component", "events.publisher"),
	}
	p.ensureStream("CATALOG_EVENTS", []string{"category.>"})
	p.ensureStream("INVENTORY_EVENTS", []string{"inventory.>"})
	return p, nil
}

func (p *Publisher) ensureStream(name string, subjects []string) {
	_, err := p.js.StreamInfo(name)
	if err == nil {
		return
	}
	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: subjects,
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		p.logger.WithError(err).WithField("stream", name).Warn("failed to ensure stream")
	}
}

func (p *Publisher) publish(subject, msgID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.WithError(err).WithField("subject", subject).Error("failed to marshal event")
		return
	}
	if _, err := p.js.Publish(subject, data, nats.MsgId(msgID)); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("failed to publish event")
	}
}

// CategoryCreated publishes a category created event
func (p *Publisher) CategoryCreated(category *models.Category) {
	p.publishCategory(SubjectCategoryCreated, category)
}

// CategoryUpdated publishes a category updated event
func (p *Publisher) CategoryUpdated(category *models.Category) {
	p.publishCategory(SubjectCategoryUpdated, category)
}

// CategoryMoved publishes a category moved event
func (p *Publisher) CategoryMoved(category *models.Category) {
	p.publishCategory(SubjectCategoryMoved, category)
}

func (p *Publisher) publishCategory(subject string, category *models.Category) {
	event := CategoryEvent{
		EventType:  subject,
		CategoryID: category.ID,
		Name:       category.Name,
		Slug:       category.Slug,
		ParentID:   category.ParentID,
		Depth:      category.Depth,
		Timestamp:  time.Now().UTC(),
	}
	p.publish(subject, category.ID.String()+":"+category.UpdatedAt.UTC().Format(time.RFC3339Nano), event)
}

// CategoryDeleted publishes a cascade delete event carrying every
// removed id
func (p *Publisher) CategoryDeleted(ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	event := CategoryEvent{
		EventType:  SubjectCategoryDeleted,
		CategoryID: ids[0],
		DeletedIDs: ids,
		Timestamp:  time.Now().UTC(),
	}
	p.publish(SubjectCategoryDeleted, ids[0].String()+":deleted", event)
}

// StockAdjusted publishes the fold resulting from a stock movement
func (p *Publisher) StockAdjusted(item *models.StockItem, movement *models.StockMovement) {
	event := StockEvent{
		EventType:     SubjectStockAdjusted,
		ProductID:     item.ProductID,
		MovementType:  movement.Type,
		Quantity:      movement.Quantity,
		CurrentStock:  item.CurrentStock,
		ReservedStock: item.ReservedStock,
		StockStatus:   item.StockStatus,
		Timestamp:     time.Now().UTC(),
	}
	p.publish(SubjectStockAdjusted, movement.ID.String(), event)
}

// LowStockAlertRaised publishes a low stock alert event
func (p *Publisher) LowStockAlertRaised(alert *models.LowStockAlert) {
	event := StockEvent{
		EventType:    SubjectLowStockAlert,
		ProductID:    alert.ProductID,
		CurrentStock: alert.CurrentStock,
		StockStatus:  models.StockStatusLowStock,
		Severity:     alert.Severity,
		AlertID:      &alert.ID,
		Timestamp:    time.Now().UTC(),
	}
	if alert.Severity == models.AlertSeverityCritical {
		event.StockStatus = models.StockStatusOutOfStock
	}
	p.publish(SubjectLowStockAlert, alert.ID.String(), event)
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close drains the connection
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
