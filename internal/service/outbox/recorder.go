package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/repository"
	"github.com/jwalitptl/homevisit-api/pkg/event"
	"github.com/jwalitptl/homevisit-api/pkg/messaging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Recorder stores every event in the outbox table. The worker relays the
// rows to the broker, so consumers outside this process see the lifecycle
// without the bus ever blocking on the network.
type Recorder struct {
	repo repository.OutboxRepository
	now  func() time.Time
}

func NewRecorder(repo repository.OutboxRepository) *Recorder {
	return &Recorder{repo: repo, now: time.Now}
}

func (r *Recorder) Handle(ctx context.Context, evt event.DomainEvent) error {
	payload, err := Encode(evt)
	if err != nil {
		return err
	}
	return r.repo.Create(ctx, &model.OutboxEvent{
		ID:            uuid.New(),
		EventType:     string(evt.Type),
		AppointmentID: evt.AppointmentID,
		Payload:       payload,
		Status:        model.OutboxStatusPending,
		CreatedAt:     r.now().UTC(),
	})
}

// Encode renders evt as the envelope the relay puts on the wire.
func Encode(evt event.DomainEvent) ([]byte, error) {
	fields, err := json.Marshal(evt.Fields())
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", evt.Type, err)
	}
	env := messaging.Envelope{
		ID:            evt.ID.String(),
		Type:          string(evt.Type),
		AppointmentID: evt.AppointmentID.String(),
		OccurredAt:    evt.OccurredAt,
		Payload:       fields,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", evt.Type, err)
	}
	return b, nil
}
