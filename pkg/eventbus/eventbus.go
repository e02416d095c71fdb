package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Event struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

const (
	EventApplicationCreated       = "application_created"
	EventPriorityChanged          = "priority_changed"
	EventApplicationStatusChanged = "application_status_changed"
	EventDepartmentStatusChanged  = "department_status_changed"
)

type ApplicationEvent struct {
	ApplicationID    string `json:"application_id"`
	Name             string `json:"name,omitempty"`
	Status           string `json:"status,omitempty"`
	Priority         int    `json:"priority,omitempty"`
	PreviousPriority int    `json:"previous_priority,omitempty"`
	Source           string `json:"source,omitempty"`
}

type DepartmentEvent struct {
	ApplicationID string `json:"application_id"`
	DepartmentID  uint   `json:"department_id"`
	Status        string `json:"status"`
}

const (
	ChannelApplication = "isassess:events:application"
	ChannelDepartment  = "isassess:events:department"
)

type Bus struct {
	client redis.UniversalClient
}

func NewBus(client redis.UniversalClient) *Bus {
	return &Bus{client: client}
}

func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}, nil
}

func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

func (b *Bus) Publish(ctx context.Context, channel string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

// Subscribe returns once redis has confirmed the subscription, so events
// published after it returns are not lost.
func (b *Bus) Subscribe(ctx context.Context, channels ...string) (<-chan *Event, error) {
	sub := b.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	ch := make(chan *Event, 100)

	go func() {
		defer close(ch)
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			ch <- &event
		}
	}()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	return ch, nil
}
