package management

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	qdb "github.com/opst/modelfab/pkg/domain/queue/db"
	xe "github.com/opst/modelfab/pkg/errors"
	"github.com/opst/modelfab/pkg/metrics"
)

// Ticket identifies a dispatched request.
type Ticket struct {
	Id      string `json:"id"`
	Channel string `json:"channel"`
}

// Dispatcher hands a request over to be processed.
type Dispatcher interface {
	Dispatch(ctx context.Context, channel string, payload any) (Ticket, error)
}

// Mode makes the Dispatcher of a Service.
type Mode func(*Service) Dispatcher

// Async queues requests. Worker loops process them.
func Async(queue qdb.Interface) Mode {
	return func(s *Service) Dispatcher {
		s.queue = queue
		return asyncDispatcher{queue: queue}
	}
}

// Sync processes requests in the caller of Dispatch, as a worker would do with
// the queued message.
//
// Errors which would make a worker retry the message are returned.
func Sync() Mode {
	return func(s *Service) Dispatcher {
		return syncDispatcher{service: s}
	}
}

type asyncDispatcher struct {
	queue qdb.Interface
}

func (d asyncDispatcher) Dispatch(ctx context.Context, channel string, payload any) (Ticket, error) {
	id, err := d.queue.Push(ctx, channel, payload)
	if err != nil {
		return Ticket{}, xe.Wrap(err)
	}
	metrics.QueueMessages.WithLabelValues(channel, metrics.Pushed).Inc()
	return Ticket{Id: id, Channel: channel}, nil
}

type syncDispatcher struct {
	service *Service
}

func (d syncDispatcher) Dispatch(ctx context.Context, channel string, payload any) (Ticket, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Ticket{}, err
	}
	msg := qdb.Message{Id: uuid.NewString(), Channel: channel, Payload: b, EnqueuedAt: time.Now()}
	t := Ticket{Id: msg.Id, Channel: channel}
	if err := d.service.handle(ctx, msg); err != nil {
		return t, err
	}
	return t, nil
}
