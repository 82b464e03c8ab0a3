package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// channels
const (
	// ModelUpdateRequest
	UpdateChannel = "MODEL_UPDATE_QUEUE"

	// outcome of ModelUpdateRequest
	UpdateResponseChannel = "MODEL_UPDATE_RESPONSE_QUEUE"

	// ModelDeploymentRequest
	DeployChannel = "MODEL_DEPLOY_QUEUE"
)

var (
	// ErrWouldBlock tells the channel is over capacity.
	ErrWouldBlock = errors.New("the queue is over capacity")

	// ErrClosed tells the queue no longer accepts operations.
	ErrClosed = errors.New("queue is closed")
)

type Message struct {
	Id         string
	Channel    string
	Payload    []byte
	EnqueuedAt time.Time
}

// Decode unmarshals the JSON payload.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("broken message %s in %s: %w", m.Id, m.Channel, err)
	}
	return nil
}

// Interface is a FIFO queue of messages, split into channels.
type Interface interface {
	// Push appends a message to the channel.
	//
	// # Args
	//
	// - context.Context
	//
	// - string: channel name
	//
	// - any: payload. It is encoded as JSON.
	//
	// # Returns
	//
	// - string: id of the message (UUID).
	//
	// - error
	Push(ctx context.Context, channel string, payload any) (string, error)

	// Pop takes the oldest message in the channel and passes it to the handler.
	//
	// If the handler returns error, the message goes back to the queue,
	// unless the error is made with Drop.
	// Messages being handled are invisible to other Pop.
	//
	// # Returns
	//
	// - bool: true if a message is popped.
	//
	// - error: error from the handler, or one caused in the queue.
	Pop(ctx context.Context, channel string, handler func(Message) error) (bool, error)

	// Len counts messages waiting in the channel.
	Len(ctx context.Context, channel string) (int, error)
}

// DroppedError is an error of a message handler which removes the message anyway.
type DroppedError struct {
	Err error
}

func (d *DroppedError) Error() string {
	return fmt.Sprintf("message dropped: %s", d.Err)
}

func (d *DroppedError) Unwrap() error {
	return d.Err
}

// Drop marks a handler error as not to be retried: Pop removes the message.
//
// Drop(nil) is nil.
func Drop(err error) error {
	if err == nil {
		return nil
	}
	return &DroppedError{Err: err}
}

// IsDropped tells the error is made with Drop.
func IsDropped(err error) bool {
	var d *DroppedError
	return errors.As(err, &d)
}
