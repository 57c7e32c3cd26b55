package xstream

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultBatch        = 1
	DefaultStreamBlock  = 500 * time.Millisecond
	DefaultPubSubBlock  = time.Second
	DefaultMaxLen       = 500
	DefaultKeyspaceDB   = "*"
	keyspaceChannelBase = "__keyspace@"
)

var validate = validator.New()

// StreamOptions configures FromStream.
type StreamOptions struct {
	Stream string `validate:"required"`
	// StartID is the identifier considered already read: Latest, NewOnly,
	// Beginning or a literal identifier. Defaults to Latest.
	StartID string
	// Batch is the maximum number of entries per read.
	Batch int `validate:"gte=0"`
	// Block bounds each read, and with it the cancellation latency.
	Block time.Duration `validate:"gte=0"`
	// CompleteOnTimeout completes the sequence on the first empty read.
	CompleteOnTimeout bool
	// LatestOnly emits only the last entry of every batch. The cursor still
	// moves past the whole batch.
	LatestOnly bool
}

func (o StreamOptions) withDefaults() (StreamOptions, error) {
	if o.StartID == "" {
		o.StartID = Latest
	}
	if o.Batch == 0 {
		o.Batch = DefaultBatch
	}
	if o.Block == 0 {
		o.Block = DefaultStreamBlock
	}
	if err := validate.Struct(o); err != nil {
		return o, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return o, nil
}

// PubSubOptions configures FromPubSub.
type PubSubOptions struct {
	Patterns          []string      `validate:"required,min=1,dive,required"`
	Block             time.Duration `validate:"gte=0"`
	CompleteOnTimeout bool
}

// Pattern returns options subscribing to the single pattern p.
func Pattern(p string) PubSubOptions {
	return PubSubOptions{Patterns: []string{p}}
}

func (o PubSubOptions) withDefaults() (PubSubOptions, error) {
	if o.Block == 0 {
		o.Block = DefaultPubSubBlock
	}
	if err := validate.Struct(o); err != nil {
		return o, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return o, nil
}

// KeyspaceOptions configures OnKeyspace.
type KeyspaceOptions struct {
	// DB is the database number in the channel name, "*" for any.
	DB                string
	Block             time.Duration
	CompleteOnTimeout bool
}
