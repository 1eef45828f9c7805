package fanout

import "context"

type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpRemove Operation = "remove"
)

func (o Operation) Valid() bool {
	switch o {
	case OpInsert, OpUpdate, OpRemove:
		return true
	default:
		return false
	}
}

// Event is the name pushed to connections for o.
func (o Operation) Event() string {
	switch o {
	case OpInsert:
		return "add"
	case OpUpdate:
		return "update"
	case OpRemove:
		return "remove"
	default:
		return string(o)
	}
}

// Mutation is one committed store write.
type Mutation struct {
	Entity    string
	Operation Operation
	Value     any
}

type Message struct {
	Entity string `json:"entity"`
	Event  string `json:"event"`
	Data   any    `json:"data"`
}

// Connection is the delivery side of a subscription. Done is closed when the
// peer goes away.
type Connection interface {
	ID() string
	Push(ctx context.Context, msg Message) error
	Done() <-chan struct{}
}

type FilterFunc func(ctx context.Context, value any, op Operation) (bool, error)

type TransformFunc func(ctx context.Context, value any, op Operation) (any, error)

type Options struct {
	Filter     FilterFunc
	Transform  TransformFunc
	Operations []Operation
}

// Snapshotter values are copied before a remove is fanned out.
type Snapshotter interface {
	Snapshot() any
}
