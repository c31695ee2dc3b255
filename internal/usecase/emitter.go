package usecase

import "context"

// EventEmitter is the outbound half of the protocol boundary. The websocket
// client satisfies it; tests substitute a recorder.
type EventEmitter interface {
	Emit(event string, data interface{}) error
	EmitWithAck(ctx context.Context, event string, data interface{}) (bool, error)
}
