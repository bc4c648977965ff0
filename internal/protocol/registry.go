package protocol

import (
	"fmt"
	"sync"
)

// DecodeFunc builds a message from a frame
type DecodeFunc func(f Frame) (Message, error)

// Registry maps type tags to decoders. Each stream or relay owns its own instance.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]DecodeFunc
	fallback DecodeFunc
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]DecodeFunc)}
}

// NewSystemRegistry returns a registry with every built-in message type registered
func NewSystemRegistry() *Registry {
	r := NewRegistry()
	for typ, fn := range systemDecoders() {
		r.decoders[typ] = fn
	}
	return r
}

// Register adds or replaces the decoder for typ
func (r *Registry) Register(typ string, fn DecodeFunc) error {
	if err := checkField("type", typ, TypeSize); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("register %s: nil decoder", typ)
	}
	r.mu.Lock()
	r.decoders[typ] = fn
	r.mu.Unlock()
	return nil
}

// SetFallback installs a decoder used for unregistered types. Pass nil to remove it.
func (r *Registry) SetFallback(fn DecodeFunc) {
	r.mu.Lock()
	r.fallback = fn
	r.mu.Unlock()
}

// Registered reports whether typ has a dedicated decoder
func (r *Registry) Registered(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoders[typ]
	return ok
}

// Decode turns a frame into a message using the decoder registered for its type
func (r *Registry) Decode(f Frame) (Message, error) {
	r.mu.RLock()
	fn, ok := r.decoders[f.Type]
	if !ok {
		fn = r.fallback
	}
	r.mu.RUnlock()

	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, f.Type)
	}
	return fn(f)
}
