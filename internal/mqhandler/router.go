package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"habitflow/pkg/logger"
)

type TypedHandlerFunc func(ctx context.Context, data json.RawMessage) error

// Router dispatches deliveries by routing key. Its Handle method is an
// mq.MessageHandler.
type Router struct {
	routes map[string][]TypedHandlerFunc
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		routes: make(map[string][]TypedHandlerFunc),
		logger: logger,
	}
}

func (r *Router) Register(routingKey string, h TypedHandlerFunc) {
	r.routes[routingKey] = append(r.routes[routingKey], h)
}

// RoutingKeys lists every key with at least one handler, for queue binding.
func (r *Router) RoutingKeys() []string {
	keys := make([]string, 0, len(r.routes))
	for k := range r.routes {
		keys = append(keys, k)
	}
	return keys
}

// Handle runs every handler registered for routingKey and stops at the first
// error. Unknown keys are acknowledged.
func (r *Router) Handle(ctx context.Context, routingKey string, data json.RawMessage) error {
	handlers, ok := r.routes[routingKey]
	if !ok {
		logger.WithTrace(ctx, r.logger).Warn("No handler for routing key", zap.String("routing_key", routingKey))
		return nil
	}
	for _, h := range handlers {
		if err := h(ctx, data); err != nil {
			return err
		}
	}
	return nil
}
