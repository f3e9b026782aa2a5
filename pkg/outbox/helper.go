package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"habitflow/pkg/trace"
)

// InsertEventInTx 在事务中插入事件到 outbox（辅助函数）
// ctx 中的 trace_id 会写入 payload，dispatcher 发布时再取出
func InsertEventInTx(
	ctx context.Context,
	tx Execer,
	repo *Repository,
	aggregateType string,
	aggregateID *int64,
	routingKey string,
	payload interface{},
) error {
	payloadJSON, err := encodePayload(ctx, payload)
	if err != nil {
		return err
	}

	event := &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	}
	return repo.InsertEvent(ctx, tx, event)
}

func encodePayload(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return raw, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// 非对象 payload 不附加 trace_id
		return raw, nil
	}
	if _, ok := fields["trace_id"]; !ok {
		fields["trace_id"], _ = json.Marshal(traceID)
	}
	return json.Marshal(fields)
}

// traceIDFromPayload 从 payload 中提取 trace_id（如果存在）
func traceIDFromPayload(payload json.RawMessage) string {
	var fields struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}
	return fields.TraceID
}
