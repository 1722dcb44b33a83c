package ctxutil

import "context"

type traceDataKey struct{}

// TraceData correlates log lines and upstream calls. HTTP requests carry TraceID/RequestID;
// background niche runs carry NicheID/RunEpoch instead.
type TraceData struct {
	TraceID   string
	RequestID string
	NicheID   string
	RunEpoch  int64
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}

// LogFields returns the populated ids as logger key/value pairs.
func (td *TraceData) LogFields() []interface{} {
	if td == nil {
		return nil
	}
	var out []interface{}
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		out = append(out, "request_id", td.RequestID)
	}
	if td.NicheID != "" {
		out = append(out, "niche_id", td.NicheID, "run_epoch", td.RunEpoch)
	}
	return out
}
