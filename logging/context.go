package logging

import "context"

type contextKey int

const (
	debugKey contextKey = iota
	fieldsKey
)

// EnableDebugMode returns a context under which CDebugw logs whatever the logger level is.
func EnableDebugMode(ctx context.Context) context.Context {
	return context.WithValue(ctx, debugKey, true)
}

// IsDebugMode returns whether ctx was returned by EnableDebugMode or derives from one.
func IsDebugMode(ctx context.Context) bool {
	debug, _ := ctx.Value(debugKey).(bool)
	return debug
}

// WithSample returns a context whose context-aware logs name the sample being processed.
func WithSample(ctx context.Context, sampleID string) context.Context {
	return withFields(ctx, "sample", sampleID)
}

// WithStage returns a context whose context-aware logs name the running stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return withFields(ctx, "stage", stage)
}

func withFields(ctx context.Context, key string, value interface{}) context.Context {
	parent := contextFields(ctx)
	fields := make([]interface{}, 0, len(parent)+2)
	fields = append(fields, parent...)
	return context.WithValue(ctx, fieldsKey, append(fields, key, value))
}

func contextFields(ctx context.Context) []interface{} {
	fields, _ := ctx.Value(fieldsKey).([]interface{})
	return fields
}
