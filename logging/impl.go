package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl fans every entry out to its appenders. Subloggers share the appenders but own their level.
type impl struct {
	name      string
	level     AtomicLevel
	inUTC     bool
	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var errs error
	for _, appender := range imp.appenders {
		errs = multierr.Append(errs, appender.Sync())
	}
	return errs
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.level.Get() <= DEBUG {
		imp.write(DEBUG, msg, keysAndValues)
	}
}

// CDebugw also logs below the logger level when ctx is in debug mode, and appends the sample
// and stage fields carried by ctx.
func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.level.Get() <= DEBUG || IsDebugMode(ctx) {
		fields := contextFields(ctx)
		kvs := make([]interface{}, 0, len(keysAndValues)+len(fields))
		kvs = append(kvs, keysAndValues...)
		imp.write(DEBUG, msg, append(kvs, fields...))
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.level.Get() <= INFO {
		imp.write(INFO, msg, keysAndValues)
	}
}

// write must be called directly by the exported logging methods so the caller lookup lands on
// the line that logged.
func (imp *impl) write(level Level, msg string, keysAndValues []interface{}) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     caller(),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	fields := toFields(keysAndValues)
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// toFields pairs odd elements as keys with the value following them. A trailing key without a
// value is kept with an error value.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// caller skips itself, write and the exported logging method.
func caller() zapcore.EntryCaller {
	const skip = 3
	var c zapcore.EntryCaller
	c.PC, c.File, c.Line, c.Defined = runtime.Caller(skip)
	if !c.Defined {
		return c
	}
	if fn := runtime.FuncForPC(c.PC); fn != nil {
		c.Function = fn.Name()
	}
	return c
}
