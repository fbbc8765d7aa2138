// Package logger пишет структурированные записи (JSON или key=value)
// с уровнями, полями и привязкой к context.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// УРОВНИ
// ══════════════════════════════════════════════════════════════════════════════

// Level is the severity of an entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if l < LevelDebug || int(l) >= len(levelNames) {
		return "LEVEL(" + strconv.Itoa(int(l)) + ")"
	}
	return levelNames[l]
}

// ParseLevel accepts any case; unknown names fall back to INFO.
func ParseLevel(s string) Level {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return LevelWarn
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i)
		}
	}
	return LevelInfo
}

// Format selects the line encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat maps LOG_FORMAT values; anything but "text" is JSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatText)) {
		return FormatText
	}
	return FormatJSON
}

// ══════════════════════════════════════════════════════════════════════════════
// ПОЛЯ
// ══════════════════════════════════════════════════════════════════════════════

// Field is one key/value attached to an entry.
type Field struct {
	Key   string
	Value any
}

func F(key string, value any) Field { return Field{Key: key, Value: value} }

func String(key, value string) Field { return F(key, value) }

func Int(key string, value int) Field { return F(key, value) }

func Int64(key string, value int64) Field { return F(key, value) }

func Float64(key string, value float64) Field { return F(key, value) }

func Bool(key string, value bool) Field { return F(key, value) }

func Any(key string, value any) Field { return F(key, value) }

// Err stores the message, not the error value, so JSON output stays readable.
func Err(err error) Field {
	if err == nil {
		return F("error", nil)
	}
	return F("error", err.Error())
}

func Duration(key string, value time.Duration) Field { return F(key, value.String()) }

func Time(key string, value time.Time) Field { return F(key, value.Format(time.RFC3339)) }

// Поля предметной области.
func UserID(id string) Field        { return String("user_id", id) }
func CourseID(id string) Field      { return String("course_id", id) }
func LessonID(id string) Field      { return String("lesson_id", id) }
func EnrollmentID(id string) Field  { return String("enrollment_id", id) }
func DayNumber(day int) Field       { return Int("day_number", day) }
func Progress(pct int) Field        { return Int("progress", pct) }
func Score(score float64) Field     { return Float64("score", score) }
func ReasonCode(code string) Field  { return String("reason_code", code) }
func Email(email string) Field      { return String("email", email) }
func Component(name string) Field   { return String("component", name) }
func Operation(name string) Field   { return String("operation", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }

// ══════════════════════════════════════════════════════════════════════════════
// LOGGER
// ══════════════════════════════════════════════════════════════════════════════

// LogEntry is the JSON shape of one line.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Caller    string         `json:"caller,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Options configures New.
type Options struct {
	Output     io.Writer
	Level      Level
	Format     Format
	AddCaller  bool
	CallerSkip int
	Now        func() time.Time // UTC is applied on top
}

// DefaultOptions: stdout, INFO, JSON, with caller.
func DefaultOptions() Options {
	return Options{Output: os.Stdout, Level: LevelInfo, Format: FormatJSON, AddCaller: true}
}

// sink is shared by a logger and every child made with With,
// so concurrent writers never interleave lines.
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

// Logger is safe for concurrent use. With returns a child that shares output.
type Logger struct {
	sink       *sink
	level      Level
	format     Format
	addCaller  bool
	callerSkip int
	now        func() time.Time
	fields     []Field
}

func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	return &Logger{
		sink:       &sink{out: opts.Output},
		level:      opts.Level,
		format:     opts.Format,
		addCaller:  opts.AddCaller,
		callerSkip: opts.CallerSkip,
		now:        opts.Now,
	}
}

func Default() *Logger { return New(DefaultOptions()) }

// Nop discards everything.
func Nop() *Logger {
	return New(Options{Output: io.Discard, Level: LevelFatal + 1})
}

// FromConfig builds the process logger from LOG_LEVEL and LOG_FORMAT.
func FromConfig(level, format string, addCaller bool) *Logger {
	opts := DefaultOptions()
	opts.Level = ParseLevel(level)
	opts.Format = ParseFormat(format)
	opts.AddCaller = addCaller
	return New(opts)
}

func (l *Logger) With(fields ...Field) *Logger {
	child := *l
	child.fields = append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return &child
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool { return level >= l.level }

func (l *Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { l.write(LevelInfo, msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) { l.write(LevelWarn, msg, fields) }

func (l *Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

// Fatal writes the entry and exits with status 1.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.write(LevelFatal, msg, fields)
	os.Exit(1)
}

func (l *Logger) write(level Level, msg string, extra []Field) {
	if !l.Enabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
	}
	if l.addCaller {
		// write <- Info/Warn/... <- caller
		if _, file, line, ok := runtime.Caller(2 + l.callerSkip); ok {
			entry.Caller = file[strings.LastIndexByte(file, '/')+1:] + ":" + strconv.Itoa(line)
		}
	}
	if n := len(l.fields) + len(extra); n > 0 {
		entry.Fields = make(map[string]any, n)
		for _, f := range l.fields {
			entry.Fields[f.Key] = f.Value
		}
		// поля вызова перекрывают поля With
		for _, f := range extra {
			entry.Fields[f.Key] = f.Value
		}
	}

	var line []byte
	if l.format == FormatText {
		line = encodeText(entry)
	} else {
		var err error
		if line, err = json.Marshal(entry); err != nil {
			line = []byte(fmt.Sprintf(`{"timestamp":%q,"level":%q,"message":%q,"encode_error":%q}`,
				entry.Timestamp, entry.Level, msg, err.Error()))
		}
	}
	line = append(line, '\n')

	l.sink.mu.Lock()
	_, _ = l.sink.out.Write(line)
	l.sink.mu.Unlock()
}

// encodeText renders `ts LEVEL msg key=value ...` with keys sorted.
func encodeText(e LogEntry) []byte {
	var b strings.Builder
	b.WriteString(e.Timestamp)
	b.WriteByte(' ')
	b.WriteString(e.Level)
	b.WriteByte(' ')
	b.WriteString(e.Message)
	if e.Caller != "" {
		b.WriteString(" caller=")
		b.WriteString(e.Caller)
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		v := fmt.Sprint(e.Fields[k])
		if strings.ContainsAny(v, " \t\"=") || v == "" {
			v = strconv.Quote(v)
		}
		b.WriteString(v)
	}
	return []byte(b.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

type ctxKey struct{}

// RequestIDKey is the field name used for request correlation.
const RequestIDKey = "request_id"

func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the attached logger or a default one.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}

func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}
