// Package dispatch runs one provider send: validate, resolve the backend,
// build, authenticate, transmit and parse.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shineum/anymail-lite/internal/mailerr"
	"github.com/shineum/anymail-lite/internal/message"
	"github.com/shineum/anymail-lite/internal/provider"
	"github.com/shineum/anymail-lite/internal/status"
)

const instrumentationName = "github.com/shineum/anymail-lite/internal/dispatch"

// Config is the explicit per-send configuration. Nothing is read from
// process-wide state.
type Config struct {
	Provider    string
	Credentials provider.Credentials
	Options     provider.Options

	// ESPExtra holds default provider overrides; the message's own
	// esp_extra wins over these.
	ESPExtra map[string]any

	IgnoreUnsupportedFeatures bool
}

// Dispatcher sends messages through a registry of backends and a transport.
// It keeps no per-send state and is safe for concurrent use.
type Dispatcher struct {
	transport provider.Transport
	registry  *provider.Registry
	logger    *slog.Logger
	newID     func() string

	tracer   trace.Tracer
	sends    metric.Int64Counter
	duration metric.Float64Histogram
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithRegistry replaces the built-in backend registry.
func WithRegistry(r *provider.Registry) Option {
	return func(d *Dispatcher) { d.registry = r }
}

// WithIDGenerator replaces the random local part of generated Message-IDs.
func WithIDGenerator(f func() string) Option {
	return func(d *Dispatcher) { d.newID = f }
}

// New returns a dispatcher that transmits through t.
func New(t provider.Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: t,
		registry:  DefaultRegistry(),
		logger:    slog.Default(),
		newID:     uuid.NewString,
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(d)
	}

	meter := otel.Meter(instrumentationName)
	var err error
	d.sends, err = meter.Int64Counter("anymail.sends", metric.WithDescription("Number of send attempts by provider and outcome"))
	if err != nil {
		d.logger.Error("failed to create send counter", "error", err)
	}
	d.duration, err = meter.Float64Histogram("anymail.send.duration", metric.WithDescription("Send duration in milliseconds"))
	if err != nil {
		d.logger.Error("failed to create send duration histogram", "error", err)
	}
	return d
}

// Send makes exactly one provider call for msg and returns its normalized
// status. Errors are *mailerr.ValidationError, *mailerr.UnsupportedFeatureError,
// *mailerr.ConfigError or *mailerr.APIError; nothing is retried.
func (d *Dispatcher) Send(ctx context.Context, msg *message.Message, cfg Config) (*status.Status, error) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "anymail.send", trace.WithAttributes(
		attribute.String("anymail.provider", cfg.Provider),
	))
	defer span.End()

	st, err := d.send(ctx, msg, cfg)

	outcome := outcomeOf(err)
	attrs := []attribute.KeyValue{
		attribute.String("anymail.provider", cfg.Provider),
		attribute.String("anymail.outcome", outcome),
	}
	if d.sends != nil {
		d.sends.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if d.duration != nil {
		d.duration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.WarnContext(ctx, "email send failed",
			"provider", cfg.Provider,
			"outcome", outcome,
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("anymail.recipients", len(st.Recipients)))
	span.SetStatus(codes.Ok, "")
	d.logger.InfoContext(ctx, "email sent",
		"provider", cfg.Provider,
		"recipients", len(st.Recipients),
		"status", st.Set.Slice(),
		"message_id", st.MessageID,
	)
	return st, nil
}

func (d *Dispatcher) send(ctx context.Context, msg *message.Message, cfg Config) (*status.Status, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	backend, err := d.registry.New(cfg.Provider, cfg.Options)
	if err != nil {
		return nil, err
	}
	if _, err := cfg.Credentials.Scheme(); err != nil {
		return nil, err
	}

	caps := backend.Capabilities()
	dropped, err := provider.CheckSupport(backend, msg, cfg.IgnoreUnsupportedFeatures)
	if err != nil {
		return nil, err
	}
	for _, f := range dropped {
		d.logger.WarnContext(ctx, "dropping unsupported feature",
			"provider", backend.Name(),
			"feature", string(f),
		)
	}

	env := &provider.Envelope{
		Message:  msg,
		ESPExtra: provider.MergedExtra(cfg.ESPExtra, msg.ESPExtra),
	}
	if caps.GeneratesMessageID {
		env.MessageID = d.messageID(msg)
	}

	req, err := backend.BuildPayload(env)
	if err != nil {
		return nil, err
	}
	req, err = backend.Authenticate(ctx, req, cfg.Credentials, d.transport)
	if err != nil {
		return nil, err
	}

	resp, err := d.transport.Do(ctx, req)
	if err != nil {
		return nil, &mailerr.APIError{
			Provider:    backend.Name(),
			Description: err.Error(),
			Err:         err,
		}
	}

	st, err := backend.ParseResponse(env, resp)
	if err != nil {
		return nil, err
	}

	d.applyIDMode(ctx, backend.Name(), caps, msg, st)
	return st, nil
}

// applyIDMode enforces the backend's declared id scheme on the aggregate. Only
// a shared id is exposed as Status.MessageID, and only one assigned before
// building is expected to carry the sender's domain.
func (d *Dispatcher) applyIDMode(ctx context.Context, name string, caps provider.Capabilities, msg *message.Message, st *status.Status) {
	switch caps.IDMode {
	case status.SharedID:
		if !caps.GeneratesMessageID || st.MessageID == "" {
			return
		}
		if err := status.CheckMessageID(st.MessageID, msg.From.Domain()); err != nil {
			d.logger.WarnContext(ctx, "unexpected message id format",
				"provider", name,
				"error", err,
			)
		}
	default:
		st.MessageID = ""
	}
}

// messageID keeps a caller-supplied Message-ID header, otherwise generates
// one under the sender's domain.
func (d *Dispatcher) messageID(msg *message.Message) string {
	if id, ok := msg.Header("Message-ID"); ok && id != "" {
		return id
	}
	return fmt.Sprintf("<%s@%s>", d.newID(), msg.From.Domain())
}

func outcomeOf(err error) string {
	var (
		validationErr  *mailerr.ValidationError
		unsupportedErr *mailerr.UnsupportedFeatureError
		configErr      *mailerr.ConfigError
		apiErr         *mailerr.APIError
	)
	switch {
	case err == nil:
		return "sent"
	case errors.As(err, &validationErr):
		return "invalid"
	case errors.As(err, &unsupportedErr):
		return "unsupported"
	case errors.As(err, &configErr):
		return "config_error"
	case errors.As(err, &apiErr):
		return "api_error"
	default:
		return "error"
	}
}
