package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"guildkit/core"
)

// Origin is the kind of UI control an interaction came from.
type Origin int

const (
	OriginButton Origin = iota
	OriginSelectMenu
	OriginModal
)

func (o Origin) String() string {
	switch o {
	case OriginButton:
		return "button"
	case OriginSelectMenu:
		return "select_menu"
	case OriginModal:
		return "modal"
	default:
		return "unknown"
	}
}

// silentMiss reports whether a missing handler is expected for this origin.
// Select menus go stale routinely; buttons and modals signal a mismatch.
func (o Origin) silentMiss() bool { return o == OriginSelectMenu }

// Responder acknowledges an interaction back to the user.
type Responder interface {
	RespondEphemeral(ctx context.Context, content string) error
}

// Event is one inbound component interaction.
type Event struct {
	CustomID  string
	Origin    Origin
	Guild     core.GuildID
	Member    core.MemberID
	Channel   core.ChannelID
	Values    []string
	Responder Responder
	// Raw is the platform event, for handlers that need more than the fields above.
	Raw any
}

// HandlerFunc handles every identifier in one namespace. It performs its own
// dispatch on id.Action.
type HandlerFunc func(ctx context.Context, ev *Event, id Identifier) error

// Result is the outcome of one dispatch.
type Result int

const (
	Handled Result = iota
	Missed
	Failed
)

func (r Result) String() string {
	switch r {
	case Handled:
		return "handled"
	case Missed:
		return "missed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultFailureMessage is shown to users when a handler fails. It carries no
// internal detail.
const DefaultFailureMessage = "Something went wrong while handling that. Please try again later."

// Registry collects handlers before a Router is built.
type Registry struct {
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry { return &Registry{handlers: map[string]HandlerFunc{}} }

// Handle registers h for namespace. It panics on an empty or duplicate
// namespace since both are programming errors at startup.
func (r *Registry) Handle(namespace string, h HandlerFunc) *Registry {
	if namespace == "" {
		panic("interaction: empty namespace")
	}
	if h == nil {
		panic("interaction: nil handler for " + namespace)
	}
	if _, ok := r.handlers[namespace]; ok {
		panic("interaction: duplicate handler for " + namespace)
	}
	r.handlers[namespace] = h
	return r
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the diagnostic logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithHook registers an observer called once per dispatch.
func WithHook(h func(context.Context, core.Event)) Option { return func(r *Router) { r.hook = h } }

// WithFailureMessage overrides the user-facing failure acknowledgment.
func WithFailureMessage(msg string) Option { return func(r *Router) { r.failureMsg = msg } }

// Router dispatches interactions by identifier namespace. Its table is
// copied from the Registry at construction and never written afterwards, so
// Dispatch is safe for concurrent use.
type Router struct {
	handlers   map[string]HandlerFunc
	log        *slog.Logger
	hook       func(context.Context, core.Event)
	failureMsg string
}

func NewRouter(reg *Registry, opts ...Option) *Router {
	r := &Router{
		handlers:   make(map[string]HandlerFunc, len(reg.handlers)),
		log:        slog.Default(),
		failureMsg: DefaultFailureMessage,
	}
	for ns, h := range reg.handlers {
		r.handlers[ns] = h
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Namespaces lists the registered namespaces.
func (r *Router) Namespaces() []string {
	out := make([]string, 0, len(r.handlers))
	for ns := range r.handlers {
		out = append(out, ns)
	}
	return out
}

// Dispatch routes ev to its handler. It never panics and never returns an
// error; failures are logged and acknowledged to the user. A nil event is
// reported as Missed.
func (r *Router) Dispatch(ctx context.Context, ev *Event) Result {
	if ev == nil {
		return Missed
	}
	id := ParseIdentifier(ev.CustomID)
	res := r.dispatch(ctx, ev, id)
	if r.hook != nil {
		r.hook(ctx, core.NewInteractionHandled(ev.Guild, ev.Member, id.Namespace, res.String()))
	}
	return res
}

func (r *Router) dispatch(ctx context.Context, ev *Event, id Identifier) Result {
	h, ok := r.handlers[id.Namespace]
	if !ok {
		if !ev.Origin.silentMiss() {
			r.log.WarnContext(ctx, "no interaction handler registered",
				"custom_id", id.Raw,
				"namespace", id.Namespace,
				"origin", ev.Origin.String())
		}
		return Missed
	}

	err := invoke(ctx, h, ev, id)
	if err == nil {
		return Handled
	}

	attrs := []any{
		"custom_id", id.Raw,
		"namespace", id.Namespace,
		"origin", ev.Origin.String(),
		"error", err,
	}
	if ev.Responder != nil {
		if ackErr := ev.Responder.RespondEphemeral(ctx, r.failureMsg); ackErr != nil {
			attrs = append(attrs, "ack_error", ackErr)
		}
	}
	r.log.ErrorContext(ctx, "interaction handler failed", attrs...)
	return Failed
}

// ErrHandlerPanic wraps a recovered handler panic.
var ErrHandlerPanic = errors.New("interaction handler panicked")

func invoke(ctx context.Context, h HandlerFunc, ev *Event, id Identifier) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()
	return h(ctx, ev, id)
}
