package eventcenter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/logging"
	"github.com/curseddelta/curseddelta/internal/notify"
	"github.com/curseddelta/curseddelta/internal/throttle"
)

// Default coalescing windows.
const (
	DefaultChatlistInterval = time.Second
	DefaultMessagesInterval = time.Second
	DefaultNotifyInterval   = 2 * time.Second
)

const notifyTimeout = 10 * time.Second

// Options configures a Center.
type Options struct {
	ChatlistInterval time.Duration
	MessagesInterval time.Duration
	NotifyInterval   time.Duration

	// Notifier receives notifications for incoming messages. Nil disables
	// notifications.
	Notifier notify.Notifier
}

type subscription struct {
	id      string
	filter  Filter
	handler Handler
}

// Center consumes engine events and republishes them as coalesced signals.
type Center struct {
	eng      engine.Engine
	notifier notify.Notifier
	logger   zerolog.Logger

	mu            sync.RWMutex
	subscriptions map[string]*subscription

	chatlistInterval time.Duration
	messagesInterval time.Duration

	// Each account gets its own latest-wins streams so one account's
	// signal never replaces another's pending one.
	streamsMu sync.Mutex
	streams   map[int]*accountStreams
	closed    bool

	incoming *throttle.BatchThrottle[engine.Event]

	closeOnce sync.Once
}

// New creates a Center for eng. Call Run to start consuming events.
func New(eng engine.Engine, opts Options) *Center {
	c := &Center{
		eng:           eng,
		notifier:      opts.Notifier,
		logger:        logging.Component("eventcenter"),
		subscriptions: make(map[string]*subscription),

		chatlistInterval: orDefault(opts.ChatlistInterval, DefaultChatlistInterval),
		messagesInterval: orDefault(opts.MessagesInterval, DefaultMessagesInterval),
		streams:          make(map[int]*accountStreams),
	}
	c.incoming = throttle.NewBatch(c.notifyIncoming, orDefault(opts.NotifyInterval, DefaultNotifyInterval), throttle.WithName("notify"))
	return c
}

type accountStreams struct {
	chatlist *throttle.Throttle[Signal]
	messages *throttle.Throttle[Signal]
}

// streamsFor returns acc's coalescers, creating them on first use. It
// returns nil after Close.
func (c *Center) streamsFor(acc int) *accountStreams {
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	if c.closed {
		return nil
	}
	if s, ok := c.streams[acc]; ok {
		return s
	}
	publish := func(sig Signal) error {
		c.Publish(sig)
		return nil
	}
	logger := c.logger.With().Int("account_id", acc).Logger()
	s := &accountStreams{
		chatlist: throttle.New(publish, c.chatlistInterval, throttle.WithName("chatlist"), throttle.WithLogger(logger)),
		messages: throttle.New(publish, c.messagesInterval, throttle.WithName("messages"), throttle.WithLogger(logger)),
	}
	c.streams[acc] = s
	return s
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Run dispatches engine events until the engine's stream ends or ctx is
// cancelled.
func (c *Center) Run(ctx context.Context) error {
	events := c.eng.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				c.logger.Debug().Msg("engine event stream closed")
				return nil
			}
			c.Dispatch(ev)
		}
	}
}

// Dispatch routes a single engine event.
func (c *Center) Dispatch(ev engine.Event) {
	chatlist := Signal{Kind: ChatlistChanged, Account: ev.Account, ChatID: ev.ChatID, MsgID: ev.MsgID}
	messages := Signal{Kind: MessagesChanged, Account: ev.Account, ChatID: ev.ChatID, MsgID: ev.MsgID}

	switch ev.Kind {
	case engine.EventChatModified:
		c.Publish(Signal{Kind: ChatChanged, Account: ev.Account, ChatID: ev.ChatID})
		c.invoke(ev.Account, chatlist, true)
	case engine.EventContactsChanged, engine.EventMsgsNoticed:
		c.invoke(ev.Account, chatlist, true)
	case engine.EventIncomingMsg:
		c.invoke(ev.Account, messages, false)
		c.invoke(ev.Account, chatlist, true)
		if c.notifier != nil {
			c.incoming.Invoke(ev)
		}
	case engine.EventMsgsChanged:
		c.invoke(ev.Account, messages, false)
		c.invoke(ev.Account, chatlist, true)
	case engine.EventMsgDelivered, engine.EventMsgFailed, engine.EventMsgRead:
		c.invoke(ev.Account, messages, false)
	case engine.EventInfo:
		c.logger.Debug().Int("account_id", ev.Account).Msg(ev.Msg)
	case engine.EventWarning:
		c.logger.Warn().Int("account_id", ev.Account).Msg(ev.Msg)
	case engine.EventError:
		c.logger.Error().Int("account_id", ev.Account).Msg(ev.Msg)
	default:
		c.logger.Debug().Int("account_id", ev.Account).Str("type", ev.Type).Msg("ignoring engine event")
	}
}

func (c *Center) invoke(acc int, sig Signal, chatlist bool) {
	s := c.streamsFor(acc)
	if s == nil {
		return
	}
	if chatlist {
		s.chatlist.Invoke(sig)
	} else {
		s.messages.Invoke(sig)
	}
}

// Publish sends sig to every matching subscriber synchronously.
func (c *Center) Publish(sig Signal) {
	c.mu.RLock()
	var handlers []Handler
	for _, sub := range c.subscriptions {
		if sub.filter.Matches(sig) {
			handlers = append(handlers, sub.handler)
		}
	}
	c.mu.RUnlock()

	// Handlers run outside the lock so they may subscribe or unsubscribe.
	for _, handler := range handlers {
		handler(sig)
	}
}

// Subscribe registers handler for signals matching filter.
func (c *Center) Subscribe(id string, filter Filter, handler Handler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.subscriptions[id]; exists {
		return ErrSubscriptionExists
	}
	c.subscriptions[id] = &subscription{id: id, filter: filter, handler: handler}
	return nil
}

// Unsubscribe removes a subscription by ID.
func (c *Center) Unsubscribe(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.subscriptions[id]; !exists {
		return ErrSubscriptionNotFound
	}
	delete(c.subscriptions, id)
	return nil
}

// UpdateSubscription replaces the filter of an existing subscription.
func (c *Center) UpdateSubscription(id string, filter Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, exists := c.subscriptions[id]
	if !exists {
		return ErrSubscriptionNotFound
	}
	sub.filter = filter
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (c *Center) SubscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions)
}

// Close stops the throttles, flushing pending notifications, and drops all
// subscriptions.
func (c *Center) Close() {
	c.closeOnce.Do(func() {
		c.streamsMu.Lock()
		c.closed = true
		streams := c.streams
		c.streams = nil
		c.streamsMu.Unlock()
		for _, s := range streams {
			s.chatlist.Close()
			s.messages.Close()
		}
		c.incoming.Close()

		c.mu.Lock()
		c.subscriptions = make(map[string]*subscription)
		c.mu.Unlock()
	})
}

func (c *Center) notifyIncoming(events []engine.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	byAccount := make(map[int][]engine.Message)
	var order []int
	for _, ev := range events {
		msg, err := c.eng.GetMessage(ctx, ev.Account, ev.MsgID)
		if err != nil {
			c.logger.Warn().Err(err).Int("msg_id", ev.MsgID).Msg("failed to load incoming message")
			continue
		}
		ok, err := notify.ShouldNotify(ctx, c.eng, ev.Account, msg)
		if err != nil {
			c.logger.Warn().Err(err).Int("msg_id", ev.MsgID).Msg("failed to evaluate notification")
			continue
		}
		if !ok {
			continue
		}
		if _, seen := byAccount[ev.Account]; !seen {
			order = append(order, ev.Account)
		}
		byAccount[ev.Account] = append(byAccount[ev.Account], msg)
	}

	c.logger.Debug().Int("events", len(events)).Int("accounts", len(order)).Msg("notifying new messages")
	for _, acc := range order {
		notes, err := notify.Format(ctx, c.eng, acc, byAccount[acc])
		if err != nil {
			return err
		}
		for _, n := range notes {
			if err := c.notifier.Notify(ctx, n); err != nil {
				return err
			}
		}
	}
	return nil
}
