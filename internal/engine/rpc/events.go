package rpc

import (
	"errors"
	"time"

	"github.com/curseddelta/curseddelta/internal/engine"
)

const eventRetryDelay = 200 * time.Millisecond

type wireEvent struct {
	ContextID int `json:"contextId"`
	Event     struct {
		Kind   string `json:"kind"`
		ChatID int    `json:"chatId"`
		MsgID  int    `json:"msgId"`
		Msg    string `json:"msg"`
	} `json:"event"`
}

func (w wireEvent) toEngine() engine.Event {
	return engine.Event{
		Account: w.ContextID,
		Kind:    engine.ParseEventKind(w.Event.Kind),
		ChatID:  w.Event.ChatID,
		MsgID:   w.Event.MsgID,
		Msg:     w.Event.Msg,
		Type:    w.Event.Kind,
	}
}

func (c *Client) eventLoop() {
	defer c.wg.Done()
	defer close(c.events)
	for {
		var ev wireEvent
		err := c.Call(c.ctx, "get_next_event", &ev)
		if c.ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, engine.ErrClosed) {
				return
			}
			c.logger.Warn().Err(err).Msg("get_next_event failed")
			select {
			case <-time.After(eventRetryDelay):
			case <-c.ctx.Done():
				return
			}
			continue
		}
		select {
		case c.events <- ev.toEngine():
		case <-c.ctx.Done():
			return
		}
	}
}
