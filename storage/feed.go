package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"motime/domain"
)

const (
	kindDay     = "day"
	kindProfile = "profile"
)

// changeEvent is the per-user notification published after every write.
// Subscribers re-fetch from the table store on receipt, so the event only
// needs to say what changed, not carry the data.
type changeEvent struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Kind   string `json:"kind"`
	Date   string `json:"date,omitempty"`
	Time   int64  `json:"time"`
}

func (s *Storage) channel(userID string) string {
	return s.channelPrefix + userID
}

func (s *Storage) publish(ctx context.Context, ev changeEvent) {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		log.WithError(err).Error("marshal change event")
		return
	}
	if err := s.redis.Publish(ctx, s.channel(ev.UserID), payload).Err(); err != nil {
		log.WithError(err).WithField("user", ev.UserID).Error("publish change event")
	}
}

// runFeed delivers one refresh immediately, then one per matching change
// event. When the pubsub channel drops it resubscribes after retry and
// refreshes again, so no change published during the gap is lost.
func runFeed(ctx context.Context, rc *redis.Client, channel string, retry time.Duration, matches func(changeEvent) bool, refresh func(context.Context)) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
		refresh(ctx)
	recv:
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev changeEvent
				if err := sonic.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.WithError(err).Error("unable to parse change event")
					continue
				}
				if matches(ev) {
					refresh(ctx)
				}
			}
		}
		sub.Close()
		if ctx.Err() != nil {
			return
		}
		log.WithField("channel", channel).Error("change feed closed, reconnecting")
		time.Sleep(retry)
	}
}

// SubscribeDay pushes the record for one (user, date), nil when absent. The
// callback fires once with the current state and again after every change to
// that date. The returned handle cancels the subscription.
func (s *Storage) SubscribeDay(ctx context.Context, userID, date string, onChange func(*domain.DayRecord)) func() {
	ctx, cancel := context.WithCancel(ctx)
	refresh := func(ctx context.Context) {
		rec, err := s.ReadDay(ctx, userID, date)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).WithField("date", date).Error("fetch day record")
			}
			return
		}
		onChange(rec)
	}
	matches := func(ev changeEvent) bool {
		return ev.Kind == kindDay && ev.Date == date
	}
	go runFeed(ctx, s.redis, s.channel(userID), s.retryDelay, matches, refresh)
	return cancel
}

// SubscribeDays pushes the user's full day collection, keyed by date, on
// every change to any day.
func (s *Storage) SubscribeDays(ctx context.Context, userID string, onChange func(map[string]domain.DayRecord)) func() {
	ctx, cancel := context.WithCancel(ctx)
	refresh := func(ctx context.Context) {
		records, err := s.ListDays(ctx, userID)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).WithField("user", userID).Error("list day records")
			}
			return
		}
		onChange(records)
	}
	matches := func(ev changeEvent) bool {
		return ev.Kind == kindDay
	}
	go runFeed(ctx, s.redis, s.channel(userID), s.retryDelay, matches, refresh)
	return cancel
}

// SubscribeProfile pushes the user's profile document, nil when absent.
func (s *Storage) SubscribeProfile(ctx context.Context, userID string, onChange func(*domain.Profile)) func() {
	ctx, cancel := context.WithCancel(ctx)
	refresh := func(ctx context.Context) {
		p, err := s.ReadProfile(ctx, userID)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).WithField("user", userID).Error("fetch profile")
			}
			return
		}
		onChange(p)
	}
	matches := func(ev changeEvent) bool {
		return ev.Kind == kindProfile
	}
	go runFeed(ctx, s.redis, s.channel(userID), s.retryDelay, matches, refresh)
	return cancel
}
