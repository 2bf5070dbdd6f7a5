// Package broadcaster relays trade prints from the durable outbox to Kafka.
// The engine never waits on it: a bus subscriber writes each trade into the
// outbox, and a periodic scan pushes pending records to the broker with
// at-least-once semantics.
package broadcaster

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/SparshBisen/Crypto/bus"
	"github.com/SparshBisen/Crypto/domain/orderbook"
	"github.com/SparshBisen/Crypto/infra/outbox"
)

type Broadcaster struct {
	outbox   *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *logrus.Logger
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	ob *outbox.Outbox,
	brokers []string,
	topic string,
	interval time.Duration,
	log *logrus.Logger,
) (*Broadcaster, error) {

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	return &Broadcaster{
		outbox:   ob,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      log,
	}, nil
}

// ------------------------------------------------
// INGEST
// ------------------------------------------------

// Ingest drains the trade subscription into the outbox until the context
// ends or the channel closes. It runs off the match path; an outbox write
// failure is logged and that trade is skipped. No count of failures is kept,
// and failures never reach the submitter.
func (b *Broadcaster) Ingest(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			trade, ok := e.Payload.(orderbook.Trade)
			if !ok {
				continue
			}
			payload, err := json.Marshal(trade)
			if err != nil {
				b.log.WithError(err).Warn("broadcaster: trade marshal failed")
				continue
			}
			if err := b.outbox.Append(trade.Seq, payload); err != nil {
				b.log.WithError(err).Warn("broadcaster: outbox append failed")
			}
		}
	}
}

// ------------------------------------------------
// RELAY LOOP
// ------------------------------------------------

func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("broadcaster started")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.relayOnce()
		}
	}
}

func (b *Broadcaster) relayOnce() {
	err := b.outbox.ScanPending(func(rec outbox.Record) error {
		// Mark SENT first so a crash mid-publish re-delivers.
		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(keyOf(rec)),
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.log.WithError(err).WithField("seq", rec.Seq).
				Warn("broadcaster: publish failed, will retry")
			return nil // retry on a later scan
		}

		return b.outbox.MarkAcked(rec.Seq)
	})
	if err != nil {
		b.log.WithError(err).Warn("broadcaster: scan failed")
	}
}

// keyOf extracts the symbol for partition affinity; falls back to the
// fixed key "trade" when the payload is unreadable.
func keyOf(rec outbox.Record) string {
	var t orderbook.Trade
	if err := json.Unmarshal(rec.Payload, &t); err == nil && t.Symbol != "" {
		return t.Symbol
	}
	return "trade"
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
