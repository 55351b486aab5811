package outbox

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// HeaderEventType carries Message.Type on produced records.
const HeaderEventType = "event_type"

// KafkaPublisher publishes messages with a sarama.SyncProducer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaConfig returns the producer settings used for outbox delivery.
func NewKafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	return cfg
}

// NewKafkaPublisher connects a synchronous producer to brokers.
func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	p, err := sarama.NewSyncProducer(brokers, NewKafkaConfig())
	if err != nil {
		return nil, errors.Wrap(err, "create producer")
	}
	return NewKafkaPublisherFromProducer(p), nil
}

// NewKafkaPublisherFromProducer wraps an existing producer.
func NewKafkaPublisherFromProducer(p sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: p}
}

// Publish sends m keyed by its aggregate id, so events of one order keep
// their relative order within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, m Message) error {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]sarama.RecordHeader, 0, len(carrier)+1)
	headers = append(headers, sarama.RecordHeader{Key: []byte(HeaderEventType), Value: []byte(m.Type)})
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:   m.Topic,
		Key:     sarama.StringEncoder(m.Key),
		Value:   sarama.ByteEncoder(m.Payload),
		Headers: headers,
	})
	if err != nil {
		return errors.Wrapf(err, "send %s", m.Type)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
