package amqp

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmamqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/Xhand98/skillswap-realtime/config"
)

// PubSubProvider builds AMQP publishers and subscribers bound to the
// configured topic exchange.
type PubSubProvider struct {
	cfg    config.AMQPConfig
	logger watermill.LoggerAdapter
}

func NewPubSubProvider(cfg *config.Config, logger watermill.LoggerAdapter) *PubSubProvider {
	return &PubSubProvider{cfg: cfg.AMQP, logger: logger}
}

func (p *PubSubProvider) amqpConfig(queue string) wmamqp.Config {
	c := wmamqp.NewDurablePubSubConfig(p.cfg.URL, wmamqp.GenerateQueueNameConstant(queue))
	c.Exchange.GenerateName = func(string) string { return p.cfg.Exchange }
	c.Exchange.Type = "topic"
	c.Exchange.Durable = true
	c.QueueBind.GenerateRoutingKey = func(topic string) string { return topic }
	return c
}

// BuildSubscriber returns a durable subscriber consuming the given queue.
func (p *PubSubProvider) BuildSubscriber(queue string) (message.Subscriber, error) {
	sub, err := wmamqp.NewSubscriber(p.amqpConfig(queue), p.logger)
	if err != nil {
		return nil, fmt.Errorf("amqp: subscriber: %w", err)
	}
	return sub, nil
}

// BuildPublisher returns a publisher for the poison queue and diagnostics.
func (p *PubSubProvider) BuildPublisher() (message.Publisher, error) {
	pub, err := wmamqp.NewPublisher(p.amqpConfig(p.cfg.Queue), p.logger)
	if err != nil {
		return nil, fmt.Errorf("amqp: publisher: %w", err)
	}
	return pub, nil
}
