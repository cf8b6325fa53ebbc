package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/omeyang/xdelay/internal/mqcore"
	"github.com/omeyang/xdelay/pkg/config/xconf"
	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/mq/xkafka"
	"github.com/omeyang/xdelay/pkg/mq/xlmstfy"
	"github.com/omeyang/xdelay/pkg/mq/xpulsar"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

func (a *App) buildBroker(context.Context) error {
	bc := a.cfg.Broker
	logger := a.logger.With(xlog.Component(bc.Type))
	switch bc.Type {
	case xconf.BrokerKafka:
		return a.buildKafka(bc.Kafka, logger)
	case xconf.BrokerPulsar:
		return a.buildPulsar(bc.Pulsar, logger)
	case xconf.BrokerLmstfy:
		return a.buildLmstfy(bc.Lmstfy, logger)
	default:
		b := xdelay.NewMemoryBroker(xdelay.WithMemoryTracer(mqcore.NewOTelTracer()))
		a.onClose("memory broker", func(context.Context) error { return b.Close() })
		a.sources = b.Sources()
		a.publisher = b
		return nil
	}
}

// kafkaConfig 生产者只需要 bootstrap.servers，消费者另加 group.id。
func kafkaConfig(kc xconf.KafkaConfig, consumer bool) (*kafka.ConfigMap, error) {
	cm := &kafka.ConfigMap{"bootstrap.servers": strings.Join(kc.Brokers, ",")}
	if consumer {
		if err := cm.SetKey("group.id", kc.Group); err != nil {
			return nil, err
		}
	}
	for _, kv := range kc.Properties {
		k, v, _ := strings.Cut(kv, "=")
		if err := cm.SetKey(strings.TrimSpace(k), strings.TrimSpace(v)); err != nil {
			return nil, fmt.Errorf("kafka property %s: %w", k, err)
		}
	}
	return cm, nil
}

func (a *App) buildKafka(kc xconf.KafkaConfig, logger xlog.Logger) error {
	consumerCfg, err := kafkaConfig(kc, true)
	if err != nil {
		return err
	}
	producerCfg, err := kafkaConfig(kc, false)
	if err != nil {
		return err
	}
	pub, err := xkafka.NewPublisher(producerCfg,
		xkafka.WithPublisherLogger(logger),
		xkafka.WithPublisherObserver(a.opts.observer),
	)
	if err != nil {
		return err
	}
	a.onClose("kafka publisher", func(context.Context) error { return pub.Close() })
	a.publisher = pub
	a.sources = xkafka.Sources(consumerCfg,
		xkafka.WithPollTimeout(kc.PollTimeout),
		xkafka.WithSourceLogger(logger),
		xkafka.WithSourceObserver(a.opts.observer),
	)
	return nil
}

func (a *App) buildPulsar(pc xconf.PulsarConfig, logger xlog.Logger) error {
	opts := []xpulsar.Option{
		xpulsar.WithLogger(logger),
		xpulsar.WithObserver(a.opts.observer),
	}
	if pc.Token != "" {
		opts = append(opts, xpulsar.WithAuthentication(pulsar.NewAuthenticationToken(pc.Token)))
	}
	client, err := xpulsar.NewClient(pc.URL, opts...)
	if err != nil {
		return err
	}
	a.onClose("pulsar client", func(context.Context) error { return client.Close() })

	pub := client.NewPublisher(
		xpulsar.WithPublisherLogger(logger),
		xpulsar.WithPublisherObserver(a.opts.observer),
	)
	a.onClose("pulsar publisher", func(context.Context) error { return pub.Close() })
	a.publisher = pub
	a.sources = client.Sources(pc.Subscription,
		xpulsar.WithPollTimeout(pc.PollTimeout),
		xpulsar.WithSourceLogger(logger),
		xpulsar.WithSourceObserver(a.opts.observer),
	)
	return nil
}

func (a *App) buildLmstfy(lc xconf.LmstfyConfig, logger xlog.Logger) error {
	client, err := xlmstfy.NewClient(lc.Host, lc.Port, lc.Namespace, lc.Token,
		xlmstfy.WithTTR(lc.TTR),
		xlmstfy.WithPollTimeout(lc.PollTimeout),
		xlmstfy.WithTries(uint16(lc.Tries)),
		xlmstfy.WithLogger(logger),
		xlmstfy.WithObserver(a.opts.observer),
	)
	if err != nil {
		return err
	}
	pub := client.NewPublisher()
	a.onClose("lmstfy publisher", func(context.Context) error { return pub.Close() })
	a.publisher = pub
	a.sources = client.Sources()
	return nil
}
