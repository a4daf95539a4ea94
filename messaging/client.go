package messaging

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"

	"partpicker/config"
)

// Client is the unified messaging client (MQTT or Kafka).
type Client struct {
	mu        sync.RWMutex
	cfg       *config.MessagingConfig
	stationID string
	mqttConn  mqtt.Client
	kafkaW    *kafkago.Writer
	kafkaR    *kafkago.Reader
	cancel    context.CancelFunc

	// MQTT subscriptions, replayed on every (re)connect since a clean
	// session forgets them.
	subs map[string]func(payload []byte)

	connectTimeout time.Duration
	onConnect      func()
	onDisconnect   func(error)
}

// NewClient creates a messaging client. The station ID names the MQTT
// client and the Kafka consumer group, so every station receives every
// notice.
func NewClient(cfg *config.MessagingConfig, stationID string) *Client {
	return &Client{
		cfg:            cfg,
		stationID:      stationID,
		subs:           map[string]func([]byte){},
		connectTimeout: 10 * time.Second,
	}
}

// OnConnectionChange registers callbacks for connect and disconnect.
func (c *Client) OnConnectionChange(onConnect func(), onDisconnect func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = onConnect
	c.onDisconnect = onDisconnect
}

// Connect establishes the messaging connection. An MQTT broker that is
// down is not fatal: the client keeps retrying in the background and
// subscribes once it gets through.
func (c *Client) Connect() error {
	switch c.cfg.Backend {
	case "mqtt":
		return c.connectMQTT()
	case "kafka":
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.connectKafka()
	default:
		return fmt.Errorf("unknown messaging backend: %s", c.cfg.Backend)
	}
}

func (c *Client) clientID() string {
	if c.cfg.MQTT.ClientID != "" {
		return c.cfg.MQTT.ClientID
	}
	return "partpicker-" + c.stationID
}

func (c *Client) connectMQTT() error {
	c.mu.Lock()
	broker := fmt.Sprintf("tcp://%s:%d", c.cfg.MQTT.Broker, c.cfg.MQTT.Port)
	onConnect, onDisconnect := c.onConnect, c.onDisconnect
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.clientID()).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(client mqtt.Client) {
			log.Info().Str("broker", broker).Msg("messaging: mqtt connected")
			c.resubscribe(client)
			if onConnect != nil {
				onConnect()
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("messaging: mqtt connection lost")
			if onDisconnect != nil {
				onDisconnect(err)
			}
		})

	client := mqtt.NewClient(opts)
	c.mqttConn = client
	timeout := c.connectTimeout
	c.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connect: broker %s not reachable yet, retrying in background", broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// resubscribe replays every recorded MQTT subscription on client.
func (c *Client) resubscribe(client mqtt.Client) {
	c.mu.RLock()
	subs := make(map[string]func([]byte), len(c.subs))
	for topic, h := range c.subs {
		subs[topic] = h
	}
	c.mu.RUnlock()

	for topic, handler := range subs {
		subscribeMQTT(client, topic, handler)
	}
}

func subscribeMQTT(client mqtt.Client, topic string, handler func([]byte)) mqtt.Token {
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("messaging: mqtt subscribe")
		}
	}()
	return token
}

func (c *Client) connectKafka() error {
	if len(c.cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}
	conn, err := kafkago.Dial("tcp", c.cfg.Kafka.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka dial: %w", err)
	}
	c.ensureTopics(conn, c.cfg.ChangesTopic)
	conn.Close()

	c.kafkaW = &kafkago.Writer{
		Addr:                   kafkago.TCP(c.cfg.Kafka.Brokers...),
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}
	log.Info().Strs("brokers", c.cfg.Kafka.Brokers).Msg("messaging: kafka connected")
	if c.onConnect != nil {
		c.onConnect()
	}
	return nil
}

// ensureTopics creates Kafka topics if they don't already exist.
func (c *Client) ensureTopics(conn *kafkago.Conn, topics ...string) {
	if len(topics) == 0 {
		return
	}
	controller, err := conn.Controller()
	if err != nil {
		log.Warn().Err(err).Msg("messaging: cannot find controller for topic creation")
		return
	}
	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := kafkago.Dial("tcp", controllerAddr)
	if err != nil {
		log.Warn().Err(err).Msg("messaging: cannot connect to controller")
		return
	}
	defer controllerConn.Close()

	configs := make([]kafkago.TopicConfig, len(topics))
	for i, t := range topics {
		configs[i] = kafkago.TopicConfig{Topic: t, NumPartitions: 1, ReplicationFactor: 1}
	}
	if err := controllerConn.CreateTopics(configs...); err != nil {
		log.Warn().Err(err).Msg("messaging: topic auto-create")
		return
	}
	log.Info().Strs("topics", topics).Msg("messaging: ensured topics exist")
}

// Publish sends a message to the given topic.
func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.cfg.Backend {
	case "mqtt":
		if c.mqttConn == nil || !c.mqttConn.IsConnected() {
			return fmt.Errorf("mqtt not connected")
		}
		token := c.mqttConn.Publish(topic, 1, false, payload)
		token.Wait()
		return token.Error()
	case "kafka":
		if c.kafkaW == nil {
			return fmt.Errorf("kafka writer not initialized")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return c.kafkaW.WriteMessages(ctx, kafkago.Message{Topic: topic, Value: payload})
	default:
		return fmt.Errorf("unknown backend: %s", c.cfg.Backend)
	}
}

// Subscribe registers a handler for messages on a topic. MQTT
// subscriptions are remembered and renewed after every reconnect.
func (c *Client) Subscribe(topic string, handler func(payload []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.cfg.Backend {
	case "mqtt":
		c.subs[topic] = handler
		if c.mqttConn == nil || !c.mqttConn.IsConnected() {
			log.Info().Str("topic", topic).Msg("messaging: mqtt subscription deferred until connected")
			return nil
		}
		subscribeMQTT(c.mqttConn, topic, handler)
		return nil
	case "kafka":
		group := c.cfg.Kafka.GroupID + "-" + c.stationID
		c.kafkaR = kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     c.cfg.Kafka.Brokers,
			Topic:       topic,
			GroupID:     group,
			StartOffset: kafkago.LastOffset,
		})
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		reader := c.kafkaR
		go func() {
			for {
				msg, err := reader.ReadMessage(ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						log.Error().Err(err).Str("topic", topic).Msg("messaging: kafka read")
					}
					return
				}
				handler(msg.Value)
			}
		}()
		return nil
	default:
		return fmt.Errorf("unknown backend: %s", c.cfg.Backend)
	}
}

// IsConnected returns whether the messaging client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.cfg.Backend {
	case "mqtt":
		return c.mqttConn != nil && c.mqttConn.IsConnected()
	case "kafka":
		return c.kafkaW != nil
	default:
		return false
	}
}

// Close shuts down the messaging connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.mqttConn != nil {
		c.mqttConn.Disconnect(1000)
		c.mqttConn = nil
	}
	if c.kafkaW != nil {
		c.kafkaW.Close()
		c.kafkaW = nil
	}
	if c.kafkaR != nil {
		c.kafkaR.Close()
		c.kafkaR = nil
	}
}
