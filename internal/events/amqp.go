package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/streadway/amqp"

	"skillsync/internal/models"
)

// amqpSession is the part of an open channel the publisher uses.
type amqpSession interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// channelSession owns one connection and the single channel opened on it.
type channelSession struct {
	conn *amqp.Connection
	*amqp.Channel
}

func (s channelSession) Close() error {
	_ = s.Channel.Close()
	return s.conn.Close()
}

// AMQPPublisher publishes to a durable topic exchange over one long-lived
// channel. Routing keys look like resume.uploaded.<userID>. A failed publish
// drops the session and is retried once on a fresh connection.
type AMQPPublisher struct {
	exchange string
	open     func() (amqpSession, error)

	mu      sync.Mutex
	session amqpSession
}

func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is not configured")
	}
	p := &AMQPPublisher{
		exchange: exchange,
		open: func() (amqpSession, error) {
			conn, err := amqp.Dial(url)
			if err != nil {
				return nil, fmt.Errorf("dial amqp: %w", err)
			}
			ch, err := conn.Channel()
			if err != nil {
				conn.Close()
				return nil, fmt.Errorf("open amqp channel: %w", err)
			}
			if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
				conn.Close()
				return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
			}
			return channelSession{conn: conn, Channel: ch}, nil
		},
	}
	session, err := p.open()
	if err != nil {
		return nil, err
	}
	p.session = session
	return p, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event models.ResumeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := encode(event)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.At,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for attempt := 0; ; attempt++ {
		if p.session == nil {
			session, err := p.open()
			if err != nil {
				return err
			}
			p.session = session
		}
		err := p.session.Publish(p.exchange, routingKey(event), false, false, msg)
		if err == nil {
			return nil
		}
		p.dropSession()
		if attempt > 0 {
			return fmt.Errorf("publish %s: %w", event.Type, err)
		}
		log.Printf("amqp publish failed, reconnecting: %v", err)
	}
}

func (p *AMQPPublisher) dropSession() {
	if p.session != nil {
		_ = p.session.Close()
		p.session = nil
	}
}

func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	err := p.session.Close()
	p.session = nil
	return err
}
