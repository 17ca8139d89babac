package engine

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Publisher hands finished reports to other consumers. Publishing is best effort; the analysis
// result does not depend on it.
type Publisher interface {
	Publish(ctx context.Context, report *Report) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Report) error { return nil }
func (NopPublisher) Close() error                           { return nil }

const SubjectPrefix = "options.analysis."

func Subject(ticker string) string {
	return SubjectPrefix + ticker
}

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes every report, encoded like the protobuf HTTP responses, on
// options.analysis.<TICKER>.
type NATSPublisher struct {
	conn msgPublisher
	nc   *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("options-analyser"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc, nc: nc}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, report *Report) error {
	data, err := EncodeReport(report)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(Subject(report.Ticker))
	msg.Header.Set("Content-Type", ProtobufContentType)
	msg.Header.Set("Content-Encoding", ZstdEncoding)
	msg.Data = data
	return p.conn.PublishMsg(msg)
}

func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
