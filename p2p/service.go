package p2p

import (
	"context"
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"
)

const (
	// DefaultTopic is the single gossip topic all protocol traffic rides on.
	DefaultTopic = "ledgerd/blocks/1.0.0"

	// inboundBuffer bounds the delivery channel so one slow consumer or a
	// burst from a chatty peer cannot back-pressure the pubsub router.
	inboundBuffer = 64
)

// Config holds gossip service configuration.
type Config struct {
	// ListenAddrs are libp2p multiaddr strings. Empty means an ephemeral
	// TCP port on all interfaces.
	ListenAddrs []string

	// Topic overrides DefaultTopic, mainly for tests that need isolation.
	Topic string

	// MDNSServiceName overrides the LAN discovery service name.
	MDNSServiceName string

	// BootstrapPeers are full peer multiaddrs dialed at startup, for peers
	// that mDNS cannot reach.
	BootstrapPeers []string

	Logger zerolog.Logger
}

// Envelope is one decoded inbound message paired with its sender.
type Envelope struct {
	From    peer.ID
	Message *Message
}

// Service owns the libp2p host and the single gossip topic. It publishes
// tagged envelopes and delivers decoded inbound envelopes on a channel,
// dropping self-published traffic before it reaches the node.
type Service struct {
	cfg   Config
	log   zerolog.Logger
	host  host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	mdns  *mdnsDiscovery
	msgs  chan Envelope
}

// NewService assembles the host, joins the gossip topic and subscribes.
// Call Start to begin discovery and message delivery.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	listen := cfg.ListenAddrs
	if len(listen) == 0 {
		listen = []string{"/ip4/0.0.0.0/tcp/0"}
	}

	h, err := libp2p.New(libp2p.ListenAddrStrings(listen...))
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to create gossipsub: %w", err)
	}

	topicName := cfg.Topic
	if topicName == "" {
		topicName = DefaultTopic
	}
	topic, err := ps.Join(topicName)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to join topic %s: %w", topicName, err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topicName, err)
	}

	logger := cfg.Logger.With().Str("peer", h.ID().String()).Logger()

	return &Service{
		cfg:   cfg,
		log:   logger,
		host:  h,
		ps:    ps,
		topic: topic,
		sub:   sub,
		msgs:  make(chan Envelope, inboundBuffer),
	}, nil
}

// Start launches mDNS discovery, dials bootstrap peers and begins the read
// loop. The loop stops when ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.mdns = newMDNSDiscovery(s.host, s.cfg.MDNSServiceName, s.log)
	if err := s.mdns.Start(); err != nil {
		return fmt.Errorf("failed to start mdns discovery: %w", err)
	}

	go s.dialBootstrapPeers(ctx)
	go s.readLoop(ctx)

	for _, addr := range s.host.Addrs() {
		s.log.Info().Msgf("listening on %s/p2p/%s", addr, s.host.ID())
	}
	return nil
}

// ID returns the local libp2p peer ID.
func (s *Service) ID() peer.ID {
	return s.host.ID()
}

// Peers returns the peers currently seen on the gossip topic.
func (s *Service) Peers() []peer.ID {
	return s.topic.ListPeers()
}

// Host exposes the underlying libp2p host, used by tests to connect nodes
// directly.
func (s *Service) Host() host.Host {
	return s.host
}

// Messages is the stream of decoded inbound envelopes.
func (s *Service) Messages() <-chan Envelope {
	return s.msgs
}

// Publish sends a tagged envelope to all peers on the topic.
func (s *Service) Publish(ctx context.Context, msg *Message) error {
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", msg.Type, err)
	}
	return s.topic.Publish(ctx, data)
}

// Close tears down the subscription, topic and host.
func (s *Service) Close() error {
	s.sub.Cancel()
	if s.mdns != nil {
		s.mdns.Close()
	}
	err := s.topic.Close()
	if herr := s.host.Close(); err == nil {
		err = herr
	}
	return err
}

func (s *Service) readLoop(ctx context.Context) {
	defer close(s.msgs)

	for {
		raw, err := s.sub.Next(ctx)
		if err != nil {
			// Cancelled subscription or context; either way the service is done.
			if !errors.Is(err, context.Canceled) {
				s.log.Debug().Err(err).Msg("subscription closed")
			}
			return
		}

		// Gossipsub delivers our own publishes back to us.
		if raw.ReceivedFrom == s.host.ID() || raw.GetFrom() == s.host.ID() {
			continue
		}

		msg, err := DecodeMessage(raw.Data)
		if err != nil {
			s.log.Warn().Err(err).Stringer("from", raw.ReceivedFrom).Msg("dropping undecodable message")
			continue
		}

		select {
		case s.msgs <- Envelope{From: raw.GetFrom(), Message: msg}:
		default:
			s.log.Warn().Str("type", string(msg.Type)).Msg("inbound buffer full, dropping message")
		}
	}
}

func (s *Service) dialBootstrapPeers(ctx context.Context) {
	for _, addr := range s.cfg.BootstrapPeers {
		info, err := parsePeerAddr(addr)
		if err != nil {
			s.log.Warn().Err(err).Str("addr", addr).Msg("skipping bad bootstrap peer")
			continue
		}
		if err := s.host.Connect(ctx, *info); err != nil {
			s.log.Warn().Err(err).Stringer("peer", info.ID).Msg("bootstrap dial failed")
			continue
		}
		s.log.Info().Stringer("peer", info.ID).Msg("connected to bootstrap peer")
	}
}
