package p2p

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	mdns "github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"
)

const (
	// DefaultMDNSServiceName is the LAN discovery service identifier.
	// Nodes only find each other when they advertise the same name.
	DefaultMDNSServiceName = "ledgerd"

	mdnsDialTimeout = 10 * time.Second
)

// mdnsDiscovery advertises the node on the local network and dials every
// peer it hears about. Connection alone is enough: gossipsub meshes form on
// top of whatever connections exist.
type mdnsDiscovery struct {
	host host.Host
	svc  mdns.Service
	log  zerolog.Logger
}

func newMDNSDiscovery(h host.Host, serviceName string, log zerolog.Logger) *mdnsDiscovery {
	if serviceName == "" {
		serviceName = DefaultMDNSServiceName
	}
	d := &mdnsDiscovery{host: h, log: log}
	d.svc = mdns.NewMdnsService(h, serviceName, d)
	return d
}

func (d *mdnsDiscovery) Start() error {
	return d.svc.Start()
}

func (d *mdnsDiscovery) Close() {
	_ = d.svc.Close()
}

// HandlePeerFound implements the mdns.Notifee interface.
func (d *mdnsDiscovery) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == d.host.ID() {
		return
	}
	if d.host.Network().Connectedness(info.ID) == network.Connected {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mdnsDialTimeout)
	defer cancel()
	if err := d.host.Connect(ctx, info); err != nil {
		d.log.Debug().Err(err).Stringer("peer", info.ID).Msg("mdns dial failed")
		return
	}
	d.log.Info().Stringer("peer", info.ID).Msg("discovered peer via mdns")
}

// parsePeerAddr turns a full peer multiaddr (.../p2p/<id>) into dialable
// AddrInfo.
func parsePeerAddr(addr string) (*peer.AddrInfo, error) {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return nil, err
	}
	return peer.AddrInfoFromP2pAddr(maddr)
}
