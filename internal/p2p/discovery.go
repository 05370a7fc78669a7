package p2p

import (
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"
)

const (
	// dhtRendezvous is the DHT namespace isolating hornet peers.
	dhtRendezvous = "hornet"

	// dhtDiscoveryInterval is how often FindPeers runs.
	dhtDiscoveryInterval = 30 * time.Second
)

// startDiscovery boots a Kademlia DHT, advertises this node under the
// rendezvous namespace, and periodically dials discovered peers.
func (n *Node) startDiscovery() error {
	kad, err := dht.New(n.ctx, n.host, dht.Mode(dht.ModeAuto))
	if err != nil {
		return err
	}
	if err := kad.Bootstrap(n.ctx); err != nil {
		return err
	}

	routing := drouting.NewRoutingDiscovery(kad)
	dutil.Advertise(n.ctx, routing, n.rendezvous())

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(dhtDiscoveryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-n.ctx.Done():
				return
			case <-ticker.C:
			}

			peers, err := routing.FindPeers(n.ctx, n.rendezvous())
			if err != nil {
				n.logger.Debug().Err(err).Msg("dht find peers failed")
				continue
			}
			for pi := range peers {
				if pi.ID == n.host.ID() || len(pi.Addrs) == 0 {
					continue
				}
				if _, known := n.registry.LookupRemote(pi.ID); known {
					continue
				}
				if err := n.host.Connect(n.ctx, pi); err != nil {
					continue
				}
				stream, err := n.host.NewStream(n.ctx, pi.ID, WireProtocol)
				if err != nil {
					continue
				}
				n.runPeer(stream, true)
			}
		}
	}()
	return nil
}

// rendezvous returns the discovery namespace, isolated per network.
func (n *Node) rendezvous() string {
	return dhtRendezvous + "/" + n.cfg.Params.Name
}
