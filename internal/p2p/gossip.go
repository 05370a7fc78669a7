package p2p

import (
	"encoding/json"
	"fmt"

	"github.com/tobysharp/hornet/pkg/types"
	"github.com/tobysharp/hornet/pkg/wire"
)

// tipTopic is the gossip topic announcing new canonical tips.
const tipTopic = "hornet/tips/1.0.0"

// UserAgent identifies this implementation in version messages.
const UserAgent = "/hornet:0.1.0/"

// ProtocolVersion returns the version advertised in handshakes.
func ProtocolVersion() uint32 { return wire.ProtocolVersion }

// TipAnnouncement is the gossip payload published after a block
// retires: the new canonical tip.
type TipAnnouncement struct {
	Height int32      `json:"height"`
	Hash   types.Hash `json:"hash"`
}

// joinTipTopic subscribes to tip announcements and pumps them to the
// registered handler.
func (n *Node) joinTipTopic() error {
	topic, err := n.pubsub.Join(tipTopic)
	if err != nil {
		return fmt.Errorf("join %s: %w", tipTopic, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", tipTopic, err)
	}
	n.topicTip = topic
	n.subTip = sub

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			msg, err := sub.Next(n.ctx)
			if err != nil {
				return // context cancelled or subscription closed
			}
			if msg.ReceivedFrom == n.host.ID() {
				continue
			}
			var ann TipAnnouncement
			if err := json.Unmarshal(msg.Data, &ann); err != nil {
				n.logger.Debug().Err(err).Msg("malformed tip announcement")
				continue
			}
			if n.tipHandler != nil {
				n.tipHandler(ann)
			}
		}
	}()
	return nil
}

// OnTipAnnouncement registers the callback for remote tip
// announcements. Call before Start.
func (n *Node) OnTipAnnouncement(fn func(TipAnnouncement)) {
	n.tipHandler = fn
}

// AnnounceTip publishes the local canonical tip.
func (n *Node) AnnounceTip(height int32, hash types.Hash) error {
	if n.topicTip == nil {
		return fmt.Errorf("p2p node not started")
	}
	data, err := json.Marshal(TipAnnouncement{Height: height, Hash: hash})
	if err != nil {
		return fmt.Errorf("marshal tip announcement: %w", err)
	}
	return n.topicTip.Publish(n.ctx, data)
}
