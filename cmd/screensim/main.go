// Command screensim drives a screen connection against a running ring:
// it discovers the current leader by querying ring ports in turn, submits
// a batch of orders, and logs the prepared/aborted outcomes the leader
// reports back.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"ringscoop/internal/config"
	"ringscoop/internal/flavor"
	"ringscoop/internal/logging"
	"ringscoop/internal/order"
	"ringscoop/internal/ringaddr"
	"ringscoop/internal/wire"
)

func main() {
	screenID := flag.Int("screen-id", 1, "screen id to register as")
	maxRobots := flag.Int("max-robots", config.DefaultMaxRobots, "number of ring robots to probe for the current leader")
	size := flag.String("size", string(order.Kilo), "order size: cucurucho, cuarto, medio, or kilo")
	flavorsFlag := flag.String("flavors", string(flavor.Chocolate), "comma-separated flavor ids for the order")
	count := flag.Int("count", 1, "number of orders to submit")
	interval := flag.Duration("interval", time.Second, "delay between successive order submissions")
	discoverTimeout := flag.Duration("discover-timeout", 5*time.Second, "how long to keep probing robots for a leader")
	flag.Parse()

	log, err := logging.New(config.LoggingConfig{Level: "info", Path: "screensim.log", MaxSizeMB: config.DefaultLogMaxSizeMB})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ord, err := buildOrder(*size, *flavorsFlag)
	if err != nil {
		log.Error("invalid order", logging.Error(err))
		os.Exit(1)
	}

	leaderID, err := discoverLeader(*maxRobots, *discoverTimeout)
	if err != nil {
		log.Error("failed to discover leader", logging.Error(err))
		os.Exit(1)
	}
	log.Info("discovered leader", logging.Int("leader_id", leaderID))

	nc, err := net.DialTimeout("tcp", ringaddr.Leader(leaderID), 2*time.Second)
	if err != nil {
		log.Error("failed to dial leader", logging.Error(err))
		os.Exit(1)
	}
	defer nc.Close()
	if err := wire.WriteRole(nc, wire.RoleScreenRegister, 0); err != nil {
		log.Error("failed to send role byte", logging.Error(err))
		os.Exit(1)
	}
	enc := wire.NewEncoder(nc)
	dec := wire.NewDecoder(nc)
	if err := enc.Encode(wire.Envelope{Type: wire.KindScreenOrders, ScreenID: *screenID}); err != nil {
		log.Error("failed to register screen", logging.Error(err))
		os.Exit(1)
	}

	go watchOutcomes(dec, log)

	for i := 0; i < *count; i++ {
		info := order.Info{
			Order:      ord,
			OrderID:    uuid.NewString(),
			ScreenID:   *screenID,
			SequenceID: uint64(i + 1),
		}
		if err := enc.Encode(wire.Envelope{Type: wire.KindNewOrder, ScreenID: *screenID, Order: &info}); err != nil {
			log.Error("failed to submit order", logging.Error(err))
			return
		}
		log.Info("submitted order", logging.String("order_id", info.OrderID))
		if i < *count-1 {
			time.Sleep(*interval)
		}
	}

	time.Sleep(*interval)
}

func buildOrder(size, flavorsCSV string) (order.Order, error) {
	var ids []flavor.ID
	for _, raw := range strings.Split(flavorsCSV, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		ids = append(ids, flavor.ID(raw))
	}
	switch order.Size(size) {
	case order.Cucurucho:
		if len(ids) == 0 {
			return order.Order{}, fmt.Errorf("cucurucho needs one flavor")
		}
		return order.NewCucurucho(ids[0])
	case order.Cuarto:
		return order.NewCuarto(ids)
	case order.Medio:
		return order.NewMedio(ids)
	case order.Kilo:
		return order.NewKilo(ids)
	default:
		return order.Order{}, fmt.Errorf("unknown order size %q", size)
	}
}

// discoverLeader queries robots 0..maxRobots-1 in turn on their ring port
// using the leader-query role byte, returning the first non-negative
// leader id any of them reports before timeout elapses.
func discoverLeader(maxRobots int, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for id := 0; id < maxRobots; id++ {
			leaderID, ok := queryLeader(ringaddr.Robot(id))
			if ok && leaderID >= 0 {
				return leaderID, nil
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return 0, fmt.Errorf("no robot reported a leader within %s", timeout)
}

func queryLeader(addr string) (int, bool) {
	nc, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return 0, false
	}
	defer nc.Close()
	if err := wire.WriteRole(nc, wire.RoleLeaderQuery, 0); err != nil {
		return 0, false
	}
	env, err := wire.NewDecoder(nc).Decode()
	if err != nil || env.Type != wire.KindLeaderID {
		return 0, false
	}
	return env.RobotID, true
}

func watchOutcomes(dec *wire.Decoder, log *logging.Logger) {
	for {
		env, err := dec.Decode()
		if err != nil {
			if err != io.EOF {
				log.Warn("outcome stream closed", logging.Error(err))
			}
			return
		}
		switch env.Type {
		case wire.KindOrderPrepared:
			log.Info("order prepared", logging.String("order_id", env.OrderID))
		case wire.KindOrderAborted:
			log.Warn("order aborted", logging.String("order_id", env.OrderID),
				logging.String("aborted_flavor", string(env.AbortedFlavor)))
		default:
			log.Warn("unexpected envelope from leader", logging.String("kind", string(env.Type)))
		}
	}
}
