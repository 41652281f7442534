package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/CitroenGames/garden-framework-sub000/internal/demoworld"
	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/client"
	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/transport"
	"github.com/CitroenGames/garden-framework-sub000/logger"
)

// ConnectCmd dials a server, completes the handshake, and prints the
// replicated world state as it arrives.
var ConnectCmd = &cobra.Command{
	Use:   "connect [address]",
	Short: "Connect to a replication server and print world state",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConnect,
}

var connectPlayerName string

func init() {
	ConnectCmd.Flags().StringVar(&connectPlayerName, "name", "player", "Player name sent in the CONNECT_REQUEST")
}

func runConnect(cmd *cobra.Command, args []string) error {
	addr := "ws://localhost:7777/ws"
	if len(args) == 1 {
		addr = args[0]
	}

	log := logger.Logger.Named("client")

	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	ch := transport.NewChannel(transport.NewWSConn(conn), nil)
	world := demoworld.NewClientWorld()
	c := client.NewClient(ch, world, log)
	c.OnDisconnected = func() { log.Infow("disconnected from server") }

	if err := c.Connect(connectPlayerName); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	log.Infow("connected", "state", c.State().String())

	clockMS := func() uint32 { return uint32(time.Now().UnixMilli()) }
	go c.Run(clockMS)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	printTicker := time.NewTicker(time.Second)
	defer printTicker.Stop()

	var moveForward float32 = 1
	inputTicker := time.NewTicker(time.Second / 10)
	defer inputTicker.Stop()

	for {
		select {
		case <-stop:
			return c.Disconnect("user quit")
		case <-printTicker.C:
			printWorld(world, c)
		case <-inputTicker.C:
			c.QueueInput(0, 0, 0, moveForward, 0)
		}
	}
}

func printWorld(world *demoworld.ClientWorld, c *client.Client) {
	entities := world.Entities()
	fmt.Printf("-- tick snapshot (ping=%.1fms, entities=%d) --\n", c.Stats().PingMS, len(entities))
	for id, e := range entities {
		marker := ""
		if id == c.LocalPlayerNetworkID() {
			marker = " (you)"
		}
		fmt.Printf("  entity %d%s pos=(%.2f,%.2f,%.2f)\n", id, marker, e.Pos[0], e.Pos[1], e.Pos[2])
	}
}
