package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hlindberg/agentmq/internal/agent"
	"github.com/hlindberg/agentmq/internal/mqttproto"
	"github.com/hlindberg/agentmq/internal/wire"
)

var subscribeCmd = &cobra.Command{
	Use:   "sub",
	Short: "Subscribe to one or more MQTT topics and print delivered messages",
	Long: `Starts an agent, connects, subscribes to the given topic filters, and prints
every delivered PUBLISH to stdout until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		s := &subscriber{}
		s.run()
	},
}

type subscriber struct {
	ctx      *agent.AgentContext
	producer *agent.Producer
}

func (s *subscriber) dial() net.Conn {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%s", MQTTBroker, wire.UnencryptedPortTCP))
	if err != nil {
		panic(err)
	}
	return conn
}

func (s *subscriber) filters() []agent.TopicFilter {
	topics := strings.Split(SubTopics, ",")
	filters := make([]agent.TopicFilter, len(topics))
	for i, t := range topics {
		filters[i] = agent.TopicFilter{Topic: strings.TrimSpace(t), QoS: SubQoS}
	}
	return filters
}

func (s *subscriber) run() {
	clientName := MQTTClientName
	if clientName == "" {
		clientName = wire.RandomClientID()
		log.Infof("Using generated client ID %s", clientName)
	}

	client := mqttproto.NewClient(s.dial())
	if err := client.Init(clientName); err != nil {
		panic(err)
	}
	s.ctx = agent.NewAgent(client, agent.NewBoundedMessaging(64, 64), 64)
	s.ctx.SetPublishCallback(func(info agent.PublishInfo) {
		fmt.Printf("%s: %s\n", info.Topic, string(info.Message))
	})
	go s.ctx.Run()
	s.producer = s.ctx.NewProducer()

	connected := make(chan agent.CompletionResult, 1)
	ok, err := s.producer.Connect(agent.ConnectArgs{
		ClientID:         clientName,
		CleanSession:     true,
		KeepAliveSeconds: KeepAliveSeconds,
		TimeoutMs:        5000,
	}, 5000, func(_ interface{}, result agent.CompletionResult) { connected <- result }, nil)
	if !ok || err != nil {
		panic(fmt.Sprintf("enqueuing CONNECT failed: %v", err))
	}
	if result := <-connected; result.Status != agent.StatusSuccess {
		panic(fmt.Sprintf("CONNECT failed: %s", result.Status))
	}

	subscribed := make(chan agent.CompletionResult, 1)
	ok, err = s.producer.Subscribe(s.filters(), 5000,
		func(_ interface{}, result agent.CompletionResult) { subscribed <- result }, nil)
	if !ok || err != nil {
		panic(fmt.Sprintf("enqueuing SUBSCRIBE failed: %v", err))
	}
	if result := <-subscribed; result.Status != agent.StatusSuccess {
		panic(fmt.Sprintf("SUBSCRIBE failed: %s", result.Status))
	}
	log.Infof("subscribed to %s", SubTopics)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	done := make(chan agent.CompletionResult, 1)
	if ok, err := s.producer.Disconnect(5000, func(_ interface{}, result agent.CompletionResult) { done <- result }, nil); ok && err == nil {
		<-done
	}
}

// SubTopics is a comma separated list of MQTT topic filters to subscribe to
var SubTopics string

// SubQoS is the MQTT quality of service requested for every filter in SubTopics
var SubQoS int

func init() {
	RootCmd.AddCommand(subscribeCmd)
	flags := subscribeCmd.PersistentFlags()

	flags.StringVarP(&MQTTBroker,
		"broker", "b", "localhost", "the MQTT Broker host to connect to (default 'localhost')")
	flags.StringVarP(&MQTTClientName,
		"client", "c", "", "the MQTT client name to use - default is a short UUID")
	flags.IntVarP(&KeepAliveSeconds,
		"keep_alive", "", 0, "sets the number of seconds to keep a connection alive")
	flags.StringVarP(&SubTopics,
		"topics", "t", "test", "comma separated list of MQTT topic filters to subscribe to")
	flags.IntVarP(&SubQoS,
		"qos", "q", 0, "Quality of service 0-2 requested for every filter (default 0)")
}
