package cmd

import (
	"encoding/csv"
	"fmt"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hlindberg/agentmq/internal/agent"
	"github.com/hlindberg/agentmq/internal/mqttproto"
	"github.com/hlindberg/agentmq/internal/wire"
)

var publishCmd = &cobra.Command{
	Use:   "pub",
	Short: "Publish one or more MQTT messages through the agent",
	Long: `Starts an agent, connects, publishes the given message (or every row of
a CSV file), waits for every publish to complete, then disconnects.`,
	Run: func(cmd *cobra.Command, args []string) {
		p := &publisher{}
		p.run()
	},
	Args: func(cmd *cobra.Command, args []string) error {
		if QoS < 0 || QoS > 2 {
			return fmt.Errorf("--qos must be between 0 and 2, got %d", QoS)
		}
		if KeepAliveSeconds < 0 {
			return fmt.Errorf("--keep_alive cannot be negative")
		}
		return nil
	},
}

type publisher struct {
	ctx      *agent.AgentContext
	producer *agent.Producer
}

func (p *publisher) dial() net.Conn {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%s", MQTTBroker, wire.UnencryptedPortTCP))
	if err != nil {
		panic(err)
	}
	return conn
}

func (p *publisher) clientName() string {
	if MQTTClientName == "" {
		MQTTClientName = wire.RandomClientID()
		log.Infof("Using generated client ID %s", MQTTClientName)
	}
	return MQTTClientName
}

// start dials the broker, brings up an agent goroutine around it, and blocks until
// CONNECT completes, storing in p.producer the Producer callers use for everything else.
func (p *publisher) start(clientName string) {
	client := mqttproto.NewClient(p.dial())
	if err := client.Init(clientName); err != nil {
		panic(err)
	}
	p.ctx = agent.NewAgent(client, agent.NewBoundedMessaging(64, 64), 64)
	go p.ctx.Run()
	p.producer = p.ctx.NewProducer()

	done := make(chan agent.CompletionResult, 1)
	ok, err := p.producer.Connect(agent.ConnectArgs{
		ClientID:         clientName,
		CleanSession:     true,
		KeepAliveSeconds: KeepAliveSeconds,
		TimeoutMs:        5000,
		WillTopic:        WillTopic,
		WillMessage:      []byte(WillMessage),
		WillQoS:          WillQoS,
		WillRetain:       WillRetain,
	}, 5000, func(_ interface{}, result agent.CompletionResult) { done <- result }, nil)
	if !ok || err != nil {
		panic(fmt.Sprintf("enqueuing CONNECT failed: %v", err))
	}
	if result := <-done; result.Status != agent.StatusSuccess {
		panic(fmt.Sprintf("CONNECT failed: %s", result.Status))
	}
}

func (p *publisher) publishMessage(topic, message string) <-chan agent.CompletionResult {
	done := make(chan agent.CompletionResult, 1)
	ok, err := p.producer.Publish(agent.PublishInfo{
		Topic:   topic,
		Message: []byte(message),
		QoS:     QoS,
		Retain:  Retain,
	}, 5000, func(_ interface{}, result agent.CompletionResult) { done <- result }, nil)
	if !ok || err != nil {
		panic(fmt.Sprintf("enqueuing PUBLISH failed: %v", err))
	}
	return done
}

func (p *publisher) publishGivenMessage() {
	if FileName == "" {
		result := <-p.publishMessage(Topic, Message)
		if result.Status != agent.StatusSuccess {
			log.Errorf("publish to %s failed: %s", Topic, result.Status)
		}
		return
	}
	p.publishFromFile()
}

func (p *publisher) publishFromFile() {
	f, err := os.Open(FileName)
	if err != nil {
		panic(fmt.Sprintf("cannot open file %s", FileName))
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		panic(fmt.Sprintf("cannot parse %s as CSV: %v", FileName, err))
	}

	pending := make([]<-chan agent.CompletionResult, 0, len(rows))
	for _, row := range rows {
		pending = append(pending, p.publishMessage(row[0], row[1]))
	}
	for i, ch := range pending {
		if result := <-ch; result.Status != agent.StatusSuccess {
			log.Errorf("publish of row %d failed: %s", i, result.Status)
		}
	}
}

func (p *publisher) disconnect() {
	done := make(chan agent.CompletionResult, 1)
	ok, err := p.producer.Disconnect(5000, func(_ interface{}, result agent.CompletionResult) { done <- result }, nil)
	if !ok || err != nil {
		log.Warnf("enqueuing DISCONNECT failed: %v", err)
		return
	}
	<-done
}

func (p *publisher) run() {
	clientName := p.clientName()
	p.start(clientName)
	p.publishGivenMessage()
	if !TestNoDisconnect {
		p.disconnect()
	} else {
		time.Sleep(100 * time.Millisecond)
	}
}

// MQTTBroker is the MQTT broker host to dial (port 1883 is always used)
var MQTTBroker string

// MQTTClientName is the MQTT client name - a short UUID by default
var MQTTClientName string

// Topic is the MQTT topic to publish to
var Topic string

// Message is the MQTT message text to publish
var Message string

// KeepAliveSeconds is the MQTT number of seconds to keep a connection alive
var KeepAliveSeconds int

// QoS is the MQTT quality of service to publish at
var QoS int

// FileName the name of a file to read instead of using --topic and --message
var FileName string

// Retain indicates if the published message should be retained
var Retain bool

// WillMessage is the MQTT message text to send on a dirty disconnect
var WillMessage string

// WillTopic is the MQTT topic to send a will message on a dirty disconnect
var WillTopic string

// WillQoS is the QoS for the delivery of the WILL message
var WillQoS int

// WillRetain is the retain flag for the WILL message publishing
var WillRetain bool

// TestNoDisconnect if true no DISCONNECT is sent thereby allowing WILL features to be tested
var TestNoDisconnect bool

func init() {
	RootCmd.AddCommand(publishCmd)
	flags := publishCmd.PersistentFlags()

	flags.StringVarP(&MQTTBroker,
		"broker", "b", "localhost", "the MQTT Broker host to connect to (default 'localhost')")
	flags.StringVarP(&MQTTClientName,
		"client", "c", "", "the MQTT client name to use - default is a short UUID")
	flags.StringVarP(&FileName,
		"file", "f", "", "File with CSV <topic, message> lines to publish")
	flags.IntVarP(&KeepAliveSeconds,
		"keep_alive", "", 0, "sets the number of seconds to keep a connection alive")
	flags.StringVarP(&Message,
		"message", "m", "", "the message to send")
	flags.StringVarP(&Topic,
		"topic", "t", "test", "the MQTT topic to send message to (default 'test')")
	flags.IntVarP(&QoS,
		"qos", "q", 0, "Quality of service 0-2 (default 0)")
	flags.BoolVarP(&Retain,
		"retain", "r", false, "If message should be retained")
	flags.StringVarP(&WillMessage,
		"wmessage", "", "", "the will message to send when disconnect is not clean")
	flags.IntVarP(&WillQoS,
		"wqos", "", 0, "Quality of service 0-2 (default 0) for publishing of WILL message")
	flags.BoolVarP(&WillRetain,
		"wretain", "", false, "If WILL message should be retained")
	flags.StringVarP(&WillTopic,
		"wtopic", "", "", "the topic for a will message to send when disconnect is not clean")
	flags.BoolVarP(&TestNoDisconnect,
		"test_no_disconnect", "", false, "do not send DISCONNECT to test WILL features")
}
