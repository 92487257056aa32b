package options

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"opcbridge/cmd/bridge/config"
	"opcbridge/pkg/generic"
	baseoptions "opcbridge/pkg/generic/options"
	"opcbridge/pkg/plc"
	"opcbridge/pkg/storage"
	"opcbridge/pkg/tag"
	"opcbridge/pkg/utils/uuidutil"
)

type Options struct {
	Port        string        `json:"port"`
	Wait        time.Duration `json:"graceful-timeout"`
	PlcAddress  string        `json:"plc-address"`
	PlcPort     int           `json:"plc-port"`
	PlcUsername string        `json:"plc-username"`
	PlcPassword string        `json:"plc-password"`
	MqttBroker  string        `json:"mqtt-broker"`
	baseoptions.BaseOptions
}

const (
	_defaultPort       = "32201"
	_defaultWait       = 15 * time.Second
	_defaultPlcPort    = plc.DefaultPort
	_defaultMqttBroker = "tcp://127.0.0.1:1883"
)

func NewDefaultOptions() *Options {
	return &Options{
		Port:        _defaultPort,
		Wait:        _defaultWait,
		PlcPort:     _defaultPlcPort,
		MqttBroker:  _defaultMqttBroker,
		BaseOptions: baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port exposed")
	fs.DurationVar(&o.Wait, "graceful-timeout", o.Wait, "The duration for which the server gracefully wait for existing connections to finish - e.g. 15s or 1m")
	fs.StringVar(&o.PlcAddress, "plc-address", o.PlcAddress, "IP address of the PLC the bridge connects to")
	fs.IntVar(&o.PlcPort, "plc-port", o.PlcPort, "OPC UA port of the PLC")
	fs.StringVar(&o.PlcUsername, "plc-username", o.PlcUsername, "Username for the OPC UA session, anonymous when empty")
	fs.StringVar(&o.PlcPassword, "plc-password", o.PlcPassword, "Password for the OPC UA session")
	fs.StringVar(&o.MqttBroker, "mqtt-broker", o.MqttBroker, "MQTT broker URL value changes are published to - e.g. tcp://127.0.0.1:1883")
}

func (o *Options) Config(stopCh <-chan struct{}) (*config.Config, error) {
	c := &config.Config{}
	store, _ := generic.NewStore(storage.StoreGroupToString[storage.StoreGroupPlc], storage.Tags, &tag.Tag{})

	plcClient := plc.New(o.PlcAddress,
		plc.WithPort(o.PlcPort),
		plc.WithCredentials(o.PlcUsername, o.PlcPassword),
	)

	mqttOptions := mqtt.NewClientOptions().
		AddBroker(o.MqttBroker).
		SetClientID(fmt.Sprintf("opcbridge-%s", uuidutil.ShortUUID())).
		SetAutoReconnect(true)
	mqttClient := mqtt.NewClient(mqttOptions)
	if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
		klog.V(1).InfoS("Failed to connect MQTT broker", "broker", o.MqttBroker, "err", token.Error())
	}

	tagMgr := tag.NewManager(store, plcClient, mqttClient, stopCh)
	tagMgr.Init()
	c.TagMgr = tagMgr

	return c, nil
}
