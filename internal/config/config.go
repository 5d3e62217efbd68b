package config

import (
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	IsDebug *bool `yaml:"is_debug" env-default:"false"`
	Listen  struct {
		Type     string `yaml:"type" env-default:"port"`
		BindIP   string `yaml:"bind_ip" env-default:"0.0.0.0"`
		Port     string `yaml:"port" env-default:"5000"`
		TLS      bool   `yaml:"tls_enabled" env-default:"false"`
		CertFile string `yaml:"cert_file" env-default:""`
		KeyFile  string `yaml:"key_file" env-default:""`
	} `yaml:"listen"`
	Api struct {
		Enabled bool   `yaml:"enabled" env-default:"true"`
		BindIP  string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port    string `yaml:"port" env-default:"5001"`
	} `yaml:"api"`
	Relay struct {
		Enabled bool `yaml:"enabled" env-default:"false"`
	} `yaml:"relay"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		BindIP  string `yaml:"bind_ip" env-default:"0.0.0.0"`
		Port    string `yaml:"port" env-default:"5002"`
	} `yaml:"metrics"`
	Ocpp struct {
		CallTimeout       int  `yaml:"call_timeout" env-default:"30"`
		HeartbeatInterval int  `yaml:"heartbeat_interval" env-default:"600"`
		MeterInterval     int  `yaml:"meter_interval" env-default:"120"`
		AcceptTags        bool `yaml:"accept_unknown_tags" env-default:"false"`
		AcceptPoints      bool `yaml:"accept_unknown_points" env-default:"false"`
	} `yaml:"ocpp"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"localhost"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:""`
		Password string `yaml:"password" env-default:""`
		Database string `yaml:"database" env-default:"evlink"`
	} `yaml:"mongo"`
	Telegram struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		ApiKey  string `yaml:"api_key" env-default:""`
	} `yaml:"telegram"`
	Station struct {
		Enabled       bool   `yaml:"enabled" env-default:"false"`
		Id            string `yaml:"id" env-default:""`
		CentralSystem string `yaml:"central_system" env-default:"ws://localhost:5000/ws"`
		Connectors    int    `yaml:"connectors" env-default:"1"`
		Vendor        string `yaml:"vendor" env-default:"evlink"`
		Model         string `yaml:"model" env-default:"evlink-station"`
	} `yaml:"station"`
}

var instance *Config
var once sync.Once

func GetConfig() (*Config, error) {
	var err error
	once.Do(func() {
		log.Println("reading config")
		instance = &Config{}
		if err = cleanenv.ReadConfig("config.yml", instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			log.Println(desc)
			log.Println(err)
			instance = nil
		}
	})
	return instance, err
}
