package plugin

import "time"

type Config struct {
	Args           []string      `mapstructure:"args"`
	InitTimeout    time.Duration `mapstructure:"init_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CapabilityTTL  time.Duration `mapstructure:"capability_ttl"`
	StopTimeout    time.Duration `mapstructure:"stop_timeout"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
}

func DefaultConfig() Config {
	return Config{
		InitTimeout:    10 * time.Second,
		RequestTimeout: 30 * time.Second,
		CapabilityTTL:  5 * time.Minute,
		StopTimeout:    3 * time.Second,
		Breaker:        DefaultBreakerConfig(),
	}
}
