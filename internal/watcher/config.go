package watcher

import "time"

type Config struct {
	Debounce time.Duration `mapstructure:"debounce"`
	MaxBatch int           `mapstructure:"max_batch"`
	// Include and Ignore match base names. Include only filters files of
	// watched directories; Ignore applies to every event.
	Include []string `mapstructure:"include"`
	Ignore  []string `mapstructure:"ignore"`
}

func DefaultConfig() Config {
	return Config{
		Debounce: 300 * time.Millisecond,
		MaxBatch: 100,
		Include:  []string{"*.yaml", "*.yml", "*.json"},
		Ignore: []string{
			".*",
			"*~",
			"*.swp",
			"*.tmp",
		},
	}
}
