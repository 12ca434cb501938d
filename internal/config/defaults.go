package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"storage": map[string]interface{}{
			"driver": DriverSQLite,
			"path":   "~/.visa-timeline/timeline.db",
			"dsn":    "",
			"key":    "visa.timeline.v1",
		},
		"timeline": map[string]interface{}{
			"reminder_hour": 9,
			"timezone":      "Local",
			"app_name":      "Visa Timeline",
		},
		"detector": map[string]interface{}{
			"max_chars":        20000,
			"max_hits":         18,
			"window":           120,
			"initial_delay_ms": 1200,
			"interval_ms":      7000,
		},
		"notify": map[string]interface{}{
			"enabled":  true,
			"db_path":  "~/.visa-timeline/notifications.db",
			"interval": 60,
			"telegram": map[string]interface{}{
				"bot_token": "",
				"chat_id":   "",
			},
		},
		"metrics": map[string]interface{}{
			"enabled": false,
			"addr":    ":9464",
		},
		"ui": map[string]interface{}{
			"colored_output": true,
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

func GetDefaultConfigPath() string {
	return "~/.visa-timeline/config.yaml"
}
