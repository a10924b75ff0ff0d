package conf

import (
	"strings"

	"github.com/tphakala/passby-go/internal/errors"
)

// ValidateSettings checks the loaded settings for inconsistencies that would
// only surface later at runtime.
func ValidateSettings(settings *Settings) error {
	var problems []string

	if settings.Data.Path == "" {
		problems = append(problems, "data.path must not be empty")
	}

	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		problems = append(problems, "no database output enabled, enable output.sqlite or output.mysql")
	}
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		problems = append(problems, "output.sqlite and output.mysql are mutually exclusive")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		problems = append(problems, "output.sqlite.path must not be empty")
	}

	if settings.WebServer.Enabled && settings.WebServer.Port == "" {
		problems = append(problems, "webserver.port must not be empty")
	}
	if settings.WebServer.RateLimit.Enabled && settings.WebServer.RateLimit.RPS <= 0 {
		problems = append(problems, "webserver.ratelimit.rps must be positive")
	}

	if settings.Ingest.BatchSize <= 0 {
		problems = append(problems, "ingest.batchsize must be positive")
	}

	if settings.MQTT.Enabled && settings.MQTT.Broker == "" {
		problems = append(problems, "mqtt.broker must not be empty when mqtt is enabled")
	}

	if settings.Archive.Enabled {
		for i := range settings.Archive.Targets {
			t := &settings.Archive.Targets[i]
			switch t.Type {
			case "local":
				if t.Path == "" {
					problems = append(problems, "archive target local requires path")
				}
			case "ftp", "sftp":
				if t.Host == "" {
					problems = append(problems, "archive target "+t.Type+" requires host")
				}
			default:
				problems = append(problems, "unknown archive target type: "+t.Type)
			}
		}
	}

	if len(problems) > 0 {
		return errors.Newf("invalid configuration: %s", strings.Join(problems, "; ")).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}
