// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "PassBy-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "passby.log")

	viper.SetDefault("data.path", "data/")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "passby.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "passby")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "passby")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.bodylimit", "256M")
	viper.SetDefault("webserver.cors.enabled", true)
	viper.SetDefault("webserver.cors.allowedorigins", []string{"http://localhost:5173"})
	viper.SetDefault("webserver.ratelimit.enabled", true)
	viper.SetDefault("webserver.ratelimit.rps", 20.0)
	viper.SetDefault("webserver.ratelimit.burst", 40)
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "webserver.log")

	viper.SetDefault("ingest.uploadpath", "")
	viper.SetDefault("ingest.batchsize", 4000)

	viper.SetDefault("vehicles.configpath", "vehicles.json")
	viper.SetDefault("vehicles.cachettlmin", 5)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topicprefix", "passby/events")
	viper.SetDefault("mqtt.clientid", "passby-go")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("archive.enabled", false)
	viper.SetDefault("archive.targets", []map[string]any{})
}
