package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SUNPROBE_"

var truthyValues = []string{"true", "yes", "1", "TRUE", "YES", "True", "Yes"}

type envKind int

const (
	envString envKind = iota
	envBool
)

type envOverride struct {
	path []string
	kind envKind
}

// envOverrides maps environment variables, without EnvPrefix, to config keys.
var envOverrides = map[string]envOverride{
	"UPLOAD_API":      {[]string{"upload", "enabled"}, envBool},
	"TRANSPORT":       {[]string{"upload", "transport"}, envString},
	"UPLOAD_TIMEOUT":  {[]string{"upload", "timeout"}, envString},
	"API_URL":         {[]string{"upload", "api_url"}, envString},
	"API_PATH":        {[]string{"upload", "api_path"}, envString},
	"API_TOKEN":       {[]string{"upload", "api_token"}, envString},
	"MQTT_BROKER":     {[]string{"upload", "mqtt_broker"}, envString},
	"MQTT_TOPIC":      {[]string{"upload", "mqtt_topic"}, envString},
	"MQTT_USERNAME":   {[]string{"upload", "mqtt_username"}, envString},
	"MQTT_PASSWORD":   {[]string{"upload", "mqtt_password"}, envString},
	"AP_NAME":         {[]string{"wifi", "ssid"}, envString},
	"AP_PASS":         {[]string{"wifi", "password"}, envString},
	"DEVICE_ID":       {[]string{"device_id"}, envString},
	"UPLOAD_INTERVAL": {[]string{"cycle", "upload_interval"}, envString},
	"SLEEP_INTERVAL":  {[]string{"cycle", "sleep_interval"}, envString},
	"COOLDOWN":        {[]string{"cycle", "cooldown"}, envString},
	"SLEEP_MODE":      {[]string{"cycle", "sleep_mode"}, envString},
	"UPLOAD_ON_BOOT":  {[]string{"cycle", "upload_on_boot"}, envBool},
	"DEBUG":           {[]string{"debug"}, envBool},
	"LOG_FILE":        {[]string{"log_file"}, envString},
	"METRICS_ADDR":    {[]string{"metrics_addr"}, envString},
	"BOARD":           {[]string{"board", "model"}, envString},
}

// IsTruthy reports whether an environment value turns a flag on.
func IsTruthy(value string) bool {
	return lo.Contains(truthyValues, strings.TrimSpace(value))
}

// Read reads a config from the given file, expanding ${VAR} references, then applies
// environment overrides. An empty path reads the environment only.
func Read(filePath string) (*Config, error) {
	raw := map[string]interface{}{}
	if filePath != "" {
		buf, err := envsubst.ReadFile(filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %q", filePath)
		}
		if err := json.Unmarshal(buf, &raw); err != nil {
			return nil, errors.Wrapf(err, "failed to decode config from json %q", filePath)
		}
	}

	conf, err := FromMap(raw, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	conf.ConfigFilePath = filePath
	return conf, nil
}

// FromMap decodes raw into a validated Config after applying overrides found through lookup.
// A nil raw, as decoded from a JSON null, is treated as empty.
func FromMap(raw map[string]interface{}, lookup func(string) (string, bool)) (*Config, error) {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	applyEnv(raw, lookup)

	conf := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           conf,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return conf, nil
}

func applyEnv(raw map[string]interface{}, lookup func(string) (string, bool)) {
	for name, override := range envOverrides {
		value, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		var v interface{} = value
		if override.kind == envBool {
			v = IsTruthy(value)
		}
		setPath(raw, override.path, v)
	}
}

func setPath(m map[string]interface{}, path []string, v interface{}) {
	for _, key := range path[:len(path)-1] {
		child, ok := m[key].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			m[key] = child
		}
		m = child
	}
	m[path[len(path)-1]] = v
}
