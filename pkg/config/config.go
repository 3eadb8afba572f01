package config

// Conversation definition conversation_service YAML structure
type Conversation struct {
	Port      string `mapstructure:"port"`
	PprofPort string `mapstructure:"pprof_port"`
	JWTSecret string `mapstructure:"jwt_secret"`
	// SessionTTL 單位分鐘
	SessionTTL int            `mapstructure:"session_ttl"`
	Upstream   UpstreamConfig `mapstructure:"upstream"`
	Stream     StreamConfig   `mapstructure:"stream"`
	List       ListConfig     `mapstructure:"list"`
	MongoSQL   DatabaseConfig `mapstructure:"mongo"`
	Redis      RedisConfig    `mapstructure:"redis"`
}

// UpstreamConfig definition remote conversation api
type UpstreamConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	StreamURL string `mapstructure:"stream_url"`
	// Timeout 單位秒
	Timeout int `mapstructure:"timeout"`
}

// StreamConfig definition live update transport
type StreamConfig struct {
	// Transport websocket | redis
	Transport string `mapstructure:"transport"`
	// Channel redis channel prefix, member id appended
	Channel string `mapstructure:"channel"`
}

// ListConfig definition conversation list view limits
type ListConfig struct {
	ParticipantLimit    int `mapstructure:"participant_limit"`
	PreviewMessageLimit int `mapstructure:"preview_message_limit"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// ApplyDefaults fill zero values with service defaults
func (c *Conversation) ApplyDefaults() {
	if c.Port == "" {
		c.Port = "8083"
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 60
	}
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = 10
	}
	if c.Stream.Transport == "" {
		c.Stream.Transport = "websocket"
	}
	if c.Stream.Channel == "" {
		c.Stream.Channel = "chat:user:"
	}
	if c.List.ParticipantLimit <= 0 {
		c.List.ParticipantLimit = 4
	}
	if c.List.PreviewMessageLimit <= 0 {
		c.List.PreviewMessageLimit = 1
	}
}
