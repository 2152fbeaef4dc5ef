package types

import "time"

// Config is the chainaide configuration.
type Config struct {
	Logging struct {
		OutputLevel  string `yaml:"outputLevel" envconfig:"LOGGING_OUTPUT_LEVEL"`
		OutputStderr bool   `yaml:"outputStderr" envconfig:"LOGGING_OUTPUT_STDERR"`

		FilePath  string `yaml:"filePath" envconfig:"LOGGING_FILE_PATH"`
		FileLevel string `yaml:"fileLevel" envconfig:"LOGGING_FILE_LEVEL"`
	} `yaml:"logging"`

	Rpc EndpointConfig `yaml:"rpc"`

	Signer struct {
		PrivateKey string `yaml:"privateKey" envconfig:"SIGNER_PRIVATE_KEY"`
		ResultMode string `yaml:"resultMode" envconfig:"SIGNER_RESULT_MODE"` // auto, txn, hash or receipt
	} `yaml:"signer"`

	Receipt struct {
		Timeout      time.Duration `yaml:"timeout" envconfig:"RECEIPT_TIMEOUT"` // bound of every receipt wait, e.g. 20s
		PollInterval time.Duration `yaml:"pollInterval" envconfig:"RECEIPT_POLL_INTERVAL"`
	} `yaml:"receipt"`

	Database DatabaseConfig `yaml:"database"`

	Api struct {
		Enabled          bool          `yaml:"enabled" envconfig:"API_ENABLED"`
		Host             string        `yaml:"host" envconfig:"API_HOST"`
		Port             string        `yaml:"port" envconfig:"API_PORT"`
		RateLimit        uint          `yaml:"rateLimit" envconfig:"API_RATE_LIMIT"` // requests per second and ip, 0 disables the limit
		RateLimitBurst   uint          `yaml:"rateLimitBurst" envconfig:"API_RATE_LIMIT_BURST"`
		ProxyCount       uint          `yaml:"proxyCount" envconfig:"API_PROXY_COUNT"`
		CorsOrigins      []string      `yaml:"corsOrigins" envconfig:"API_CORS_ORIGINS"`
		CallCost         uint          `yaml:"callCost" envconfig:"API_CALL_COST"`   // rate limit tokens consumed by a contract call
		CacheSize        int           `yaml:"cacheSize" envconfig:"API_CACHE_SIZE"` // bytes of the read call cache
		CacheTtl         time.Duration `yaml:"cacheTtl" envconfig:"API_CACHE_TTL"`
		CacheRedis       string        `yaml:"cacheRedis" envconfig:"API_CACHE_REDIS"` // optional shared redis cache, host:port
		CacheRedisPrefix string        `yaml:"cacheRedisPrefix" envconfig:"API_CACHE_REDIS_PREFIX"`
		CallTimeout      time.Duration `yaml:"callTimeout" envconfig:"API_CALL_TIMEOUT"`
		HttpReadTimeout  time.Duration `yaml:"httpReadTimeout" envconfig:"API_HTTP_READ_TIMEOUT"`
		HttpWriteTimeout time.Duration `yaml:"httpWriteTimeout" envconfig:"API_HTTP_WRITE_TIMEOUT"`
		HttpIdleTimeout  time.Duration `yaml:"httpIdleTimeout" envconfig:"API_HTTP_IDLE_TIMEOUT"`
	} `yaml:"api"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" envconfig:"METRICS_ENABLED"`
		Public  bool   `yaml:"public" envconfig:"METRICS_PUBLIC"`
		Host    string `yaml:"host" envconfig:"METRICS_HOST"`
		Port    string `yaml:"port" envconfig:"METRICS_PORT"`
	} `yaml:"metrics"`
}

type EndpointConfig struct {
	Url       string             `yaml:"url" envconfig:"RPC_URL"`
	Name      string             `yaml:"name" envconfig:"RPC_NAME"`
	Headers   map[string]string  `yaml:"headers" envconfig:"RPC_HEADERS"`
	Ssh       *EndpointSshConfig `yaml:"ssh"`
	RateLimit float64            `yaml:"rateLimit" envconfig:"RPC_RATE_LIMIT"` // calls per second, 0 disables the limit
	RateBurst int                `yaml:"rateBurst" envconfig:"RPC_RATE_BURST"`
	Timeout   time.Duration      `yaml:"timeout" envconfig:"RPC_TIMEOUT"`
}

// EndpointSshConfig enables an ssh tunnel to the rpc endpoint when Host is set.
type EndpointSshConfig struct {
	Host       string `yaml:"host" envconfig:"RPC_SSH_HOST"`
	Port       string `yaml:"port" envconfig:"RPC_SSH_PORT"`
	User       string `yaml:"user" envconfig:"RPC_SSH_USER"`
	Password   string `yaml:"password" envconfig:"RPC_SSH_PASSWORD"`
	Keyfile    string `yaml:"keyfile" envconfig:"RPC_SSH_KEYFILE"`
	KnownHosts string `yaml:"knownHosts" envconfig:"RPC_SSH_KNOWN_HOSTS"` // known_hosts file, empty accepts any host key
}

type DatabaseConfig struct {
	Engine      string                    `yaml:"engine" envconfig:"DATABASE_ENGINE"` // sqlite, pgsql or none
	Sqlite      SqliteDatabaseConfig      `yaml:"sqlite"`
	Pgsql       PgsqlDatabaseConfig       `yaml:"pgsql"`
	PgsqlWriter PgsqlWriterDatabaseConfig `yaml:"pgsqlWriter"`
}

type SqliteDatabaseConfig struct {
	File         string `yaml:"file" envconfig:"DATABASE_SQLITE_FILE"`
	MaxOpenConns int    `yaml:"maxOpenConns" envconfig:"DATABASE_SQLITE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"maxIdleConns" envconfig:"DATABASE_SQLITE_MAX_IDLE_CONNS"`
}

type PgsqlDatabaseConfig struct {
	Username     string `yaml:"user" envconfig:"DATABASE_PGSQL_USERNAME"`
	Password     string `yaml:"password" envconfig:"DATABASE_PGSQL_PASSWORD"`
	Name         string `yaml:"name" envconfig:"DATABASE_PGSQL_NAME"`
	Host         string `yaml:"host" envconfig:"DATABASE_PGSQL_HOST"`
	Port         string `yaml:"port" envconfig:"DATABASE_PGSQL_PORT"`
	MaxOpenConns int    `yaml:"maxOpenConns" envconfig:"DATABASE_PGSQL_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"maxIdleConns" envconfig:"DATABASE_PGSQL_MAX_IDLE_CONNS"`
}

type PgsqlWriterDatabaseConfig struct {
	Username     string `yaml:"user" envconfig:"DATABASE_PGSQL_WRITER_USERNAME"`
	Password     string `yaml:"password" envconfig:"DATABASE_PGSQL_WRITER_PASSWORD"`
	Name         string `yaml:"name" envconfig:"DATABASE_PGSQL_WRITER_NAME"`
	Host         string `yaml:"host" envconfig:"DATABASE_PGSQL_WRITER_HOST"`
	Port         string `yaml:"port" envconfig:"DATABASE_PGSQL_WRITER_PORT"`
	MaxOpenConns int    `yaml:"maxOpenConns" envconfig:"DATABASE_PGSQL_WRITER_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"maxIdleConns" envconfig:"DATABASE_PGSQL_WRITER_MAX_IDLE_CONNS"`
}
