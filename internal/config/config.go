package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pbinitiative/spaceflake/pkg/spaceflake"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Name       string     `yaml:"name" json:"name" env:"APP_NAME" env-default:"spaceflake"` // used for OTEL as an application identifier
	HttpServer HttpServer `yaml:"httpServer" json:"httpServer"`                             // configuration of the public REST server
	Generator  Generator  `yaml:"generator" json:"generator"`
	Tracing    Tracing    `yaml:"tracing" json:"tracing"`
}

type HttpServer struct {
	Context string `yaml:"context" json:"context" env:"REST_API_CONTEXT" env-default:"/"`
	Addr    string `yaml:"addr" json:"addr" env:"REST_API_ADDR" env-default:":8080"`
}

type Generator struct {
	// NodeId is the node every worker of this process belongs to. Processes sharing a base
	// epoch must use distinct node ids.
	NodeId    uint64 `yaml:"nodeId" json:"nodeId" env:"GENERATOR_NODE_ID"`
	BaseEpoch uint64 `yaml:"baseEpoch" json:"baseEpoch" env:"GENERATOR_BASE_EPOCH"`
	// Workers is the number of workers created up front and used round robin.
	Workers               int    `yaml:"workers" json:"workers" env:"GENERATOR_WORKERS" env-default:"1"`
	DisableDriftDetection bool   `yaml:"disableDriftDetection" json:"disableDriftDetection" env:"GENERATOR_DISABLE_DRIFT_DETECTION"`
	DriftToleranceMs      uint64 `yaml:"driftToleranceMs" json:"driftToleranceMs" env:"GENERATOR_DRIFT_TOLERANCE_MS"`
	MaxBulkAmount         int    `yaml:"maxBulkAmount" json:"maxBulkAmount" env:"GENERATOR_MAX_BULK_AMOUNT" env-default:"100000"`
	WorkerCacheSize       int    `yaml:"workerCacheSize" json:"workerCacheSize" env:"GENERATOR_WORKER_CACHE_SIZE" env-default:"64"`
}

type Tracing struct {
	Enabled  bool   `yaml:"enabled" json:"enabled" env:"OTEL_ENABLED"`
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Name     string `yaml:"name" json:"name" env:"OTEL_SERVICE_NAME"`
}

func (c Config) defaults() Config {
	if c.Generator.BaseEpoch == 0 {
		c.Generator.BaseEpoch = spaceflake.EPOCH
	}
	if c.Generator.DriftToleranceMs == 0 {
		c.Generator.DriftToleranceMs = spaceflake.DefaultDriftTolerance
	}
	if c.Tracing.Name == "" {
		c.Tracing.Name = c.Name
	}
	return c
}

// Validate checks the generator section against the spaceflake limits.
func (c Config) Validate() error {
	var errJoin error
	g := c.Generator
	if g.NodeId > spaceflake.MaxNodeID {
		errJoin = errors.Join(errJoin, fmt.Errorf("generator.nodeId must be less than or equal to %d, got %d", spaceflake.MaxNodeID, g.NodeId))
	}
	if g.Workers < 1 || g.Workers > int(spaceflake.MaxWorkerID) {
		errJoin = errors.Join(errJoin, fmt.Errorf("generator.workers must be between 1 and %d, got %d", spaceflake.MaxWorkerID, g.Workers))
	}
	if g.MaxBulkAmount < 1 {
		errJoin = errors.Join(errJoin, fmt.Errorf("generator.maxBulkAmount must be positive, got %d", g.MaxBulkAmount))
	}
	// every worker id 0..31 fits in the cache, a live worker is never evicted
	if g.WorkerCacheSize <= int(spaceflake.MaxWorkerID) {
		errJoin = errors.Join(errJoin, fmt.Errorf("generator.workerCacheSize must be greater than %d, got %d", spaceflake.MaxWorkerID, g.WorkerCacheSize))
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errJoin = errors.Join(errJoin, errors.New("tracing.endpoint is required when tracing is enabled"))
	}
	return errJoin
}

func (c Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %s", err)
	}
	return string(out)
}

// LoadConfig reads fileName, or only the environment when fileName does not exist.
func LoadConfig(fileName string) (Config, error) {
	c := Config{}
	var err error
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		err = cleanenv.ReadEnv(&c)
	} else {
		err = cleanenv.ReadConfig(fileName, &c)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	c = c.defaults()
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func InitConfig() Config {
	var fileName string
	confFile := os.Getenv("CONFIG_FILE")
	if confFile == "" {
		wd, err := os.Getwd()
		if err != nil {
			panic(err)
		}
		fileName = fmt.Sprintf("%s/conf.yaml", wd)
	} else {
		fileName = confFile
	}
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		fmt.Printf("Configuration file %s not found. Reading config from ENV.\n", fileName)
	}
	c, err := LoadConfig(fileName)
	if err != nil {
		fmt.Printf("Error occurred while reading the configuration: %s\n", err)
		panic(err)
	}
	return c
}
