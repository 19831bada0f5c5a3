package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/Novoflow/internal/domain"
)

// DefaultFileName — файл конфигурации в текущем каталоге.
const DefaultFileName = "novoflow.yaml"

// Значения по умолчанию.
const (
	DefaultBinary         = "docker"
	DefaultCommandTimeout = 30 * time.Second
	DefaultAPIAddr        = ":8080"
	DefaultWorkerAddr     = ":8081"
)

// Config — конфигурация всех бинарников Novoflow.
type Config struct {
	Runtime  RuntimeConfig         `yaml:"runtime"`
	Store    StoreConfig           `yaml:"store"`
	Images   []ImageConfig         `yaml:"images" validate:"dive"`
	Steps    map[string]StepConfig `yaml:"steps" validate:"dive,keys,step,endkeys"`
	Workflow WorkflowConfig        `yaml:"workflow"`
	MQ       MQConfig              `yaml:"mq"`
	API      ServerConfig          `yaml:"api"`
	Worker   ServerConfig          `yaml:"worker"`
	Log      LogConfig             `yaml:"log"`
}

// RuntimeConfig — бинарник контейнерного runtime.
type RuntimeConfig struct {
	// Binary — имя или путь бинарника.
	Binary string `yaml:"binary" validate:"required"`

	// ExtraPaths — каталоги, добавляемые к PATH.
	ExtraPaths []string `yaml:"extra_paths"`

	// CommandTimeout — лимит для коротких запросов (images, info, --version).
	CommandTimeout time.Duration `yaml:"command_timeout" validate:"gte=0"`

	// UID, GID — пользователь контейнеров; пусто — uid/gid процесса.
	UID string `yaml:"uid"`
	GID string `yaml:"gid"`
}

// StoreConfig — хранилище projects и tasks.
type StoreConfig struct {
	Driver   string `yaml:"driver" validate:"oneof=badger postgres"`
	DataDir  string `yaml:"data_dir" validate:"required_if=Driver badger InMemory false"`
	InMemory bool   `yaml:"in_memory"`
	DSN      string `yaml:"dsn"`
}

// ImageConfig — запись каталога образов.
type ImageConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Reference   string `yaml:"reference" validate:"required"`
	Description string `yaml:"description"`
	Platform    string `yaml:"platform"`
	Step        string `yaml:"step" validate:"omitempty,step"`
}

// StepConfig — шаблоны окружения и команды шага.
type StepConfig struct {
	Env     map[string]string `yaml:"env"`
	Command []string          `yaml:"command"`
}

// WorkflowConfig — поведение запуска.
type WorkflowConfig struct {
	// AutoRemove — --rm для контейнеров шагов.
	AutoRemove bool `yaml:"auto_remove"`

	// Attached — запускать без -d и ждать завершения.
	Attached bool `yaml:"attached"`

	// Watch — ждать завершения контейнера (docker wait) и записывать статус.
	Watch bool `yaml:"watch"`
}

// MQConfig — RabbitMQ. Пустой URL отключает публикацию событий.
type MQConfig struct {
	URL string `yaml:"url" validate:"omitempty,url"`

	// ReconnectDelay — первая пауза перед переподключением.
	ReconnectDelay time.Duration `yaml:"reconnect_delay" validate:"gte=0"`

	// MaxReconnectDelay — потолок паузы между попытками.
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay" validate:"gte=0"`

	// ReconnectAttempts — неудачных попыток подряд до отказа; 0 — без ограничения.
	ReconnectAttempts int `yaml:"reconnect_attempts" validate:"gte=0"`

	// Prefetch — неподтверждённых запросов на worker.
	Prefetch int `yaml:"prefetch" validate:"gte=0"`
}

// ServerConfig — адрес HTTP сервера.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig — настройки логгера.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("step", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseStep(fl.Field().String())
		return err == nil
	})
	return v
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Binary:         DefaultBinary,
			CommandTimeout: DefaultCommandTimeout,
		},
		Store: StoreConfig{
			Driver:  "badger",
			DataDir: DefaultDataDir(),
		},
		Workflow: WorkflowConfig{
			AutoRemove: true,
			Watch:      true,
		},
		API:    ServerConfig{Addr: DefaultAPIAddr},
		Worker: ServerConfig{Addr: DefaultWorkerAddr},
	}
}

// DefaultDataDir возвращает ~/.novoflow/data.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".novoflow", "data")
	}
	return filepath.Join(home, ".novoflow", "data")
}

// Load читает конфигурацию.
//
// Порядок поиска файла: path, $NOVOFLOW_CONFIG, ./novoflow.yaml.
// Если файла нет, используются значения по умолчанию. Затем применяются
// переменные окружения и выполняется валидация.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, explicit := resolvePath(path)
	if file != "" {
		data, err := os.ReadFile(file)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", file, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
			// файла по умолчанию может не быть
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse разбирает YAML поверх значений по умолчанию без чтения окружения.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath(path string) (file string, explicit bool) {
	if path != "" {
		return path, true
	}
	if env := os.Getenv("NOVOFLOW_CONFIG"); env != "" {
		return env, true
	}
	return DefaultFileName, false
}

// ApplyEnv применяет переменные окружения поверх файла.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set("NOVOFLOW_DOCKER_BIN", &c.Runtime.Binary)
	set("NOVOFLOW_STORE", &c.Store.Driver)
	set("NOVOFLOW_DATA_DIR", &c.Store.DataDir)
	set("DB_URL", &c.Store.DSN)
	set("RABBITMQ_URL", &c.MQ.URL)
	set("LOG_LEVEL", &c.Log.Level)
	set("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("API_PORT"); ok && v != "" {
		c.API.Addr = ":" + v
	}
	if v, ok := lookup("WORKER_PORT"); ok && v != "" {
		c.Worker.Addr = ":" + v
	}
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	seen := make(map[domain.Step]string)
	for _, img := range c.Images {
		if img.Step == "" {
			continue
		}
		step, _ := domain.ParseStep(img.Step)
		if prev, ok := seen[step]; ok {
			return fmt.Errorf("%w: step %s used by %s and %s", ErrInvalidConfig, step, prev, img.Reference)
		}
		seen[step] = img.Reference
	}
	return nil
}

// ImageDescriptors возвращает каталог образов.
// nil — в конфигурации каталог не задан, используется встроенный.
func (c *Config) ImageDescriptors() []domain.ImageDescriptor {
	if len(c.Images) == 0 {
		return nil
	}

	out := make([]domain.ImageDescriptor, 0, len(c.Images))
	for _, img := range c.Images {
		d := domain.ImageDescriptor{
			Name:        img.Name,
			Reference:   img.Reference,
			Description: img.Description,
			Platform:    img.Platform,
		}
		if img.Step != "" {
			if step, err := domain.ParseStep(img.Step); err == nil {
				d.Step = &step
			}
		}
		out = append(out, d)
	}
	return out
}

// StepSettings возвращает настройки шагов с ключами domain.Step.
func (c *Config) StepSettings() map[domain.Step]StepConfig {
	out := make(map[domain.Step]StepConfig, len(c.Steps))
	keys := make([]string, 0, len(c.Steps))
	for k := range c.Steps {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		step, err := domain.ParseStep(k)
		if err != nil {
			continue
		}
		out[step] = c.Steps[k]
	}
	return out
}
