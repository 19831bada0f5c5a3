// Package config загружает конфигурацию из YAML и переменных окружения.
package config
