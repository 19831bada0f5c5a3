package images

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/telemetry"
)

// ProgressStatus — стадия загрузки образа.
type ProgressStatus string

const (
	ProgressDownloading ProgressStatus = "downloading"
	ProgressSuccess     ProgressStatus = "success"
	ProgressError       ProgressStatus = "error"
)

// Progress — событие загрузки для callback.
type Progress struct {
	Image  string         `json:"image"`
	Name   string         `json:"name"`
	Status ProgressStatus `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// ProgressFunc получает события загрузки. Может быть nil.
type ProgressFunc func(Progress)

// ImageStatus — результат проверки одного образа каталога.
type ImageStatus struct {
	Image  domain.ImageDescriptor `json:"image"`
	Exists bool                   `json:"exists"`
	Error  string                 `json:"error,omitempty"`
}

// PullResult — итог загрузки одного образа.
type PullResult struct {
	Image   string `json:"image"`
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Manager выполняет операции с образами каталога.
type Manager struct {
	runner  container.Runner
	catalog *Catalog
	logger  *slog.Logger
}

// Config — конфигурация Manager.
type Config struct {
	Runner  container.Runner
	Catalog *Catalog
	Logger  *slog.Logger
}

// NewManager создаёт Manager. Без каталога используется DefaultImages.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = MustCatalog(nil)
	}

	return &Manager{
		runner:  cfg.Runner,
		catalog: catalog,
		logger:  logger,
	}
}

// Catalog возвращает каталог.
func (m *Manager) Catalog() *Catalog {
	return m.catalog
}

// ListLocal возвращает локальные образы в виде "repository:tag".
func (m *Manager) ListLocal(ctx context.Context) ([]string, error) {
	res := m.runner.Run(ctx, "images", "--format", "{{.Repository}}:{{.Tag}}")
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrListFailed, res.Error)
	}

	var refs []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			refs = append(refs, line)
		}
	}
	return refs, nil
}

// Exists проверяет наличие образа локально (docker images -q).
func (m *Manager) Exists(ctx context.Context, ref string) (bool, error) {
	res := m.runner.Run(ctx, "images", "-q", ref)
	if !res.Success {
		return false, fmt.Errorf("%w: %s: %s", ErrCheckFailed, ref, res.Error)
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// CheckAll проверяет все образы каталога последовательно, сохраняя порядок.
// Ошибка проверки одного образа не прерывает остальные.
func (m *Manager) CheckAll(ctx context.Context) []ImageStatus {
	images := m.catalog.Images()
	statuses := make([]ImageStatus, 0, len(images))

	for _, img := range images {
		exists, err := m.Exists(ctx, img.Reference)
		status := ImageStatus{Image: img, Exists: exists}
		if err != nil {
			status.Error = err.Error()
		}
		statuses = append(statuses, status)
	}

	return statuses
}

// Missing возвращает образы каталога, отсутствующие локально.
func (m *Manager) Missing(ctx context.Context) []domain.ImageDescriptor {
	var missing []domain.ImageDescriptor
	for _, status := range m.CheckAll(ctx) {
		if !status.Exists {
			missing = append(missing, status.Image)
		}
	}
	return missing
}

// Pull скачивает образ (docker pull).
func (m *Manager) Pull(ctx context.Context, ref string) *container.Result {
	m.logger.Info("pulling image", "image", ref)

	res := m.runner.Run(ctx, "pull", ref)
	telemetry.ImagePulls.WithLabelValues(telemetry.ResultLabel(res.Success)).Inc()

	if !res.Success {
		m.logger.Warn("image pull failed", "image", ref, "error", res.Error)
	} else {
		m.logger.Info("image pulled", "image", ref)
	}
	return res
}

// DownloadMissing скачивает отсутствующие образы по одному в порядке каталога.
//
// Для каждого образа onProgress вызывается дважды: "downloading" перед
// загрузкой и "success"/"error" после. Ошибка одного образа не прерывает
// загрузку остальных. Если всё на месте — пустой результат без callback.
// После отмены ctx оставшиеся образы не скачиваются: каждый получает
// одно событие "error" с ошибкой контекста.
func (m *Manager) DownloadMissing(ctx context.Context, onProgress ProgressFunc) []PullResult {
	missing := m.Missing(ctx)
	results := make([]PullResult, 0, len(missing))

	notify := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	for _, img := range missing {
		if err := ctx.Err(); err != nil {
			notify(Progress{Image: img.Reference, Name: img.Name, Status: ProgressError, Error: err.Error()})
			results = append(results, PullResult{Image: img.Reference, Name: img.Name, Error: err.Error()})
			continue
		}

		notify(Progress{Image: img.Reference, Name: img.Name, Status: ProgressDownloading})

		res := m.Pull(ctx, img.Reference)

		status := ProgressSuccess
		if !res.Success {
			status = ProgressError
		}
		notify(Progress{Image: img.Reference, Name: img.Name, Status: status, Error: res.Error})

		results = append(results, PullResult{
			Image:   img.Reference,
			Name:    img.Name,
			Success: res.Success,
			Error:   res.Error,
		})
	}

	return results
}
