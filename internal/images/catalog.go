package images

import (
	"fmt"
	"slices"

	"github.com/shaiso/Novoflow/internal/domain"
)

// DefaultPlatform — платформа образов pipeline.
const DefaultPlatform = "linux/amd64"

func stepPtr(s domain.Step) *domain.Step { return &s }

// DefaultImages возвращает встроенный список образов.
// Инфраструктурные образы не привязаны к шагу; шаги 2..5 задаются конфигурацией.
func DefaultImages() []domain.ImageDescriptor {
	return []domain.ImageDescriptor{
		{
			Name:        "Nginx",
			Reference:   "nginx:latest",
			Description: "Web server and reverse proxy",
			Platform:    DefaultPlatform,
		},
		{
			Name:        "PostgreSQL",
			Reference:   "postgres:latest",
			Description: "Relational database",
			Platform:    DefaultPlatform,
		},
		{
			Name:        "Redis",
			Reference:   "redis:latest",
			Description: "In-memory data store",
			Platform:    DefaultPlatform,
		},
		{
			Name:        "NovoCert Decoy Spectra",
			Reference:   "ghcr.io/huswim/novocert-docker-1-decoy-spectra-generation:main",
			Description: "Decoy spectra generation",
			Platform:    DefaultPlatform,
			Step:        stepPtr(domain.Step1),
		},
	}
}

// Catalog — неизменяемый список образов.
type Catalog struct {
	images []domain.ImageDescriptor
}

// NewCatalog создаёт каталог. Пустой список — DefaultImages.
// Каждому шагу может соответствовать не больше одного образа.
func NewCatalog(images []domain.ImageDescriptor) (*Catalog, error) {
	if len(images) == 0 {
		images = DefaultImages()
	}

	seen := make(map[domain.Step]string)
	for _, img := range images {
		if img.Step == nil {
			continue
		}
		if prev, ok := seen[*img.Step]; ok {
			return nil, fmt.Errorf("%w: step %s used by %s and %s", ErrDuplicateStep, img.Step, prev, img.Reference)
		}
		seen[*img.Step] = img.Reference
	}

	return &Catalog{images: slices.Clone(images)}, nil
}

// MustCatalog — NewCatalog для статических списков.
func MustCatalog(images []domain.ImageDescriptor) *Catalog {
	c, err := NewCatalog(images)
	if err != nil {
		panic(err)
	}
	return c
}

// Images возвращает копию списка в порядке каталога.
func (c *Catalog) Images() []domain.ImageDescriptor {
	return slices.Clone(c.images)
}

// Len возвращает количество образов.
func (c *Catalog) Len() int {
	return len(c.images)
}

// ForStep возвращает образ шага.
func (c *Catalog) ForStep(step domain.Step) (domain.ImageDescriptor, bool) {
	for _, img := range c.images {
		if img.ForStep(step) {
			return img, true
		}
	}
	return domain.ImageDescriptor{}, false
}
