package steps

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shaiso/Novoflow/internal/domain"
)

// NameGenerator генерирует уникальные имена контейнеров.
type NameGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

// NewNameGenerator создаёт генератор. clock == nil — time.Now.
func NewNameGenerator(clock func() time.Time) *NameGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &NameGenerator{now: clock}
}

// Next возвращает имя вида step1-Demo-Run--1712345678901.
func (g *NameGenerator) Next(step domain.Step, projectName string) string {
	return fmt.Sprintf("%s-%s-%d", step.Tag(), SanitizeName(projectName), g.tick())
}

// tick возвращает max(now, last+1) в миллисекундах.
func (g *NameGenerator) tick() int64 {
	for {
		now := g.now().UnixMilli()
		last := g.last.Load()
		next := max(now, last+1)
		if g.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// SanitizeName заменяет все символы кроме [a-zA-Z0-9] на '-'.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, name)
}

// LogFileName возвращает имя лог-файла запуска: step1_<taskId>_2024-04-05_12-00-00.log.
func LogFileName(step domain.Step, taskID string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.log", step.Tag(), taskID, t.Format("2006-01-02"), t.Format("15-04-05"))
}

// LogFilePath возвращает полный путь лог-файла в каталоге dir.
func LogFilePath(dir string, step domain.Step, taskID string, t time.Time) string {
	return filepath.Join(dir, LogFileName(step, taskID, t))
}
