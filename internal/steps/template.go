package steps

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/shaiso/Novoflow/internal/container"
)

// TemplateData — данные для шаблонов env и command.
//
//   - {{ .Project }}    — имя проекта как есть
//   - {{ .Step }}       — номер шага ("1")
//   - {{ .TaskID }}     — id task (может быть пустым)
//   - {{ .InputPath }}  — input на хосте
//   - {{ .OutputPath }} — output на хосте
//   - {{ .Env.KEY }}    — переменные, переданные при запуске
type TemplateData struct {
	Project    string
	Step       string
	TaskID     string
	InputPath  string
	OutputPath string
	Env        map[string]string
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если второй аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// coalesce — возвращает первое непустое значение
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if v != nil {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				return v
			}
		}
		return nil
	},

	// sanitize — как в имени контейнера
	"sanitize": SanitizeName,

	"join":    func(sep string, items []string) string { return strings.Join(items, sep) },
	"split":   func(sep, s string) []string { return strings.Split(s, sep) },
	"lower":   strings.ToLower,
	"upper":   strings.ToUpper,
	"trim":    strings.TrimSpace,
	"replace": strings.ReplaceAll,
}

// Render рендерит строковый шаблон.
// Строка без "{{" возвращается как есть.
func Render(tmpl string, data TemplateData) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderEnv рендерит map шаблонов в список EnvVar, отсортированный по ключу.
func RenderEnv(env map[string]string, data TemplateData) ([]container.EnvVar, error) {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]container.EnvVar, 0, len(keys))
	for _, k := range keys {
		v, err := Render(env[k], data)
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", k, err)
		}
		out = append(out, container.EnvVar{Key: k, Value: v})
	}
	return out, nil
}

// RenderArgs рендерит каждый аргумент command.
func RenderArgs(args []string, data TemplateData) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		v, err := Render(a, data)
		if err != nil {
			return nil, fmt.Errorf("command[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
