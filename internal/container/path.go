package container

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// defaultSearchDirs — каталоги установки docker на macOS и Linux,
// которые отсутствуют в PATH у приложений, запущенных из GUI.
var defaultSearchDirs = []string{
	"/usr/local/bin",
	"/usr/bin",
	"/opt/homebrew/bin",
	"/Applications/Docker.app/Contents/Resources/bin",
}

// ExtendedPath дополняет current каталогами поиска runtime.
// На Windows стандартные каталоги не добавляются, extra — добавляются.
// Каталоги, уже присутствующие в current, не дублируются.
func ExtendedPath(current, goos string, extra []string) string {
	sep := string(os.PathListSeparator)
	var parts []string
	seen := make(map[string]bool)

	add := func(dir string) {
		if dir == "" || seen[dir] {
			return
		}
		seen[dir] = true
		parts = append(parts, dir)
	}

	for _, dir := range strings.Split(current, sep) {
		add(dir)
	}
	if goos != "windows" {
		for _, dir := range defaultSearchDirs {
			add(dir)
		}
	}
	for _, dir := range extra {
		add(dir)
	}

	return strings.Join(parts, sep)
}

// extendedEnv возвращает окружение процесса с заменённым PATH.
func extendedEnv(extra []string) ([]string, string) {
	path := ExtendedPath(os.Getenv("PATH"), runtime.GOOS, extra)

	env := make([]string, 0, len(os.Environ())+1)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(strings.ToUpper(kv), "PATH=") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "PATH="+path)

	return env, path
}

// lookPath ищет исполняемый файл в каталогах path.
// exec.Command ищет бинарник по PATH родительского процесса, а не по cmd.Env,
// поэтому расширенный PATH приходится обходить вручную.
func lookPath(name, path string) string {
	if name == "" || strings.ContainsRune(name, filepath.Separator) || runtime.GOOS == "windows" {
		return name
	}
	for _, dir := range filepath.SplitList(path) {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 != 0 {
			return candidate
		}
	}
	return name
}
