package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Step — шаг фиксированного pipeline (1..5).
type Step int

const (
	Step1 Step = iota + 1
	Step2
	Step3
	Step4
	Step5
)

// AllSteps — все шаги pipeline в порядке выполнения.
var AllSteps = []Step{Step1, Step2, Step3, Step4, Step5}

// ParseStep парсит тег шага. Принимает "1", "step1" и "Step1".
func ParseStep(s string) (Step, error) {
	raw := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "step")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStep, s)
	}
	step := Step(n)
	if !step.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStep, s)
	}
	return step, nil
}

// IsValid возвращает true для шагов 1..5.
func (s Step) IsValid() bool {
	return s >= Step1 && s <= Step5
}

// String возвращает номер шага ("1".."5"), в таком виде он хранится в Task.Step.
func (s Step) String() string {
	return strconv.Itoa(int(s))
}

// Tag возвращает тег шага для имён контейнеров и файлов: "step1".
func (s Step) Tag() string {
	return "step" + s.String()
}

// MarshalText реализует encoding.TextMarshaler (JSON и YAML пишут "1").
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (s *Step) UnmarshalText(b []byte) error {
	step, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = step
	return nil
}
