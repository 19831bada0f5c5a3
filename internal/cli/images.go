package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/images"
)

// NewImagesCmd создаёт группу команд для образов каталога.
func NewImagesCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Manage pipeline images",
	}

	cmd.AddCommand(
		newImagesListCmd(appFn, outputFn),
		newImagesCheckCmd(appFn, outputFn),
		newImagesPullCmd(appFn, outputFn),
	)

	return cmd
}

func newImagesListCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog images (or local images with --local)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}

			if local {
				ctx, cancel := a.QueryContext(cmd.Context())
				defer cancel()

				refs, err := a.Images.ListLocal(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, len(refs))
				for i, ref := range refs {
					rows[i] = []string{ref}
				}
				outputFn().Print([]string{"IMAGE"}, rows, refs)
				return nil
			}

			imgs := a.Catalog.Images()
			headers := []string{"NAME", "REFERENCE", "STEP", "PLATFORM"}
			rows := make([][]string, len(imgs))
			for i, img := range imgs {
				rows[i] = []string{img.Name, img.Reference, stepLabel(img), orDash(img.Platform)}
			}

			outputFn().Print(headers, rows, imgs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "List images present in the local runtime")

	return cmd
}

// imagesCheckResult — вывод images check в режиме --json.
type imagesCheckResult struct {
	Runtime container.RuntimeStatus `json:"runtime"`
	Images  []images.ImageStatus    `json:"images"`
}

func newImagesCheckCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check runtime and which catalog images are present locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}

			ctx, cancel := a.QueryContext(cmd.Context())
			defer cancel()

			// Проверки независимы и выполняются параллельно
			var result imagesCheckResult
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				result.Runtime = a.Checker.Status(gctx)
				return nil
			})
			g.Go(func() error {
				result.Images = a.Images.CheckAll(gctx)
				return nil
			})
			if err := g.Wait(); err != nil {
				return err
			}

			out := outputFn()
			headers := []string{"NAME", "REFERENCE", "STEP", "PRESENT"}
			rows := make([][]string, len(result.Images))
			missing := 0
			for i, st := range result.Images {
				present := strconv.FormatBool(st.Exists)
				if st.Error != "" {
					present = "error: " + st.Error
				}
				if !st.Exists {
					missing++
				}
				rows[i] = []string{st.Image.Name, st.Image.Reference, stepLabel(st.Image), present}
			}
			out.Print(headers, rows, result)

			if !result.Runtime.DaemonRunning {
				return fmt.Errorf("runtime unavailable: %s", result.Runtime.Error)
			}
			if missing > 0 && !out.JSONMode() {
				out.Info("%d image(s) missing, run `novoflow images pull`", missing)
			}
			return nil
		},
	}
}

func newImagesPullCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Pull missing catalog images in catalog order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}
			out := outputFn()

			results := a.Images.DownloadMissing(cmd.Context(), progressPrinter(out))
			if len(results) == 0 {
				out.Success("All images are present")
				if out.JSONMode() {
					out.JSON(results)
				}
				return nil
			}

			headers := []string{"NAME", "REFERENCE", "RESULT"}
			rows := make([][]string, len(results))
			failed := 0
			for i, r := range results {
				status := "ok"
				if !r.Success {
					status = "failed: " + r.Error
					failed++
				}
				rows[i] = []string{r.Name, r.Image, status}
			}
			out.Print(headers, rows, results)

			if failed > 0 {
				return fmt.Errorf("%d of %d image(s) failed to pull", failed, len(results))
			}
			return nil
		},
	}
}

// progressPrinter печатает события загрузки в stderr.
func progressPrinter(out *Output) images.ProgressFunc {
	return func(p images.Progress) {
		switch p.Status {
		case images.ProgressError:
			out.Info("[%s] %s (%s): %s", p.Status, p.Name, p.Image, p.Error)
		default:
			out.Info("[%s] %s (%s)", p.Status, p.Name, p.Image)
		}
	}
}

// stepLabel — "step1" или "-" для инфраструктурного образа.
func stepLabel(img domain.ImageDescriptor) string {
	if img.Step == nil {
		return "-"
	}
	return img.Step.Tag()
}

// NewRuntimeCmd создаёт группу команд для container runtime.
func NewRuntimeCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runtime",
		Short: "Container runtime diagnostics",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check that the runtime is installed and the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}

			ctx, cancel := a.QueryContext(cmd.Context())
			defer cancel()
			status := a.Checker.Status(ctx)

			printRuntime(outputFn(), status, a.Steps.Configured())
			if !status.Installed || !status.DaemonRunning {
				return fmt.Errorf("runtime unavailable: %s", status.Error)
			}
			return nil
		},
	})

	return cmd
}

// runtimeCheckResult — JSON вывод runtime check.
type runtimeCheckResult struct {
	container.RuntimeStatus
	ConfiguredSteps []string `json:"configured_steps"`
}

func printRuntime(out *Output, status container.RuntimeStatus, configured []domain.Step) {
	steps := make([]string, 0, len(configured))
	for _, s := range configured {
		steps = append(steps, s.String())
	}

	out.Print(
		[]string{"INSTALLED", "PATH", "VERSION", "DAEMON", "STEPS"},
		[][]string{{
			strconv.FormatBool(status.Installed),
			orDash(status.Path),
			orDash(status.Version),
			strconv.FormatBool(status.DaemonRunning),
			orDash(strings.Join(steps, ",")),
		}},
		runtimeCheckResult{RuntimeStatus: status, ConfiguredSteps: steps},
	)
}
