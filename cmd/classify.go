package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/classify"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a site from its homepage HTML",
	Long: `Classify a website's site type, industry, mode, brand kind and purpose
from one homepage HTML document. Results are cached per domain.

Examples:
  # Classify a saved homepage
  classify --url https://trailhead.example --html home.html

  # Pipe HTML from curl and bypass the cache
  curl -s https://trailhead.example | classify --url https://trailhead.example --html - --force`,
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.String("url", "", "site URL the HTML was fetched from (required)")
	f.String("html", "-", "path to the HTML document, or - for stdin")
	f.String("content-type", "text/html", "Content-Type header the HTML was served with")
	f.Bool("force", false, "skip the cache read and recompute")
	_ = classifyCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("classify"); err != nil {
		return err
	}

	rawURL, _ := cmd.Flags().GetString("url")
	htmlPath, _ := cmd.Flags().GetString("html")
	contentType, _ := cmd.Flags().GetString("content-type")
	force, _ := cmd.Flags().GetBool("force")

	html, err := readInput(cmd.InOrStdin(), htmlPath)
	if err != nil {
		return err
	}

	env, err := initApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	res, err := env.Classifier.Classify(ctx, classify.Input{
		URL:         rawURL,
		HTML:        html,
		ContentType: contentType,
		Force:       force,
	})
	if err != nil {
		return err
	}

	zap.L().Info("classify: done",
		zap.String("domain", res.Classification.Domain),
		zap.Bool("cache_hit", res.CacheHit),
	)

	return writeJSON(cmd.OutOrStdout(), res.Classification)
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, eris.Wrap(err, "read stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}
