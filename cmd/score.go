package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/issues"
	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score crawled page facts across the readiness pillars",
	Long: `Score a site's crawled page facts across five pillars (crawlability,
structured data, answerability, trust, visibility), flag catastrophic gates
and generate prioritized issues.

The facts file is JSON of the form {"pages": [...], "site": {...}}.

Examples:
  # Score a facts file
  score --facts facts.json

  # Re-weight the pillars
  score --facts facts.json --weight visibility=0.2 --weight trust=0.05

  # Export issues as CSV
  score --facts facts.json --format csv --output issues.csv`,
	RunE: runScore,
}

func init() {
	addScoreFlags(scoreCmd)
	rootCmd.AddCommand(scoreCmd)
}

func addScoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("facts", "-", "path to the facts JSON, or - for stdin")
	f.StringToString("weight", nil, "pillar weight override as pillar=value (repeatable)")
	f.Int("fast-load-ms", 0, "fast page threshold in ms (overrides config)")
	f.Int("min-words", 0, "substantive page word count (overrides config)")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "json", "output format: json or csv")
}

// factsFile is the score command's input.
type factsFile struct {
	Pages []model.PageFacts `json:"pages"`
	Site  model.SiteSignals `json:"site"`
}

// scoreReport is the score command's JSON output.
type scoreReport struct {
	PassID string             `json:"pass_id"`
	Scores model.PillarScores `json:"scores"`
	Issues []model.AuditIssue `json:"issues"`
	Cap    *float64           `json:"display_cap,omitempty"`
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("score"); err != nil {
		return err
	}

	factsPath, _ := cmd.Flags().GetString("facts")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	if format != "json" && format != "csv" {
		return eris.Errorf("score: --format must be json or csv (got %q)", format)
	}

	scoringCfg, err := applyScoringOverrides(cmd, cfg.Scoring)
	if err != nil {
		return err
	}
	engine, err := scoring.NewEngine(scoringCfg)
	if err != nil {
		return err
	}

	raw, err := readInput(cmd.InOrStdin(), factsPath)
	if err != nil {
		return err
	}
	var facts factsFile
	if err := json.Unmarshal(raw, &facts); err != nil {
		return eris.Wrap(err, "score: decode facts")
	}

	report, err := buildReport(ctx, engine, facts)
	if err != nil {
		return err
	}

	zap.L().Info("score: done",
		zap.String("pass_id", report.PassID),
		zap.Int("pages", len(facts.Pages)),
		zap.Float64("overall", report.Scores.Overall),
		zap.Int("issues", len(report.Issues)),
	)

	w := cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "score: create output file %s", outputPath)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	if format == "csv" {
		return writeIssuesCSV(w, report.Issues)
	}
	return writeJSON(w, report)
}

// applyScoringOverrides layers command flags over the configured scoring
// tunables.
func applyScoringOverrides(cmd *cobra.Command, base config.ScoringConfig) (scoring.Config, error) {
	c := scoring.ConfigFrom(base)

	if v, _ := cmd.Flags().GetInt("fast-load-ms"); v > 0 {
		c.FastLoadMs = v
	}
	if v, _ := cmd.Flags().GetInt("min-words"); v > 0 {
		c.MinWords = v
	}

	overrides, _ := cmd.Flags().GetStringToString("weight")
	if len(overrides) == 0 {
		return c, nil
	}
	weights := scoring.DefaultWeights()
	for pillar, raw := range overrides {
		w, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return c, eris.Wrapf(err, "score: weight %s=%q", pillar, raw)
		}
		weights[strings.TrimSpace(pillar)] = w
	}
	c.Weights = weights
	return c, nil
}

// buildReport scores the facts and generates their issues.
func buildReport(ctx context.Context, engine *scoring.Engine, facts factsFile) (*scoreReport, error) {
	res, err := engine.Score(ctx, facts.Pages, facts.Site)
	if err != nil {
		return nil, err
	}
	report := &scoreReport{
		PassID: res.PassID,
		Scores: res.Scores,
		Issues: issues.Generate(facts.Pages, engine.Config()),
	}
	if limit, ok := res.Scores.Gates.DisplayCap(); ok {
		report.Cap = &limit
	}
	return report, nil
}

func writeIssuesCSV(w io.Writer, list []model.AuditIssue) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"issue_type", "severity", "kind", "pillar", "points_lost", "max_points", "message"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}

	for _, is := range list {
		row := []string{
			is.IssueType,
			string(is.Severity),
			string(is.Kind),
			is.ScoreImpact.Pillar,
			fmt.Sprintf("%.2f", is.ScoreImpact.PointsLost),
			fmt.Sprintf("%.0f", is.ScoreImpact.MaxPoints),
			is.Message,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "score: write CSV row")
		}
	}
	cw.Flush()
	return cw.Error()
}
