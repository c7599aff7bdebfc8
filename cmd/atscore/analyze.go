package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resume-ats/internal/extract"
	"resume-ats/internal/scoring"
	"resume-ats/internal/shared/telemetry"
)

type analyzeOptions struct {
	resume  string
	jd      string
	jdText  string
	preview bool
	force   bool
}

// analyzePreview mirrors the summary the API returns before an analysis is unlocked.
type analyzePreview struct {
	ATSScore        int      `json:"atsScore"`
	DetectedRole    string   `json:"detectedRole"`
	MissingKeywords []string `json:"missingKeywords"`
	Suggestions     []string `json:"suggestions"`
}

func newAnalyzeCmd(v *viper.Viper) *cobra.Command {
	var o analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score a resume against a job description and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, v, o)
		},
	}
	cmd.Flags().StringVarP(&o.resume, "resume", "r", "", "resume file (pdf, docx, html, txt); - reads stdin")
	cmd.Flags().StringVar(&o.jd, "jd", "", "job description file")
	cmd.Flags().StringVar(&o.jdText, "jd-text", "", "job description text")
	cmd.Flags().BoolVar(&o.preview, "preview", false, "print only the score, role, missing keywords and suggestions")
	cmd.Flags().BoolVar(&o.force, "force", false, "score the document even if it does not look like a resume")
	_ = cmd.MarkFlagRequired("resume")
	cmd.MarkFlagsMutuallyExclusive("jd", "jd-text")
	return cmd
}

func runAnalyze(cmd *cobra.Command, v *viper.Viper, o analyzeOptions) error {
	ctx := cmd.Context()
	resume, err := readDocument(ctx, cmd, o.resume)
	if err != nil {
		return err
	}
	jd := strings.TrimSpace(o.jdText)
	if o.jd != "" {
		if jd, err = readDocument(ctx, cmd, o.jd); err != nil {
			return err
		}
	}
	if jd == "" {
		return errors.New("a job description is required: pass --jd or --jd-text")
	}

	engine, err := newEngine(ctx, v)
	if err != nil {
		return err
	}
	if check, err := extract.ValidateResume(engine.Rules(), resume); err != nil {
		if !o.force {
			return fmt.Errorf("%w (use --force to score anyway)", err)
		}
		telemetry.Warn("atscore.not_resume", map[string]any{"words": check.Words, "signals": check.Signals})
	}

	res := engine.Analyze(ctx, resume, jd)
	telemetry.Debug("atscore.analyzed", map[string]any{
		"ats_score":     res.ATSScore,
		"rules_version": res.RulesVersion,
		"degraded":      res.Degraded,
	})
	if o.preview {
		return writeJSON(cmd.OutOrStdout(), previewOf(res))
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func previewOf(res scoring.AnalysisResult) analyzePreview {
	return analyzePreview{
		ATSScore:        res.ATSScore,
		DetectedRole:    res.DetectedRole,
		MissingKeywords: res.MissingKeywords,
		Suggestions:     res.Suggestions,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
