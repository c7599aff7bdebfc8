package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resume-ats/internal/rules"
	"resume-ats/internal/segment"
)

func newSegmentCmd(v *viper.Viper) *cobra.Command {
	var (
		resume   string
		detailed bool
	)
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Split a resume into canonical sections and print them as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readDocument(cmd.Context(), cmd, resume)
			if err != nil {
				return err
			}
			r, err := rules.Load(v.GetString("rules"))
			if err != nil {
				return err
			}
			seg := segment.New(r)
			if detailed {
				return writeJSON(cmd.OutOrStdout(), seg.Detailed(text))
			}
			return writeJSON(cmd.OutOrStdout(), seg.Segment(text).Strings())
		},
	}
	cmd.Flags().StringVarP(&resume, "resume", "r", "", "resume file (pdf, docx, html, txt); - reads stdin")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include detected headers and match scores")
	_ = cmd.MarkFlagRequired("resume")
	return cmd
}
