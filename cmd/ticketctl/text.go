package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nicetoya86/ticket/internal/keywords"
	"github.com/nicetoya86/ticket/internal/tags"
	"github.com/nicetoya86/ticket/internal/transcript"
)

func readInput(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("file")
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func extractor(cmd *cobra.Command) (*transcript.Extractor, error) {
	path, _ := cmd.Flags().GetString("rules")
	return transcript.NewFromFile(path, nil)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func customerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "customer",
		Short: "Print only the customer's lines of a transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd)
			if err != nil {
				return err
			}
			e, err := extractor(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.ExtractCustomerText(text))
			return nil
		},
	}
}

func cleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Strip bot lines, quoted replies and noise from a transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd)
			if err != nil {
				return err
			}
			e, err := extractor(cmd)
			if err != nil {
				return err
			}
			bodyOnly, _ := cmd.Flags().GetBool("body-only")
			if bodyOnly {
				fmt.Fprintln(cmd.OutOrStdout(), e.CleanBodyOnly(text))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.CleanText(text))
			return nil
		},
	}

	cmd.Flags().Bool("body-only", false, "Keep speaker lines, drop only quoted history and boilerplate")

	return cmd
}

func phrasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phrases",
		Short: "Rank recurring customer phrases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd)
			if err != nil {
				return err
			}
			e, err := extractor(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			stop, _ := cmd.Flags().GetStringSlice("stopword")
			phrases := keywords.NewBuilder(stop...).BuildPhrases(e.ExtractCustomerText(text), limit)
			return writeJSON(cmd, phrases)
		},
	}

	cmd.Flags().IntP("limit", "n", 15, "Maximum phrases")
	cmd.Flags().StringSlice("stopword", nil, "Additional stopwords")

	return cmd
}

func keywordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Rank single tokens of the cleaned customer text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd)
			if err != nil {
				return err
			}
			e, err := extractor(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			stop, _ := cmd.Flags().GetStringSlice("stopword")
			corpus := e.CleanText(e.ExtractCustomerText(text))
			return writeJSON(cmd, keywords.NewBuilder(stop...).RankTokenFrequency(corpus, limit))
		},
	}

	cmd.Flags().IntP("limit", "n", 50, "Maximum keywords")
	cmd.Flags().StringSlice("stopword", nil, "Additional stopwords")

	return cmd
}

type tagResult struct {
	Normalized string   `json:"normalized"`
	Parts      []string `json:"parts"`
	Primary    string   `json:"primary"`
	Excluded   bool     `json:"excluded"`
}

func tagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag [value]",
		Short: "Normalize a raw inquiry tag value",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 1 {
				raw = args[0]
			} else {
				text, err := readInput(cmd)
				if err != nil {
					return err
				}
				raw = strings.TrimSpace(text)
			}
			normalized := tags.Normalize(raw)
			return writeJSON(cmd, tagResult{
				Normalized: normalized,
				Parts:      tags.SplitMulti(raw),
				Primary:    tags.Primary(raw),
				Excluded:   tags.IsExcluded(normalized),
			})
		},
	}
}
