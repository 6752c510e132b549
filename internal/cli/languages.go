package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkbridge/inkbridge/internal/fonts"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List target languages and the font used for each",
		Long: `List every target language with the font the service will use.

A language the chosen family cannot render falls back to NotoSans, except
Korean (GothicA1) and Chinese (FangSong).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-12s %-12s %-11s %-16s %s\n", "LANGUAGE", "WILD WORDS", "NOTO SANS", "WITH WILD WORDS", "WITH NOTO SANS")
			for _, lang := range fonts.Languages() {
				fmt.Fprintf(out, "%-12s %-12s %-11s %-16s %s\n",
					lang,
					mark(fonts.Supports(fonts.FamilyWildWords, lang)),
					mark(fonts.Supports(fonts.FamilyNotoSans, lang)),
					fonts.Resolve(fonts.FamilyWildWords, lang),
					fonts.Resolve(fonts.FamilyNotoSans, lang),
				)
			}
			return nil
		},
	}
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "-"
}

func newFontsCmd() *cobra.Command {
	fontsCmd := &cobra.Command{
		Use:   "fonts",
		Short: "Font family helpers",
	}

	var family, language string
	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the font sent to the service for a family and language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := fonts.ParseLanguage(language)
			if err != nil {
				return err
			}
			fam, err := fonts.ParseFamily(family)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", fonts.Resolve(fam, lang))
			if w := fonts.Warning(fam, lang); w != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}
			return nil
		},
	}
	resolveCmd.Flags().StringVar(&family, "font", fonts.DefaultFamily, "Font family (Noto Sans or Wild Words)")
	resolveCmd.Flags().StringVar(&language, "lang", fonts.DefaultLanguage, "Target language")

	fontsCmd.AddCommand(resolveCmd)
	fontsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List font families",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, f := range fonts.Families {
				suffix := ""
				if f == fonts.DefaultFamily {
					suffix = " (default)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", f, suffix)
			}
		},
	})
	return fontsCmd
}
