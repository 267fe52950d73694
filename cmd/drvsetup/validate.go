package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/config"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/manifest"
)

func (a *app) validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [manifest]",
		Short: "Load and validate a manifest without downloading anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultManifest
			if len(args) == 1 {
				path = args[0]
			}
			target, _ := cmd.Flags().GetString("target-os")

			info, err := a.resolvePlatform(cmd.Context(), target)
			if err != nil {
				return withCode(ExitEnvironment, err)
			}

			m, err := manifest.NewLoader(staticDetector{info: info}, nil).Load(cmd.Context(), path)
			if err != nil {
				return withCode(ExitManifest, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Manifest OK: %s (%d entries)\n", path, m.Len())
			if m.Len() == 0 {
				return nil
			}

			fmt.Fprintln(out)
			for i, e := range m.Drivers {
				fmt.Fprintf(out, "  %3d  %-7s %s\n", i+1, e.InstallType, e.Label())
				fmt.Fprintf(out, "       file: %s\n", e.FileName)
				if e.URL != "" {
					fmt.Fprintf(out, "       url:  %s\n", e.URL)
				}
				for _, note := range entryNotes(e, info.OS) {
					fmt.Fprintf(out, "       %s\n", note)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("target-os", "", "Evaluate the manifest for this OS (windows or linux)")
	return cmd
}

// entryNotes lists the warnings worth showing for an entry.
func entryNotes(e manifest.DriverEntry, goos string) []string {
	var notes []string
	if e.ExpectedHash == "" && e.InstallType != manifest.TypeManual {
		notes = append(notes, "warning: no sha256, integrity will not be verified")
	}
	if e.OS != "" && e.OS != goos {
		notes = append(notes, fmt.Sprintf("skipped on %s (os: %s)", goos, e.OS))
	}
	if e.SignatureURL != "" {
		notes = append(notes, "signature: "+e.SignatureURL)
	}
	return notes
}
