package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/exp/slices"

	"github.com/kestrelsec/kestrel/archive"
	"github.com/kestrelsec/kestrel/cmd/exitcodes"
)

// archiveCmd groups archive inspection subcommands.
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect a path trace archive",
}

// archiveListCmd lists the records of an archive.
var archiveListCmd = &cobra.Command{
	Use:           "list <file>",
	Short:         "List the path records stored in an archive",
	Args:          cobra.ExactArgs(1),
	RunE:          cmdRunArchiveList,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// archiveShowCmd prints one record in full.
var archiveShowCmd = &cobra.Command{
	Use:           "show <file> <path-id>",
	Short:         "Show one path record in full",
	Args:          cobra.ExactArgs(2),
	RunE:          cmdRunArchiveShow,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	addArchiveListFlags(archiveListCmd.Flags())
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveShowCmd)
	rootCmd.AddCommand(archiveCmd)
}

// addArchiveListFlags registers the flags for the list subcommand.
func addArchiveListFlags(flags *pflag.FlagSet) {
	flags.Bool("traces", false, "print each record's full address trace")
}

// cmdRunArchiveList lists every record in the archive file.
func cmdRunArchiveList(cmd *cobra.Command, args []string) error {
	withTraces, err := cmd.Flags().GetBool("traces")
	if err != nil {
		return err
	}

	a, err := archive.Open(args[0])
	if err != nil {
		cmdLogger.Error("failed to open archive", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeCorruptArchive)
	}
	defer a.Close()

	var records []*archive.PathRecord
	err = a.Records(func(rec *archive.PathRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return err
	}

	// Longest paths first, ties broken by identity for stable output.
	slices.SortFunc(records, func(a, b *archive.PathRecord) int {
		if a.Length != b.Length {
			return b.Length - a.Length
		}
		return strings.Compare(a.ID, b.ID)
	})

	for _, rec := range records {
		fmt.Println(formatRecordLine(rec))
		if withTraces {
			fmt.Printf("    trace: %s\n", formatAddrTrace(rec.AddrTrace))
		}
	}
	fmt.Printf("%d record(s)\n", len(records))
	return nil
}

// cmdRunArchiveShow prints one record in full.
func cmdRunArchiveShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("invalid path id %q: %w", args[1], err)
	}

	a, err := archive.Open(args[0])
	if err != nil {
		cmdLogger.Error("failed to open archive", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeCorruptArchive)
	}
	defer a.Close()

	rec, found, err := a.Record(id)
	if err != nil {
		return err
	}
	if !found {
		return exitcodes.NewErrorWithExitCode(fmt.Errorf("no record for path %s", id), exitcodes.ExitCodeRecordNotFound)
	}

	fmt.Println(formatRecordLine(rec))
	fmt.Printf("  extra length:   %d\n", rec.ExtraLength)
	fmt.Printf("  pending merges: %d\n", rec.PendingMerges)
	fmt.Printf("  stack digest:   %x\n", rec.CallStackDigest)
	fmt.Printf("  addr trace:     %s\n", formatAddrTrace(rec.AddrTrace))
	for i, desc := range rec.Trace {
		fmt.Printf("  run %3d: %s\n", i, desc)
	}
	return nil
}

// formatRecordLine renders a record's one-line summary.
func formatRecordLine(rec *archive.PathRecord) string {
	at := "<symbolic>"
	if rec.FinalAddrOK {
		at = fmt.Sprintf("%#x", rec.FinalAddr)
	}
	return fmt.Sprintf("%s  length=%d at=%s", rec.ID, rec.Length, at)
}

// formatAddrTrace renders an address trace on one line.
func formatAddrTrace(trace []uint64) string {
	parts := make([]string, len(trace))
	for i, a := range trace {
		parts[i] = fmt.Sprintf("%#x", a)
	}
	return strings.Join(parts, " -> ")
}
