package read

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/capture"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/cmd_helpers"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/output"
	"github.com/spf13/cobra"
)

var readArtifactsCmd = &cobra.Command{
	Use:     "artifacts",
	Aliases: []string{"binaries"},
	Short:   "List binaries captured by Dionaea with their SHA-256",
	Args:    cobra.NoArgs,
	RunE:    honey_cli.Wrap(runReadArtifacts),
}

func init() {
	readArtifactsCmd.Flags().Int("page", 1, "Page number (9 binaries per page)")
}

type artifactsView capture.ArtifactPage

func (v artifactsView) Table(t *output.TableWriter) {
	t.WithHeaders("NAME", "SIZE", "CAPTURED", "SHA256")
	for _, it := range v.Items {
		t.AddRow(it.Name, strconv.FormatInt(it.Size, 10), it.CapturedAt.Format("2006-01-02 15:04:05"), it.SHA256)
	}
}

func runReadArtifacts(rc *honey_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	p := cmd_helpers.Printer(cmd)
	page, _ := cmd.Flags().GetInt("page")

	svc, err := cmd_helpers.Load(rc, cmd, "")
	if err != nil {
		return cmd_helpers.Report(p, "", "Configuration error", nil, err)
	}

	res, err := svc.Engine(rc).ListArtifacts(rc, page)
	var nmr *capture.NoMoreResultsError
	if errors.As(err, &nmr) {
		return cmd_helpers.Report(p, "", fmt.Sprintf("No more results (%d binaries)", nmr.Total), nil, err)
	}
	if err != nil {
		return cmd_helpers.Report(p, "", "Cannot list binaries", nil, err)
	}
	return p.Success(fmt.Sprintf("Page %d of %d (%d binaries)", res.Page, res.TotalPages, res.TotalCount), artifactsView(*res))
}
