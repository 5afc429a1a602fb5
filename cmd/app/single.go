package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"coldmail-copywriter/internal/usecase"
)

var (
	singleReq  usecase.SingleRequest
	singleJSON bool
)

var singleCmd = &cobra.Command{
	Use:   "single",
	Short: "Generate one email sequence for a single prospect",
	Long: `Generate copy for one prospect without creating a job.

--company-url takes either a website, which is scraped for context, or
pasted text describing the company.

Example:
  coldmail single --name Dana --role "Head of Growth" --company Acme \
    --company-url acme.com --value-prop "..." --cta "Open to a quick call?" \
    --tone Friendly --length Short --follow-ups 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.single.Generate(ctx, singleReq)
		if err != nil {
			return err
		}
		if singleJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		return nil
	},
}

func init() {
	f := singleCmd.Flags()
	f.StringVar(&singleReq.RecipientName, "name", "", "recipient first name")
	f.StringVar(&singleReq.RecipientRole, "role", "", "recipient job title")
	f.StringVar(&singleReq.CompanyName, "company", "", "recipient company")
	f.StringVar(&singleReq.CompanyURL, "company-url", "", "company website or pasted context")
	f.StringVar(&singleReq.ActivityText, "activity", "", "recent activity to personalize with")
	f.StringVar(&singleReq.ValueProp, "value-prop", "", "value proposition")
	f.StringVar(&singleReq.CallToAction, "cta", "", "call to action")
	f.StringVar(&singleReq.Subject, "subject", "", "fixed subject line")
	f.IntVar(&singleReq.FollowUpCount, "follow-ups", 0, "number of follow-up emails")
	f.StringVar(&singleReq.FollowUpPrompts, "follow-up-prompts", "", "guidance for the follow-ups")
	f.StringVar(&singleReq.Tone, "tone", "Professional", "tone of voice")
	f.StringVar(&singleReq.Length, "length", "Medium", "Short, Medium, Long or Custom")
	f.StringVar(&singleReq.CustomLength, "custom-length", "", "word target when --length=Custom")
	f.StringVar(&singleReq.Instructions, "instructions", "", "extra instructions")
	f.StringVar(&singleReq.SenderName, "sender-name", "", "sender name (default: single.sender.name)")
	f.StringVar(&singleReq.SenderTitle, "sender-title", "", "sender title")
	f.StringVar(&singleReq.SenderCompany, "sender-company", "", "sender company")
	f.BoolVar(&singleJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(singleCmd)
}
